// funge-if - interactive console serving bridge requests from funge
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tliron/commonlog"
	"golang.org/x/term"

	"github.com/chazu/funge/bridge"
	"github.com/chazu/funge/server"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	socket := flag.String("s", bridge.DefaultEndpoint, "Endpoint to listen on")
	verbose := flag.Int("v", 0, "Log verbosity (0 notice, 1 info, 2 debug)")
	seed := flag.Uint64("seed", 0, "Seed for answering random direction requests (0 = random)")
	prompts := flag.String("prompts", "auto", "Show prompts: auto, on, off")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: funge-if [options]\n\n")
		fmt.Fprintf(os.Stderr, "Serves console I/O for funge until a program halts with closeonend\n")
		fmt.Fprintf(os.Stderr, "or the process is interrupted.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	commonlog.Configure(*verbose, nil)

	showPrompts := term.IsTerminal(int(os.Stdin.Fd()))
	switch strings.ToLower(*prompts) {
	case "on":
		showPrompts = true
	case "off":
		showPrompts = false
	case "auto":
	default:
		fmt.Fprintf(os.Stderr, "Error: -prompts must be auto, on or off\n")
		os.Exit(2)
	}

	if err := run(*socket, showPrompts, *seed); err != nil {
		fmt.Fprintf(os.Stderr, "funge-if: %v\n", err)
		os.Exit(1)
	}
}

// run listens on socket and serves sessions until a program asks for
// shutdown or a signal arrives. The socket file is removed on every return.
func run(socket string, prompts bool, seed uint64) error {
	log := commonlog.GetLogger("funge.server")

	ep := bridge.ParseEndpoint(socket)
	listener, err := bridge.Listen(socket)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ep, err)
	}
	defer listener.Close()
	if ep.Network == "unix" && !strings.HasPrefix(ep.Address, "@") {
		defer os.Remove(ep.Address)
	}
	fmt.Printf("Listening on %s\n", ep)

	// Handle shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	console := server.NewConsole(os.Stdin, os.Stdout,
		server.WithPrompts(prompts),
		server.WithSeed(seed))
	if err := console.Serve(ctx, listener); err != nil {
		return err
	}
	if ctx.Err() != nil {
		log.Notice("shut down on signal")
	}
	return nil
}
