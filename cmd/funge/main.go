// funge - runs a Befunge-93 program against a companion console
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/tliron/commonlog"
	"golang.org/x/term"

	"github.com/chazu/funge/bridge"
	"github.com/chazu/funge/manifest"
	"github.com/chazu/funge/server"
	"github.com/chazu/funge/vm"

	_ "github.com/tliron/commonlog/simple"
)

// verbosity counts repeated -v flags.
type verbosity int

func (v *verbosity) String() string   { return fmt.Sprint(int(*v)) }
func (v *verbosity) IsBoolFlag() bool { return true }
func (v *verbosity) Set(string) error { *v++; return nil }

func main() {
	var verbose verbosity
	flag.Var(&verbose, "v", "Verbose output (repeat for debug trace)")
	socket := flag.String("s", "", "Bridge endpoint (default from funge.toml, else befunge.io)")
	configDir := flag.String("config", "", "Directory containing funge.toml (default: search upward from the program)")
	random := flag.String("random", "", "Randomness source for '?': bridge or local")
	seed := flag.Uint64("seed", 0, "Seed for -random local (0 = random)")
	maxSteps := flag.Uint64("max-steps", 0, "Abort after this many steps (0 = unlimited)")
	debugFlags := flag.String("debug", "", "Comma-separated debug flags: initlines,postinit,getdbg,putdbg,poststack,closeonend,noflush")
	debugBridge := flag.Bool("debug-bridge", false, "Also send debug output over the bridge")
	logFile := flag.String("log", "", "Write log output to this file instead of stderr")
	embedded := flag.Bool("embedded-ui", false, "Serve the console in-process on this terminal instead of connecting to funge-if")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: funge [options] program.bf\n\n")
		fmt.Fprintf(os.Stderr, "Runs a Befunge-93 program. All I/O goes through a companion console\n")
		fmt.Fprintf(os.Stderr, "(funge-if) listening on the bridge endpoint.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  funge-if -s befunge.io &         # Start the console\n")
		fmt.Fprintf(os.Stderr, "  funge hello.bf                   # Run against it\n")
		fmt.Fprintf(os.Stderr, "  funge -embedded-ui hello.bf      # Console in the same process\n")
		fmt.Fprintf(os.Stderr, "  funge -debug postinit,poststack -v hello.bf\n")
	}
	flag.Parse()

	if *logFile != "" {
		commonlog.Configure(int(verbose), logFile)
	} else {
		commonlog.Configure(int(verbose), nil)
	}

	m, err := loadManifest(*configDir, flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	path := flag.Arg(0)
	if path == "" {
		path = m.ProgramPath()
	}
	if path == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := m.RunConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := applyFlags(&cfg, *socket, *random, *seed, *maxSteps, *debugFlags, *debugBridge); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *embedded {
		err = runEmbedded(ctx, path, cfg)
	} else {
		_, err = vm.RunFile(ctx, path, cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadManifest honors -config, otherwise searches upward from the program's
// directory (or the working directory when no program is given).
func loadManifest(configDir, program string) (*manifest.Manifest, error) {
	if configDir != "" {
		return manifest.Load(configDir)
	}
	start := "."
	if program != "" {
		start = filepath.Dir(program)
	}
	m, err := manifest.FindAndLoad(start)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}
	return m, nil
}

func applyFlags(cfg *vm.Config, socket, random string, seed, maxSteps uint64, debugFlags string, debugBridge bool) error {
	if socket != "" {
		cfg.Endpoint = socket
	}
	if random != "" {
		policy, err := vm.ParseRandomPolicy(random)
		if err != nil {
			return err
		}
		cfg.Random = policy
	}
	if seed != 0 {
		cfg.Seed = seed
	}
	if maxSteps != 0 {
		cfg.MaxSteps = maxSteps
	}
	if debugFlags != "" {
		flags, err := vm.ParseDebugFlags(strings.Split(debugFlags, ","))
		if err != nil {
			return err
		}
		cfg.Debug |= flags
	}
	if debugBridge {
		cfg.DebugBridge = true
	}
	return nil
}

// runEmbedded connects the interpreter to an in-process console over a pipe.
func runEmbedded(ctx context.Context, path string, cfg vm.Config) error {
	console := server.NewConsole(os.Stdin, os.Stdout,
		server.WithPrompts(term.IsTerminal(int(os.Stdin.Fd()))))

	clientSide, consoleSide := net.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := console.ServeConn(consoleSide)
		consoleSide.Close()
		done <- err
	}()

	client := bridge.NewClient(clientSide)
	stop := context.AfterFunc(ctx, func() { client.Release() })
	defer stop()

	_, runErr := vm.RunFileWithIO(ctx, path, client, cfg)
	client.Release()
	if runErr != nil {
		// The console may be blocked reading the terminal; don't wait for it.
		return runErr
	}
	if err := <-done; err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
