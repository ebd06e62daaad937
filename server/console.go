// Package server implements the companion side of the bridge protocol: an
// interactive console that performs output, prompts for input, and answers
// random and division-by-zero queries on behalf of a running interpreter.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/funge/bridge"
)

var log = commonlog.GetLogger("funge.server")

// ErrInputClosed is returned when the user's input ends during a prompt.
var ErrInputClosed = errors.New("server: input closed")

// Console answers bridge requests against a terminal. Sessions are served
// one at a time; output printed by a program is buffered until a newline,
// a Flush, a prompt, or the end of the session.
type Console struct {
	in       *bufio.Reader
	out      io.Writer
	prompts  bool
	maxFrame int
	rng      *rand.Rand

	pending strings.Builder
}

// ConsoleOption configures a Console.
type ConsoleOption func(*consoleConfig)

type consoleConfig struct {
	prompts  bool
	maxFrame int
	seed     uint64
}

// WithPrompts enables human-readable prompts and retry messages. Turn this
// off when input is piped.
func WithPrompts(on bool) ConsoleOption {
	return func(c *consoleConfig) { c.prompts = on }
}

// WithMaxFrame sets the largest request frame accepted.
func WithMaxFrame(n int) ConsoleOption {
	return func(c *consoleConfig) { c.maxFrame = n }
}

// WithSeed fixes the generator used to answer Random requests.
func WithSeed(seed uint64) ConsoleOption {
	return func(c *consoleConfig) { c.seed = seed }
}

// NewConsole creates a console reading user input from in and writing to out.
func NewConsole(in io.Reader, out io.Writer, opts ...ConsoleOption) *Console {
	cfg := &consoleConfig{
		prompts:  true,
		maxFrame: bridge.DefaultMaxFrame,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	seed := cfg.seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Console{
		in:       bufio.NewReader(in),
		out:      out,
		prompts:  cfg.prompts,
		maxFrame: cfg.maxFrame,
		rng:      rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

type sessionResult struct {
	shutdown bool
	err      error
}

// Serve accepts connections on ln and runs one session per connection,
// sequentially. It returns nil when a session asks for shutdown, when ln is
// closed, or when ctx is done. Cancelling ctx closes ln and the open session;
// a session blocked on user input is abandoned.
func (c *Console) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		log.Infof("session opened from %s", conn.RemoteAddr())

		done := make(chan sessionResult, 1)
		go func() {
			shutdown, err := c.ServeConn(conn)
			done <- sessionResult{shutdown, err}
		}()

		var res sessionResult
		select {
		case res = <-done:
		case <-ctx.Done():
			conn.Close()
			log.Notice("session aborted")
			return nil
		}
		conn.Close()
		if res.err != nil {
			log.Errorf("session failed: %v", res.err)
		} else {
			log.Info("session closed")
		}
		if res.shutdown {
			return nil
		}
	}
}

// ServeConn runs a single session until the client sends Close or goes
// away. It reports whether the client asked the companion to shut down.
func (c *Console) ServeConn(conn io.ReadWriter) (shutdown bool, err error) {
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	defer c.flushPending(true)

	for {
		req, err := bridge.ReadFrame(r, c.maxFrame)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			return false, fmt.Errorf("server: read request: %w", err)
		}
		if log.AllowLevel(commonlog.Debug) {
			log.Debugf("<- %s", req)
		}

		resp, herr := c.handle(req)
		if herr != nil {
			resp = &bridge.Message{Kind: bridge.KindNack, Text: herr.Error()}
		}
		if err := bridge.WriteFrame(w, resp); err != nil {
			return false, fmt.Errorf("server: write response: %w", err)
		}
		if err := w.Flush(); err != nil {
			return false, fmt.Errorf("server: write response: %w", err)
		}
		if herr != nil {
			return false, herr
		}
		if req.Kind == bridge.KindClose {
			return req.Shutdown, nil
		}
	}
}

func (c *Console) handle(req *bridge.Message) (*bridge.Message, error) {
	ack := &bridge.Message{Kind: bridge.KindAck}

	switch req.Kind {
	case bridge.KindPrintInt:
		c.pending.WriteString(strconv.FormatInt(req.Int, 10))
		return ack, nil

	case bridge.KindPrintASCII:
		if req.Int == '\n' {
			c.writeLine()
		} else {
			c.pending.WriteByte(byte(req.Int))
		}
		return ack, nil

	case bridge.KindFlush:
		c.flushPending(true)
		return ack, nil

	case bridge.KindDebug:
		fmt.Fprintf(c.out, "DEBUG: %s\n", req.Text)
		return ack, nil

	case bridge.KindClose:
		return ack, nil

	case bridge.KindRandom:
		return &bridge.Message{Kind: bridge.KindRandomAns, Int: int64(c.rng.IntN(4))}, nil

	case bridge.KindReadInt:
		v, err := c.promptInt("Please enter an integer:")
		if err != nil {
			return nil, err
		}
		return &bridge.Message{Kind: bridge.KindReadIntAns, Int: v}, nil

	case bridge.KindReadASCII:
		v, err := c.promptASCII(`Please enter an ASCII character (\x00 format or literal):`)
		if err != nil {
			return nil, err
		}
		return &bridge.Message{Kind: bridge.KindReadASCIIAns, Int: int64(v)}, nil

	case bridge.KindDivByZero:
		v, err := c.promptInt(fmt.Sprintf("Attempted to divide %d by 0! What do you want the result to be?", req.A))
		if err != nil {
			return nil, err
		}
		return &bridge.Message{Kind: bridge.KindDivByZeroAns, Int: v}, nil

	case bridge.KindModByZero:
		v, err := c.promptInt(fmt.Sprintf("Attempted to take %d modulo 0! What do you want the result to be?", req.A))
		if err != nil {
			return nil, err
		}
		return &bridge.Message{Kind: bridge.KindModByZeroAns, Int: v}, nil
	}
	return nil, fmt.Errorf("server: unexpected request %s", req)
}

// writeLine ends the current output line, blank or not.
func (c *Console) writeLine() {
	io.WriteString(c.out, c.pending.String())
	io.WriteString(c.out, "\n")
	c.pending.Reset()
}

func (c *Console) flushPending(newline bool) {
	if c.pending.Len() == 0 {
		return
	}
	io.WriteString(c.out, c.pending.String())
	if newline {
		io.WriteString(c.out, "\n")
	}
	c.pending.Reset()
}

func (c *Console) readLine(prompt string) (string, error) {
	c.flushPending(false)
	if c.prompts {
		fmt.Fprintln(c.out, prompt)
	}
	line, err := c.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return line, nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrInputClosed
		}
		return "", fmt.Errorf("server: read input: %w", err)
	}
	return line, nil
}

func (c *Console) promptInt(prompt string) (int64, error) {
	for {
		line, err := c.readLine(prompt)
		if err != nil {
			return 0, err
		}
		v, err := parseInt(line)
		if err == nil {
			return v, nil
		}
		if c.prompts {
			fmt.Fprintf(c.out, "Error reading value: '%v'\n", err)
			prompt = "Please try again:"
		}
	}
}

func (c *Console) promptASCII(prompt string) (byte, error) {
	for {
		line, err := c.readLine(prompt)
		if err != nil {
			return 0, err
		}
		v, err := parseASCII(line)
		if err == nil {
			return v, nil
		}
		if c.prompts {
			fmt.Fprintf(c.out, "Error reading value: '%v'\n", err)
			prompt = "Please try again:"
		}
	}
}
