package vm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chazu/funge/bridge"
)

// RandomPolicy selects where '?' gets its randomness.
type RandomPolicy string

const (
	RandomBridge RandomPolicy = "bridge"
	RandomLocal  RandomPolicy = "local"
)

// ParseRandomPolicy validates a policy name. Empty means RandomBridge.
func ParseRandomPolicy(s string) (RandomPolicy, error) {
	switch RandomPolicy(strings.ToLower(s)) {
	case "", RandomBridge:
		return RandomBridge, nil
	case RandomLocal:
		return RandomLocal, nil
	}
	return "", fmt.Errorf("vm: unknown random policy %q", s)
}

// Config controls one run.
type Config struct {
	Endpoint    string        // bridge endpoint name, see bridge.ParseEndpoint
	DialTimeout time.Duration // 0: no connect timeout
	MaxFrame    int           // largest accepted response frame, 0: default

	Random   RandomPolicy
	Seed     uint64 // RandomLocal only, 0: random seed
	MaxSteps uint64 // 0: unlimited

	Debug       DebugFlags
	DebugBridge bool
}

// checkInterval is how many steps run between context checks.
const checkInterval = 1024

// Run loads program, connects to the companion at cfg.Endpoint, and
// executes until the program halts or a fatal error occurs. The connection
// is always released before Run returns.
func Run(ctx context.Context, program string, cfg Config) (*Engine, error) {
	g, err := loadProgram(program, cfg.Debug)
	if err != nil {
		return nil, err
	}
	return dialAndExecute(ctx, g, cfg)
}

// RunFile is Run for a program stored at path.
func RunFile(ctx context.Context, path string, cfg Config) (*Engine, error) {
	g, err := loadProgramFile(path, cfg.Debug)
	if err != nil {
		return nil, err
	}
	return dialAndExecute(ctx, g, cfg)
}

func dialAndExecute(ctx context.Context, g *Grid, cfg Config) (*Engine, error) {
	var copts []bridge.ClientOption
	if cfg.MaxFrame > 0 {
		copts = append(copts, bridge.WithMaxFrame(cfg.MaxFrame))
	}
	client, err := bridge.Dial(ctx, cfg.Endpoint, cfg.DialTimeout, copts...)
	if err != nil {
		return nil, err
	}
	defer client.Release()

	// A cancelled run may be blocked inside a request; dropping the
	// connection unblocks it.
	stop := context.AfterFunc(ctx, func() { client.Release() })
	defer stop()

	e, err := execute(ctx, g, client, cfg)
	if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		return e, fmt.Errorf("vm: run interrupted at %s: %w", e.Pos(), errors.Join(ctx.Err(), err))
	}
	return e, err
}

// RunWithIO runs program against an already connected IO.
func RunWithIO(ctx context.Context, program string, io IO, cfg Config) (*Engine, error) {
	g, err := loadProgram(program, cfg.Debug)
	if err != nil {
		return nil, err
	}
	return execute(ctx, g, io, cfg)
}

// RunFileWithIO runs the program stored at path against an already
// connected IO.
func RunFileWithIO(ctx context.Context, path string, io IO, cfg Config) (*Engine, error) {
	g, err := loadProgramFile(path, cfg.Debug)
	if err != nil {
		return nil, err
	}
	return execute(ctx, g, io, cfg)
}

// RunGrid runs an already loaded grid against io.
func RunGrid(ctx context.Context, g *Grid, io IO, cfg Config) (*Engine, error) {
	return execute(ctx, g, io, cfg)
}

func loadProgram(program string, flags DebugFlags) (*Grid, error) {
	g, err := LoadReader(strings.NewReader(program), "", lineLogger(flags))
	if err != nil {
		return nil, err
	}
	logLoaded(g, flags)
	return g, nil
}

func loadProgramFile(path string, flags DebugFlags) (*Grid, error) {
	g, err := LoadFile(path, lineLogger(flags))
	if err != nil {
		return nil, err
	}
	logLoaded(g, flags)
	return g, nil
}

func lineLogger(flags DebugFlags) func(int, string) {
	if !flags.Has(DebugInitLines) {
		return nil
	}
	return func(n int, line string) {
		debugLog.Noticef("line %d: %q", n, line)
	}
}

func logLoaded(g *Grid, flags DebugFlags) {
	if flags.Has(DebugPostInit) {
		debugLog.Noticef("program after load (%dx%d):\n%s", g.Width(), g.Height(), g)
	}
}

func execute(ctx context.Context, g *Grid, io IO, cfg Config) (*Engine, error) {
	opts := []Option{WithDebug(cfg.Debug), WithDebugBridge(cfg.DebugBridge)}
	if cfg.Random == RandomLocal {
		opts = append(opts, WithLocalRandom(cfg.Seed))
	}
	e := NewEngine(g, io, opts...)
	log.Infof("running %dx%d program", g.Width(), g.Height())

	for !e.Halted() {
		if cfg.MaxSteps > 0 && e.Steps() >= cfg.MaxSteps {
			return e, fmt.Errorf("%w after %d steps at %s", ErrStepLimit, e.Steps(), e.Pos())
		}
		if e.Steps()%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return e, fmt.Errorf("vm: run interrupted at %s: %w", e.Pos(), err)
			}
		}
		if err := e.Step(); err != nil {
			return e, err
		}
	}
	log.Infof("halted after %d steps", e.Steps())
	return e, nil
}
