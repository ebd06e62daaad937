package vm

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/tliron/commonlog"
)

var (
	log      = commonlog.GetLogger("funge.vm")
	debugLog = commonlog.GetLogger("funge.debug")
)

// IO is everything the engine needs from the outside world. Each call is
// one blocking request/response exchange; the engine issues them one at a
// time in program order.
type IO interface {
	PrintInt(v int64) error
	PrintASCII(c byte) error
	ReadInt() (int64, error)
	ReadASCII() (byte, error)
	// Random returns an index into Directions.
	Random() (int, error)
	DivByZero(a, b int64) (int64, error)
	ModByZero(a, b int64) (int64, error)
	Flush() error
	Debug(text string) error
	// Close ends the session. shutdown asks the companion process to exit.
	Close(shutdown bool) error
}

// Mode is the engine's execution state.
type Mode uint8

const (
	ModeNormal Mode = iota
	ModeString
	ModeHalted
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeString:
		return "string"
	case ModeHalted:
		return "halted"
	}
	return "unknown"
}

// Engine is the instruction-dispatch state machine. It is not safe for
// concurrent use; one engine owns its grid, stack and IO for a whole run.
type Engine struct {
	grid  *Grid
	stack *Stack
	io    IO

	pos  Pos
	dir  Direction
	mode Mode

	steps uint64

	debug       DebugFlags
	debugBridge bool
	rng         *rand.Rand // nil: ask the bridge
	trace       bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithDebug enables debug flags.
func WithDebug(flags DebugFlags) Option {
	return func(e *Engine) { e.debug = flags }
}

// WithDebugBridge also sends debug output over the bridge as Debug messages.
func WithDebugBridge(on bool) Option {
	return func(e *Engine) { e.debugBridge = on }
}

// WithLocalRandom makes '?' use a local generator instead of the bridge.
// A zero seed draws one from the runtime.
func WithLocalRandom(seed uint64) Option {
	return func(e *Engine) {
		if seed == 0 {
			seed = rand.Uint64()
		}
		e.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// NewEngine creates an engine at (0,0) facing right in normal mode.
func NewEngine(g *Grid, io IO, opts ...Option) *Engine {
	e := &Engine{
		grid:  g,
		stack: NewStack(),
		io:    io,
		dir:   Right,
		mode:  ModeNormal,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.trace = log.AllowLevel(commonlog.Debug)
	return e
}

// Grid returns the program space.
func (e *Engine) Grid() *Grid { return e.grid }

// Stack returns the data stack.
func (e *Engine) Stack() *Stack { return e.stack }

// Pos returns the instruction pointer position.
func (e *Engine) Pos() Pos { return e.pos }

// Direction returns the instruction pointer direction.
func (e *Engine) Direction() Direction { return e.dir }

// Mode returns the current execution state.
func (e *Engine) Mode() Mode { return e.mode }

// Halted reports whether '@' has been executed.
func (e *Engine) Halted() bool { return e.mode == ModeHalted }

// Steps returns the number of steps executed so far.
func (e *Engine) Steps() uint64 { return e.steps }

// Step executes the cell under the instruction pointer and moves it.
// An error leaves all state exactly as it was when the failure occurred.
func (e *Engine) Step() error {
	if e.mode == ModeHalted {
		return ErrHalted
	}
	cell := e.grid.Get(e.pos)
	op := Decode(cell)
	e.steps++

	if e.mode == ModeString {
		if op == OpQuote {
			e.mode = ModeNormal
		} else {
			e.stack.Push(cell.Value)
		}
		e.pos = e.grid.Advance(e.pos, e.dir)
		return nil
	}

	if e.trace {
		log.Debugf("step %d %s %s %s dir=%s depth=%d", e.steps, e.pos, cell, op, e.dir, e.stack.Len())
	}

	if err := e.execute(op, cell); err != nil {
		return fmt.Errorf("vm: %s at %s: %w", op, e.pos, err)
	}
	if e.mode != ModeHalted {
		e.pos = e.grid.Advance(e.pos, e.dir)
	}
	return nil
}

func (e *Engine) execute(op Opcode, cell Cell) error {
	s := e.stack

	switch op {
	case OpNOP:
		// Space or unrecognized character

	case OpDigit:
		s.Push(cell.Value - '0')

	case OpQuote:
		e.mode = ModeString

	// --- Arithmetic ---
	case OpAdd:
		b, a := s.Pop(), s.Pop()
		s.Push(a + b)

	case OpSub:
		b, a := s.Pop(), s.Pop()
		s.Push(a - b)

	case OpMul:
		b, a := s.Pop(), s.Pop()
		s.Push(a * b)

	case OpDiv:
		b, a := s.Pop(), s.Pop()
		if b == 0 {
			v, err := e.io.DivByZero(a, b)
			if err != nil {
				return err
			}
			s.Push(v)
			break
		}
		s.Push(a / b)

	case OpMod:
		b, a := s.Pop(), s.Pop()
		if b == 0 {
			v, err := e.io.ModByZero(a, b)
			if err != nil {
				return err
			}
			s.Push(v)
			break
		}
		s.Push(a % b)

	case OpNot:
		s.Push(boolInt(s.Pop() == 0))

	case OpGreater:
		b, a := s.Pop(), s.Pop()
		s.Push(boolInt(a > b))

	// --- Control flow ---
	case OpRight:
		e.dir = Right

	case OpLeft:
		e.dir = Left

	case OpUp:
		e.dir = Up

	case OpDown:
		e.dir = Down

	case OpRandom:
		d, err := e.randomDirection()
		if err != nil {
			return err
		}
		e.dir = d

	case OpHorizontal:
		if s.Pop() == 0 {
			e.dir = Right
		} else {
			e.dir = Left
		}

	case OpVertical:
		if s.Pop() == 0 {
			e.dir = Down
		} else {
			e.dir = Up
		}

	case OpBridge:
		e.pos = e.grid.Advance(e.pos, e.dir)

	case OpEnd:
		return e.halt()

	// --- Stack ---
	case OpDup:
		s.Push(s.Peek())

	case OpSwap:
		a, b := s.Pop(), s.Pop()
		s.Push(a)
		s.Push(b)

	case OpDiscard:
		s.Pop()

	// --- Grid access ---
	case OpPut:
		y, x, v := s.Pop(), s.Pop(), s.Pop()
		p := Pos{Row: int(y), Col: int(x)}
		e.grid.Set(p, IntCell(v))
		if e.debug.Has(DebugPut) {
			if err := e.debugf("put %d at %s", v, p); err != nil {
				return err
			}
		}

	case OpGet:
		y, x := s.Pop(), s.Pop()
		p := Pos{Row: int(y), Col: int(x)}
		c := e.grid.Get(p)
		s.Push(c.Value)
		if e.debug.Has(DebugGet) {
			if err := e.debugf("get %s -> %d", p, c.Value); err != nil {
				return err
			}
		}

	// --- I/O ---
	case OpOutInt:
		return e.io.PrintInt(s.Pop())

	case OpOutASCII:
		v := s.Pop() % 256
		if v < 0 {
			v += 256
		}
		return e.io.PrintASCII(byte(v))

	case OpInInt:
		v, err := e.io.ReadInt()
		if err != nil {
			return err
		}
		s.Push(v)

	case OpInASCII:
		c, err := e.io.ReadASCII()
		if err != nil {
			return err
		}
		s.Push(int64(c))

	default:
		return fmt.Errorf("unhandled opcode %d", op)
	}
	return nil
}

func (e *Engine) randomDirection() (Direction, error) {
	if e.rng != nil {
		return Directions[e.rng.IntN(len(Directions))], nil
	}
	n, err := e.io.Random()
	if err != nil {
		return Direction{}, err
	}
	if n < 0 || n >= len(Directions) {
		return Direction{}, fmt.Errorf("random direction %d out of range", n)
	}
	return Directions[n], nil
}

func (e *Engine) halt() error {
	if e.debug.Has(DebugPostStack) {
		if err := e.debugf("stack at exit: %s", formatStack(e.stack.Values())); err != nil {
			return err
		}
	}
	if !e.debug.Has(DebugNoFlush) {
		if err := e.io.Flush(); err != nil {
			return err
		}
	}
	if err := e.io.Close(e.debug.Has(DebugCloseOnEnd)); err != nil {
		return err
	}
	e.mode = ModeHalted
	return nil
}

// debugf writes one line of debug output to the debug logger and, if
// enabled, to the bridge.
func (e *Engine) debugf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	debugLog.Notice(msg)
	if e.debugBridge {
		return e.io.Debug(msg)
	}
	return nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func formatStack(vals []int64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
