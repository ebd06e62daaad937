package vm

import (
	"errors"
	"fmt"
	"strings"
)

// fakeIO records every request as a string and answers from queues.
type fakeIO struct {
	calls []string

	ints    []int64 // answers for ReadInt
	chars   []byte  // answers for ReadASCII
	randoms []int   // answers for Random
	divAns  int64
	modAns  int64

	failOn string // request name that returns errFake
	closed bool
}

var errFake = errors.New("fake bridge failure")

func (f *fakeIO) record(format string, args ...any) error {
	call := fmt.Sprintf(format, args...)
	f.calls = append(f.calls, call)
	if f.closed {
		return errors.New("request after close: " + call)
	}
	if f.failOn != "" && strings.HasPrefix(call, f.failOn) {
		return errFake
	}
	return nil
}

func (f *fakeIO) PrintInt(v int64) error {
	return f.record("PrintInt(%d)", v)
}

func (f *fakeIO) PrintASCII(c byte) error {
	return f.record("PrintASCII(%d)", c)
}

func (f *fakeIO) ReadInt() (int64, error) {
	if err := f.record("ReadInt"); err != nil {
		return 0, err
	}
	if len(f.ints) == 0 {
		return 0, errors.New("no integer input queued")
	}
	v := f.ints[0]
	f.ints = f.ints[1:]
	return v, nil
}

func (f *fakeIO) ReadASCII() (byte, error) {
	if err := f.record("ReadASCII"); err != nil {
		return 0, err
	}
	if len(f.chars) == 0 {
		return 0, errors.New("no character input queued")
	}
	c := f.chars[0]
	f.chars = f.chars[1:]
	return c, nil
}

func (f *fakeIO) Random() (int, error) {
	if err := f.record("Random"); err != nil {
		return 0, err
	}
	if len(f.randoms) == 0 {
		return 0, nil
	}
	n := f.randoms[0]
	f.randoms = f.randoms[1:]
	return n, nil
}

func (f *fakeIO) DivByZero(a, b int64) (int64, error) {
	if err := f.record("DivByZero(%d,%d)", a, b); err != nil {
		return 0, err
	}
	return f.divAns, nil
}

func (f *fakeIO) ModByZero(a, b int64) (int64, error) {
	if err := f.record("ModByZero(%d,%d)", a, b); err != nil {
		return 0, err
	}
	return f.modAns, nil
}

func (f *fakeIO) Flush() error {
	return f.record("Flush")
}

func (f *fakeIO) Debug(text string) error {
	return f.record("Debug(%s)", text)
}

func (f *fakeIO) Close(shutdown bool) error {
	err := f.record("Close(%t)", shutdown)
	f.closed = true
	return err
}

// output reassembles PrintASCII and PrintInt calls into text.
func (f *fakeIO) output() string {
	var sb strings.Builder
	for _, call := range f.calls {
		var v int64
		if _, err := fmt.Sscanf(call, "PrintASCII(%d)", &v); err == nil {
			sb.WriteByte(byte(v))
		} else if _, err := fmt.Sscanf(call, "PrintInt(%d)", &v); err == nil {
			fmt.Fprintf(&sb, "%d ", v)
		}
	}
	return sb.String()
}
