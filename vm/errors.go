package vm

import (
	"errors"
	"fmt"
)

var (
	// ErrHalted is returned by Step once the engine has executed '@'.
	ErrHalted = errors.New("vm: engine halted")

	// ErrStepLimit is returned by the driver when a run exceeds its step budget.
	ErrStepLimit = errors.New("vm: step limit exceeded")
)

// LoadError describes why a program could not be loaded into a grid.
// Line and Col are 1-based and zero when the failure is not positional.
type LoadError struct {
	Path string // source path, empty for in-memory programs
	Line int
	Col  int
	Err  error
}

func (e *LoadError) Error() string {
	src := e.Path
	if src == "" {
		src = "<program>"
	}
	if e.Line > 0 {
		return fmt.Sprintf("vm: load %s:%d:%d: %v", src, e.Line, e.Col, e.Err)
	}
	return fmt.Sprintf("vm: load %s: %v", src, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
