package internal

import (
	"errors"
	"fmt"
)

var (
	// ErrNoOutput is returned by a compute function that has nothing to publish.
	// It is not a failure and is never logged as one.
	ErrNoOutput = errors.New("no output")

	// ErrClosed is returned when mutating a graph whose runtime was closed.
	ErrClosed = errors.New("pipeline: runtime closed")

	// ErrOnLoop is returned when waiting for settlement from the runtime loop itself.
	ErrOnLoop = errors.New("pipeline: cannot wait for settlement from the runtime loop")

	// ErrInTask is returned when waiting for settlement from a goroutine the
	// runtime itself waits on, such as a compute function or a sink.
	ErrInTask = errors.New("pipeline: cannot wait for settlement from a runtime task")

	// ErrInvalidRateLimit reports a rate limit configuration that cannot be applied.
	ErrInvalidRateLimit = errors.New("pipeline: invalid rate limit")
)

// ComputeError is reported to owners when a node fails to produce a value.
type ComputeError struct {
	Node   string
	NodeID string
	Err    error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

func (e *ComputeError) Unwrap() error { return e.Err }

// PanicError wraps a value recovered from a panicking compute function.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
