package pipeline

import "github.com/AnatoleLucet/pipeline/internal"

var (
	// ErrNoOutput is returned by a compute function, or a future, to publish no
	// output. It is not treated as a failure.
	ErrNoOutput = internal.ErrNoOutput

	ErrClosed = internal.ErrClosed

	// ErrOnLoop is returned by Runtime.Settled when called from a subscriber.
	ErrOnLoop = internal.ErrOnLoop

	// ErrInTask is returned by Runtime.Settled when called from a compute
	// function, a sink or a future.
	ErrInTask = internal.ErrInTask

	ErrInvalidRateLimit = internal.ErrInvalidRateLimit
)

// ComputeError is what owners error handlers receive when a node of theirs
// failed. The node output is empty until its next successful pass.
type ComputeError = internal.ComputeError

// PanicError is a recovered panic of a compute function or future.
type PanicError = internal.PanicError
