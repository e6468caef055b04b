package pipeline

import (
	"context"

	"github.com/AnatoleLucet/pipeline/internal"
)

// ManualInput is a node without parents whose output is set by the caller.
// It is the one node where no output is a meaningful value to set.
type ManualInput[V any] struct {
	handle[V]

	signal *internal.Signal
}

// NewManualInput creates an input already holding initial.
func NewManualInput[V any](initial V, opts ...Option) *ManualInput[V] {
	return newManualInput(Some(initial), opts)
}

// NewEmptyManualInput creates an input with no output.
func NewEmptyManualInput[V any](opts ...Option) *ManualInput[V] {
	return newManualInput(None[V](), opts)
}

func newManualInput[V any](initial Output[V], opts []Option) *ManualInput[V] {
	rt, cfg := buildOptions(opts)

	value, has := initial.Get()
	s := rt.NewSignal(cfg, value, has)

	return &ManualInput[V]{handle: handle[V]{s.Node}, signal: s}
}

type SetOption func(*setOptions)

type setOptions struct {
	immediate bool
}

// Immediate bypasses the rate limiter for one call.
func Immediate() SetOption {
	return func(o *setOptions) { o.immediate = true }
}

func immediate(opts []SetOption) bool {
	o := setOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	return o.immediate
}

// SetValue publishes v, through the rate limiter if one is configured.
// Publication happens on the runtime loop; use Runtime.Settled to wait for the
// graph to catch up.
func (m *ManualInput[V]) SetValue(v V, opts ...SetOption) error {
	return m.signal.Set(v, true, immediate(opts))
}

// SetOutput publishes o, which may be None.
func (m *ManualInput[V]) SetOutput(o Output[V], opts ...SetOption) error {
	v, has := o.Get()
	return m.signal.Set(v, has, immediate(opts))
}

// Clear publishes no output, so that dependents stop computing.
func (m *ManualInput[V]) Clear(opts ...SetOption) error {
	return m.signal.Set(nil, false, immediate(opts))
}

// SetFuture publishes the value fn resolves to once it returns. fn runs on
// its own goroutine after the rate limiter let the call through. Returning
// ErrNoOutput publishes no output; any other error is logged, reported to the
// owner and leaves the output unchanged.
//
// The resolved value only becomes the output while no later set was
// published: a future resolving after a newer value is discarded, so the
// most recent set wins rather than the last future to resolve.
func (m *ManualInput[V]) SetFuture(fn func(ctx context.Context) (V, error), opts ...SetOption) error {
	return m.signal.SetFuture(func(ctx context.Context) (any, error) {
		return fn(ctx)
	}, immediate(opts))
}

// Flush publishes a value held by the rate limiter now.
func (m *ManualInput[V]) Flush() { m.signal.Flush() }

// Cancel drops a value held by the rate limiter.
func (m *ManualInput[V]) Cancel() { m.signal.Cancel() }

// Dispose cancels the rate limiter and drops the subscribers.
// Later values are ignored.
func (m *ManualInput[V]) Dispose() { m.signal.Dispose() }
