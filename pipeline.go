// Package pipeline is a reactive computation graph.
//
// Each node wraps a function of its parents outputs and recomputes whenever one
// of them changes. A node never publishes a result computed from superseded
// inputs: while a computation runs its output is empty, and parent changes that
// happen meanwhile collapse into one more pass over the parents current outputs.
//
// External code feeds the graph through manual inputs, optionally debounced or
// throttled, and observes it with subscriptions or sinks.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/AnatoleLucet/pipeline/internal"
)

func as[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}

	return v.(T)
}

// Output is either a value or no output. No output is distinct from every
// value, including the zero value and nil.
type Output[V any] struct {
	value V
	ok    bool
}

// Some wraps a value.
func Some[V any](v V) Output[V] {
	return Output[V]{value: v, ok: true}
}

// None is the no output marker.
func None[V any]() Output[V] {
	return Output[V]{}
}

func (o Output[V]) Get() (V, bool) { return o.value, o.ok }

// Value returns the value, or the zero value when there is no output.
func (o Output[V]) Value() V { return o.value }

func (o Output[V]) HasValue() bool { return o.ok }

func (o Output[V]) IsNone() bool { return !o.ok }

func (o Output[V]) String() string {
	if !o.ok {
		return "NoOutput"
	}

	return fmt.Sprint(o.value)
}

func outputOf[V any](n *internal.Node) Output[V] {
	v, ok := n.Value()
	if !ok {
		return None[V]()
	}

	return Some(as[V](v))
}

// Callback is a subscription handle. Subscribing the same callback twice
// registers it twice.
type Callback = internal.Callback

// NewCallback wraps fn so it can be subscribed and later unsubscribed.
func NewCallback(fn func()) *Callback {
	return internal.NewCallback(fn)
}

// Source is anything a node can depend on: computed nodes and manual inputs.
type Source[V any] interface {
	Output() Output[V]
	HasOutput() bool
	IsComputing() bool

	base() *internal.Node
}

// handle holds what every node exposes.
type handle[V any] struct {
	node *internal.Node
}

func (h handle[V]) base() *internal.Node { return h.node }

// ID is a unique identifier generated at construction.
func (h handle[V]) ID() string { return h.node.ID() }

func (h handle[V]) Name() string { return h.node.Name() }

// Output returns the current published output.
func (h handle[V]) Output() Output[V] { return outputOf[V](h.node) }

func (h handle[V]) HasOutput() bool { return h.node.HasOutput() }

func (h handle[V]) IsComputing() bool { return h.node.IsComputing() }

// Subscribe registers cb to run on the runtime loop each time the output is
// reassigned, except from no output to no output.
func (h handle[V]) Subscribe(cb *Callback) { h.node.Subscribe(cb) }

// Unsubscribe removes the most recent registration of cb.
// When cb was subscribed several times the earlier registrations keep firing.
func (h handle[V]) Unsubscribe(cb *Callback) bool { return h.node.Unsubscribe(cb) }

// OnChange subscribes fn and returns the callback to unsubscribe it.
func (h handle[V]) OnChange(fn func()) *Callback {
	cb := NewCallback(fn)
	h.node.Subscribe(cb)

	return cb
}

// Node is a computed node of the graph.
type Node[V any] struct {
	handle[V]

	computed *internal.Computed
}

func newNode[V any](c *internal.Computed) *Node[V] {
	return &Node[V]{handle: handle[V]{c.Node}, computed: c}
}

// AllParametersReady reports whether every parent has output.
func (n *Node[V]) AllParametersReady() bool { return n.computed.AllParametersReady() }

// Parameters returns the parents outputs in order, or false if one has none.
func (n *Node[V]) Parameters() ([]any, bool) { return n.computed.Parameters() }

// Dispose unsubscribes the node from its parents. Its subscribers are dropped
// and a computation in flight is discarded.
func (n *Node[V]) Dispose() { n.computed.Dispose() }

// Runtime is the single logical thread a graph runs on: node state changes and
// subscriber notifications all happen on its loop goroutine, one at a time.
// Compute functions run on their own goroutines.
type Runtime struct {
	r *internal.Runtime
}

type RuntimeOption func(*internal.RuntimeConfig)

// TracerName is the instrumentation scope of the default tracer.
const TracerName = internal.TracerName

// WithLogger sets the logger computation failures are reported to.
func WithLogger(logger *slog.Logger) RuntimeOption {
	return func(c *internal.RuntimeConfig) { c.Logger = logger }
}

func WithMetrics(m *Metrics) RuntimeOption {
	return func(c *internal.RuntimeConfig) { c.Metrics = m }
}

// WithTracer records a span for each compute function execution.
func WithTracer(tracer trace.Tracer) RuntimeOption {
	return func(c *internal.RuntimeConfig) { c.Tracer = tracer }
}

// WithMaxConcurrency caps the compute functions executing at once across the
// runtime. 0 means unlimited.
func WithMaxConcurrency(n int) RuntimeOption {
	return func(c *internal.RuntimeConfig) { c.MaxConcurrency = int64(n) }
}

func NewRuntime(opts ...RuntimeOption) *Runtime {
	cfg := internal.RuntimeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Runtime{internal.NewRuntime(cfg)}
}

// DefaultRuntime is used by nodes created without WithRuntime.
func DefaultRuntime() *Runtime {
	return &Runtime{internal.DefaultRuntime()}
}

func (r *Runtime) ID() string { return r.r.ID() }

// Settled blocks until no task is queued, no compute function or future is
// running and no rate limiter is waiting to fire.
// It returns ErrOnLoop when called from a subscriber, and ErrInTask when
// called from a compute function, a sink or a future.
func (r *Runtime) Settled(ctx context.Context) error { return r.r.Settled(ctx) }

// OnSettled runs fn once, the next time the runtime settles.
func (r *Runtime) OnSettled(fn func()) { r.r.OnSettled(fn) }

// Batch applies every value set from fn on this goroutine in one step, so that
// nodes depending on several of them recompute once.
func (r *Runtime) Batch(fn func()) error { return r.r.Batch(fn) }

// Close stops the runtime. Compute functions see their context canceled and
// later value sets return ErrClosed.
func (r *Runtime) Close() { r.r.Close() }
