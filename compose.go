package pipeline

import (
	"context"

	"github.com/AnatoleLucet/pipeline/internal"
)

// The Compute helpers wire a function to its parents. The compiler checks that
// the parameters of fn match the parents output types, in order.
//
// fn runs on its own goroutine each time a parent output changes and all
// parents have output. Returning ErrNoOutput publishes no output, any other
// error is logged and publishes no output as well. Runtime.Settled called
// from fn returns ErrInTask.

func Compute1[A, V any](
	fn func(ctx context.Context, a A) (V, error),
	a Source[A],
	opts ...Option,
) *Node[V] {
	return compute[V](func(ctx context.Context, args []any) (any, error) {
		return fn(ctx, as[A](args[0]))
	}, opts, a.base())
}

func Compute2[A, B, V any](
	fn func(ctx context.Context, a A, b B) (V, error),
	a Source[A], b Source[B],
	opts ...Option,
) *Node[V] {
	return compute[V](func(ctx context.Context, args []any) (any, error) {
		return fn(ctx, as[A](args[0]), as[B](args[1]))
	}, opts, a.base(), b.base())
}

func Compute3[A, B, C, V any](
	fn func(ctx context.Context, a A, b B, c C) (V, error),
	a Source[A], b Source[B], c Source[C],
	opts ...Option,
) *Node[V] {
	return compute[V](func(ctx context.Context, args []any) (any, error) {
		return fn(ctx, as[A](args[0]), as[B](args[1]), as[C](args[2]))
	}, opts, a.base(), b.base(), c.base())
}

func Compute4[A, B, C, D, V any](
	fn func(ctx context.Context, a A, b B, c C, d D) (V, error),
	a Source[A], b Source[B], c Source[C], d Source[D],
	opts ...Option,
) *Node[V] {
	return compute[V](func(ctx context.Context, args []any) (any, error) {
		return fn(ctx, as[A](args[0]), as[B](args[1]), as[C](args[2]), as[D](args[3]))
	}, opts, a.base(), b.base(), c.base(), d.base())
}

func Compute5[A, B, C, D, E, V any](
	fn func(ctx context.Context, a A, b B, c C, d D, e E) (V, error),
	a Source[A], b Source[B], c Source[C], d Source[D], e Source[E],
	opts ...Option,
) *Node[V] {
	return compute[V](func(ctx context.Context, args []any) (any, error) {
		return fn(ctx, as[A](args[0]), as[B](args[1]), as[C](args[2]), as[D](args[3]), as[E](args[4]))
	}, opts, a.base(), b.base(), c.base(), d.base(), e.base())
}

// ComputeN depends on any number of parents of the same type.
// With no parents the node never computes.
// As with the other helpers, fn cannot wait for the runtime to settle.
func ComputeN[A, V any](
	fn func(ctx context.Context, values []A) (V, error),
	parents []Source[A],
	opts ...Option,
) *Node[V] {
	nodes := make([]*internal.Node, len(parents))
	for i, p := range parents {
		nodes[i] = p.base()
	}

	return compute[V](func(ctx context.Context, args []any) (any, error) {
		values := make([]A, len(args))
		for i, arg := range args {
			values[i] = as[A](arg)
		}

		return fn(ctx, values)
	}, opts, nodes...)
}

func compute[V any](fn internal.ComputeFunc, opts []Option, parents ...*internal.Node) *Node[V] {
	rt, cfg := buildOptions(opts, parents...)
	cfg.RateLimit = nil

	return newNode[V](rt.NewComputed(cfg, fn, parents))
}

// Sink forwards the outputs of a node to a side effect.
type Sink[V any] struct {
	effect *internal.Effect
}

// NewSink calls fn with each output src publishes. No output is not forwarded,
// and outputs published while fn is still running for a previous one collapse
// into the latest.
// fn runs while the runtime is unsettled, Runtime.Settled called from it
// returns ErrInTask.
func NewSink[V any](src Source[V], fn func(V), opts ...Option) *Sink[V] {
	rt, cfg := buildOptions(opts, src.base())
	cfg.RateLimit = nil

	e := rt.NewEffect(cfg, func(v any) { fn(as[V](v)) }, src.base())

	return &Sink[V]{effect: e}
}

func (s *Sink[V]) ID() string { return s.effect.ID() }

func (s *Sink[V]) Name() string { return s.effect.Name() }

func (s *Sink[V]) IsComputing() bool { return s.effect.IsComputing() }

// Dispose stops forwarding.
func (s *Sink[V]) Dispose() { s.effect.Dispose() }
