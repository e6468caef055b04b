package internal

import (
	"context"
	"errors"
	"sync/atomic"
)

// FutureFunc produces a manual input value asynchronously.
type FutureFunc func(ctx context.Context) (any, error)

// Signal is a parentless node whose output is set from outside the graph,
// optionally through a debounce or throttle limiter.
type Signal struct {
	*Node

	limiter *Limiter

	// assignments are numbered when they leave the limiter,
	// a value resolving after a newer one was published is discarded
	issued  atomic.Uint64
	applied uint64 // loop-only
}

type assignment struct {
	seq    uint64
	value  any
	has    bool
	future FutureFunc
}

// NewSignal creates a manual input. The initial output is in place before anything can subscribe.
func (r *Runtime) NewSignal(cfg NodeConfig, initial any, has bool) *Signal {
	s := &Signal{
		Node: r.newNode(cfg),
	}
	s.value, s.has = initial, has

	if cfg.RateLimit != nil {
		s.limiter = NewLimiter(*cfg.RateLimit, func(arg any) {
			if err := s.apply(arg.(assignment)); err != nil {
				r.logger.Debug("dropping rate limited value", "node", s.name, "error", err)
			}
		})
		s.limiter.OnArm(r.scheduler.Hold, r.scheduler.Release)
	}

	s.adopt(s)

	return s
}

// Set publishes value, or no output when has is false.
// immediate bypasses the limiter for this call only.
func (s *Signal) Set(value any, has, immediate bool) error {
	return s.assign(assignment{value: value, has: has}, immediate)
}

// SetFuture publishes what fn resolves to. A failing fn leaves the output unchanged,
// one returning ErrNoOutput publishes no output.
func (s *Signal) SetFuture(fn FutureFunc, immediate bool) error {
	return s.assign(assignment{future: fn}, immediate)
}

func (s *Signal) assign(a assignment, immediate bool) error {
	if s.r.Closed() {
		return ErrClosed
	}
	if s.Disposed() {
		s.r.logger.Debug("ignoring value set on disposed input", "node", s.name)
		return nil
	}

	if s.limiter == nil || immediate {
		s.r.metrics.input(s.name, InputDirect)
		return s.apply(a)
	}

	s.r.metrics.input(s.name, InputLimited)
	s.limiter.Call(a)

	return nil
}

func (s *Signal) apply(a assignment) error {
	a.seq = s.issued.Add(1)

	if a.future == nil {
		return s.r.Post(func() { s.publish(a.seq, a.value, a.has) })
	}

	if s.r.Closed() {
		return ErrClosed
	}

	s.r.Go(func(ctx context.Context) {
		value, err := call(ctx, func(ctx context.Context, _ []any) (any, error) {
			return a.future(ctx)
		}, nil)

		task := func() { s.publish(a.seq, value, true) }
		switch {
		case err == nil:
		case errors.Is(err, ErrNoOutput):
			task = func() { s.publish(a.seq, nil, false) }
		default:
			task = func() { s.fail(err) }
		}

		if perr := s.r.Post(task); perr != nil {
			s.r.logger.Debug("dropping value resolved after close", "node", s.name)
		}
	})

	return nil
}

func (s *Signal) publish(seq uint64, value any, has bool) {
	if seq < s.applied {
		s.r.logger.Debug("discarding superseded value", "node", s.name)
		return
	}
	s.applied = seq

	s.commit(value, has, false)
}

// Flush publishes a value waiting in the limiter right away.
func (s *Signal) Flush() {
	if s.limiter != nil {
		s.limiter.Flush()
	}
}

// Cancel drops a value waiting in the limiter.
func (s *Signal) Cancel() {
	if s.limiter != nil {
		s.limiter.Cancel()
	}
}

func (s *Signal) Dispose() {
	s.Cancel()
	s.Node.dispose()
}
