package internal

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ComputeFunc receives the parents outputs positionally.
type ComputeFunc func(ctx context.Context, args []any) (any, error)

type Computed struct {
	*Node

	compute ComputeFunc
	deps    []*DependencyLink

	// loop-only
	pending  bool
	revision int
}

// NewComputed wraps compute and subscribes it to every parent.
// The graph must stay acyclic, which is not checked.
func (r *Runtime) NewComputed(cfg NodeConfig, compute ComputeFunc, parents []*Node) *Computed {
	c := &Computed{
		Node:    r.newNode(cfg),
		compute: compute,
		deps:    make([]*DependencyLink, 0, len(parents)),
	}

	for _, parent := range parents {
		if parent.r != r {
			panic(fmt.Sprintf("pipeline: parent %s of %s belongs to another runtime", parent.name, c.name))
		}

		link := &DependencyLink{
			dep:      parent,
			sub:      c,
			callback: &Callback{fn: c.recompute, group: c},
		}
		parent.Subscribe(link.callback)
		c.deps = append(c.deps, link)
	}

	c.adopt(c)

	if !cfg.Lazy && len(parents) > 0 {
		_ = r.Post(c.initialize)
	}

	return c
}

// initialize runs a first pass when the parents already had output at construction.
func (c *Computed) initialize() {
	if c.IsComputing() || c.HasOutput() || !c.AllParametersReady() {
		return
	}

	c.recompute()
}

func (c *Computed) AllParametersReady() bool {
	for _, link := range c.deps {
		if !link.dep.HasOutput() {
			return false
		}
	}

	return true
}

// Parameters snapshots the parents outputs, or reports false if one has none.
func (c *Computed) Parameters() ([]any, bool) {
	args := make([]any, len(c.deps))

	for i, link := range c.deps {
		value, ok := link.dep.Value()
		if !ok {
			return nil, false
		}
		args[i] = value
	}

	return args, true
}

func (c *Computed) recompute() {
	if c.Disposed() {
		return
	}

	// one computation at a time, later changes collapse into a single rerun
	if c.IsComputing() {
		c.pending = true
		c.r.metrics.coalesced(c.name)
		c.r.logger.Debug("parent changed during computation, rerun scheduled", "node", c.name)
		return
	}

	// children see no output for as long as the computation runs
	c.commit(nil, false, true)
	c.run()
}

func (c *Computed) run() {
	c.pending = false

	args, ok := c.Parameters()
	if !ok {
		c.r.metrics.pass(c.name, PassUnready)
		c.commit(nil, false, false)
		return
	}

	c.revision++
	revision := c.revision

	c.r.Go(func(ctx context.Context) {
		value, err := c.execute(ctx, args, revision)

		if perr := c.r.Post(func() { c.settle(value, err) }); perr != nil {
			c.r.logger.Debug("dropping result computed after close", "node", c.name)
		}
	})
}

func (c *Computed) execute(ctx context.Context, args []any, revision int) (any, error) {
	ctx, span := c.r.tracer.Start(ctx, "pipeline.compute", trace.WithAttributes(
		attribute.String("pipeline.node", c.name),
		attribute.String("pipeline.node_id", c.id),
		attribute.String("pipeline.runtime", c.r.id),
		attribute.Int("pipeline.revision", revision),
	))
	defer span.End()

	release, err := c.r.acquire(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer release()

	c.r.metrics.started()
	start := time.Now()
	value, err := call(ctx, c.compute, args)
	c.r.metrics.finished(c.name, time.Since(start))

	switch {
	case err == nil:
	case errors.Is(err, ErrNoOutput):
		span.SetAttributes(attribute.Bool("pipeline.no_output", true))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return value, err
}

// settle runs on the loop once a computation returned.
func (c *Computed) settle(value any, err error) {
	has := err == nil

	switch {
	case err == nil:
		c.r.metrics.pass(c.name, PassValue)
	case errors.Is(err, ErrNoOutput):
		value = nil
		c.r.metrics.pass(c.name, PassNoOutput)
	default:
		value = nil
		c.r.metrics.pass(c.name, PassError)
		c.fail(err)
	}

	// the parents moved on, this result is stale
	if c.pending && !c.Disposed() {
		c.run()
		return
	}

	c.commit(value, has, false)
}

// Dispose detaches the node from its parents and drops its listeners.
// The result of an in-flight computation is discarded.
func (c *Computed) Dispose() {
	for _, link := range c.deps {
		link.unlink()
	}

	c.Node.dispose()
}

func call(ctx context.Context, fn ComputeFunc, args []any) (value any, err error) {
	defer func() {
		if v := recover(); v != nil {
			value = nil
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()

	return fn(ctx, args)
}
