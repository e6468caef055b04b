package internal

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// TracerName is the instrumentation scope used when no tracer is configured.
const TracerName = "github.com/AnatoleLucet/pipeline"

type RuntimeConfig struct {
	Logger  *slog.Logger
	Metrics *Metrics
	Tracer  trace.Tracer

	// MaxConcurrency caps compute functions executing at once, 0 means unlimited.
	MaxConcurrency int64
}

// Runtime is the single logical thread a graph runs on.
// Node state is only mutated by tasks executed on the loop goroutine, one at a time.
type Runtime struct {
	id string

	ctx    context.Context
	cancel context.CancelFunc

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	slots   *semaphore.Weighted

	queue     *TaskQueue
	scheduler *Scheduler
	batcher   *Batcher

	// goroutine id -> struct{}, for goroutines started by Go
	tasks sync.Map

	loopID    atomic.Int64
	closed    atomic.Bool
	closeOnce sync.Once
	stopped   chan struct{}
	exited    chan struct{}
}

func NewRuntime(cfg RuntimeConfig) *Runtime {
	ctx, cancel := context.WithCancel(context.Background())

	r := &Runtime{
		id:      uuid.NewString(),
		ctx:     ctx,
		cancel:  cancel,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		tracer:  cfg.Tracer,

		queue:     NewTaskQueue(),
		scheduler: NewScheduler(),
		batcher:   NewBatcher(),

		stopped: make(chan struct{}),
		exited:  make(chan struct{}),
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(TracerName)
	}
	if cfg.MaxConcurrency > 0 {
		r.slots = semaphore.NewWeighted(cfg.MaxConcurrency)
	}

	go r.loop()

	return r
}

func (r *Runtime) ID() string { return r.id }

func (r *Runtime) Logger() *slog.Logger { return r.logger }

func (r *Runtime) Closed() bool { return r.closed.Load() }

// OnLoop reports whether the caller is running on the runtime loop goroutine.
func (r *Runtime) OnLoop() bool {
	return r.loopID.Load() == goroutineID()
}

// InTask reports whether the caller is running on a goroutine started by Go.
func (r *Runtime) InTask() bool {
	_, ok := r.tasks.Load(goroutineID())
	return ok
}

func (r *Runtime) loop() {
	r.loopID.Store(goroutineID())
	defer close(r.exited)

	for {
		select {
		case <-r.stopped:
			return
		case <-r.queue.Wake():
		}

		for _, task := range r.queue.Drain() {
			if !r.Closed() {
				r.run(task)
			}
			r.scheduler.Release()
		}
	}
}

func (r *Runtime) run(task func()) {
	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("pipeline task panicked",
				"runtime", r.id,
				"panic", v,
				"stack", string(debug.Stack()),
			)
		}
	}()

	task()
}

// Post queues fn for execution on the loop.
// Inside a batch on the calling goroutine the task is collected instead.
func (r *Runtime) Post(fn func()) error {
	if r.batcher.collect(fn) {
		return nil
	}

	r.scheduler.Hold()
	if !r.queue.Enqueue(fn) {
		r.scheduler.Release()
		return ErrClosed
	}

	return nil
}

// Go runs fn on its own goroutine, keeping the runtime unsettled until it returns.
func (r *Runtime) Go(fn func(ctx context.Context)) {
	r.scheduler.Hold()

	go func() {
		gid := goroutineID()
		r.tasks.Store(gid, struct{}{})
		defer r.scheduler.Release()
		defer r.tasks.Delete(gid)

		fn(r.ctx)
	}()
}

// acquire takes one compute slot when the runtime limits concurrency.
func (r *Runtime) acquire(ctx context.Context) (func(), error) {
	if r.slots == nil {
		return func() {}, nil
	}

	if err := r.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire compute slot: %w", err)
	}

	return func() { r.slots.Release(1) }, nil
}

// Settled blocks until the runtime has no outstanding work or ctx is done.
// The loop and the goroutines started by Go cannot wait, they hold the runtime
// unsettled themselves.
func (r *Runtime) Settled(ctx context.Context) error {
	if r.OnLoop() {
		return ErrOnLoop
	}
	if r.InTask() {
		return ErrInTask
	}

	done := make(chan struct{})
	r.scheduler.OnSettled(func() { close(done) })

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnSettled runs fn once, the next time the runtime has no outstanding work.
func (r *Runtime) OnSettled(fn func()) {
	r.scheduler.OnSettled(fn)
}

// Close stops the loop and cancels the context handed to compute functions.
// Queued tasks are dropped. Close is idempotent.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		r.cancel()

		for range r.queue.Close() {
			r.scheduler.Release()
		}
		close(r.stopped)

		if !r.OnLoop() {
			<-r.exited
		}
	})
}

func (r *Runtime) invoke(n *Node, cb *Callback) {
	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("subscriber panicked",
				"node", n.name,
				"node_id", n.id,
				"panic", v,
			)
		}
	}()

	cb.fn()
}
