package internal

import (
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
)

type Disposable interface {
	Dispose()
}

// Owner ties the lifetime of the nodes created under it together,
// so a dynamic part of a graph can be torn down at once.
type Owner struct {
	mu sync.Mutex

	// nodes adopted while running under this owner
	nodes []Disposable

	// cleanup functions to be called when the owner is disposed
	cleanups []func()

	// computation failure handlers
	catchers []func(error)

	parent   *Owner
	children []*Owner

	disposed bool
}

// NewOwner creates an owner, child of the owner running on the calling goroutine if any.
func NewOwner() *Owner {
	o := &Owner{
		nodes:    make([]Disposable, 0),
		cleanups: make([]func(), 0),
	}

	if parent := CurrentOwner(); parent != nil {
		parent.AddChild(o)
	}

	return o
}

// Run executes fn with this owner as the current owner of the calling goroutine.
// A panic is handed to the error handlers when there are some, and propagates otherwise.
func (o *Owner) Run(fn func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			if !o.hasCatchers() {
				panic(v)
			}

			perr := &PanicError{Value: v, Stack: debug.Stack()}
			o.Report(nil, perr)
			err = perr
		}
	}()

	return tracker.RunWithOwner(o, fn)
}

func (o *Owner) AddChild(child *Owner) {
	o.mu.Lock()
	defer o.mu.Unlock()

	child.parent = o
	o.children = append(o.children, child)
}

func (o *Owner) removeChild(child *Owner) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if i := slices.Index(o.children, child); i >= 0 {
		o.children = slices.Delete(o.children, i, i+1)
	}
}

// Adopt registers d to be disposed with the owner. Adopting into a disposed owner disposes d.
func (o *Owner) Adopt(d Disposable) {
	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		d.Dispose()
		return
	}
	o.nodes = append(o.nodes, d)
	o.mu.Unlock()
}

// Dispose disposes the children, the adopted nodes, then runs the cleanups once.
func (o *Owner) Dispose() {
	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		return
	}
	o.disposed = true

	children := o.children
	nodes := o.nodes
	cleanups := o.cleanups
	o.children, o.nodes, o.cleanups = nil, nil, nil
	parent := o.parent
	o.mu.Unlock()

	for _, child := range children {
		child.Dispose()
	}
	for _, node := range nodes {
		node.Dispose()
	}
	for _, cleanup := range cleanups {
		cleanup()
	}

	if parent != nil {
		parent.removeChild(o)
	}
}

func (o *Owner) OnCleanup(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.cleanups = append(o.cleanups, fn)
}

func (o *Owner) OnError(fn func(error)) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.catchers = append(o.catchers, fn)
}

func (o *Owner) hasCatchers() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.catchers) > 0
}

// Report hands err to the nearest owner with error handlers, walking up the parents.
// It reports false when nobody handled it. Handler panics are logged to logger,
// or to slog.Default when nil.
func (o *Owner) Report(logger *slog.Logger, err error) bool {
	if logger == nil {
		logger = slog.Default()
	}

	for owner := o; owner != nil; owner = owner.parent {
		owner.mu.Lock()
		catchers := slices.Clone(owner.catchers)
		owner.mu.Unlock()

		if len(catchers) == 0 {
			continue
		}

		for _, catcher := range catchers {
			owner.catch(logger, catcher, err)
		}
		return true
	}

	return false
}

func (o *Owner) catch(logger *slog.Logger, catcher func(error), err error) {
	defer func() {
		if v := recover(); v != nil {
			logger.Error("pipeline error handler panicked", "panic", v)
		}
	}()

	catcher(err)
}
