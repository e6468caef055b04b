package pipeline

import "github.com/AnatoleLucet/pipeline/internal"

type Owner struct {
	owner *internal.Owner
}

// NewOwner creates an owner. Created inside another owner Run, it becomes its
// child and is disposed with it.
func NewOwner() *Owner {
	return &Owner{internal.NewOwner()}
}

// Run a function within the context of this owner.
// Each node created by fn on the calling goroutine is owned, and will be
// disposed when Dispose is called.
// A panic in fn is reported to the error handlers when there are some and
// returned as a *PanicError, it propagates otherwise.
func (o *Owner) Run(fn func() error) error { return o.owner.Run(fn) }

// Dispose the owned nodes and child owners, then run the cleanups.
func (o *Owner) Dispose() { o.owner.Dispose() }

// OnCleanup adds a function to be called once, when the owner is disposed.
func (o *Owner) OnCleanup(fn func()) { o.owner.OnCleanup(fn) }

// OnError adds a handler for the computation failures of owned nodes, as
// *ComputeError. Failures of nodes of child owners without handlers bubble up.
// Handlers run on the runtime loop.
func (o *Owner) OnError(fn func(error)) { o.owner.OnError(fn) }
