package internal

import (
	"slices"
	"sync"
)

// Batcher groups the tasks posted from one goroutine into a single loop task,
// so that nodes depending on several of the updated inputs recompute once.
type Batcher struct {
	// goroutine id -> *collector, for batches being recorded
	collectors sync.Map

	// loop-only: while depth > 0 published nodes are deferred instead of notified
	depth    int
	deferred []*Node
}

type collector struct {
	tasks []func()
}

func NewBatcher() *Batcher {
	return &Batcher{}
}

func (b *Batcher) collect(fn func()) bool {
	c, ok := b.collectors.Load(goroutineID())
	if !ok {
		return false
	}

	c.(*collector).tasks = append(c.(*collector).tasks, fn)
	return true
}

func (b *Batcher) IsBatching() bool {
	return b.depth > 0
}

func (b *Batcher) postpone(n *Node) {
	if !slices.Contains(b.deferred, n) {
		b.deferred = append(b.deferred, n)
	}
}

// Batch records the tasks fn posts to this runtime and applies them together.
// Nested batches are merged into the outermost one.
func (r *Runtime) Batch(fn func()) error {
	gid := goroutineID()
	if _, ok := r.batcher.collectors.Load(gid); ok {
		fn()
		return nil
	}

	c := &collector{}
	r.batcher.collectors.Store(gid, c)
	func() {
		defer r.batcher.collectors.Delete(gid)
		fn()
	}()

	if len(c.tasks) == 0 {
		return nil
	}

	return r.Post(func() { r.applyBatch(c.tasks) })
}

func (r *Runtime) applyBatch(tasks []func()) {
	r.batcher.depth++
	for _, task := range tasks {
		r.run(task)
	}
	r.batcher.depth--

	deferred := r.batcher.deferred
	r.batcher.deferred = nil

	// a computed node subscribed to several changed parents is notified once
	seen := make(map[any]struct{})
	for _, n := range deferred {
		n.notify(seen)
	}
}
