package internal

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Callback is a registered output listener. Its identity is its pointer, so
// the same callback may be subscribed several times and removed one at a time.
type Callback struct {
	fn func()

	// the subscribing node, so batched notifications reach it once
	group any
}

func NewCallback(fn func()) *Callback {
	return &Callback{fn: fn}
}

type NodeConfig struct {
	Name string

	// Lazy disables the initial pass of a computed node whose parents are ready.
	Lazy bool

	RateLimit *LimiterConfig
}

// Node holds a published output and the callbacks listening to it.
// Output and computing state are written on the runtime loop only,
// reads are safe from any goroutine.
type Node struct {
	r *Runtime

	id   string
	name string

	owner *Owner

	mu        sync.RWMutex
	value     any
	has       bool
	computing bool
	disposed  bool
	subs      []*Callback
}

func (r *Runtime) newNode(cfg NodeConfig) *Node {
	id := uuid.NewString()

	name := cfg.Name
	if name == "" {
		name = "node-" + id[:8]
	}

	return &Node{
		r:    r,
		id:   id,
		name: name,
		subs: make([]*Callback, 0),
	}
}

func (n *Node) ID() string { return n.id }

func (n *Node) Name() string { return n.name }

func (n *Node) Runtime() *Runtime { return n.r }

// Value returns the current output and whether there is one.
func (n *Node) Value() (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return n.value, n.has
}

func (n *Node) HasOutput() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return n.has
}

func (n *Node) IsComputing() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return n.computing
}

func (n *Node) Disposed() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return n.disposed
}

// Subscribe appends cb to the listeners. Safe to call from a notification.
func (n *Node) Subscribe(cb *Callback) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.disposed {
		return
	}
	n.subs = append(n.subs, cb)
}

// Unsubscribe removes the last registration of cb and reports whether one was found.
func (n *Node) Unsubscribe(cb *Callback) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i := len(n.subs) - 1; i >= 0; i-- {
		if n.subs[i] == cb {
			n.subs = slices.Delete(n.subs, i, i+1)
			return true
		}
	}

	return false
}

func (n *Node) Subscribers() int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return len(n.subs)
}

// commit assigns the output and fans out to the listeners,
// except when the node goes from no output to no output.
func (n *Node) commit(value any, has, computing bool) {
	n.mu.Lock()
	if n.disposed {
		n.computing = computing
		n.mu.Unlock()
		return
	}

	had := n.has
	n.value, n.has, n.computing = value, has, computing
	n.mu.Unlock()

	if !had && !has {
		return
	}

	n.r.metrics.published(n.name)

	if n.r.batcher.IsBatching() {
		n.r.batcher.postpone(n)
		return
	}

	n.notify(nil)
}

func (n *Node) notify(seen map[any]struct{}) {
	// cloning so listeners can (un)subscribe during the notification
	n.mu.RLock()
	subs := slices.Clone(n.subs)
	n.mu.RUnlock()

	for _, cb := range subs {
		if seen != nil && cb.group != nil {
			if _, ok := seen[cb.group]; ok {
				continue
			}
			seen[cb.group] = struct{}{}
		}

		n.r.invoke(n, cb)
	}
}

func (n *Node) adopt(d Disposable) {
	if o := CurrentOwner(); o != nil {
		n.owner = o
		o.Adopt(d)
	}
}

func (n *Node) fail(err error) {
	n.r.logger.Error("node computation failed",
		"node", n.name,
		"node_id", n.id,
		"error", err,
	)

	if n.owner != nil {
		n.owner.Report(n.r.logger, &ComputeError{Node: n.name, NodeID: n.id, Err: err})
	}
}

func (n *Node) dispose() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.disposed = true
	n.subs = nil
}
