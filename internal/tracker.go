package internal

import "sync"

var tracker = NewTracker()

// Tracker remembers the current owner of each goroutine.
type Tracker struct {
	// goroutine id -> *Owner
	owners sync.Map
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) RunWithOwner(owner *Owner, fn func() error) error {
	gid := goroutineID()

	prev, hadPrev := t.owners.Load(gid)
	t.owners.Store(gid, owner)
	defer func() {
		if hadPrev {
			t.owners.Store(gid, prev)
		} else {
			t.owners.Delete(gid)
		}
	}()

	return fn()
}

func (t *Tracker) CurrentOwner() *Owner {
	if o, ok := t.owners.Load(goroutineID()); ok {
		return o.(*Owner)
	}

	return nil
}

// CurrentOwner returns the owner running on the calling goroutine, or nil.
func CurrentOwner() *Owner {
	return tracker.CurrentOwner()
}
