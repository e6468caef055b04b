package internal

import "sync"

// Scheduler counts outstanding work on a runtime: queued tasks, in-flight
// computations, armed limiter timers and unresolved futures.
// The runtime is settled when the count drops to zero.
type Scheduler struct {
	mu sync.Mutex

	pending int

	settled *SettledQueue
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		settled: NewSettledQueue(),
	}
}

// Hold registers one unit of outstanding work.
func (s *Scheduler) Hold() {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
}

// Release completes one unit of work registered with Hold.
func (s *Scheduler) Release() {
	s.mu.Lock()
	s.pending--
	if s.pending < 0 {
		s.mu.Unlock()
		panic("pipeline: scheduler released more work than it held")
	}

	var callbacks []func()
	if s.pending == 0 {
		callbacks = s.settled.Take()
	}
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// OnSettled runs fn once the pending work reaches zero, immediately if it already has.
func (s *Scheduler) OnSettled(fn func()) {
	s.mu.Lock()
	if s.pending == 0 {
		s.mu.Unlock()
		fn()
		return
	}
	s.settled.Enqueue(fn)
	s.mu.Unlock()
}

func (s *Scheduler) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pending == 0
}
