package internal

import "sync"

// TaskQueue is the unbounded FIFO feeding the runtime loop.
// Enqueue never blocks so that compute goroutines and timers can always hand
// their results back.
type TaskQueue struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool

	wake chan struct{}
}

func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		tasks: make([]func(), 0),
		wake:  make(chan struct{}, 1),
	}
}

// Enqueue appends a task and wakes the loop. It reports false once the queue is closed.
func (q *TaskQueue) Enqueue(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return true
}

// Drain returns every queued task, leaving the queue empty.
func (q *TaskQueue) Drain() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()

	tasks := q.tasks
	q.tasks = make([]func(), 0, len(tasks))

	return tasks
}

func (q *TaskQueue) Wake() <-chan struct{} {
	return q.wake
}

// Close rejects further tasks and returns the ones that never ran.
func (q *TaskQueue) Close() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	tasks := q.tasks
	q.tasks = nil

	return tasks
}

type SettledQueue struct {
	callbacks []func()
}

func NewSettledQueue() *SettledQueue {
	return &SettledQueue{
		callbacks: make([]func(), 0),
	}
}

func (q *SettledQueue) Enqueue(fn func()) {
	q.callbacks = append(q.callbacks, fn)
}

// Take returns the queued callbacks and clears the queue.
func (q *SettledQueue) Take() []func() {
	callbacks := q.callbacks
	q.callbacks = make([]func(), 0)

	return callbacks
}
