package internal

import (
	"sync"

	"github.com/petermattis/goid"
)

var (
	once          sync.Once
	globalRuntime *Runtime
)

// DefaultRuntime returns the process wide runtime, creating it on first use.
func DefaultRuntime() *Runtime {
	once.Do(func() {
		globalRuntime = NewRuntime(RuntimeConfig{})
	})

	return globalRuntime
}

func goroutineID() int64 {
	return goid.Get()
}
