package pipeline

import (
	"time"

	"github.com/AnatoleLucet/pipeline/internal"
)

// Option configures a node at construction.
type Option func(*nodeOptions)

type nodeOptions struct {
	runtime *internal.Runtime
	config  internal.NodeConfig
}

// Named sets the name used in logs, metrics and traces.
func Named(name string) Option {
	return func(o *nodeOptions) { o.config.Name = name }
}

// WithRuntime selects the runtime of a node. Computed nodes default to the
// runtime of their first parent, manual inputs to DefaultRuntime.
func WithRuntime(rt *Runtime) Option {
	return func(o *nodeOptions) { o.runtime = rt.r }
}

// Lazy keeps a computed node from computing at construction when its parents
// already have output. It then waits for the first parent change.
func Lazy() Option {
	return func(o *nodeOptions) { o.config.Lazy = true }
}

// WithRateLimit routes a manual input values through limit.
// It panics if limit is invalid, see RateLimit.Validate.
// Computed nodes ignore it.
func WithRateLimit(limit RateLimit) Option {
	cfg := limit.config()
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	return func(o *nodeOptions) { o.config.RateLimit = &cfg }
}

// Debounce publishes a manual input value once no other value was set for wait.
// Trailing edge only unless configured otherwise.
func Debounce(wait time.Duration, opts ...LimitOption) Option {
	limit := RateLimit{Mode: ModeDebounce, Wait: wait}
	for _, opt := range opts {
		opt(&limit)
	}

	return WithRateLimit(limit)
}

// Throttle publishes a manual input value at most once per wait, on both
// edges unless configured otherwise.
func Throttle(wait time.Duration, opts ...LimitOption) Option {
	limit := RateLimit{Mode: ModeThrottle, Wait: wait}
	for _, opt := range opts {
		opt(&limit)
	}

	return WithRateLimit(limit)
}

type LimitOption func(*RateLimit)

func Leading(enabled bool) LimitOption {
	return func(l *RateLimit) { l.Leading = &enabled }
}

func Trailing(enabled bool) LimitOption {
	return func(l *RateLimit) { l.Trailing = &enabled }
}

// MaxWait bounds how long a debounced value can be held back.
func MaxWait(d time.Duration) LimitOption {
	return func(l *RateLimit) { l.MaxWait = d }
}

func buildOptions(opts []Option, parents ...*internal.Node) (*internal.Runtime, internal.NodeConfig) {
	o := &nodeOptions{}
	for _, opt := range opts {
		opt(o)
	}

	rt := o.runtime
	if rt == nil && len(parents) > 0 {
		rt = parents[0].Runtime()
	}
	if rt == nil {
		rt = internal.DefaultRuntime()
	}

	return rt, o.config
}
