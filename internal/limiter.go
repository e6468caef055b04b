package internal

import (
	"fmt"
	"sync"
	"time"
)

type LimitMode string

const (
	ModeDebounce LimitMode = "debounce"
	ModeThrottle LimitMode = "throttle"
)

type LimiterConfig struct {
	Mode LimitMode
	Wait time.Duration

	// MaxWait bounds how long a debounced call can be delayed, 0 means unbounded.
	// Throttling is a debounce whose MaxWait equals Wait.
	MaxWait time.Duration

	Leading  bool
	Trailing bool
}

func (c LimiterConfig) Validate() error {
	switch c.Mode {
	case ModeDebounce, ModeThrottle:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidRateLimit, c.Mode)
	}

	if c.Wait < 0 || c.MaxWait < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidRateLimit)
	}
	if !c.Leading && !c.Trailing {
		return fmt.Errorf("%w: neither leading nor trailing edge enabled", ErrInvalidRateLimit)
	}

	return nil
}

// Limiter delays and coalesces calls to fn, debounce or throttle style.
// Trailing invocations receive the argument of the last call.
type Limiter struct {
	mu sync.Mutex

	fn  func(arg any)
	now func() time.Time

	wait    time.Duration
	maxWait time.Duration
	maxing  bool

	leading  bool
	trailing bool

	timer *time.Timer
	// bumped whenever the timer is replaced so a stale expiry is ignored
	generation int

	lastArg  any
	hasArg   bool
	lastCall time.Time
	called   bool

	lastInvoke time.Time

	onArm    func()
	onDisarm func()
}

func NewLimiter(cfg LimiterConfig, fn func(arg any)) *Limiter {
	l := &Limiter{
		fn:       fn,
		now:      time.Now,
		wait:     cfg.Wait,
		leading:  cfg.Leading,
		trailing: cfg.Trailing,
	}

	maxWait := cfg.MaxWait
	if cfg.Mode == ModeThrottle {
		maxWait = cfg.Wait
	}
	if maxWait > 0 {
		l.maxing = true
		l.maxWait = max(maxWait, cfg.Wait)
	}

	return l
}

// OnArm registers hooks called when a timer starts and when no timer remains.
func (l *Limiter) OnArm(arm, disarm func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.onArm = arm
	l.onDisarm = disarm
}

// Call records arg and invokes fn now or later depending on the edges.
func (l *Limiter) Call(arg any) {
	l.mu.Lock()

	now := l.now()
	invoking := l.shouldInvoke(now)

	l.lastArg, l.hasArg = arg, true
	l.lastCall, l.called = now, true

	var calls []any
	armed := false

	if invoking {
		if l.timer == nil {
			// leading edge
			l.lastInvoke = now
			armed = l.startTimer(l.wait)
			if l.leading {
				calls = append(calls, l.take(now))
			}
			l.mu.Unlock()
			l.dispatch(armed, calls, false)
			return
		}

		if l.maxing {
			l.startTimer(l.wait)
			calls = append(calls, l.take(now))
		}
	}

	if l.timer == nil {
		armed = l.startTimer(l.wait)
	}
	l.mu.Unlock()

	l.dispatch(armed, calls, false)
}

// Flush invokes a pending trailing call immediately.
func (l *Limiter) Flush() {
	l.mu.Lock()
	if l.timer == nil {
		l.mu.Unlock()
		return
	}

	calls, disarmed := l.trailingEdge(l.now())
	l.mu.Unlock()

	l.dispatch(false, calls, disarmed)
}

// Cancel drops a pending trailing call.
func (l *Limiter) Cancel() {
	l.mu.Lock()

	disarmed := l.stopTimer()
	l.lastInvoke = time.Time{}
	l.lastArg, l.hasArg = nil, false
	l.called = false
	l.mu.Unlock()

	l.dispatch(false, nil, disarmed)
}

// Pending reports whether a timer is running.
func (l *Limiter) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.timer != nil
}

func (l *Limiter) shouldInvoke(now time.Time) bool {
	if !l.called {
		return true
	}

	sinceCall := now.Sub(l.lastCall)
	sinceInvoke := now.Sub(l.lastInvoke)

	return sinceCall >= l.wait || sinceCall < 0 || (l.maxing && sinceInvoke >= l.maxWait)
}

func (l *Limiter) remainingWait(now time.Time) time.Duration {
	sinceCall := now.Sub(l.lastCall)
	sinceInvoke := now.Sub(l.lastInvoke)
	waiting := l.wait - sinceCall

	if l.maxing {
		return min(waiting, l.maxWait-sinceInvoke)
	}

	return waiting
}

func (l *Limiter) expired(generation int) {
	l.mu.Lock()
	if generation != l.generation || l.timer == nil {
		l.mu.Unlock()
		return
	}

	now := l.now()
	if !l.shouldInvoke(now) {
		l.startTimer(l.remainingWait(now))
		l.mu.Unlock()
		return
	}

	calls, disarmed := l.trailingEdge(now)
	l.mu.Unlock()

	l.dispatch(false, calls, disarmed)
}

func (l *Limiter) trailingEdge(now time.Time) ([]any, bool) {
	disarmed := l.stopTimer()

	var calls []any
	if l.trailing && l.hasArg {
		calls = append(calls, l.take(now))
	}
	l.lastArg, l.hasArg = nil, false

	return calls, disarmed
}

func (l *Limiter) take(now time.Time) any {
	arg := l.lastArg
	l.lastArg, l.hasArg = nil, false
	l.lastInvoke = now

	return arg
}

// startTimer replaces the timer and reports whether the limiter just became armed.
func (l *Limiter) startTimer(d time.Duration) bool {
	armed := l.timer == nil
	if l.timer != nil {
		l.timer.Stop()
	}

	l.generation++
	generation := l.generation
	l.timer = time.AfterFunc(d, func() { l.expired(generation) })

	return armed
}

// stopTimer reports whether a running timer was stopped.
func (l *Limiter) stopTimer() bool {
	if l.timer == nil {
		return false
	}

	l.timer.Stop()
	l.timer = nil
	l.generation++

	return true
}

// dispatch runs outside the lock: arm first, then the invocations, then disarm,
// so observers never see an idle limiter while a call is being handed over.
func (l *Limiter) dispatch(armed bool, calls []any, disarmed bool) {
	if armed && l.onArm != nil {
		l.onArm()
	}

	for _, arg := range calls {
		l.fn(arg)
	}

	if disarmed && l.onDisarm != nil {
		l.onDisarm()
	}
}
