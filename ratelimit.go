package pipeline

import (
	"time"

	"github.com/AnatoleLucet/pipeline/internal"
)

type LimitMode = internal.LimitMode

const (
	// ModeDebounce fires after a quiet period with no new value.
	ModeDebounce = internal.ModeDebounce

	// ModeThrottle fires at most once per wait.
	ModeThrottle = internal.ModeThrottle
)

// RateLimit describes how often a manual input propagates values.
// It decodes from YAML:
//
//	mode: debounce
//	wait: 100ms
//	leading: false
//	trailing: true
//	maxWait: 1s
//
// Leading defaults to false for debounce and true for throttle,
// Trailing defaults to true.
type RateLimit struct {
	Mode     LimitMode     `yaml:"mode"`
	Wait     time.Duration `yaml:"wait"`
	MaxWait  time.Duration `yaml:"maxWait,omitempty"`
	Leading  *bool         `yaml:"leading,omitempty"`
	Trailing *bool         `yaml:"trailing,omitempty"`
}

func (l RateLimit) Validate() error {
	return l.config().Validate()
}

func (l RateLimit) config() internal.LimiterConfig {
	cfg := internal.LimiterConfig{
		Mode:     l.Mode,
		Wait:     l.Wait,
		MaxWait:  l.MaxWait,
		Leading:  l.Mode == ModeThrottle,
		Trailing: true,
	}

	if l.Leading != nil {
		cfg.Leading = *l.Leading
	}
	if l.Trailing != nil {
		cfg.Trailing = *l.Trailing
	}

	return cfg
}
