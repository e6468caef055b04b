package internal

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	t.Run("counts passes, publishes and inputs", func(t *testing.T) {
		m := NewMetrics(prometheus.NewRegistry())
		r := newTestRuntime(t, RuntimeConfig{Metrics: m})

		x := r.NewSignal(NodeConfig{Name: "x"}, nil, false)
		r.NewComputed(NodeConfig{Name: "half"}, func(_ context.Context, args []any) (any, error) {
			v := args[0].(int)
			if v%2 != 0 {
				return nil, errors.New("odd")
			}
			return v / 2, nil
		}, []*Node{x.Node})

		assert.NoError(t, x.Set(2, true, false))
		settle(t, r)
		assert.NoError(t, x.Set(3, true, false))
		settle(t, r)

		assert.Equal(t, 1.0, testutil.ToFloat64(m.passes.WithLabelValues("half", PassValue)))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.passes.WithLabelValues("half", PassError)))
		assert.Equal(t, 2.0, testutil.ToFloat64(m.publishes.WithLabelValues("x")))
		assert.Equal(t, 2.0, testutil.ToFloat64(m.inputs.WithLabelValues("x", InputDirect)))
		assert.Equal(t, 0.0, testutil.ToFloat64(m.inflight))
		assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
	})

	t.Run("counts coalesced changes", func(t *testing.T) {
		m := NewMetrics(prometheus.NewRegistry())
		r := newTestRuntime(t, RuntimeConfig{Metrics: m})

		gate := make(chan struct{})
		started := make(chan struct{}, 1)

		x := r.NewSignal(NodeConfig{Name: "x"}, nil, false)
		r.NewComputed(NodeConfig{Name: "slow"}, func(_ context.Context, args []any) (any, error) {
			if args[0].(int) == 1 {
				started <- struct{}{}
				<-gate
			}
			return args[0], nil
		}, []*Node{x.Node})

		assert.NoError(t, x.Set(1, true, false))
		<-started
		assert.NoError(t, x.Set(2, true, false))
		assert.NoError(t, x.Set(3, true, false))
		close(gate)
		settle(t, r)

		assert.Equal(t, 2.0, testutil.ToFloat64(m.coalesces.WithLabelValues("slow")))
		assert.Equal(t, 2.0, testutil.ToFloat64(m.passes.WithLabelValues("slow", PassValue)))
	})

	t.Run("nil metrics record nothing", func(t *testing.T) {
		var m *Metrics

		assert.NotPanics(t, func() {
			m.pass("n", PassValue)
			m.coalesced("n")
			m.published("n")
			m.input("n", InputLimited)
			m.started()
			m.finished("n", 0)
		})
	})
}
