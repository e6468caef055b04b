package pipeline

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch(t *testing.T) {
	t.Run("recomputes once for several changes", func(t *testing.T) {
		rt := newTestRuntime(t)

		var calls atomic.Int32
		a := NewManualInput(1, WithRuntime(rt))
		b := NewManualInput(1, WithRuntime(rt))
		sum := Compute2(func(_ context.Context, a, b int) (int, error) {
			calls.Add(1)
			return a + b, nil
		}, a, b)
		settle(t, rt)
		require.Equal(t, int32(1), calls.Load())

		require.NoError(t, rt.Batch(func() {
			_ = a.SetValue(2)
			_ = b.SetValue(3)
		}))
		settle(t, rt)

		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, Some(5), sum.Output())
	})

	t.Run("nested batches apply with the outermost", func(t *testing.T) {
		rt := newTestRuntime(t)

		x := NewManualInput(0, WithRuntime(rt))
		log := []string{}
		x.OnChange(func() { log = append(log, x.Output().String()) })

		require.NoError(t, rt.Batch(func() {
			_ = x.SetValue(1)
			_ = rt.Batch(func() { _ = x.SetValue(2) })
			_ = x.SetValue(3)
		}))
		settle(t, rt)

		assert.Equal(t, []string{"3"}, log)
	})
}
