package internal

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestRuntime(t *testing.T, cfg RuntimeConfig) *Runtime {
	t.Helper()

	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := NewRuntime(cfg)
	t.Cleanup(r.Close)

	return r
}

func settle(t *testing.T, r *Runtime) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, r.Settled(ctx))
}

func TestRuntime(t *testing.T) {
	t.Run("runs posted tasks in order on one goroutine", func(t *testing.T) {
		r := newTestRuntime(t, RuntimeConfig{})

		var mu sync.Mutex
		order := []int{}
		loops := map[int64]struct{}{}

		for i := range 50 {
			require.NoError(t, r.Post(func() {
				mu.Lock()
				defer mu.Unlock()

				assert.True(t, r.OnLoop())
				order = append(order, i)
				loops[goroutineID()] = struct{}{}
			}))
		}
		settle(t, r)

		mu.Lock()
		defer mu.Unlock()
		assert.Len(t, order, 50)
		assert.IsIncreasing(t, order)
		assert.Len(t, loops, 1)
		assert.False(t, r.OnLoop())
	})

	t.Run("accepts tasks from many goroutines", func(t *testing.T) {
		r := newTestRuntime(t, RuntimeConfig{})

		count := 0
		var g errgroup.Group
		for range 8 {
			g.Go(func() error {
				for range 100 {
					if err := r.Post(func() { count++ }); err != nil {
						return err
					}
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		settle(t, r)

		require.NoError(t, r.Post(func() { assert.Equal(t, 800, count) }))
		settle(t, r)
	})

	t.Run("settled waits for goroutines", func(t *testing.T) {
		r := newTestRuntime(t, RuntimeConfig{})

		done := make(chan struct{})
		r.Go(func(context.Context) {
			time.Sleep(20 * time.Millisecond)
			close(done)
		})
		settle(t, r)

		select {
		case <-done:
		default:
			t.Fatal("settled before the goroutine returned")
		}
	})

	t.Run("settled honours the context", func(t *testing.T) {
		r := newTestRuntime(t, RuntimeConfig{})

		release := make(chan struct{})
		r.Go(func(context.Context) { <-release })
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		assert.ErrorIs(t, r.Settled(ctx), context.DeadlineExceeded)
	})

	t.Run("settled from its own goroutine fails", func(t *testing.T) {
		r := newTestRuntime(t, RuntimeConfig{})

		errs := make(chan error, 1)
		r.Go(func(ctx context.Context) {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			errs <- r.Settled(ctx)
		})
		settle(t, r)

		assert.ErrorIs(t, <-errs, ErrInTask)
		assert.False(t, r.InTask())
	})

	t.Run("survives panicking tasks", func(t *testing.T) {
		r := newTestRuntime(t, RuntimeConfig{})

		ran := false
		require.NoError(t, r.Post(func() { panic("task") }))
		require.NoError(t, r.Post(func() { ran = true }))
		settle(t, r)

		require.NoError(t, r.Post(func() { assert.True(t, ran) }))
		settle(t, r)
	})

	t.Run("drops tasks after close", func(t *testing.T) {
		r := newTestRuntime(t, RuntimeConfig{})

		block := make(chan struct{})
		require.NoError(t, r.Post(func() { <-block }))

		ran := false
		require.NoError(t, r.Post(func() { ran = true }))

		go func() {
			time.Sleep(10 * time.Millisecond)
			close(block)
		}()
		r.Close()
		r.Close()

		assert.False(t, ran)
		assert.True(t, r.Closed())
		assert.ErrorIs(t, r.Post(func() {}), ErrClosed)
		settle(t, r)
	})

	t.Run("close from the loop does not deadlock", func(t *testing.T) {
		r := newTestRuntime(t, RuntimeConfig{})

		require.NoError(t, r.Post(r.Close))
		require.Eventually(t, r.Closed, time.Second, time.Millisecond)
		settle(t, r)
	})
}

func TestBatcher(t *testing.T) {
	t.Run("applies collected tasks in a single loop task", func(t *testing.T) {
		r := newTestRuntime(t, RuntimeConfig{})

		x := r.NewSignal(NodeConfig{}, 0, true)
		notified := 0
		x.Subscribe(NewCallback(func() { notified++ }))

		require.NoError(t, r.Batch(func() {
			assert.True(t, r.batcher.collect(func() {}))
			require.NoError(t, x.Set(1, true, false))
			require.NoError(t, x.Set(2, true, false))

			value, _ := x.Value()
			assert.Equal(t, 0, value)
		}))
		settle(t, r)

		value, has := x.Value()
		assert.True(t, has)
		assert.Equal(t, 2, value)
		require.NoError(t, r.Post(func() { assert.Equal(t, 1, notified) }))
		settle(t, r)
	})

	t.Run("does not collect from other goroutines", func(t *testing.T) {
		r := newTestRuntime(t, RuntimeConfig{})

		require.NoError(t, r.Batch(func() {
			done := make(chan bool)
			go func() { done <- r.batcher.collect(func() {}) }()
			assert.False(t, <-done)
		}))
		settle(t, r)
	})
}

func TestTracker(t *testing.T) {
	t.Run("tracks the owner per goroutine", func(t *testing.T) {
		owner := NewOwner()
		assert.Nil(t, CurrentOwner())

		require.NoError(t, owner.Run(func() error {
			assert.Same(t, owner, CurrentOwner())

			other := make(chan *Owner)
			go func() { other <- CurrentOwner() }()
			assert.Nil(t, <-other)

			inner := NewOwner()
			return inner.Run(func() error {
				assert.Same(t, inner, CurrentOwner())
				return nil
			})
		}))

		assert.Nil(t, CurrentOwner())
	})
}
