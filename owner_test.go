package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwner(t *testing.T) {
	t.Run("disposes nodes created while running", func(t *testing.T) {
		rt := newTestRuntime(t)
		x := NewManualInput(1, WithRuntime(rt))

		owner := NewOwner()
		var d *Node[int]
		require.NoError(t, owner.Run(func() error {
			d = Compute1(double, x)
			return nil
		}))
		settle(t, rt)
		assert.Equal(t, Some(2), d.Output())

		owner.Dispose()
		require.NoError(t, x.SetValue(5))
		settle(t, rt)
		assert.Equal(t, Some(2), d.Output())
	})

	t.Run("disposes nested owners", func(t *testing.T) {
		rt := newTestRuntime(t)
		x := NewManualInput(1, WithRuntime(rt))
		log := &recorder{}

		parent := NewOwner()
		var d *Node[int]
		require.NoError(t, parent.Run(func() error {
			child := NewOwner()
			child.OnCleanup(func() { log.add("child") })

			return child.Run(func() error {
				d = Compute1(double, x)
				return nil
			})
		}))
		parent.OnCleanup(func() { log.add("parent") })
		settle(t, rt)

		parent.Dispose()
		parent.Dispose()
		require.NoError(t, x.SetValue(5))
		settle(t, rt)

		assert.Equal(t, Some(2), d.Output())
		assert.Equal(t, []string{"child", "parent"}, log.list())
	})

	t.Run("reports failures to the nearest handler", func(t *testing.T) {
		rt := newTestRuntime(t)
		x := NewEmptyManualInput[int](WithRuntime(rt))
		errs := &recorder{}

		parent := NewOwner()
		parent.OnError(func(err error) { errs.add("parent: %v", err) })

		require.NoError(t, parent.Run(func() error {
			child := NewOwner()
			return child.Run(func() error {
				Compute1(func(context.Context, int) (int, error) {
					return 0, errors.New("boom")
				}, x, Named("stage"))
				return nil
			})
		}))

		require.NoError(t, x.SetValue(1))
		settle(t, rt)

		assert.Equal(t, []string{"parent: node stage: boom"}, errs.list())
	})

	t.Run("logs panicking handlers to the runtime logger", func(t *testing.T) {
		var logs bytes.Buffer
		rt := newTestRuntime(t, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
		x := NewEmptyManualInput[int](WithRuntime(rt))
		errs := &recorder{}

		owner := NewOwner()
		owner.OnError(func(error) { panic("handler bug") })
		owner.OnError(func(err error) { errs.add("%v", err) })

		require.NoError(t, owner.Run(func() error {
			Compute1(func(context.Context, int) (int, error) {
				return 0, errors.New("boom")
			}, x, Named("stage"))
			return nil
		}))

		require.NoError(t, x.SetValue(1))
		settle(t, rt)

		assert.Equal(t, []string{"node stage: boom"}, errs.list())
		assert.Contains(t, logs.String(), "pipeline error handler panicked")
		assert.Contains(t, logs.String(), "handler bug")
	})

	t.Run("reports panics while running", func(t *testing.T) {
		errs := &recorder{}

		owner := NewOwner()
		owner.OnError(func(err error) { errs.add("%v", err) })

		err := owner.Run(func() error { panic("exploded") })

		var perr *PanicError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "exploded", perr.Value)
		assert.Len(t, errs.list(), 1)
	})

	t.Run("propagates panics without handlers", func(t *testing.T) {
		owner := NewOwner()
		assert.Panics(t, func() {
			_ = owner.Run(func() error { panic("exploded") })
		})
	})

	t.Run("returns the run error", func(t *testing.T) {
		owner := NewOwner()
		errBoom := errors.New("boom")

		assert.ErrorIs(t, owner.Run(func() error { return errBoom }), errBoom)
	})
}
