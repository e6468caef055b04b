package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestRuntime(t *testing.T, opts ...RuntimeOption) *Runtime {
	t.Helper()

	opts = append([]RuntimeOption{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	rt := NewRuntime(opts...)
	t.Cleanup(rt.Close)

	return rt
}

func settle(t *testing.T, rt *Runtime) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, rt.Settled(ctx))
}

// recorder is a log safe to append to from compute goroutines.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.events)
}

func double(_ context.Context, v int) (int, error) {
	return v * 2, nil
}
