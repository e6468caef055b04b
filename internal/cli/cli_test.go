package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnatoleLucet/pipeline"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCmd("test")
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected an ExitError, got %v", err)
	return exitErr.Code
}

func TestRunCmd(t *testing.T) {
	t.Run("prints the result of each line", func(t *testing.T) {
		out, err := execute(t, "Hello World\n", "run")
		require.NoError(t, err)

		assert.Equal(t, "demo: 2 tokens [hello world]\n", out)
	})

	t.Run("skips blank lines", func(t *testing.T) {
		out, err := execute(t, "\n   \n", "run")
		require.NoError(t, err)

		assert.Empty(t, out)
	})

	t.Run("debounces the input", func(t *testing.T) {
		path := writeFile(t, "pipeline.yaml", `
model: tiny
input:
  rateLimit:
    mode: debounce
    wait: 200ms
`)

		out, err := execute(t, "a\nb\nc d\n", "run", "--config", path)
		require.NoError(t, err)

		assert.Equal(t, "tiny: 2 tokens [c d]\n", out)
	})

	t.Run("serves metrics while running", func(t *testing.T) {
		out, err := execute(t, "ping\n", "run", "--metrics-addr", "127.0.0.1:0", "--verbose")
		require.NoError(t, err)

		assert.Equal(t, "demo: 1 tokens [ping]\n", out)
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		path := writeFile(t, "pipeline.yaml", "stages:\n  render:\n    latency: 1s\n")

		_, err := execute(t, "", "run", "--config", path)
		assert.Equal(t, exitValidation, exitCode(t, err))
	})
}

func TestValidateCmd(t *testing.T) {
	t.Run("accepts a valid config", func(t *testing.T) {
		path := writeFile(t, "pipeline.hcl", `
model = "sam"
stage "capture" { latency = "5ms" }
`)
		out, err := execute(t, "", "validate", "--config", path)
		require.NoError(t, err)

		assert.Contains(t, out, "Configuration is valid (model sam, 1 stage overrides)")
	})

	t.Run("requires a config", func(t *testing.T) {
		_, err := execute(t, "", "validate")
		assert.Equal(t, exitValidation, exitCode(t, err))
	})

	t.Run("reports missing files", func(t *testing.T) {
		_, err := execute(t, "", "validate", "--config", "/does/not/exist.yaml")
		assert.Equal(t, exitFileNotFound, exitCode(t, err))
	})
}

func TestDemo(t *testing.T) {
	newDemo := func(t *testing.T, cfg Config) (*pipeline.Runtime, *Demo, *bytes.Buffer) {
		t.Helper()

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		rt := pipeline.NewRuntime(pipeline.WithLogger(logger))
		t.Cleanup(rt.Close)

		var out bytes.Buffer
		d, err := BuildDemo(rt, cfg, logger, &out)
		require.NoError(t, err)
		t.Cleanup(d.Dispose)

		return rt, d, &out
	}

	settle := func(t *testing.T, rt *pipeline.Runtime) {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, rt.Settled(ctx))
	}

	t.Run("reruns inference when the model changes", func(t *testing.T) {
		rt, d, out := newDemo(t, DefaultConfig())

		require.NoError(t, d.Input.SetValue("A cat"))
		settle(t, rt)
		require.NoError(t, d.Model.SetValue("large"))
		settle(t, rt)

		assert.Equal(t, pipeline.Some("large: 2 tokens [a cat]"), d.Result.Output())
		assert.Equal(t, "demo: 2 tokens [a cat]\nlarge: 2 tokens [a cat]\n", out.String())
	})

	t.Run("shows no result while a stage is slow", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Stages["infer"] = StageConfig{Latency: 50 * time.Millisecond}
		rt, d, _ := newDemo(t, cfg)

		require.NoError(t, d.Input.SetValue("x"))
		require.Eventually(t, d.Result.IsComputing, time.Second, time.Millisecond)
		assert.False(t, d.Result.HasOutput())

		settle(t, rt)
		assert.Equal(t, pipeline.Some("demo: 1 tokens [x]"), d.Result.Output())
	})

	t.Run("stops after dispose", func(t *testing.T) {
		rt, d, out := newDemo(t, DefaultConfig())

		d.Dispose()
		require.NoError(t, d.Input.SetValue("ignored"))
		settle(t, rt)

		assert.Empty(t, out.String())
	})
}
