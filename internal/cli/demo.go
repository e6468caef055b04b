package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/AnatoleLucet/pipeline"
)

// Demo is a three stage text pipeline standing in for a capture, preprocess
// and inference chain. Lines go in through Input, results come out of Result.
type Demo struct {
	Model  *pipeline.ManualInput[string]
	Input  *pipeline.ManualInput[string]
	Result *pipeline.Node[string]

	owner *pipeline.Owner
}

// BuildDemo wires the demo graph on rt and prints every result to out.
func BuildDemo(rt *pipeline.Runtime, cfg Config, logger *slog.Logger, out io.Writer) (*Demo, error) {
	opts := []pipeline.Option{pipeline.WithRuntime(rt), pipeline.Named("input")}
	if cfg.Input.RateLimit != nil {
		opts = append(opts, pipeline.WithRateLimit(*cfg.Input.RateLimit))
	}

	d := &Demo{owner: pipeline.NewOwner()}
	d.owner.OnError(func(err error) {
		logger.Warn("stage failed", "error", err)
	})

	err := d.owner.Run(func() error {
		d.Model = pipeline.NewManualInput(cfg.Model, pipeline.WithRuntime(rt), pipeline.Named("model"))
		d.Input = pipeline.NewEmptyManualInput[string](opts...)

		capture := pipeline.Compute1(func(ctx context.Context, line string) (string, error) {
			if err := stall(ctx, cfg.Stages["capture"].Latency); err != nil {
				return "", err
			}

			line = strings.TrimSpace(line)
			if line == "" {
				return "", pipeline.ErrNoOutput
			}
			return line, nil
		}, d.Input, pipeline.Named("capture"))

		preprocess := pipeline.Compute1(func(ctx context.Context, frame string) ([]string, error) {
			if err := stall(ctx, cfg.Stages["preprocess"].Latency); err != nil {
				return nil, err
			}

			return strings.Fields(strings.ToLower(frame)), nil
		}, capture, pipeline.Named("preprocess"))

		d.Result = pipeline.Compute2(func(ctx context.Context, model string, tokens []string) (string, error) {
			if err := stall(ctx, cfg.Stages["infer"].Latency); err != nil {
				return "", err
			}

			return fmt.Sprintf("%s: %d tokens [%s]", model, len(tokens), strings.Join(tokens, " ")), nil
		}, d.Model, preprocess, pipeline.Named("infer"))

		var mu sync.Mutex
		pipeline.NewSink(d.Result, func(result string) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintln(out, result)
		}, pipeline.Named("printer"))

		d.Result.OnChange(func() {
			if d.Result.IsComputing() {
				logger.Debug("inference running", "model", d.Model.Output().Value())
			}
		})

		return nil
	})

	return d, err
}

// Dispose tears the graph down.
func (d *Demo) Dispose() {
	d.owner.Dispose()
}

func stall(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
