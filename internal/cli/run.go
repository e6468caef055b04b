package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AnatoleLucet/pipeline"
)

// NewRunCmd creates the "run" subcommand.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Feed stdin lines through the demo pipeline",
		Long: "Builds a capture, preprocess and infer pipeline behind a manual input, " +
			"sets the input to every line read from stdin and prints each result.",
		Args: cobra.NoArgs,
		RunE: runRun,
	}

	cmd.Flags().StringP("config", "c", "", "Config file, YAML or .hcl")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	cmd.Flags().String("otlp-endpoint", "", "Export traces over OTLP/HTTP to host:port")
	cmd.Flags().Bool("otlp-insecure", true, "Use plain HTTP for the OTLP exporter")

	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfigFlag(cmd)
	if err != nil {
		return err
	}

	level, _ := cfg.Level()
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	registry := newRegistry()
	opts := []pipeline.RuntimeOption{
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(pipeline.NewMetrics(registry)),
		pipeline.WithMaxConcurrency(cfg.Runtime.MaxConcurrency),
	}

	if endpoint, _ := cmd.Flags().GetString("otlp-endpoint"); endpoint != "" {
		insecure, _ := cmd.Flags().GetBool("otlp-insecure")

		tp, err := newTracerProvider(ctx, endpoint, insecure)
		if err != nil {
			return exitError(exitRuntime, "tracing: %v", err)
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Warn("flushing traces", "error", err)
			}
		}()

		opts = append(opts, pipeline.WithTracer(tp.Tracer(pipeline.TracerName)))
	}

	var server *metricsServer
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		if server, err = newMetricsServer(addr, registry, logger); err != nil {
			return exitError(exitRuntime, "metrics: %v", err)
		}
	}

	rt := pipeline.NewRuntime(opts...)
	defer rt.Close()

	demo, err := BuildDemo(rt, cfg, logger, cmd.OutOrStdout())
	if err != nil {
		return exitError(exitRuntime, "building pipeline: %v", err)
	}
	defer demo.Dispose()

	g, ctx := errgroup.WithContext(ctx)
	if server != nil {
		g.Go(func() error { return server.Serve(ctx) })
	}
	g.Go(func() error {
		defer stop()
		return feed(ctx, rt, demo.Input, cmd.InOrStdin())
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return exitError(exitRuntime, "%v", err)
	}

	return nil
}

// feed sets input to every line of r, then waits for the pipeline to settle.
func feed(ctx context.Context, rt *pipeline.Runtime, input *pipeline.ManualInput[string], r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := input.SetValue(scanner.Text()); err != nil {
			return fmt.Errorf("set input: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	input.Flush()

	return rt.Settled(ctx)
}

func loadConfigFlag(cmd *cobra.Command) (Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); err != nil {
		return Config{}, exitError(exitFileNotFound, "config file not found: %s", path)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return Config{}, exitError(exitValidation, "%v", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, exitError(exitValidation, "%v", err)
	}

	return cfg, nil
}
