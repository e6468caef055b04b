package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"

	"github.com/AnatoleLucet/pipeline"
)

// Stages of the demonstration pipeline, in evaluation order.
var stageNames = []string{"capture", "preprocess", "infer"}

var errInvalidConfig = errors.New("invalid config")

// Config is the file configuration of the run command.
//
//	model: sam-vit-b
//	log:
//	  level: debug
//	runtime:
//	  maxConcurrency: 2
//	input:
//	  rateLimit:
//	    mode: debounce
//	    wait: 100ms
//	stages:
//	  infer:
//	    latency: 250ms
type Config struct {
	Model   string                 `yaml:"model"`
	Log     LogConfig              `yaml:"log"`
	Runtime RuntimeConfig          `yaml:"runtime"`
	Input   InputConfig            `yaml:"input"`
	Stages  map[string]StageConfig `yaml:"stages"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type RuntimeConfig struct {
	MaxConcurrency int `yaml:"maxConcurrency"`
}

type InputConfig struct {
	RateLimit *pipeline.RateLimit `yaml:"rateLimit"`
}

type StageConfig struct {
	// Latency simulates the cost of the stage.
	Latency time.Duration `yaml:"latency"`
}

func DefaultConfig() Config {
	return Config{
		Model:  "demo",
		Log:    LogConfig{Level: "info"},
		Stages: map[string]StageConfig{},
	}
}

// LoadConfig reads a YAML or, for .hcl files, HCL configuration over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if strings.EqualFold(filepath.Ext(path), ".hcl") {
		if err := decodeHCL(path, &cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Stages == nil {
		cfg.Stages = map[string]StageConfig{}
	}

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.Model == "" {
		errs = append(errs, fmt.Errorf("%w: model must not be empty", errInvalidConfig))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, fmt.Errorf("%w: log level: %w", errInvalidConfig, err))
	}
	if c.Runtime.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("%w: runtime.maxConcurrency must not be negative", errInvalidConfig))
	}
	if c.Input.RateLimit != nil {
		if err := c.Input.RateLimit.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("input.rateLimit: %w", err))
		}
	}

	for name, stage := range c.Stages {
		if !slices.Contains(stageNames, name) {
			errs = append(errs, fmt.Errorf("%w: unknown stage %q, expected one of %s", errInvalidConfig, name, strings.Join(stageNames, ", ")))
		}
		if stage.Latency < 0 {
			errs = append(errs, fmt.Errorf("%w: stage %q latency must not be negative", errInvalidConfig, name))
		}
	}

	return errors.Join(errs...)
}

// Level is the configured slog level.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if c.Log.Level == "" {
		return level, nil
	}

	err := level.UnmarshalText([]byte(c.Log.Level))
	return level, err
}

// hclFile is the HCL form of Config. cty knows no durations, they are decoded as strings.
//
//	model = "sam-vit-b"
//	log { level = "debug" }
//	runtime { max_concurrency = 2 }
//	input {
//	  rate_limit {
//	    mode = "debounce"
//	    wait = "100ms"
//	  }
//	}
//	stage "infer" { latency = "250ms" }
type hclFile struct {
	Model   *string     `hcl:"model,optional"`
	Log     *hclLog     `hcl:"log,block"`
	Runtime *hclRuntime `hcl:"runtime,block"`
	Input   *hclInput   `hcl:"input,block"`
	Stages  []*hclStage `hcl:"stage,block"`
}

type hclLog struct {
	Level string `hcl:"level,optional"`
}

type hclRuntime struct {
	MaxConcurrency int `hcl:"max_concurrency,optional"`
}

type hclInput struct {
	RateLimit *hclRateLimit `hcl:"rate_limit,block"`
}

type hclRateLimit struct {
	Mode     string  `hcl:"mode"`
	Wait     string  `hcl:"wait"`
	MaxWait  *string `hcl:"max_wait,optional"`
	Leading  *bool   `hcl:"leading,optional"`
	Trailing *bool   `hcl:"trailing,optional"`
}

type hclStage struct {
	Name    string  `hcl:"name,label"`
	Latency *string `hcl:"latency,optional"`
}

func decodeHCL(path string, cfg *Config) error {
	parser := hclparse.NewParser()

	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	if parsed.Model != nil {
		cfg.Model = *parsed.Model
	}
	if parsed.Log != nil {
		cfg.Log.Level = parsed.Log.Level
	}
	if parsed.Runtime != nil {
		cfg.Runtime.MaxConcurrency = parsed.Runtime.MaxConcurrency
	}

	if parsed.Input != nil && parsed.Input.RateLimit != nil {
		rl := parsed.Input.RateLimit

		limit := &pipeline.RateLimit{
			Mode:     pipeline.LimitMode(rl.Mode),
			Leading:  rl.Leading,
			Trailing: rl.Trailing,
		}

		var err error
		if limit.Wait, err = time.ParseDuration(rl.Wait); err != nil {
			return fmt.Errorf("input.rate_limit.wait: %w", err)
		}
		if rl.MaxWait != nil {
			if limit.MaxWait, err = time.ParseDuration(*rl.MaxWait); err != nil {
				return fmt.Errorf("input.rate_limit.max_wait: %w", err)
			}
		}

		cfg.Input.RateLimit = limit
	}

	for _, stage := range parsed.Stages {
		var sc StageConfig
		if stage.Latency != nil {
			latency, err := time.ParseDuration(*stage.Latency)
			if err != nil {
				return fmt.Errorf("stage %q latency: %w", stage.Name, err)
			}
			sc.Latency = latency
		}
		cfg.Stages[stage.Name] = sc
	}

	return nil
}
