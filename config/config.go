// Package config loads the run configuration from a YAML or JSON file with
// GCAM_ environment overrides. Nested keys are separated by a double
// underscore, e.g. GCAM_SOLVER__MAX_ITERATIONS=200.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/SebastianAlessandro/gcam-core/core/metrics"
	"github.com/SebastianAlessandro/gcam-core/core/solvelog"
	"github.com/SebastianAlessandro/gcam-core/core/solver"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GCAM_"

// Config is the configuration of one run.
type Config struct {
	// Scenario is the path of the scenario file describing markets and agents.
	Scenario string `json:"scenario"`
	// Export, when set, receives the solved prices as CSV, JSON or an HTML chart.
	Export string `json:"export"`
	// Workers bounds the concurrent agent evaluations. Zero uses GOMAXPROCS.
	Workers  int             `json:"workers"`
	Solver   solver.Config   `json:"solver"`
	Logging  LoggingConfig   `json:"logging"`
	Metrics  metrics.Config  `json:"metrics"`
	SolveLog solvelog.Config `json:"solve_log"`
	Sentry   SentryConfig    `json:"sentry"`
	API      APIConfig       `json:"api"`
}

// APIConfig defines the listen addresses of `gcam serve`.
type APIConfig struct {
	Addr           string `json:"addr"`
	PrometheusAddr string `json:"prometheus_addr"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.PrometheusAddr == "" {
		c.PrometheusAddr = ":2112"
	}
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Solver.SetDefaults()
	c.Logging.SetDefaults()
	c.SolveLog.SetDefaults()
	c.Sentry.SetDefaults()
	c.API.SetDefaults()
}

// Validate checks every section and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative"))
	}
	if err := c.Solver.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("solver: %w", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if err := c.SolveLog.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("solve_log: %w", err))
	}
	if err := c.Sentry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sentry: %w", err))
	}
	for i, s := range c.Metrics.Sinks {
		if s.Type == "" {
			errs = append(errs, fmt.Errorf("metrics: sink %d has no type", i))
		}
	}
	return errors.Join(errs...)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// Load reads path, applies environment overrides, fills defaults and
// validates the result. An empty path loads the environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
