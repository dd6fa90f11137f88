package logger

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/SebastianAlessandro/gcam-core/internal/xmlout"
)

// Output formats of a named logger.
const (
	TypePlain = "plain"
	TypeJSON  = "json"
)

// Config describes one named logger.
type Config struct {
	// Type is "plain" (human readable) or "json".
	Type  string `json:"type" yaml:"type"`
	Level string `json:"level" yaml:"level"`
	// File, when set, receives the output instead of stdout and is rotated.
	File       string `json:"file" yaml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Type == "" {
		c.Type = TypePlain
	}
	if c.Level == "" {
		c.Level = zerolog.InfoLevel.String()
	}
}

// Validate checks the logger type and level.
func (c Config) Validate() error {
	if c.Type != TypePlain && c.Type != TypeJSON {
		return fmt.Errorf("unknown logger type %q", c.Type)
	}
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("logger level: %w", err)
	}
	return nil
}

type entry struct {
	cfg    Config
	log    *ZerologLogger
	closer io.Closer
}

// Registry owns the named loggers of a run. Loggers are created from their
// configuration on first use; names without configuration get a plain logger
// with the default settings. Close releases every logger and its file.
type Registry struct {
	mu       sync.Mutex
	defaults Config
	configs  map[string]Config
	loggers  map[string]*entry
	stdout   io.Writer
	closed   bool
}

// NewRegistry validates configs and returns a registry. defaults applies to
// loggers requested without a configuration of their own.
func NewRegistry(defaults Config, configs map[string]Config) (*Registry, error) {
	defaults.SetDefaults()
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("default logger: %w", err)
	}
	cfgs := make(map[string]Config, len(configs))
	for name, c := range configs {
		c.SetDefaults()
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("logger %s: %w", name, err)
		}
		cfgs[name] = c
	}
	return &Registry{
		defaults: defaults,
		configs:  cfgs,
		loggers:  make(map[string]*entry),
		stdout:   os.Stdout,
	}, nil
}

// SetOutput redirects loggers without a file. It only affects loggers
// created afterwards.
func (r *Registry) SetOutput(w io.Writer) {
	r.mu.Lock()
	r.stdout = w
	r.mu.Unlock()
}

// Get returns the logger called name, creating it on first use. After Close
// it returns a no-op logger.
func (r *Registry) Get(name string) Logger {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return NopLogger{}
	}
	if e, ok := r.loggers[name]; ok {
		return e.log
	}
	cfg, ok := r.configs[name]
	if !ok {
		cfg = r.defaults
	}
	e := r.build(name, cfg)
	r.loggers[name] = e
	return e.log
}

func (r *Registry) build(name string, cfg Config) *entry {
	e := &entry{cfg: cfg}
	var w io.Writer = r.stdout
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		w, e.closer = lj, lj
	}
	if cfg.Type == TypePlain {
		w = consoleWriter(w, cfg.File != "")
	}
	level, _ := zerolog.ParseLevel(cfg.Level)
	e.log = NewZerologLoggerWithWriter(name, w, level)
	return e
}

// Names returns the names of the loggers created so far, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.loggers))
}

// Close releases every logger. It is safe to call more than once.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for name, e := range r.loggers {
		if e.closer != nil {
			if err := e.closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close logger %s: %w", name, err))
			}
		}
	}
	clear(r.loggers)
	r.closed = true
	return errors.Join(errs...)
}

// ToDebugXML writes the configuration of every created logger.
func (r *Registry) ToDebugXML(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	x := xmlout.NewWriter(w)
	x.Open("LoggerFactory")
	for _, name := range slices.Sorted(maps.Keys(r.loggers)) {
		cfg := r.loggers[name].cfg
		x.Open("Logger", xmlout.Attr{Name: "name", Value: name})
		x.Element("type", cfg.Type)
		x.Element("level", strings.ToLower(cfg.Level))
		if cfg.File != "" {
			x.Element("file", cfg.File)
		}
		x.Close("Logger")
	}
	x.Close("LoggerFactory")
	return x.Err()
}
