package factory

import (
	"fmt"
	"slices"
	"sync"

	"github.com/go-viper/mapstructure/v2"

	"github.com/SebastianAlessandro/gcam-core/core/logger"
)

// ModuleConfig contains the type name and raw configuration for a module.
type ModuleConfig struct {
	Type string         `json:"type" yaml:"type"`
	Conf map[string]any `json:"conf" yaml:"conf"`
}

// Factory constructs an implementation of T using the provided raw config.
// log is the logger the module should write to.
type Factory[T any] func(conf map[string]any, log logger.Logger) (T, error)

// Registry stores factories keyed by module type.
type Registry[T any] struct {
	mu        sync.RWMutex
	factories map[string]Factory[T]
}

// NewRegistry returns an empty factory registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{factories: make(map[string]Factory[T])}
}

// Register adds a factory for the given type name.
func (r *Registry[T]) Register(name string, f Factory[T]) error {
	if f == nil {
		return fmt.Errorf("factory nil for %s", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("factory already registered for %s", name)
	}
	r.factories[name] = f
	return nil
}

// Names returns the registered type names in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Create instantiates a module based on its configuration. A nil log
// discards the module's output.
func (r *Registry[T]) Create(cfg ModuleConfig, log logger.Logger) (T, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown module type %q (known: %v)", cfg.Type, r.Names())
	}
	if log == nil {
		log = logger.Nop{}
	}
	return f(cfg.Conf, log)
}

// Decode fills out the provided struct using json tags. Strings are converted
// to durations and numbers where the target field needs it, since
// environment overrides arrive as text.
func Decode(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}
