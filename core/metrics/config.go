package metrics

import "github.com/SebastianAlessandro/gcam-core/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
}
