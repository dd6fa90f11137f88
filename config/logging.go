package config

import (
	"fmt"

	infralogger "github.com/SebastianAlessandro/gcam-core/infra/logger"
)

// LoggingConfig configures the named loggers of a run.
type LoggingConfig struct {
	// Default applies to every logger not listed in Loggers.
	Default infralogger.Config            `json:"default"`
	Loggers map[string]infralogger.Config `json:"loggers"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	c.Default.SetDefaults()
	for name, l := range c.Loggers {
		l.SetDefaults()
		c.Loggers[name] = l
	}
}

// Validate checks every logger.
func (c LoggingConfig) Validate() error {
	if err := c.Default.Validate(); err != nil {
		return fmt.Errorf("default: %w", err)
	}
	for name, l := range c.Loggers {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("logger %s: %w", name, err)
		}
	}
	return nil
}
