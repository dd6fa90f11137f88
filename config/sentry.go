package config

import "fmt"

// SentryConfig defines settings for Sentry error monitoring. Without a DSN
// non-convergence reports are only logged.
type SentryConfig struct {
	DSN              string  `json:"dsn"`
	Environment      string  `json:"environment"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
	Release          string  `json:"release"`
}

// SetDefaults applies sane defaults.
func (c *SentryConfig) SetDefaults() {
	if c.DSN != "" && c.Environment == "" {
		c.Environment = "production"
	}
}

// Validate checks the sample rate.
func (c SentryConfig) Validate() error {
	if c.TracesSampleRate < 0 || c.TracesSampleRate > 1 {
		return fmt.Errorf("traces_sample_rate must be in [0,1], got %v", c.TracesSampleRate)
	}
	return nil
}
