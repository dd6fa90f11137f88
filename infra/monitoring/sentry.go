package monitoring

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/SebastianAlessandro/gcam-core/config"
	coremon "github.com/SebastianAlessandro/gcam-core/core/monitoring"
)

// NewSentryMonitor initializes Sentry using the provided configuration and
// returns a Monitor implementation. Without a DSN reports are dropped.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
	})
	if err != nil {
		return nil, err
	}
	return &sentryMonitor{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

type sentryMonitor struct {
	hub *sentry.Hub
}

func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", "solver")
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		s.hub.CaptureException(err)
	})
}

func (s *sentryMonitor) Flush(timeout time.Duration) { s.hub.Flush(timeout) }
