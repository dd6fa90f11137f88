package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SebastianAlessandro/gcam-core/infra/logger"
)

// Handler returns the /metrics handler for gatherer. A nil gatherer serves
// the default registry.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// StartPromServer starts an HTTP server exposing Prometheus metrics on the given address.
// The server runs until the provided context is canceled.
// A dedicated ServeMux is used to avoid interfering with other handlers.
func StartPromServer(ctx context.Context, addr string, log logger.Logger) error {
	if log == nil {
		log = logger.NopLogger{}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(nil))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("prom server shutdown: %v", err)
		}
		cancel()
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
