package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/SebastianAlessandro/gcam-core/core/factory"
	"github.com/SebastianAlessandro/gcam-core/core/logger"
	coremetrics "github.com/SebastianAlessandro/gcam-core/core/metrics"
	"github.com/SebastianAlessandro/gcam-core/infra/mqtt"
)

// init registers built-in metrics sinks.
func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any, logger.Logger) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})

	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any, logger.Logger) (coremetrics.MetricsSink, error) {
		// The listen address belongs to the HTTP server, see StartPromServer.
		return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any, log logger.Logger) (coremetrics.MetricsSink, error) {
		var c struct {
			URL    string `json:"url"`
			Token  string `json:"token"`
			Org    string `json:"org"`
			Bucket string `json:"bucket"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket, log), nil
	})

	_ = coremetrics.RegisterMetricsSink("mqtt", func(conf map[string]any, log logger.Logger) (coremetrics.MetricsSink, error) {
		var c mqtt.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return mqtt.NewPricePublisher(c, nil, log)
	})
}
