package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/SebastianAlessandro/gcam-core/core/metrics"
)

// PromSink exposes solver outcomes as Prometheus metrics.
type PromSink struct {
	periods    *prometheus.CounterVec
	iterations prometheus.Histogram
	duration   prometheus.Histogram
	maxRED     prometheus.Gauge
	unsolved   prometheus.Gauge
	price      *prometheus.GaugeVec
	excess     *prometheus.GaugeVec
}

// NewPromSink registers solver metrics on the default Prometheus registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		periods: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gcam_periods_solved_total",
			Help: "Number of solved periods by convergence outcome",
		}, []string{"converged"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gcam_period_iterations",
			Help:    "Solver iterations needed per period",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gcam_period_duration_seconds",
			Help:    "Wall time spent solving a period",
			Buckets: prometheus.DefBuckets,
		}),
		maxRED: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gcam_max_relative_excess_demand",
			Help: "Largest absolute relative excess demand at the end of the last period",
		}),
		unsolved: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gcam_solver_unsolved_markets",
			Help: "Markets out of tolerance after the latest solver iteration",
		}),
		price: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gcam_market_price",
			Help: "Price of a market at the end of the last solved period",
		}, []string{"market", "good", "region"}),
		excess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gcam_market_excess_demand",
			Help: "Demand minus supply of a market at the end of the last solved period",
		}, []string{"market", "good", "region"}),
	}

	var err error
	if s.periods, err = register(reg, s.periods); err != nil {
		return nil, err
	}
	if s.iterations, err = register(reg, s.iterations); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.maxRED, err = register(reg, s.maxRED); err != nil {
		return nil, err
	}
	if s.unsolved, err = register(reg, s.unsolved); err != nil {
		return nil, err
	}
	if s.price, err = register(reg, s.price); err != nil {
		return nil, err
	}
	if s.excess, err = register(reg, s.excess); err != nil {
		return nil, err
	}
	return s, nil
}

// register adds c to reg, reusing the collector already registered under the
// same description.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordPeriodResult counts the period and observes its cost.
func (s *PromSink) RecordPeriodResult(res coremetrics.PeriodResult) error {
	s.periods.WithLabelValues(strconv.FormatBool(res.Converged)).Inc()
	s.iterations.Observe(float64(res.Iterations))
	s.duration.Observe(res.Duration.Seconds())
	s.maxRED.Set(res.MaxRelativeExcessDemand)
	return nil
}

// RecordMarkets sets the price and excess demand gauges.
func (s *PromSink) RecordMarkets(snaps []coremetrics.MarketSnapshot) error {
	for _, m := range snaps {
		s.price.WithLabelValues(m.Market, m.Good, m.Region).Set(m.Price)
		s.excess.WithLabelValues(m.Market, m.Good, m.Region).Set(m.Demand - m.Supply)
	}
	return nil
}

// RecordIteration tracks the number of markets still out of tolerance.
func (s *PromSink) RecordIteration(it coremetrics.IterationSample) error {
	s.unsolved.Set(float64(it.Unsolved))
	return nil
}
