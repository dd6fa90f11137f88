package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/SebastianAlessandro/gcam-core/api/markets"
	"github.com/SebastianAlessandro/gcam-core/config"
	"github.com/SebastianAlessandro/gcam-core/core/economy"
	"github.com/SebastianAlessandro/gcam-core/core/marketplace"
	coremetrics "github.com/SebastianAlessandro/gcam-core/core/metrics"
	coremon "github.com/SebastianAlessandro/gcam-core/core/monitoring"
	"github.com/SebastianAlessandro/gcam-core/core/solvelog"
	"github.com/SebastianAlessandro/gcam-core/core/solver"
	"github.com/SebastianAlessandro/gcam-core/infra/logger"
	"github.com/SebastianAlessandro/gcam-core/infra/metrics"
	"github.com/SebastianAlessandro/gcam-core/infra/monitoring"
	"github.com/SebastianAlessandro/gcam-core/internal/eventbus"
	"github.com/SebastianAlessandro/gcam-core/pkg/export"
)

const eventBuffer = 1024

// Service wires a scenario, the solver and the outputs of one run.
type Service struct {
	RunID       string
	Marketplace *marketplace.Marketplace

	cfg     *config.Config
	logs    *logger.Registry
	log     logger.Logger
	monitor coremon.Monitor
	solver  *solver.Solver
	bus     *eventbus.TypedBus[solver.Event]
	sink    coremetrics.MetricsSink
	store   solvelog.Store

	collectorDone <-chan struct{}
	stopCollector context.CancelFunc

	mu      sync.RWMutex
	results []solver.Result
	closed  bool
}

// Option customises a Service.
type Option func(*options)

type options struct {
	logOutput io.Writer
	sink      coremetrics.MetricsSink
	monitor   coremon.Monitor
}

// WithLogOutput sends console log output to w instead of stdout.
func WithLogOutput(w io.Writer) Option { return func(o *options) { o.logOutput = w } }

// WithMetricsSink replaces the sinks configured under metrics.
func WithMetricsSink(s coremetrics.MetricsSink) Option { return func(o *options) { o.sink = s } }

// WithMonitor replaces the Sentry monitor.
func WithMonitor(m coremon.Monitor) Option { return func(o *options) { o.monitor = m } }

// New loads the scenario and builds every component of the run.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.Scenario == "" {
		return nil, errors.New("no scenario configured")
	}

	logs, err := logger.NewRegistry(cfg.Logging.Default, cfg.Logging.Loggers)
	if err != nil {
		return nil, fmt.Errorf("loggers: %w", err)
	}
	if o.logOutput != nil {
		logs.SetOutput(o.logOutput)
	}
	s := &Service{RunID: uuid.NewString(), cfg: cfg, logs: logs, log: logs.Get("service")}
	ok := false
	defer func() {
		if !ok {
			_ = s.Close()
		}
	}()

	s.monitor = o.monitor
	if s.monitor == nil {
		if s.monitor, err = monitoring.NewSentryMonitor(cfg.Sentry); err != nil {
			return nil, fmt.Errorf("sentry: %w", err)
		}
	}

	sc, err := economy.Load(cfg.Scenario)
	if err != nil {
		return nil, err
	}
	mp, econ, err := sc.Build(logs.Get("marketplace"),
		economy.WithWorkers(cfg.Workers), economy.WithLogger(logs.Get("economy")))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	s.Marketplace = mp

	s.sink = o.sink
	if s.sink == nil {
		if s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks, logs); err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
	}
	if s.store, err = solvelog.Open(cfg.SolveLog); err != nil {
		return nil, fmt.Errorf("solve log: %w", err)
	}

	s.bus = eventbus.NewTypedWithBuffer[solver.Event](eventBuffer)
	ctx, cancel := context.WithCancel(context.Background())
	s.stopCollector = cancel
	s.collectorDone = metrics.StartEventCollector(ctx, s.bus, s.sink, s.RunID, logs.Get("metrics"))

	if s.solver, err = solver.New(cfg.Solver, mp, econ,
		solver.WithLogger(logs.Get("solver")),
		solver.WithMonitor(s.monitor),
		solver.WithEventBus(s.bus),
	); err != nil {
		return nil, err
	}

	s.log.Infow("run prepared", map[string]any{
		"run_id":   s.RunID,
		"scenario": sc.Name,
		"periods":  mp.Periods(),
		"markets":  mp.Len(),
	})
	ok = true
	return s, nil
}

// Periods returns the number of periods of the run.
func (s *Service) Periods() int { return s.Marketplace.Periods() }

// Run solves every period of the run.
func (s *Service) Run(ctx context.Context) ([]solver.Result, error) {
	return s.SolveThrough(ctx, s.Periods()-1)
}

// SolveThrough solves every period up to and including last that has not
// been solved yet. Periods are solved in order since each one starts from
// the prices of the previous.
func (s *Service) SolveThrough(ctx context.Context, last int) ([]solver.Result, error) {
	if last < 0 || last >= s.Periods() {
		return nil, fmt.Errorf("%w: %d", marketplace.ErrPeriodOutOfRange, last)
	}
	for p := len(s.Results()); p <= last; p++ {
		if err := ctx.Err(); err != nil {
			return s.Results(), err
		}
		if err := s.solvePeriod(ctx, p); err != nil {
			return s.Results(), err
		}
	}
	return s.Results(), nil
}

func (s *Service) solvePeriod(ctx context.Context, period int) error {
	if err := s.Marketplace.InitPrices(period); err != nil {
		return err
	}
	res, err := s.solver.Solve(period)
	if err != nil {
		s.monitor.CaptureException(err, map[string]string{"run_id": s.RunID})
		return err
	}
	s.mu.Lock()
	s.results = append(s.results, res)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Append(ctx, solvelog.FromResult(s.RunID, res, time.Now().UTC())); err != nil {
			return fmt.Errorf("solve log: %w", err)
		}
	}
	return nil
}

// Results returns a copy of the period results solved so far.
func (s *Service) Results() []solver.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]solver.Result(nil), s.results...)
}

// Export writes the solved prices to path as CSV, JSON or an HTML chart,
// chosen by extension.
func (s *Service) Export(path string) error {
	if err := export.WriteFile(path, export.Rows(s.Results(), export.DefaultPlaces)); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	s.log.Infof("exported %d periods to %s", len(s.Results()), path)
	return nil
}

// DebugXML dumps the marketplace state of period followed by the logger
// configuration.
func (s *Service) DebugXML(period int, w io.Writer) error {
	if err := s.Marketplace.ToDebugXML(period, w); err != nil {
		return err
	}
	return s.logs.ToDebugXML(w)
}

// Handler returns the inspection API of the run.
func (s *Service) Handler() http.Handler {
	return markets.NewRouter(s.Marketplace, s.Results, s.logs.Get("api"))
}

// Serve exposes the inspection API and the Prometheus endpoint until ctx is
// canceled. Solving must be finished before serving.
func (s *Service) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.API.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Infof("api listening on %s", s.cfg.API.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if s.cfg.API.PrometheusAddr != "" {
		g.Go(func() error {
			return metrics.StartPromServer(ctx, s.cfg.API.PrometheusAddr, s.logs.Get("prometheus"))
		})
	}
	return g.Wait()
}

// Close drains the pending metrics and releases every component. It is safe
// to call more than once.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var errs []error
	if s.bus != nil {
		s.bus.Close()
		<-s.collectorDone
		s.stopCollector()
		if n := s.bus.Dropped(); n > 0 {
			s.log.Warnf("metrics collector missed %d solver events", n)
		}
	}
	if c, ok := s.sink.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.monitor != nil {
		s.monitor.Flush(2 * time.Second)
	}
	if s.Marketplace != nil {
		errs = append(errs, s.Marketplace.Close())
	}
	errs = append(errs, s.logs.Close())
	return errors.Join(errs...)
}
