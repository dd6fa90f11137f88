package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/SebastianAlessandro/gcam-core/core/metrics"
	"github.com/SebastianAlessandro/gcam-core/infra/logger"
)

// InfluxSink writes solver records to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string, log logger.Logger) *InfluxSink {
	if log == nil {
		log = logger.NopLogger{}
	}
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      log,
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string, log logger.Logger) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket, log)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

// RecordPeriodResult writes one period_solved point.
func (s *InfluxSink) RecordPeriodResult(res coremetrics.PeriodResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, periodPoint(res))
}

func periodPoint(res coremetrics.PeriodResult) *write.Point {
	return write.NewPointWithMeasurement("period_solved").
		AddTag("run_id", res.RunID).
		AddTag("period", strconv.Itoa(res.Period)).
		AddTag("converged", strconv.FormatBool(res.Converged)).
		AddField("iterations", res.Iterations).
		AddField("evaluations", res.Evaluations).
		AddField("newton_steps", res.NewtonSteps).
		AddField("max_red", res.MaxRelativeExcessDemand).
		AddField("worst_market", res.WorstMarket).
		AddField("duration_ms", round3(float64(res.Duration)/float64(time.Millisecond))).
		SetTime(res.Time)
}

// RecordMarkets writes one market_state point per snapshot in a single request.
func (s *InfluxSink) RecordMarkets(snaps []coremetrics.MarketSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, len(snaps))
	for i, m := range snaps {
		points[i] = marketPoint(m)
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

func marketPoint(m coremetrics.MarketSnapshot) *write.Point {
	return write.NewPointWithMeasurement("market_state").
		AddTag("run_id", m.RunID).
		AddTag("period", strconv.Itoa(m.Period)).
		AddTag("market", m.Market).
		AddTag("good", m.Good).
		AddTag("region", m.Region).
		AddTag("type", m.Type).
		AddField("price", m.Price).
		AddField("demand", m.Demand).
		AddField("supply", m.Supply).
		AddField("red", m.RelativeExcessDemand).
		SetTime(m.Time)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
