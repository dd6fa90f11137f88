// Package solvelog persists one record per solved period so runs can be
// inspected and compared after the fact.
package solvelog

import (
	"context"
	"fmt"
	"time"

	"github.com/SebastianAlessandro/gcam-core/core/solver"
)

// MarketRecord is the end-of-period state of one market.
type MarketRecord struct {
	Name                 string  `json:"name"`
	Good                 string  `json:"good"`
	Region               string  `json:"region"`
	Type                 string  `json:"type"`
	Price                float64 `json:"price"`
	Demand               float64 `json:"demand"`
	Supply               float64 `json:"supply"`
	RelativeExcessDemand float64 `json:"relative_excess_demand"`
}

// Record captures the outcome of one period.
type Record struct {
	RunID                   string         `json:"run_id"`
	Timestamp               time.Time      `json:"timestamp"`
	Period                  int            `json:"period"`
	Converged               bool           `json:"converged"`
	Iterations              int            `json:"iterations"`
	Evaluations             int            `json:"evaluations"`
	NewtonSteps             int            `json:"newton_steps"`
	MaxRelativeExcessDemand float64        `json:"max_relative_excess_demand"`
	WorstMarket             string         `json:"worst_market"`
	DurationMS              float64        `json:"duration_ms"`
	Markets                 []MarketRecord `json:"markets"`
}

// FromResult builds the record of a solver result.
func FromResult(runID string, res solver.Result, ts time.Time) Record {
	rec := Record{
		RunID:                   runID,
		Timestamp:               ts,
		Period:                  res.Period,
		Converged:               res.Converged,
		Iterations:              res.Iterations,
		Evaluations:             res.Evaluations,
		NewtonSteps:             res.NewtonSteps,
		MaxRelativeExcessDemand: res.MaxRelativeExcessDemand,
		WorstMarket:             res.WorstMarket,
		DurationMS:              float64(res.Duration) / float64(time.Millisecond),
		Markets:                 make([]MarketRecord, len(res.Markets)),
	}
	for i, m := range res.Markets {
		rec.Markets[i] = MarketRecord{
			Name:                 m.Name,
			Good:                 m.Good,
			Region:               m.Region,
			Type:                 m.Type,
			Price:                m.Price,
			Demand:               m.Demand,
			Supply:               m.Supply,
			RelativeExcessDemand: m.RelativeExcessDemand,
		}
	}
	return rec
}

// Query defines filters for retrieving records. Zero fields match everything.
type Query struct {
	RunID  string
	Period *int
	Start  time.Time
	End    time.Time
	// Market keeps records containing the named market.
	Market          string
	OnlyUnconverged bool
}

// Matches reports whether rec passes every filter of q.
func (q Query) Matches(rec Record) bool {
	if q.RunID != "" && rec.RunID != q.RunID {
		return false
	}
	if q.Period != nil && rec.Period != *q.Period {
		return false
	}
	if !q.Start.IsZero() && rec.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && rec.Timestamp.After(q.End) {
		return false
	}
	if q.OnlyUnconverged && rec.Converged {
		return false
	}
	if q.Market != "" {
		for _, m := range rec.Markets {
			if m.Name == q.Market {
				return true
			}
		}
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Backends.
const (
	BackendJSONL    = "jsonl"
	BackendRotating = "rotating"
	BackendSQLite   = "sqlite"
)

// Config defines settings for solve log storage and rotation.
type Config struct {
	// Backend selects the store type: "jsonl", "rotating" or "sqlite".
	// An empty backend disables the solve log.
	Backend string `json:"backend"`
	// Path is the file location of the store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend != "" && c.Path == "" {
		c.Path = "solve.log"
	}
	if c.Backend == BackendRotating && c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	switch c.Backend {
	case "":
		return nil
	case BackendJSONL, BackendRotating, BackendSQLite:
	default:
		return fmt.Errorf("unknown solve log backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("solve log path is required")
	}
	return nil
}

// Open creates the store selected by cfg. It returns a nil Store when the
// solve log is disabled.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case BackendJSONL:
		return NewJSONLStore(cfg.Path)
	case BackendRotating:
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case BackendSQLite:
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown solve log backend %s", cfg.Backend)
	}
}
