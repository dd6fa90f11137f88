package solvelog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS solve_logs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT,
        period INTEGER,
        ts INTEGER,
        converged INTEGER,
        record TEXT
    );
    CREATE INDEX IF NOT EXISTS solve_logs_run ON solve_logs (run_id, period);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record to the database.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO solve_logs (run_id, period, ts, converged, record) VALUES (?, ?, ?, ?, ?)`,
		rec.RunID, rec.Period, rec.Timestamp.UnixNano(), rec.Converged, string(b))
	return err
}

// Query returns records matching q ordered by insertion.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Record, error) {
	var args []any
	query := `SELECT record FROM solve_logs WHERE 1=1`
	if q.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, q.RunID)
	}
	if q.Period != nil {
		query += ` AND period = ?`
		args = append(args, *q.Period)
	}
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.OnlyUnconverged {
		query += ` AND converged = 0`
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		// Market membership lives inside the JSON document.
		if q.Matches(r) {
			res = append(res, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
