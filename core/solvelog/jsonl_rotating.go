package solvelog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotatingJSONLStore stores records in a JSONL file with automatic rotation.
type RotatingJSONLStore struct {
	mu     sync.Mutex
	logger *lumberjack.Logger
	path   string
}

// NewRotatingJSONLStore creates a store with rotation options in megabytes and days.
func NewRotatingJSONLStore(path string, maxSizeMB, maxBackups, maxAgeDays int) (*RotatingJSONLStore, error) {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &RotatingJSONLStore{logger: lj, path: path}, nil
}

// Append writes the record and triggers rotation if needed.
func (s *RotatingJSONLStore) Append(_ context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.logger.Write(append(b, '\n'))
	return err
}

// Query reads all log files including rotated ones, oldest backups first.
func (s *RotatingJSONLStore) Query(_ context.Context, q Query) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ext := filepath.Ext(s.path)
	base := s.path[:len(s.path)-len(ext)]
	backups, err := filepath.Glob(base + "-*" + ext)
	if err != nil {
		return nil, err
	}
	// Backup names embed a sortable timestamp.
	slices.Sort(backups)
	var res []Record
	for _, f := range append(backups, s.path) {
		file, err := os.Open(f)
		if err != nil {
			continue
		}
		res, err = scan(file, q, res)
		_ = file.Close()
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Close closes the underlying writer.
func (s *RotatingJSONLStore) Close() error {
	return s.logger.Close()
}
