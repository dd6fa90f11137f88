package solvelog

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
)

// JSONLStore stores records in a JSONL file, one period per line.
type JSONLStore struct {
	path string
	mu   sync.Mutex
}

func NewJSONLStore(path string) (*JSONLStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	return &JSONLStore{path: path}, nil
}

func (s *JSONLStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return json.NewEncoder(f).Encode(rec)
}

func (s *JSONLStore) Query(_ context.Context, q Query) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return scan(f, q, nil)
}

func (s *JSONLStore) Close() error { return nil }

// scan appends the records of r matching q to res. Lines that do not decode
// are skipped.
func scan(r io.Reader, q Query, res []Record) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if q.Matches(rec) {
			res = append(res, rec)
		}
	}
	return res, scanner.Err()
}
