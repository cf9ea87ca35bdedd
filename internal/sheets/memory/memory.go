package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"spendboard/internal/core"
	ports "spendboard/internal/sheets"
)

// Store serves sheet contents from memory. Tables are keyed by sheet name.
type Store struct {
	mu     sync.RWMutex
	tables map[string][]core.RawRecord
}

var _ ports.RecordSource = (*Store)(nil)

func New(tables map[string][]core.RawRecord) *Store {
	s := &Store{tables: make(map[string][]core.RawRecord, len(tables))}
	for name, recs := range tables {
		s.tables[name] = cloneRecords(recs)
	}
	return s
}

// NewFromDir seeds one table per requested sheet from <dir>/<sheet>.csv.
// Missing files leave the sheet unknown.
func NewFromDir(dir string, sheets ...string) (*Store, error) {
	s := New(nil)
	for _, name := range sheets {
		path := filepath.Join(dir, name+".csv")
		recs, err := readCSV(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", path, err)
		}
		s.tables[name] = recs
	}
	return s, nil
}

// Set replaces the contents of a sheet.
func (s *Store) Set(sheet string, recs []core.RawRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[sheet] = cloneRecords(recs)
}

// Delete removes a sheet so subsequent fetches fail.
func (s *Store) Delete(sheet string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, sheet)
}

func (s *Store) FetchRecords(ctx context.Context, sheet string) ([]core.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSourceUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs, ok := s.tables[sheet]
	if !ok {
		return nil, fmt.Errorf("%w: sheet %q not found", core.ErrSourceUnavailable, sheet)
	}
	return cloneRecords(recs), nil
}

func readCSV(path string) ([]core.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	for i := range rows {
		for j := range rows[i] {
			rows[i][j] = strings.TrimSpace(rows[i][j])
		}
	}
	return ports.ToRecords(rows)
}

func cloneRecords(in []core.RawRecord) []core.RawRecord {
	if in == nil {
		return nil
	}
	out := make([]core.RawRecord, len(in))
	for i, rec := range in {
		c := make(core.RawRecord, len(rec))
		for k, v := range rec {
			c[k] = v
		}
		out[i] = c
	}
	return out
}
