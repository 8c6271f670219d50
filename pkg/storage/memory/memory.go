package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/storage"
)

// Storage keeps snapshots in memory. Data is lost on restart.
// Useful for testing and development.
type Storage struct {
	records map[string]storage.Record
	mu      sync.RWMutex
}

// New creates an in-memory storage backend
func New() *Storage {
	return &Storage{
		records: make(map[string]storage.Record),
	}
}

// Save stores a deep copy of the record
func (s *Storage) Save(ctx context.Context, rec storage.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.ID] = clone(rec)
	return nil
}

// Latest returns the most recently built snapshot, without its rows
func (s *Storage) Latest(ctx context.Context) (*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *storage.Record
	for id := range s.records {
		rec := s.records[id]
		if latest == nil || rec.BuiltAt.After(latest.BuiltAt) {
			latest = &rec
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	out := clone(*latest)
	out.Rows = nil
	return &out, nil
}

// Rows retrieves the rows of one snapshot matching the query
func (s *Storage) Rows(ctx context.Context, id string, q storage.RowQuery) ([]kpi.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	var results []kpi.Row
	for _, r := range rec.Rows {
		if !q.Matches(r) {
			continue
		}
		results = append(results, r.Clone())

		// Limit check
		if q.Limit > 0 && len(results) >= q.Limit {
			break
		}
	}
	return results, nil
}

// Delete removes snapshots built before the given time
func (s *Storage) Delete(ctx context.Context, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range s.records {
		if rec.BuiltAt.Before(before) {
			delete(s.records, id)
		}
	}
	return nil
}

// Close is a no-op for memory storage
func (s *Storage) Close() error {
	return nil
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &storage.Stats{Snapshots: uint64(len(s.records))}

	times := make([]time.Time, 0, len(s.records))
	for _, rec := range s.records {
		stats.Rows += uint64(len(rec.Rows))
		times = append(times, rec.BuiltAt)
	}
	if len(times) > 0 {
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
		stats.Oldest = times[0]
		stats.Newest = times[len(times)-1]
	}

	// Rough size estimate (each row ~200 bytes)
	stats.SizeBytes = stats.Rows * 200

	return stats, nil
}

func clone(rec storage.Record) storage.Record {
	out := storage.Record{ID: rec.ID, BuiltAt: rec.BuiltAt}
	if rec.Rows != nil {
		out.Rows = make([]kpi.Row, len(rec.Rows))
		for i, r := range rec.Rows {
			out.Rows[i] = r.Clone()
		}
	}
	for _, r := range rec.Reports {
		out.Reports = append(out.Reports, r.Clone())
	}
	return out
}
