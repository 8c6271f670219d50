package storage

import (
	"context"
	"errors"
	"time"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/quality"
)

// ErrNotFound is returned when no archived snapshot matches.
var ErrNotFound = errors.New("snapshot not found")

// Storage archives published KPI snapshots.
// Implementations: memory (testing), badger (production), sqlite (SQL mirror)
type Storage interface {
	// Save archives a snapshot. Saving an ID twice replaces it.
	Save(ctx context.Context, rec Record) error

	// Latest returns the most recently built snapshot.
	Latest(ctx context.Context) (*Record, error)

	// Rows returns the archived rows of one snapshot matching the query
	Rows(ctx context.Context, id string, q RowQuery) ([]kpi.Row, error)

	// Delete removes snapshots built before the given time
	Delete(ctx context.Context, before time.Time) error

	// Close cleanly shuts down the storage
	Close() error

	// Stats returns storage statistics
	Stats(ctx context.Context) (*Stats, error)
}

// Record is one archived snapshot.
type Record struct {
	ID      string           `json:"id"`
	BuiltAt time.Time        `json:"built_at"`
	Rows    []kpi.Row        `json:"rows,omitempty"`
	Reports []quality.Report `json:"reports"`
}

// RowQuery specifies which rows to retrieve
type RowQuery struct {
	// Filter by level (optional)
	Levels []kpi.Level

	// Filter by dimension values (optional)
	Dims map[string]string

	// Limit number of results (0 = no limit)
	Limit int
}

// Matches reports whether a row passes the query filters.
func (q RowQuery) Matches(r kpi.Row) bool {
	if len(q.Levels) > 0 {
		found := false
		for _, l := range q.Levels {
			if r.Level == l {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for k, v := range q.Dims {
		if got, ok := r.Dim(k); !ok || got != v {
			return false
		}
	}
	return true
}

// Stats provides storage health and usage info
type Stats struct {
	// Archived snapshots
	Snapshots uint64 `json:"snapshots"`

	// Archived KPI rows across all snapshots
	Rows uint64 `json:"rows"`

	// Storage size in bytes, when the backend knows it
	SizeBytes uint64 `json:"size_bytes"`

	// Build time of the oldest and newest snapshot
	Oldest time.Time `json:"oldest"`
	Newest time.Time `json:"newest"`
}
