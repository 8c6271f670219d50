package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/quality"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/storage"
)

// Key prefixes. Snapshot keys sort by build time so the newest is last.
var (
	snapshotPrefix = []byte("s/")
	indexPrefix    = []byte("i/")
	rowPrefix      = []byte("r/")
)

// Storage implements storage.Storage using BadgerDB (LSM tree)
type Storage struct {
	db *badger.DB
}

// Config holds BadgerDB configuration
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = 48 MB total)
	MaxMemoryMB int64
}

type snapshotMeta struct {
	ID       string           `json:"id"`
	BuiltAt  time.Time        `json:"built_at"`
	Reports  []quality.Report `json:"reports"`
	RowCount int              `json:"row_count"`
}

// New creates a BadgerDB storage backend
func New(cfg Config) (*Storage, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	memTableSize := int64(16 * 1024 * 1024)
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3
	}

	// Badger's caches are unbounded by default; keep them proportional to
	// the memtable.
	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithNumCompactors(1).
		WithValueLogMaxEntries(5000).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Storage{db: db}, nil
}

// Save writes the snapshot metadata and one key per row, replacing any
// snapshot with the same ID.
func (s *Storage) Save(ctx context.Context, rec storage.Record) error {
	meta, err := json.Marshal(snapshotMeta{
		ID:       rec.ID,
		BuiltAt:  rec.BuiltAt,
		Reports:  rec.Reports,
		RowCount: len(rec.Rows),
	})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return withContext(ctx, "save", func() error {
		if err := s.deleteSnapshot(ctx, rec.ID); err != nil {
			return err
		}

		wb := s.db.NewWriteBatch()
		defer wb.Cancel()

		sk := snapshotKey(rec.BuiltAt, rec.ID)
		if err := wb.Set(sk, meta); err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
		if err := wb.Set(indexKey(rec.ID), sk); err != nil {
			return fmt.Errorf("failed to write snapshot index: %w", err)
		}

		for i, r := range rec.Rows {
			// Check context periodically (every 1000 rows)
			if i%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			value, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("failed to encode row: %w", err)
			}
			if err := wb.Set(rowKey(rec.ID, r), value); err != nil {
				return fmt.Errorf("failed to write row: %w", err)
			}
		}
		return wb.Flush()
	})
}

// Latest returns the newest snapshot's metadata and reports.
func (s *Storage) Latest(ctx context.Context) (*storage.Record, error) {
	var out *storage.Record
	err := withContext(ctx, "latest", func() error {
		return s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Reverse = true
			opts.Prefix = snapshotPrefix

			it := txn.NewIterator(opts)
			defer it.Close()

			// Reverse iteration starts at the last key below the seek key.
			seek := append(append([]byte{}, snapshotPrefix...), 0xff)
			it.Seek(seek)
			if !it.ValidForPrefix(snapshotPrefix) {
				return storage.ErrNotFound
			}

			return it.Item().Value(func(val []byte) error {
				var meta snapshotMeta
				if err := json.Unmarshal(val, &meta); err != nil {
					return fmt.Errorf("failed to decode snapshot: %w", err)
				}
				out = &storage.Record{ID: meta.ID, BuiltAt: meta.BuiltAt, Reports: meta.Reports}
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Rows scans the rows of one snapshot. Results are ordered by row key.
func (s *Storage) Rows(ctx context.Context, id string, q storage.RowQuery) ([]kpi.Row, error) {
	var results []kpi.Row
	err := withContext(ctx, "rows", func() error {
		return s.db.View(func(txn *badger.Txn) error {
			if _, err := txn.Get(indexKey(id)); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return storage.ErrNotFound
				}
				return err
			}

			prefix := rowsPrefix(id)
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchSize = 100

			it := txn.NewIterator(opts)
			defer it.Close()

			var iterCount int
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				iterCount++
				if iterCount%1000 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}

				var r kpi.Row
				if err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &r)
				}); err != nil {
					return fmt.Errorf("failed to decode row: %w", err)
				}
				if q.Matches(r) {
					results = append(results, r)
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	kpi.SortRows(results)
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// Delete removes every snapshot built before the given time, rows included.
func (s *Storage) Delete(ctx context.Context, before time.Time) error {
	return withContext(ctx, "delete", func() error {
		var ids []string
		err := s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = snapshotPrefix
			opts.PrefetchValues = false

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(snapshotPrefix); it.ValidForPrefix(snapshotPrefix); it.Next() {
				builtAt, id := parseSnapshotKey(it.Item().Key())
				if !builtAt.Before(before) {
					// Keys are ordered by build time.
					break
				}
				ids = append(ids, id)
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, id := range ids {
			if err := s.deleteSnapshot(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close shuts down BadgerDB cleanly
func (s *Storage) Close() error {
	return s.db.Close()
}

// RunGC runs BadgerDB's value log garbage collection.
// Returns badger.ErrNoRewrite when there was nothing to reclaim.
func (s *Storage) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	stats := &storage.Stats{}
	err := withContext(ctx, "stats", func() error {
		return s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = snapshotPrefix

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(snapshotPrefix); it.ValidForPrefix(snapshotPrefix); it.Next() {
				var meta snapshotMeta
				if err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &meta)
				}); err != nil {
					return fmt.Errorf("failed to decode snapshot: %w", err)
				}
				stats.Snapshots++
				stats.Rows += uint64(meta.RowCount)
				if stats.Oldest.IsZero() {
					stats.Oldest = meta.BuiltAt
				}
				stats.Newest = meta.BuiltAt
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	lsmSize, vlogSize := s.db.Size()
	stats.SizeBytes = uint64(lsmSize + vlogSize)
	return stats, nil
}

// deleteSnapshot drops the metadata, index and rows of id, if present.
func (s *Storage) deleteSnapshot(ctx context.Context, id string) error {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		sk, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		keys = append(keys, sk, indexKey(id))

		prefix := rowsPrefix(id)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if len(keys)%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil || len(keys) == 0 {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// withContext runs fn and stops waiting for it when ctx ends.
func withContext(ctx context.Context, op string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%s operation cancelled: %w", op, ctx.Err())
	}
}

// snapshotKey is sortable by build time.
// Format: [prefix][built_at unix nanos (8 bytes)][id]
func snapshotKey(builtAt time.Time, id string) []byte {
	key := make([]byte, 0, len(snapshotPrefix)+8+len(id))
	key = append(key, snapshotPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(builtAt.UnixNano()))
	return append(key, id...)
}

func parseSnapshotKey(key []byte) (time.Time, string) {
	rest := bytes.TrimPrefix(key, snapshotPrefix)
	if len(rest) < 8 {
		return time.Time{}, ""
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(rest[:8]))), string(rest[8:])
}

func indexKey(id string) []byte {
	return append(append([]byte{}, indexPrefix...), id...)
}

func rowsPrefix(id string) []byte {
	key := append(append([]byte{}, rowPrefix...), id...)
	return append(key, '/')
}

// rowKey identifies a row within its snapshot.
// Format: [prefix][id]/[xxhash of the row key (8 bytes)]
func rowKey(id string, r kpi.Row) []byte {
	return binary.BigEndian.AppendUint64(rowsPrefix(id), xxhash.Sum64String(r.Key()))
}
