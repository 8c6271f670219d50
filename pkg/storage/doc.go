/*
Package storage archives published KPI snapshots.

# Storage Interface

Every snapshot the data layer publishes can be handed to a sink:
  - memory: In-memory storage for testing
  - badger: BadgerDB key-value archive, the default on disk
  - sqlite: relational mirror (gorm) for SQL consumers such as a
    text-to-SQL service

All backends implement the Storage interface:

	type Storage interface {
	    Save(ctx context.Context, rec Record) error
	    Latest(ctx context.Context) (*Record, error)
	    Rows(ctx context.Context, id string, q RowQuery) ([]kpi.Row, error)
	    Delete(ctx context.Context, before time.Time) error
	    Stats(ctx context.Context) (*Stats, error)
	    Close() error
	}

Snapshots are written whole and never updated, so a reader sees either
the previous snapshot or the next one. Delete is a retention sweep by
build time.

# Usage Example

	store, err := badger.New(badger.Config{Path: "./data/kpid"})
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	err = store.Save(ctx, storage.Record{
	    ID:      snap.ID,
	    BuiltAt: snap.BuiltAt,
	    Rows:    snap.Unified().Rows,
	    Reports: snap.QualityReports(),
	})

	rec, err := store.Latest(ctx)
	rows, err := store.Rows(ctx, rec.ID, storage.RowQuery{
	    Levels: []kpi.Level{kpi.StoreNode},
	})
*/
package storage
