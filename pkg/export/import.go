package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/storage"
)

// Importer restores JSON exports into a snapshot store
type Importer struct {
	storage storage.Storage
}

// NewImporter creates a new importer
func NewImporter(store storage.Storage) *Importer {
	return &Importer{storage: store}
}

// ImportResult contains stats about the import operation
type ImportResult struct {
	SnapshotID   string    `json:"snapshot_id"`
	RowsImported int       `json:"rows_imported"`
	BuiltAt      time.Time `json:"built_at"`
	ImportedAt   time.Time `json:"imported_at"`
	Errors       []string  `json:"errors,omitempty"`
}

// ImportFromJSON decodes a JSON export and saves it as one snapshot record.
// Rows with an unknown level or missing key dimensions are skipped and
// reported; the rest are stored.
func (im *Importer) ImportFromJSON(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	if doc.Metadata.Version != "" && doc.Metadata.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported export version %q", doc.Metadata.Version)
	}

	id := doc.Metadata.SnapshotID
	if id == "" {
		id = uuid.NewString()
	}
	builtAt := doc.Metadata.BuiltAt
	if builtAt.IsZero() {
		builtAt = doc.Metadata.ExportedAt
	}
	if builtAt.IsZero() {
		builtAt = time.Now()
	}

	var rows []kpi.Row
	var validationErrors []string
	if doc.Table != nil {
		rows = make([]kpi.Row, 0, len(doc.Table.Rows))
		for i, row := range doc.Table.Rows {
			if err := validateImportedRow(row); err != nil {
				validationErrors = append(validationErrors, fmt.Sprintf("row %d: %v", i, err))
				continue
			}
			rows = append(rows, row)
		}
	}

	rec := storage.Record{ID: id, BuiltAt: builtAt, Rows: rows}
	if err := im.storage.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save snapshot %s: %w", id, err)
	}

	return &ImportResult{
		SnapshotID:   id,
		RowsImported: len(rows),
		BuiltAt:      builtAt,
		ImportedAt:   time.Now(),
		Errors:       validationErrors,
	}, nil
}

// validateImportedRow checks a row before import
func validateImportedRow(r kpi.Row) error {
	if !r.Level.Valid() {
		return fmt.Errorf("invalid kpi level: %q", r.Level)
	}
	for _, k := range r.Level.Keys() {
		if r.Dims[k] == "" {
			return fmt.Errorf("level %s is missing dimension %q", r.Level, k)
		}
	}
	if r.Metrics == nil {
		return fmt.Errorf("row has no metrics")
	}
	return nil
}
