package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
)

// FormatVersion is written into every JSON export.
const FormatVersion = "1.0"

// Exporter writes unified KPI tables to files
type Exporter struct{}

// NewExporter creates a new exporter
func NewExporter() *Exporter {
	return &Exporter{}
}

// ExportOptions configures the export operation
type ExportOptions struct {
	// Snapshot identity, copied into the export metadata
	SnapshotID string
	BuiltAt    time.Time

	// Filter by domain (empty = all domains)
	Domain kpi.Domain

	// Filter by levels (nil = all levels)
	Levels []kpi.Level

	// Format: "json" or "csv"
	Format string
}

// ExportResult contains stats about the export
type ExportResult struct {
	RowsExported int       `json:"rows_exported"`
	SnapshotID   string    `json:"snapshot_id"`
	Format       string    `json:"format"`
	ExportedAt   time.Time `json:"exported_at"`
}

// Metadata describes a JSON export.
type Metadata struct {
	ExportedAt time.Time `json:"exported_at"`
	SnapshotID string    `json:"snapshot_id"`
	BuiltAt    time.Time `json:"built_at"`
	RowCount   int       `json:"row_count"`
	Format     string    `json:"format"`
	Version    string    `json:"version"`
}

// Document is the JSON export layout.
type Document struct {
	Metadata Metadata   `json:"metadata"`
	Table    *kpi.Table `json:"table"`
}

// ExportToJSON exports the table as JSON to the given writer
func (e *Exporter) ExportToJSON(w io.Writer, t *kpi.Table, opts ExportOptions) (*ExportResult, error) {
	filtered := filter(t, opts)

	doc := Document{
		Metadata: Metadata{
			ExportedAt: time.Now(),
			SnapshotID: opts.SnapshotID,
			BuiltAt:    opts.BuiltAt,
			RowCount:   filtered.Len(),
			Format:     "json",
			Version:    FormatVersion,
		},
		Table: filtered,
	}

	// Encode as pretty JSON
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}

	return &ExportResult{
		RowsExported: filtered.Len(),
		SnapshotID:   opts.SnapshotID,
		Format:       "json",
		ExportedAt:   doc.Metadata.ExportedAt,
	}, nil
}

// ExportToCSV exports the table as CSV to the given writer. Columns follow
// the table schema; null metrics and absent dimensions are empty cells.
func (e *Exporter) ExportToCSV(w io.Writer, t *kpi.Table, opts ExportOptions) (*ExportResult, error) {
	filtered := filter(t, opts)

	writer := csv.NewWriter(w)

	header := filtered.Columns()
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(header))
	for _, r := range filtered.Rows {
		record[0] = string(r.Level)
		i := 1
		for _, col := range filtered.DimColumns {
			record[i] = r.Dims[col]
			i++
		}
		for _, col := range filtered.MetricColumns {
			record[i] = r.Metric(col).String()
			i++
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	return &ExportResult{
		RowsExported: filtered.Len(),
		SnapshotID:   opts.SnapshotID,
		Format:       "csv",
		ExportedAt:   time.Now(),
	}, nil
}

// filter returns a copy of t holding the rows the options select. The
// column schema is kept whole.
func filter(t *kpi.Table, opts ExportOptions) *kpi.Table {
	out := t.Clone()
	if out == nil {
		return &kpi.Table{}
	}
	if opts.Domain == "" && len(opts.Levels) == 0 {
		return out
	}

	levels := make(map[kpi.Level]bool, len(opts.Levels))
	for _, l := range opts.Levels {
		levels[l] = true
	}

	rows := out.Rows[:0]
	for _, r := range out.Rows {
		if opts.Domain != "" && r.Level.Domain() != opts.Domain {
			continue
		}
		if len(levels) > 0 && !levels[r.Level] {
			continue
		}
		rows = append(rows, r)
	}
	out.Rows = rows
	return out
}
