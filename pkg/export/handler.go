package export

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/engine"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/httpx"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/storage"
)

// SnapshotSource hands out the published snapshot.
type SnapshotSource interface {
	Current() (*engine.Snapshot, error)
}

// Handler handles export/import HTTP endpoints
type Handler struct {
	source   SnapshotSource
	exporter *Exporter
	importer *Importer
}

// NewHandler creates a new export/import handler. store may be nil, in
// which case imports are refused.
func NewHandler(source SnapshotSource, store storage.Storage) *Handler {
	h := &Handler{
		source:   source,
		exporter: NewExporter(),
	}
	if store != nil {
		h.importer = NewImporter(store)
	}
	return h
}

// HandleExport handles GET /v1/export
// Query params:
//   - format: "json" or "csv" (default: json)
//   - domain: Factory, DC or Store (optional, case-insensitive)
//   - level: kpi_level filter, repeatable (optional)
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()

	format := query.Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "Invalid format. Must be 'json' or 'csv'")
		return
	}

	opts := ExportOptions{Format: format}

	if d := query.Get("domain"); d != "" {
		domain, ok := kpi.ParseDomain(d)
		if !ok {
			httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("unknown domain %q", d))
			return
		}
		opts.Domain = domain
	}
	for _, l := range query["level"] {
		level := kpi.Level(l)
		if !level.Valid() {
			httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("unknown kpi_level %q", l))
			return
		}
		opts.Levels = append(opts.Levels, level)
	}

	snap, err := h.source.Current()
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	opts.SnapshotID = snap.ID
	opts.BuiltAt = snap.BuiltAt

	timestamp := snap.BuiltAt.Format("20060102-150405")
	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "text/csv")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=kpis-%s.%s", timestamp, format))

	var result *ExportResult
	if format == "json" {
		result, err = h.exporter.ExportToJSON(w, snap.Unified(), opts)
	} else {
		result, err = h.exporter.ExportToCSV(w, snap.Unified(), opts)
	}
	if err != nil {
		// Headers are already out; the body is truncated.
		slog.Error("export failed", "snapshot", snap.ID, "format", format, "error", err)
		return
	}

	slog.Info("exported kpi table",
		"snapshot", result.SnapshotID,
		"format", result.Format,
		"rows", result.RowsExported)
}

// HandleImport handles POST /v1/import
// Accepts a JSON export and stores it as a snapshot record
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.importer == nil {
		httpx.RespondErrorString(w, http.StatusNotImplemented, "no snapshot store configured")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		httpx.RespondErrorString(w, http.StatusBadRequest, "Content-Type must be application/json")
		return
	}

	start := time.Now()
	result, err := h.importer.ImportFromJSON(r.Context(), r.Body)
	if err != nil {
		slog.Error("import failed", "error", err)
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	if len(result.Errors) > 0 {
		logged := result.Errors
		if len(logged) > 10 {
			logged = logged[:10]
		}
		slog.Warn("import skipped invalid rows",
			"skipped", len(result.Errors),
			"first", logged)
	}

	slog.Info("imported snapshot",
		"snapshot", result.SnapshotID,
		"rows", result.RowsImported,
		"duration", time.Since(start))

	httpx.RespondJSON(w, http.StatusOK, result)
}
