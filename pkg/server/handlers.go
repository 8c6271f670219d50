package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/config"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/engine"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/export"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/httpx"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/quality"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/query"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/report"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/server/monitor"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/storage"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/telemetry"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

var startTime = time.Now()

// API serves the KPI endpoints from the published snapshot.
type API struct {
	layer         *engine.Layer
	refresher     *Refresher
	refresh       *monitor.RefreshMonitor
	disk          *monitor.DiskMonitor
	sinks         *Sinks
	shelfLifeDays float64
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string                `json:"status"`
	Version  string                `json:"version"`
	Uptime   string                `json:"uptime"`
	Snapshot *SnapshotInfo         `json:"snapshot,omitempty"`
	Refresh  monitor.RefreshStatus `json:"refresh"`
}

// SnapshotInfo identifies a published snapshot.
type SnapshotInfo struct {
	ID        string             `json:"id"`
	BuiltAt   time.Time          `json:"built_at"`
	Rows      int                `json:"rows"`
	RowCounts map[kpi.Domain]int `json:"row_counts"`
	Warnings  []string           `json:"warnings,omitempty"`
}

// QualityResponse lists the quality reports of the published snapshot.
type QualityResponse struct {
	Snapshot string           `json:"snapshot_id"`
	BuiltAt  time.Time        `json:"built_at"`
	Warnings []string         `json:"warnings"`
	Reports  []quality.Report `json:"reports"`
}

// KPIResponse is a raw, unrounded selection from the unified table.
type KPIResponse struct {
	Domain kpi.Domain `json:"domain"`
	Level  kpi.Level  `json:"kpi_level"`
	Rows   []kpi.Row  `json:"rows"`
}

// StorageResponse reports the snapshot stores.
type StorageResponse struct {
	UsedBytes int64                     `json:"used_bytes"`
	Paths     []string                  `json:"paths"`
	Sinks     map[string]*storage.Stats `json:"sinks"`
}

func snapshotInfo(snap *engine.Snapshot) *SnapshotInfo {
	return &SnapshotInfo{
		ID:        snap.ID,
		BuiltAt:   snap.BuiltAt,
		Rows:      snap.Len(),
		RowCounts: snap.RowCounts(),
		Warnings:  snap.Warnings,
	}
}

// current writes 503 and returns nil before the first build.
func (a *API) current(w http.ResponseWriter) *engine.Snapshot {
	snap, err := a.layer.Current()
	if err != nil {
		httpx.Fail(w, err)
		return nil
	}
	return snap
}

// handleHealth returns service health status.
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:  "healthy",
		Version: Version,
		Uptime:  time.Since(startTime).Round(time.Second).String(),
		Refresh: a.refresh.Status(),
	}
	statusCode := http.StatusOK

	snap, err := a.layer.Current()
	switch {
	case err != nil:
		response.Status = "initializing"
		statusCode = http.StatusServiceUnavailable
	case !response.Refresh.Healthy:
		response.Status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}
	if snap != nil {
		response.Snapshot = snapshotInfo(snap)
	}

	httpx.RespondJSON(w, statusCode, response)
}

// handleRefresh rebuilds the snapshot from the fact tables.
func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := a.refresher.RunOnce(r.Context())
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, snapshotInfo(snap))
}

func (a *API) handleFactoryKPIs(w http.ResponseWriter, r *http.Request) {
	snap := a.current(w)
	if snap == nil {
		return
	}
	q := r.URL.Query()
	res := snap.FactoryKPIs(q.Get("factory_id"), q.Get("line_id"))
	httpx.RespondJSON(w, http.StatusOK, report.FactoryKPIs(res))
}

func (a *API) handleDCKPIs(w http.ResponseWriter, r *http.Request) {
	snap := a.current(w)
	if snap == nil {
		return
	}
	dcID := r.URL.Query().Get("dc_id")
	res := snap.DCKPIs(dcID, "")
	httpx.RespondJSON(w, http.StatusOK, report.DCKPIs(res, dcID, a.shelfLifeDays))
}

func (a *API) handleDCDaysCover(w http.ResponseWriter, r *http.Request) {
	snap := a.current(w)
	if snap == nil {
		return
	}
	q := r.URL.Query()
	httpx.RespondJSON(w, http.StatusOK, report.DaysCovers(snap.Unified(), q.Get("dc_id"), q.Get("sku_id")))
}

func (a *API) handleStoreKPIs(w http.ResponseWriter, r *http.Request) {
	snap := a.current(w)
	if snap == nil {
		return
	}
	storeID := r.URL.Query().Get("store_id")
	res := snap.StoreKPIs(storeID, "")
	httpx.RespondJSON(w, http.StatusOK, report.StoreKPIs(res, storeID))
}

func (a *API) handleShelfPerformance(w http.ResponseWriter, r *http.Request) {
	snap := a.current(w)
	if snap == nil {
		return
	}
	storeID := r.URL.Query().Get("store_id")
	httpx.RespondJSON(w, http.StatusOK, report.ShelfPerformanceOf(snap.Raw(kpi.Store), storeID))
}

func (a *API) handleNodeHealth(w http.ResponseWriter, r *http.Request) {
	snap := a.current(w)
	if snap == nil {
		return
	}
	httpx.RespondJSON(w, http.StatusOK, report.NodeHealth(snap.NodeHealth()))
}

func (a *API) handleGlobalKPIs(w http.ResponseWriter, r *http.Request) {
	snap := a.current(w)
	if snap == nil {
		return
	}
	global, _ := snap.GlobalKPIs()
	httpx.RespondJSON(w, http.StatusOK, report.GlobalKPIs(global))
}

func (a *API) handleQuality(w http.ResponseWriter, r *http.Request) {
	snap := a.current(w)
	if snap == nil {
		return
	}
	warnings := snap.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	httpx.RespondJSON(w, http.StatusOK, QualityResponse{
		Snapshot: snap.ID,
		BuiltAt:  snap.BuiltAt,
		Warnings: warnings,
		Reports:  snap.QualityReports(),
	})
}

// handleKPIs returns the unrounded rows the accessor selects for a domain.
// Query params: node and sub (line or SKU id).
func (a *API) handleKPIs(w http.ResponseWriter, r *http.Request) {
	domain, ok := kpi.ParseDomain(mux.Vars(r)["domain"])
	if !ok {
		httpx.RespondErrorString(w, http.StatusNotFound, fmt.Sprintf("unknown domain %q", mux.Vars(r)["domain"]))
		return
	}
	snap := a.current(w)
	if snap == nil {
		return
	}
	q := r.URL.Query()
	res := snap.KPIs(domain, query.Filter{Node: q.Get("node"), Sub: q.Get("sub")})
	rows := res.Rows
	if rows == nil {
		rows = []kpi.Row{}
	}
	httpx.RespondJSON(w, http.StatusOK, KPIResponse{Domain: domain, Level: res.Level, Rows: rows})
}

// handleLatestSnapshot returns the newest stored snapshot's metadata.
func (a *API) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	store := a.sinks.Primary()
	ctx, cancel := context.WithTimeout(r.Context(), config.SinkTimeout)
	defer cancel()

	rec, err := store.Latest(ctx)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, rec)
}

// handleSnapshotRows reads rows of a stored snapshot.
// Query params: level (repeatable), limit, and any dimension column.
func (a *API) handleSnapshotRows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rq := storage.RowQuery{Dims: map[string]string{}, Limit: config.DefaultRowsLimit}

	for _, l := range q["level"] {
		level := kpi.Level(l)
		if !level.Valid() {
			httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("unknown kpi_level %q", l))
			return
		}
		rq.Levels = append(rq.Levels, level)
	}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit <= 0 {
			httpx.RespondErrorString(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		rq.Limit = min(limit, config.MaxRowsLimit)
	}
	for _, col := range dimColumns {
		if v := q.Get(col); v != "" {
			rq.Dims[col] = v
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.SinkTimeout)
	defer cancel()

	rows, err := a.sinks.Primary().Rows(ctx, mux.Vars(r)["id"], rq)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	if rows == nil {
		rows = []kpi.Row{}
	}
	httpx.RespondJSON(w, http.StatusOK, rows)
}

// handleStorage returns disk usage and per-store statistics.
func (a *API) handleStorage(w http.ResponseWriter, r *http.Request) {
	used, err := a.disk.GetUsage()
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.StorageStatsTimeout)
	defer cancel()

	resp := StorageResponse{
		UsedBytes: used,
		Paths:     a.disk.Paths(),
		Sinks:     map[string]*storage.Stats{},
	}
	for _, store := range a.sinks.All() {
		stats, err := store.Stats(ctx)
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}
		resp.Sinks[sinkName(store)] = stats
	}
	httpx.RespondJSON(w, http.StatusOK, resp)
}

var dimColumns = []string{
	kpi.ColFactory, kpi.ColLine, kpi.ColDC, kpi.ColStore, kpi.ColSKU, kpi.ColDate, kpi.ColHour,
}

// SetupRoutes configures all HTTP routes for the server.
func SetupRoutes(
	router *mux.Router,
	api *API,
	exportHandler *export.Handler,
	hub *Hub,
	metrics *telemetry.Metrics,
	cfg config.ServerConfig,
) {
	router.Use(metrics.Middleware)
	router.Use(corsMiddleware(cfg.Port, cfg.AllowedOrigins))

	v1 := router.PathPrefix("/v1").Subrouter()

	// Domain KPIs
	v1.HandleFunc("/factory-kpis", api.handleFactoryKPIs).Methods("GET")
	v1.HandleFunc("/dc-kpis", api.handleDCKPIs).Methods("GET")
	v1.HandleFunc("/dc-days-cover", api.handleDCDaysCover).Methods("GET")
	v1.HandleFunc("/store-kpis", api.handleStoreKPIs).Methods("GET")
	v1.HandleFunc("/store-shelf-performance", api.handleShelfPerformance).Methods("GET")
	v1.HandleFunc("/kpis/{domain}", api.handleKPIs).Methods("GET")

	// Cross-domain
	v1.HandleFunc("/node-health", api.handleNodeHealth).Methods("GET")
	v1.HandleFunc("/global-kpis", api.handleGlobalKPIs).Methods("GET")
	v1.HandleFunc("/quality", api.handleQuality).Methods("GET")

	// Lifecycle
	v1.HandleFunc("/health", api.handleHealth).Methods("GET")
	v1.HandleFunc("/refresh", api.handleRefresh).Methods("POST")

	// Stored snapshots
	v1.HandleFunc("/snapshots/latest", api.handleLatestSnapshot).Methods("GET")
	v1.HandleFunc("/snapshots/{id}/rows", api.handleSnapshotRows).Methods("GET")
	v1.HandleFunc("/storage", api.handleStorage).Methods("GET")

	// Export/import
	v1.HandleFunc("/export", exportHandler.HandleExport).Methods("GET")
	v1.HandleFunc("/import", exportHandler.HandleImport).Methods("POST")

	// WebSocket for snapshot updates
	v1.HandleFunc("/ws", hub.HandleWebSocket).Methods("GET")

	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Preflight requests only reach corsMiddleware through a matching route.
	router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})
}

// corsMiddleware allows browser access from localhost and the configured
// origins only.
func corsMiddleware(port string, extra []string) func(http.Handler) http.Handler {
	allowed := map[string]bool{
		"http://localhost:" + port: true,
		"http://127.0.0.1:" + port: true,
		"http://localhost:3000":    true,
		"http://127.0.0.1:3000":    true,
		"http://localhost:5173":    true,
	}
	for _, o := range extra {
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
