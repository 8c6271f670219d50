package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/engine"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/source"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/storage"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/storage/memory"
)

func testTable() *kpi.Table {
	t := &kpi.Table{
		Domains:       []kpi.Domain{kpi.Factory, kpi.DC},
		DimColumns:    []string{kpi.ColFactory, kpi.ColLine, kpi.ColDC},
		MetricColumns: []string{kpi.MetricAdherence, kpi.MetricServiceLevel},
	}

	line := kpi.NewRow(kpi.FactoryLine)
	line.Dims[kpi.ColFactory] = "F1"
	line.Dims[kpi.ColLine] = "L1"
	line.Metrics[kpi.MetricAdherence] = frame.Some(85)

	factory := kpi.NewRow(kpi.FactoryNode)
	factory.Dims[kpi.ColFactory] = "F1"
	factory.Metrics[kpi.MetricAdherence] = frame.Null

	dc := kpi.NewRow(kpi.DCNode)
	dc.Dims[kpi.ColDC] = "DC1"
	dc.Metrics[kpi.MetricServiceLevel] = frame.Some(97.5)

	t.Rows = []kpi.Row{line, factory, dc}
	return t
}

func TestExportToJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	builtAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	result, err := NewExporter().ExportToJSON(buf, testTable(), ExportOptions{SnapshotID: "s1", BuiltAt: builtAt})
	require.NoError(t, err)
	assert.Equal(t, 3, result.RowsExported)
	assert.Equal(t, "json", result.Format)

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "s1", doc.Metadata.SnapshotID)
	assert.True(t, doc.Metadata.BuiltAt.Equal(builtAt))
	assert.Equal(t, 3, doc.Metadata.RowCount)
	assert.Equal(t, FormatVersion, doc.Metadata.Version)
	require.Len(t, doc.Table.Rows, 3)
	assert.False(t, doc.Table.Rows[1].Metric(kpi.MetricAdherence).Valid, "null survives")
	assert.Contains(t, buf.String(), `"kpi_level": "factory"`)
}

func TestExportToCSV(t *testing.T) {
	buf := &bytes.Buffer{}

	result, err := NewExporter().ExportToCSV(buf, testTable(), ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.RowsExported)

	records, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, []string{"kpi_level", "factory_id", "line_id", "dc_id", "production_adherence_pct", "service_level_pct"}, records[0])
	assert.Equal(t, []string{"factory_line", "F1", "L1", "", "85", ""}, records[1])
	assert.Equal(t, []string{"factory", "F1", "", "", "", ""}, records[2])
	assert.Equal(t, []string{"dc", "", "", "DC1", "", "97.5"}, records[3])
}

func TestExport_Filters(t *testing.T) {
	exporter := NewExporter()

	buf := &bytes.Buffer{}
	result, err := exporter.ExportToCSV(buf, testTable(), ExportOptions{Domain: kpi.DC})
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowsExported)
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"), "header plus one row")

	buf.Reset()
	result, err = exporter.ExportToJSON(buf, testTable(), ExportOptions{Levels: []kpi.Level{kpi.FactoryLine, kpi.DCNode}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.RowsExported)

	// The source table is untouched.
	tbl := testTable()
	_, err = exporter.ExportToCSV(&bytes.Buffer{}, tbl, ExportOptions{Domain: kpi.Store})
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
}

func TestExport_NilTable(t *testing.T) {
	buf := &bytes.Buffer{}
	result, err := NewExporter().ExportToCSV(buf, nil, ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.RowsExported)
	assert.Equal(t, "kpi_level\n", buf.String())
}

func TestImportFromJSON(t *testing.T) {
	store := memory.New()
	defer store.Close()
	ctx := context.Background()

	tbl := testTable()
	bad := kpi.NewRow(kpi.DCSKU)
	bad.Dims[kpi.ColDC] = "DC1"
	tbl.Rows = append(tbl.Rows, bad)

	buf := &bytes.Buffer{}
	builtAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := NewExporter().ExportToJSON(buf, tbl, ExportOptions{SnapshotID: "s1", BuiltAt: builtAt})
	require.NoError(t, err)

	result, err := NewImporter(store).ImportFromJSON(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "s1", result.SnapshotID)
	assert.Equal(t, 3, result.RowsImported)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "sku_id")

	rec, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s1", rec.ID)
	assert.True(t, rec.BuiltAt.Equal(builtAt))

	rows, err := store.Rows(ctx, "s1", storage.RowQuery{Levels: []kpi.Level{kpi.DCNode}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, frame.Some(97.5), rows[0].Metric(kpi.MetricServiceLevel))
}

func TestImportFromJSON_Invalid(t *testing.T) {
	store := memory.New()
	defer store.Close()
	importer := NewImporter(store)

	_, err := importer.ImportFromJSON(context.Background(), strings.NewReader("{not json"))
	assert.Error(t, err)

	_, err = importer.ImportFromJSON(context.Background(), strings.NewReader(`{"metadata":{"version":"9.9"}}`))
	assert.ErrorContains(t, err, "unsupported export version")

	result, err := importer.ImportFromJSON(context.Background(), strings.NewReader(`{"metadata":{}}`))
	require.NoError(t, err)
	assert.NotEmpty(t, result.SnapshotID, "an id is generated")
	assert.Equal(t, 0, result.RowsImported)
}

const factoryCSV = `timestamp,factory_id,line_id,prod_actual_qty,prod_plan_qty,defect_qty,scrap_qty,batch_size_units,released_to_dc_qty
2024-01-01 00:00:00,F_RIYADH,L1,80,100,4,2,100,20
2024-01-01 01:00:00,F_RIYADH,L1,90,100,2,1,100,10
`

func newLayer(t *testing.T) *engine.Layer {
	t.Helper()
	base := t.TempDir()
	dir := filepath.Join(base, source.DatasetsDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "predictions.csv"), []byte(factoryCSV), 0o644))

	layer := engine.NewLayer(engine.New())
	require.NoError(t, layer.Initialize(context.Background(), base))
	return layer
}

func TestHandleExport(t *testing.T) {
	h := NewHandler(newLayer(t), nil)

	tests := []struct {
		name       string
		url        string
		wantStatus int
		wantType   string
	}{
		{"default json", "/v1/export", http.StatusOK, "application/json"},
		{"csv", "/v1/export?format=csv", http.StatusOK, "text/csv"},
		{"domain filter", "/v1/export?format=csv&domain=factory&level=factory_line", http.StatusOK, "text/csv"},
		{"bad format", "/v1/export?format=xml", http.StatusBadRequest, "application/json"},
		{"bad domain", "/v1/export?domain=warehouse", http.StatusBadRequest, "application/json"},
		{"bad level", "/v1/export?level=galaxy", http.StatusBadRequest, "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleExport(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantType, rec.Header().Get("Content-Type"))
		})
	}

	rec := httptest.NewRecorder()
	h.HandleExport(rec, httptest.NewRequest(http.MethodGet, "/v1/export?format=csv&level=factory_line", nil))
	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "factory_line", records[1][0])
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")
}

func TestHandleExport_NotInitialized(t *testing.T) {
	h := NewHandler(engine.NewLayer(engine.New()), nil)
	rec := httptest.NewRecorder()
	h.HandleExport(rec, httptest.NewRequest(http.MethodGet, "/v1/export", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleImport(t *testing.T) {
	layer := newLayer(t)
	store := memory.New()
	defer store.Close()
	h := NewHandler(layer, store)

	exported := httptest.NewRecorder()
	h.HandleExport(exported, httptest.NewRequest(http.MethodGet, "/v1/export", nil))
	require.Equal(t, http.StatusOK, exported.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/import", exported.Body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleImport(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result ImportResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	snap, err := layer.Current()
	require.NoError(t, err)
	assert.Equal(t, snap.ID, result.SnapshotID)
	assert.Equal(t, snap.Len(), result.RowsImported)

	// Wrong content type
	req = httptest.NewRequest(http.MethodPost, "/v1/import", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "text/plain")
	rec = httptest.NewRecorder()
	h.HandleImport(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// No store configured
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/import", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	NewHandler(layer, nil).HandleImport(rec, req)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
