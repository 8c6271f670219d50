package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/engine"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/source"
)

const factoryCSV = `timestamp,factory_id,line_id,prod_actual_qty,prod_plan_qty,defect_qty,scrap_qty,batch_size_units,released_to_dc_qty
2024-01-01 00:00:00,F_RIYADH,L1,80,100,4,2,100,20
2024-01-01 01:00:00,F_RIYADH,L1,90,100,2,-1,100,10
`

func TestObserveBuild(t *testing.T) {
	m := New()

	m.ObserveBuild(120*time.Millisecond, nil)
	m.ObserveBuild(40*time.Millisecond, nil)
	m.ObserveBuild(10*time.Millisecond, errors.New("schema"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.buildsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.buildsTotal.WithLabelValues("failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.buildDuration))
}

func TestObserveSnapshot(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, source.DatasetsDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "predictions.csv"), []byte(factoryCSV), 0o644))

	m := New()
	snap, err := engine.New(engine.WithObserver(m)).Build(context.Background(), base)
	require.NoError(t, err)
	m.ObserveSnapshot(snap)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.buildsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(snap.Len()), testutil.ToFloat64(m.unifiedRows))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.domainRows.WithLabelValues("Factory")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.warnings), "dc and store tables are missing")
	assert.Equal(t, float64(snap.BuiltAt.Unix()), testutil.ToFloat64(m.lastSuccess))

	score := testutil.ToFloat64(m.qualityScore.WithLabelValues("factory_predictions"))
	assert.Less(t, score, 1.0)
	assert.Greater(t, score, 0.0)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveBuild(time.Second, nil)
	m.SetWebsocketClients(3)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `kpid_builds_total{result="success"} 1`)
	assert.Contains(t, string(body), "kpid_websocket_clients 3")
	assert.Contains(t, string(body), "go_goroutines")
}
