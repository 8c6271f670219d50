package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/quality"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/storage"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := New(Config{DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(id string, builtAt time.Time) storage.Record {
	hourly := kpi.NewRow(kpi.DCSKUDateHour)
	hourly.Dims[kpi.ColDC] = "DC1"
	hourly.Dims[kpi.ColSKU] = "A"
	hourly.Dims[kpi.ColDate] = "2024-01-01"
	hourly.Dims[kpi.ColHour] = "0"
	hourly.Metrics[kpi.MetricServiceLevel] = frame.Some(0)
	hourly.Metrics[kpi.MetricBackorders] = frame.Some(50)

	node := kpi.NewRow(kpi.DCNode)
	node.Dims[kpi.ColDC] = "DC1"
	node.Metrics[kpi.MetricServiceLevel] = frame.Some(100)
	node.Metrics[kpi.MetricDaysCover] = frame.Null

	return storage.Record{
		ID:      id,
		BuiltAt: builtAt,
		Rows:    []kpi.Row{hourly, node},
		Reports: []quality.Report{{
			Name:         "dc_forecasts",
			OriginalRows: 2,
			FinalRows:    2,
			Missing:      map[string]int{"predicted_demand": 1},
			Invalid:      map[string]int{},
			Score:        0.9,
		}},
	}
}

func TestSQLiteStorage_SaveAndRows(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testRecord("s1", time.Now())))

	rows, err := store.Rows(ctx, "s1", storage.RowQuery{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, kpi.DCSKUDateHour, rows[0].Level, "ordered by row key")
	assert.Equal(t, kpi.DCNode, rows[1].Level)
	assert.Equal(t, frame.Some(100), rows[1].Metric(kpi.MetricServiceLevel))
	_, present := rows[1].Metrics[kpi.MetricDaysCover]
	assert.True(t, present)
	assert.False(t, rows[1].Metric(kpi.MetricDaysCover).Valid)

	hourly, err := store.Rows(ctx, "s1", storage.RowQuery{Levels: []kpi.Level{kpi.DCSKUDateHour}})
	require.NoError(t, err)
	require.Len(t, hourly, 1)
	assert.Equal(t, map[string]string{
		kpi.ColDC:   "DC1",
		kpi.ColSKU:  "A",
		kpi.ColDate: "2024-01-01",
		kpi.ColHour: "0",
	}, hourly[0].Dims)

	bySKU, err := store.Rows(ctx, "s1", storage.RowQuery{Dims: map[string]string{kpi.ColSKU: "A"}})
	require.NoError(t, err)
	assert.Len(t, bySKU, 1)

	_, err = store.Rows(ctx, "missing", storage.RowQuery{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLiteStorage_SQLMirror(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, testRecord("s1", time.Now())))

	var backorders float64
	err := store.DB().Raw(`
		SELECT m.value FROM kpi_metrics m
		JOIN kpi_rows r ON r.id = m.row_id
		WHERE r.dc_id = ? AND r.level = ? AND m.name = ?`,
		"DC1", string(kpi.DCSKUDateHour), kpi.MetricBackorders).Scan(&backorders).Error
	require.NoError(t, err)
	assert.Equal(t, 50.0, backorders)
}

func TestSQLiteStorage_LatestAndReplace(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	_, err := store.Latest(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	now := time.Now()
	require.NoError(t, store.Save(ctx, testRecord("old", now.Add(-time.Hour))))
	require.NoError(t, store.Save(ctx, testRecord("new", now)))
	require.NoError(t, store.Save(ctx, testRecord("new", now)))

	rec, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", rec.ID)
	require.Len(t, rec.Reports, 1)
	assert.Equal(t, map[string]int{"predicted_demand": 1}, rec.Reports[0].Missing)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Snapshots)
	assert.Equal(t, uint64(4), stats.Rows)

	var metricCount int64
	require.NoError(t, store.DB().Model(&KPIMetric{}).Count(&metricCount).Error)
	assert.Equal(t, int64(8), metricCount, "replacing a snapshot drops its old metrics")
}

func TestSQLiteStorage_Delete(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Save(ctx, testRecord("old", now.Add(-48*time.Hour))))
	require.NoError(t, store.Save(ctx, testRecord("new", now)))
	require.NoError(t, store.Delete(ctx, now.Add(-24*time.Hour)))

	_, err := store.Rows(ctx, "old", storage.RowQuery{})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	var reports int64
	require.NoError(t, store.DB().Model(&QualityReport{}).Count(&reports).Error)
	assert.Equal(t, int64(1), reports)

	var metrics int64
	require.NoError(t, store.DB().Model(&KPIMetric{}).Count(&metrics).Error)
	assert.Equal(t, int64(4), metrics)
}
