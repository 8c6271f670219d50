package aggregate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
)

func newFrame(name string, columns []string, rows ...[]string) *frame.Frame {
	f := frame.New(name, columns)
	for _, r := range rows {
		f.Append(r)
	}
	return f
}

func onlyRow(t *testing.T, table *kpi.Table, level kpi.Level) kpi.Row {
	t.Helper()
	rows := table.ByLevel(level)
	require.Len(t, rows, 1, "level %s", level)
	return rows[0]
}

func TestFactory_SingleEvent(t *testing.T) {
	f := newFrame("factory_predictions",
		[]string{"factory_id", "line_id", "date", "hour", "prod_actual_qty", "prod_plan_qty", "defect_qty", "scrap_qty", "batch_size_units"},
		[]string{"F1", "L1", "2024-01-01", "0", "80", "100", "4", "2", "100"},
	)

	table, err := NewFactory().Aggregate(f)
	require.NoError(t, err)
	assert.Equal(t, 4, table.Len(), "one row per level")

	for _, level := range kpi.Levels(kpi.Factory) {
		row := onlyRow(t, table, level)
		assert.InDelta(t, 80.0, row.Metric(kpi.MetricLineUtilization).V, 1e-9)
		assert.InDelta(t, 80.0, row.Metric(kpi.MetricAdherence).V, 1e-9)
		assert.InDelta(t, 5.0, row.Metric(kpi.MetricDefectRate).V, 1e-9)
		assert.Equal(t, frame.Some(2), row.Metric(kpi.MetricWasteUnits))
		assert.InDelta(t, 20.0, row.Metric(kpi.MetricWasteSAR).V, 1e-9)
	}

	node := onlyRow(t, table, kpi.FactoryNode)
	assert.Equal(t, map[string]string{"factory_id": "F1"}, node.Dims)
}

func TestFactory_NodeWasteEqualsSumOfFinerRows(t *testing.T) {
	f := newFrame("factory_predictions",
		[]string{"factory_id", "line_id", "date", "hour", "prod_actual_qty", "prod_plan_qty", "defect_qty", "scrap_qty", "batch_size_units"},
		[]string{"F1", "L1", "2024-01-01", "0", "80", "100", "4", "2", "100"},
		[]string{"F1", "L1", "2024-01-01", "1", "90", "100", "1", "3", "100"},
		[]string{"F1", "L2", "2024-01-02", "5", "10", "20", "0", "7", "50"},
		[]string{"F2", "L1", "2024-01-01", "0", "5", "5", "0", "1", "10"},
	)

	table, err := NewFactory().Aggregate(f)
	require.NoError(t, err)

	for _, node := range table.ByLevel(kpi.FactoryNode) {
		id := node.Dims[kpi.ColFactory]
		for _, level := range kpi.Levels(kpi.Factory)[:3] {
			var sum float64
			for _, r := range table.ByLevel(level) {
				if r.Dims[kpi.ColFactory] == id {
					sum += r.Metric(kpi.MetricWasteUnits).V
				}
			}
			assert.InDelta(t, node.Metric(kpi.MetricWasteUnits).V, sum, 1e-9, "%s at %s", id, level)
		}
	}

	f1 := table.ByLevel(kpi.FactoryNode)[0]
	assert.Equal(t, "F1", f1.Dims[kpi.ColFactory])
	assert.Equal(t, frame.Some(12), f1.Metric(kpi.MetricWasteUnits))
	assert.InDelta(t, 180.0/220.0*100, f1.Metric(kpi.MetricAdherence).V, 1e-9, "ratios come from sums")
}

func TestFactory_ZeroDenominatorsDefaultToZero(t *testing.T) {
	f := newFrame("factory_predictions",
		[]string{"factory_id", "prod_actual_qty", "prod_plan_qty", "defect_qty", "scrap_qty", "batch_size_units"},
		[]string{"F1", "0", "0", "0", "0", "0"},
	)

	table, err := NewFactory().Aggregate(f)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len(), "levels without their key columns are skipped")

	row := onlyRow(t, table, kpi.FactoryNode)
	assert.Equal(t, frame.Some(0), row.Metric(kpi.MetricLineUtilization))
	assert.Equal(t, frame.Some(0), row.Metric(kpi.MetricAdherence))
	assert.Equal(t, frame.Some(0), row.Metric(kpi.MetricDefectRate))
}

func TestFactory_MissingColumn(t *testing.T) {
	f := newFrame("factory_predictions", []string{"factory_id", "prod_actual_qty"}, []string{"F1", "1"})

	_, err := NewFactory().Aggregate(f)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))

	var mce *MissingColumnError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, kpi.Factory, mce.Domain)
	assert.Equal(t, []string{"prod_plan_qty", "defect_qty", "scrap_qty", "batch_size_units"}, mce.Columns)
}

func TestDC_ZeroStock(t *testing.T) {
	f := newFrame("dc_forecasts",
		[]string{"dc_id", "sku_id", "date", "hour", "forecast_hour_offset", "opening_stock_units", "predicted_demand"},
		[]string{"DC1", "SKU1", "2024-01-01", "0", "1", "0", "50"},
		[]string{"DC1", "SKU1", "2024-01-01", "0", "2", "0", "50"},
		[]string{"DC1", "SKU1", "2024-01-01", "0", "3", "0", "50"},
	)

	table, err := NewDC().Aggregate(f)
	require.NoError(t, err)

	for _, level := range kpi.Levels(kpi.DC) {
		row := onlyRow(t, table, level)
		assert.Equal(t, frame.Some(0), row.Metric(kpi.MetricServiceLevel), "%s", level)
		assert.Equal(t, frame.Some(50), row.Metric(kpi.MetricBackorders), "only horizon 1 is counted at %s", level)
		assert.Equal(t, frame.Some(0), row.Metric(kpi.MetricWastePct), "%s", level)
	}

	sku := onlyRow(t, table, kpi.DCSKU)
	assert.Equal(t, frame.Some(0), sku.Metric(kpi.MetricDaysCover))

	node := onlyRow(t, table, kpi.DCNode)
	_, hasCover := node.Metrics[kpi.MetricDaysCover]
	assert.False(t, hasCover, "days_cover is not emitted at dc level")
}

func TestDC_ServiceAndWaste(t *testing.T) {
	f := newFrame("dc_forecasts",
		[]string{"dc_id", "sku_id", "opening_stock_units", "predicted_demand"},
		[]string{"DC1", "A", "150", "100"},
		[]string{"DC1", "B", "20", "40"},
	)

	table, err := NewDC().Aggregate(f)
	require.NoError(t, err)

	a := table.ByLevel(kpi.DCSKU)[0]
	assert.Equal(t, "A", a.Dims[kpi.ColSKU])
	assert.InDelta(t, 100.0, a.Metric(kpi.MetricServiceLevel).V, 1e-9)
	assert.InDelta(t, 50.0/150.0*100, a.Metric(kpi.MetricWastePct).V, 1e-9)
	assert.InDelta(t, 1.5, a.Metric(kpi.MetricDaysCover).V, 1e-9)
	assert.Equal(t, frame.Some(0), a.Metric(kpi.MetricBackorders))

	b := table.ByLevel(kpi.DCSKU)[1]
	assert.InDelta(t, 50.0, b.Metric(kpi.MetricServiceLevel).V, 1e-9)

	node := onlyRow(t, table, kpi.DCNode)
	assert.Equal(t, frame.Some(170), node.Metric(kpi.ColOpeningStock))
	assert.InDelta(t, 100.0, node.Metric(kpi.MetricServiceLevel).V, 1e-9, "computed from summed stock and demand")
}

func TestStore_Levels(t *testing.T) {
	f := newFrame("store_forecasts",
		[]string{"store_id", "sku_id", "date", "hour", "forecast_hour_offset", "on_shelf_units", "planogram_capacity_units", "predicted_demand"},
		[]string{"S1", "A", "2024-01-01", "0", "1", "-4", "10", "3"},
		[]string{"S1", "A", "2024-01-01", "1", "1", "14", "10", "2"},
		[]string{"S1", "B", "2024-01-01", "0", "1", "5", "10", "1"},
		[]string{"S1", "B", "2024-01-01", "0", "2", "999", "10", "1"},
	)

	table, err := NewStore().Aggregate(f)
	require.NoError(t, err)

	granular := table.ByLevel(kpi.StoreSKUDateHour)
	require.Len(t, granular, 3)
	assert.Equal(t, frame.Some(0), granular[0].Metric(kpi.ColOnShelf), "negative shelf clipped")
	assert.Equal(t, frame.Some(1), granular[0].Metric(kpi.MetricStockouts))
	assert.Equal(t, frame.Some(4), granular[1].Metric(kpi.MetricWasteUnits))
	assert.InDelta(t, 40.0, granular[1].Metric(kpi.MetricWasteSAR).V, 1e-9)

	skuA := table.ByLevel(kpi.StoreSKU)[0]
	assert.Equal(t, frame.Some(0), skuA.Metric(kpi.MetricStockouts), "sku level flags a zero sum only")
	assert.InDelta(t, 70.0, skuA.Metric(kpi.MetricAvailability).V, 1e-9)

	node := onlyRow(t, table, kpi.StoreNode)
	assert.Equal(t, frame.Some(1), node.Metric(kpi.MetricStockouts), "node level counts zero-stock rows")
	assert.Equal(t, frame.Some(19), node.Metric(kpi.ColOnShelf))
	assert.Equal(t, frame.Some(30), node.Metric(kpi.ColCapacity))
	assert.Equal(t, frame.Some(6), node.Metric(kpi.ColPredictedDemand))
	assert.Equal(t, frame.Some(4), node.Metric(kpi.MetricWasteUnits), "over-capacity rows count even when the sum is under")
}

func TestStore_NodeWasteEqualsSumOfFinerRows(t *testing.T) {
	f := newFrame("store_forecasts",
		[]string{"store_id", "sku_id", "date", "hour", "forecast_hour_offset", "on_shelf_units", "planogram_capacity_units"},
		[]string{"S1", "A", "2024-01-01", "0", "1", "30", "20"},
		[]string{"S1", "B", "2024-01-01", "0", "1", "0", "20"},
		[]string{"S2", "A", "2024-01-01", "0", "1", "25", "20"},
		[]string{"S2", "A", "2024-01-01", "1", "1", "5", "20"},
		[]string{"S2", "B", "2024-01-02", "3", "1", "12", "10"},
	)

	table, err := NewStore().Aggregate(f)
	require.NoError(t, err)

	for _, node := range table.ByLevel(kpi.StoreNode) {
		id := node.Dims[kpi.ColStore]
		for _, level := range kpi.Levels(kpi.Store)[:2] {
			var sum float64
			for _, r := range table.ByLevel(level) {
				if r.Dims[kpi.ColStore] == id {
					sum += r.Metric(kpi.MetricWasteUnits).V
				}
			}
			assert.InDelta(t, node.Metric(kpi.MetricWasteUnits).V, sum, 1e-9, "%s at %s", id, level)
		}
	}

	nodes := table.ByLevel(kpi.StoreNode)
	require.Len(t, nodes, 2)
	s1 := nodes[0]
	assert.Equal(t, "S1", s1.Dims[kpi.ColStore])
	assert.Equal(t, frame.Some(30), s1.Metric(kpi.ColOnShelf))
	assert.Equal(t, frame.Some(40), s1.Metric(kpi.ColCapacity))
	assert.Equal(t, frame.Some(10), s1.Metric(kpi.MetricWasteUnits), "SKU B's gap does not offset SKU A's surplus")
	assert.InDelta(t, 100.0, s1.Metric(kpi.MetricWasteSAR).V, 1e-9)

	s2 := nodes[1]
	assert.Equal(t, frame.Some(7), s2.Metric(kpi.MetricWasteUnits))
	skuA := table.ByLevel(kpi.StoreSKU)[2]
	assert.Equal(t, "S2", skuA.Dims[kpi.ColStore])
	assert.Equal(t, frame.Some(5), skuA.Metric(kpi.MetricWasteUnits), "hours are valued separately within a SKU")
}

func TestStore_DoesNotMutateInput(t *testing.T) {
	f := newFrame("store_forecasts",
		[]string{"store_id", "on_shelf_units", "planogram_capacity_units"},
		[]string{"S1", "-4", "10"},
	)

	_, err := NewStore().Aggregate(f)
	require.NoError(t, err)
	assert.Equal(t, frame.Some(-4), f.Float(0, kpi.ColOnShelf))
}

func TestGroupBy_SkipsMissingKeysAndSortsNumerically(t *testing.T) {
	f := newFrame("t", []string{"hour", "v"},
		[]string{"10", "1"},
		[]string{"9", "1"},
		[]string{"", "1"},
		[]string{"9", "2"},
	)

	groups := groupBy(f, []string{"hour"})
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"9"}, groups[0].values)
	assert.Equal(t, frame.Some(3), groups[0].sum(f, "v"))
	assert.Equal(t, []string{"10"}, groups[1].values)
}

func TestFor(t *testing.T) {
	for _, d := range kpi.Domains {
		a, err := For(d)
		require.NoError(t, err)
		assert.Equal(t, d, a.Domain())
	}
	_, err := For("Warehouse")
	assert.Error(t, err)
}
