package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
)

func TestLevels_OrderedMostSpecificFirst(t *testing.T) {
	for _, d := range Domains {
		levels := Levels(d)
		require.NotEmpty(t, levels)
		for i := 1; i < len(levels); i++ {
			assert.Greater(t, len(levels[i-1].Keys()), len(levels[i].Keys()), "%s: %s before %s", d, levels[i-1], levels[i])
		}
		assert.Equal(t, levels[len(levels)-1], NodeLevel(d))
		assert.Equal(t, []string{d.NodeColumn()}, NodeLevel(d).Keys())
		for _, l := range levels {
			assert.Equal(t, d, l.Domain())
			assert.True(t, l.Valid())
		}
	}
	assert.False(t, Level("warehouse").Valid())
}

func TestLevel_Covers(t *testing.T) {
	assert.True(t, DCSKU.Covers([]string{ColDC, ColSKU}))
	assert.True(t, DCSKU.Covers(nil))
	assert.False(t, DCNode.Covers([]string{ColSKU}))
}

func TestLevels_ReturnsCopy(t *testing.T) {
	l := Levels(Store)
	l[0] = "mutated"
	assert.Equal(t, StoreSKUDateHour, Levels(Store)[0])
}

func TestRow_CloneAndKey(t *testing.T) {
	r := NewRow(StoreSKU)
	r.Dims[ColStore] = "S1"
	r.Dims[ColSKU] = "A"
	r.Metrics[MetricStockouts] = frame.Some(2)

	cp := r.Clone()
	cp.Dims[ColStore] = "S2"
	cp.Metrics[MetricStockouts] = frame.Some(9)

	assert.Equal(t, "S1", r.Dims[ColStore])
	assert.Equal(t, frame.Some(2), r.Metric(MetricStockouts))
	assert.Equal(t, "store_sku|sku_id=A|store_id=S1", r.Key())

	lvl, ok := r.Dim(ColLevel)
	assert.True(t, ok)
	assert.Equal(t, "store_sku", lvl)
	assert.False(t, r.Metric(MetricWasteUnits).Valid, "absent metrics are null")
}

func TestTable_ByLevelReturnsCopies(t *testing.T) {
	table := NewTable(DC, []string{ColDC}, []string{MetricServiceLevel})
	row := NewRow(DCNode)
	row.Dims[ColDC] = "DC1"
	table.Rows = append(table.Rows, row)

	got := table.ByLevel(DCNode)
	require.Len(t, got, 1)
	got[0].Dims[ColDC] = "changed"
	assert.Equal(t, "DC1", table.Rows[0].Dims[ColDC])

	assert.Equal(t, []string{ColLevel, ColDC, MetricServiceLevel}, table.Columns())
	assert.True(t, table.HasDim(ColLevel))
	assert.True(t, table.HasMetric(MetricServiceLevel))
	assert.True(t, table.HasDomain(DC))
}

func TestTable_Append(t *testing.T) {
	a := NewTable(DC, nil, nil)
	b := NewTable(DC, nil, nil)
	b.Rows = append(b.Rows, NewRow(DCNode))
	require.NoError(t, a.Append(b))
	assert.Equal(t, 1, a.Len())

	assert.Error(t, a.Append(NewTable(Store, nil, nil)))

	var empty *Table
	assert.True(t, empty.Empty())
}
