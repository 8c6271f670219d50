package merge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/aggregate"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
)

func aggregated(t *testing.T, d kpi.Domain, columns []string, rows ...[]string) *kpi.Table {
	t.Helper()
	f := frame.New(string(d), columns)
	for _, r := range rows {
		f.Append(r)
	}
	a, err := aggregate.For(d)
	require.NoError(t, err)
	table, err := a.Aggregate(f)
	require.NoError(t, err)
	return table
}

func domainTables(t *testing.T) []*kpi.Table {
	factory := aggregated(t, kpi.Factory,
		[]string{"factory_id", "line_id", "date", "hour", "prod_actual_qty", "prod_plan_qty", "defect_qty", "scrap_qty", "batch_size_units"},
		[]string{"F1", "L1", "2024-01-01", "0", "80", "100", "4", "2", "100"},
		[]string{"F1", "L2", "2024-01-01", "1", "50", "60", "1", "1", "60"},
	)
	dc := aggregated(t, kpi.DC,
		[]string{"dc_id", "sku_id", "date", "hour", "opening_stock_units", "predicted_demand"},
		[]string{"DC1", "A", "2024-01-01", "0", "10", "5"},
		[]string{"DC2", "A", "2024-01-01", "0", "0", "5"},
	)
	store := aggregated(t, kpi.Store,
		[]string{"store_id", "sku_id", "date", "hour", "on_shelf_units", "planogram_capacity_units", "predicted_demand"},
		[]string{"S1", "A", "2024-01-01", "0", "12", "10", "2"},
		[]string{"S2", "B", "2024-01-01", "0", "3", "10", "1"},
	)
	return []*kpi.Table{factory, dc, store}
}

func TestMerge_DefaultSchemaKeepsEveryRow(t *testing.T) {
	tables := domainTables(t)

	unified, err := Merge(tables, DefaultSchema())
	require.NoError(t, err)

	var total int
	for _, tb := range tables {
		total += tb.Len()
		for _, r := range tb.Rows {
			found := false
			for _, u := range unified.Rows {
				if u.Key() == r.Key() {
					found = true
					break
				}
			}
			assert.True(t, found, "row %s missing from unified table", r.Key())
		}
	}
	assert.Equal(t, total, unified.Len(), "kpi_level never matches across domains")
	assert.Equal(t, []kpi.Domain{kpi.Factory, kpi.DC, kpi.Store}, unified.Domains)
}

func TestMerge_SharedColumnsCoalesce(t *testing.T) {
	unified, err := Merge(domainTables(t), DefaultSchema())
	require.NoError(t, err)

	for _, col := range []string{kpi.MetricWasteUnits, kpi.MetricWasteSAR, kpi.ColPredictedDemand} {
		var n int
		for _, c := range unified.MetricColumns {
			if c == col {
				n++
			}
		}
		assert.Equal(t, 1, n, "%s appears once", col)
	}

	var storeNode kpi.Row
	for _, r := range unified.ByLevel(kpi.StoreNode) {
		if r.Dims[kpi.ColStore] == "S1" {
			storeNode = r
		}
	}
	assert.Equal(t, frame.Some(2), storeNode.Metric(kpi.MetricWasteUnits))
	assert.False(t, storeNode.Metric(kpi.MetricLineUtilization).Valid, "other domains' metrics are null")
}

func TestMerge_MatchedRowsKeepDuplicates(t *testing.T) {
	left := kpi.NewTable(kpi.Factory, []string{"k"}, []string{"x", "shared"})
	right := kpi.NewTable(kpi.Store, []string{"k"}, []string{"y", "shared"})

	l := kpi.NewRow("lvl")
	l.Dims["k"] = "1"
	l.Metrics["x"] = frame.Some(1)
	l.Metrics["shared"] = frame.Some(5)
	left.Rows = append(left.Rows, l)

	r := kpi.NewRow("lvl")
	r.Dims["k"] = "1"
	r.Metrics["y"] = frame.Some(2)
	r.Metrics["shared"] = frame.Some(7)
	right.Rows = append(right.Rows, r)

	lonely := kpi.NewRow("lvl")
	lonely.Dims["k"] = "2"
	lonely.Metrics["shared"] = frame.Some(3)
	right.Rows = append(right.Rows, lonely)

	schema := NewSchema().Declare(kpi.Factory, kpi.Store, JoinSpec{
		Keys:   []string{kpi.ColLevel, "k"},
		Shared: []string{"shared"},
	})

	out, err := Merge([]*kpi.Table{left, right}, schema)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len(), "3 rows, 1 match")

	m := out.Rows[0]
	assert.Equal(t, frame.Some(1), m.Metric("x"))
	assert.Equal(t, frame.Some(2), m.Metric("y"))
	assert.Equal(t, frame.Some(5), m.Metric("shared"))
	assert.Equal(t, frame.Some(7), m.Metric("shared_dup"))
	assert.Contains(t, out.MetricColumns, "shared_dup")

	assert.Equal(t, frame.Some(3), out.Rows[1].Metric("shared"))
}

func TestMerge_NullKeysMatch(t *testing.T) {
	left := kpi.NewTable(kpi.DC, []string{"k", "date"}, []string{"a"})
	right := kpi.NewTable(kpi.Store, []string{"k", "date"}, []string{"b"})

	l := kpi.NewRow("lvl")
	l.Dims["k"] = "1"
	left.Rows = append(left.Rows, l)
	r := kpi.NewRow("lvl")
	r.Dims["k"] = "1"
	r.Dims["date"] = ""
	right.Rows = append(right.Rows, r)

	schema := NewSchema().Declare(kpi.DC, kpi.Store, JoinSpec{Keys: []string{kpi.ColLevel, "k", "date"}})
	out, err := Merge([]*kpi.Table{left, right}, schema)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Len())
}

func TestMerge_EmptyKeysConcatenates(t *testing.T) {
	left := kpi.NewTable(kpi.Factory, []string{"a"}, []string{"x"})
	right := kpi.NewTable(kpi.DC, []string{"b"}, []string{"y"})
	for i := 0; i < 2; i++ {
		r := kpi.NewRow(kpi.FactoryNode)
		r.Metrics["x"] = frame.Some(float64(i))
		left.Rows = append(left.Rows, r)
	}
	for i := 0; i < 3; i++ {
		r := kpi.NewRow(kpi.DCNode)
		r.Metrics["y"] = frame.Some(float64(i))
		right.Rows = append(right.Rows, r)
	}

	out, err := Merge([]*kpi.Table{left, right}, NewSchema())
	require.NoError(t, err)
	require.Equal(t, 3, out.Len())

	assert.Equal(t, kpi.FactoryNode, out.Rows[0].Level)
	assert.Equal(t, string(kpi.DCNode), out.Rows[0].Dims[ColLevelDup])
	assert.Equal(t, frame.Some(1), out.Rows[1].Metric("y"))
	assert.Equal(t, kpi.DCNode, out.Rows[2].Level)
	assert.False(t, out.Rows[2].Metric("x").Valid)
}

func TestMerge_UndeclaredOverlapIsSchemaError(t *testing.T) {
	tables := domainTables(t)

	schema := DefaultSchema().Declare(kpi.Factory, kpi.Store, JoinSpec{
		Keys: []string{kpi.ColLevel, kpi.ColDate, kpi.ColHour},
	})
	_, err := Merge([]*kpi.Table{tables[0], tables[2]}, schema)

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "waste_sar,waste_units", se.Column)
}

func TestValidate_KeyMustBeDimensionOfBoth(t *testing.T) {
	tables := domainTables(t)
	err := Validate(tables[0], tables[1], JoinSpec{Keys: []string{kpi.ColLevel, kpi.ColSKU, kpi.ColDate, kpi.ColHour}})

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, kpi.ColSKU, se.Column)
}

func TestMerge_SkipsEmptyTables(t *testing.T) {
	tables := domainTables(t)
	out, err := Merge([]*kpi.Table{nil, tables[1], kpi.NewTable(kpi.Factory, nil, nil)}, DefaultSchema())
	require.NoError(t, err)
	assert.Equal(t, tables[1].Len(), out.Len())

	none, err := Merge(nil, DefaultSchema())
	require.NoError(t, err)
	assert.True(t, none.Empty())
}

func TestSchema_SpecIsSymmetric(t *testing.T) {
	s := DefaultSchema()
	a, ok := s.Spec(kpi.Store, kpi.DC)
	require.True(t, ok)
	b, _ := s.Spec(kpi.DC, kpi.Store)
	assert.Equal(t, a, b)
}
