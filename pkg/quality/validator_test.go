package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
)

func newFrame(columns []string, rows ...[]string) *frame.Frame {
	f := frame.New("test", columns)
	for _, r := range rows {
		f.Append(r)
	}
	return f
}

func TestValidate_ClipsNegativeQuantities(t *testing.T) {
	f := newFrame([]string{"store_id", "on_shelf_units", "temperature"},
		[]string{"S1", "-3", "-10"},
		[]string{"S1", "5", "4"},
	)

	clean, report := Validate(f)

	assert.Equal(t, frame.Some(0), clean.Float(0, "on_shelf_units"))
	assert.Equal(t, frame.Some(-10), clean.Float(0, "temperature"), "non-quantity columns are untouched")
	assert.Equal(t, map[string]int{"on_shelf_units": 1}, report.Invalid)
	assert.Equal(t, frame.Some(-3), f.Float(0, "on_shelf_units"), "input must not be mutated")
}

func TestValidate_AllNegativeInput(t *testing.T) {
	cols := []string{"prod_actual_qty", "opening_stock_units", "predicted_demand", "planogram_capacity_units", "batch_size_units"}
	rows := [][]string{
		{"-1", "-2", "-3", "-4", "-5"},
		{"-0.5", "-100", "-1e3", "-7", "-1"},
	}
	clean, report := Validate(newFrame(cols, rows...))

	for _, col := range cols {
		for i := 0; i < clean.Len(); i++ {
			n := clean.Float(i, col)
			require.True(t, n.Valid)
			assert.GreaterOrEqual(t, n.V, 0.0, "%s row %d", col, i)
		}
		assert.Equal(t, 2, report.Invalid[col])
	}
	assert.InDelta(t, 0.0, report.Score, 1e-9)
}

func TestValidate_MissingValuesCountedNotImputed(t *testing.T) {
	f := newFrame([]string{"dc_id", "predicted_demand"},
		[]string{"DC1", ""},
		[]string{"", "4"},
		[]string{"DC2", "NaN"},
	)

	clean, report := Validate(f)

	assert.Equal(t, map[string]int{"dc_id": 1, "predicted_demand": 2}, report.Missing)
	assert.False(t, clean.Float(0, "predicted_demand").Valid)
	// 6 cells, 3 missing, 0 invalid.
	assert.InDelta(t, 0.5, report.Score, 1e-9)
	assert.Equal(t, 3, report.OriginalRows)
	assert.Equal(t, 3, report.FinalRows)
	assert.Equal(t, 0, report.RowsDropped)
}

func TestValidate_NonNumericQuantityBecomesMissing(t *testing.T) {
	f := newFrame([]string{"prod_actual_qty", "line_id"},
		[]string{"abc", "L1"},
		[]string{"5", "L2"},
	)

	clean, report := Validate(f)

	assert.Less(t, report.Score, 1.0)
	assert.Equal(t, map[string]int{"prod_actual_qty": 1}, report.Missing)
	assert.Empty(t, report.Invalid)
	assert.True(t, clean.Cell(0, "prod_actual_qty").Missing())
	assert.Equal(t, frame.Some(5), clean.Float(1, "prod_actual_qty"))
	assert.Equal(t, "L1", clean.String(0, "line_id"), "text columns keep their text")
	assert.Equal(t, "abc", f.String(0, "prod_actual_qty"), "input must not be mutated")
	// 4 cells, 1 missing.
	assert.InDelta(t, 0.75, report.Score, 1e-9)
}

func TestValidate_EmptyFrame(t *testing.T) {
	_, report := Validate(frame.New("empty", nil))
	assert.Equal(t, 1.0, report.Score)
}

func TestIsQuantityColumn(t *testing.T) {
	v := NewValidator()
	for _, col := range []string{"prod_actual_qty", "ON_SHELF_UNITS", "opening_stock_units", "predicted_demand", "planogram_capacity_units"} {
		assert.True(t, v.IsQuantityColumn(col), col)
	}
	for _, col := range []string{"hour", "forecast_hour_offset", "price"} {
		assert.False(t, v.IsQuantityColumn(col), col)
	}
}

func TestReport_Clone(t *testing.T) {
	r := Report{Missing: map[string]int{"a": 1}, Invalid: map[string]int{"b": 2}}
	cp := r.Clone()
	cp.Missing["a"] = 9
	assert.Equal(t, 1, r.Missing["a"])
}
