package source

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
)

func TestReadCSV(t *testing.T) {
	in := "\ufefffactory_id,prod_actual_qty,note\nF1,80,ok\nF2,,\nF3,12\n"
	f, err := ReadCSV("factory_predictions", strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"factory_id", "prod_actual_qty", "note"}, f.Columns())
	assert.Equal(t, 3, f.Len())
	assert.Equal(t, frame.Some(80), f.Float(0, "prod_actual_qty"))
	assert.True(t, f.Cell(1, "prod_actual_qty").Missing())
	assert.True(t, f.Cell(2, "note").Missing())
}

func TestReadCSV_Empty(t *testing.T) {
	f, err := ReadCSV("empty", strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, f.Len())
}

func TestLoader_MissingSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, DatasetsDir), 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, DatasetsDir, "predictions.csv"),
		[]byte("factory_id,prod_actual_qty\nF1,5\n"), 0644))

	tables, errs := NewLoader(dir).LoadAll()

	require.Len(t, tables, 1)
	assert.Equal(t, 1, tables[kpi.Factory].Len())
	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.True(t, errors.Is(err, ErrMissingSource))
		var mse *MissingSourceError
		require.True(t, errors.As(err, &mse))
		assert.NotEmpty(t, mse.Table)
	}
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "dc_forecasts", TableName(kpi.DC))
	assert.Equal(t, "store_forecasts", TableName(kpi.Store))
}
