package aggregate

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
)

// NominalWasteCost is the SAR value of one wasted unit in waste_sar.
const NominalWasteCost = 10.0

// ErrMissingColumn is wrapped by MissingColumnError.
var ErrMissingColumn = errors.New("required column missing")

// MissingColumnError reports required columns absent from a fact table.
type MissingColumnError struct {
	Domain  kpi.Domain
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: missing columns %s", e.Domain, strings.Join(e.Columns, ", "))
}

func (e *MissingColumnError) Unwrap() error {
	return ErrMissingColumn
}

// Aggregator computes a domain's KPI rows at every level.
type Aggregator interface {
	Domain() kpi.Domain
	Required() []string
	Aggregate(f *frame.Frame) (*kpi.Table, error)
}

// For returns the default aggregator of a domain.
func For(d kpi.Domain) (Aggregator, error) {
	switch d {
	case kpi.Factory:
		return NewFactory(), nil
	case kpi.DC:
		return NewDC(), nil
	case kpi.Store:
		return NewStore(), nil
	}
	return nil, fmt.Errorf("unknown domain %q", d)
}

// derive fills the metrics of one group from its summed quantities.
type derive func(level kpi.Level, g *group, sums map[string]frame.Num) map[string]frame.Num

// run checks required columns then emits one set of rows per level.
func run(a Aggregator, f *frame.Frame, sumCols, metricCols []string, fn derive) (*kpi.Table, error) {
	if ok, missing := f.HasAll(a.Required()...); !ok {
		return nil, &MissingColumnError{Domain: a.Domain(), Columns: missing}
	}

	d := a.Domain()
	table := kpi.NewTable(d, dimColumns(d), metricCols)

	for _, level := range kpi.Levels(d) {
		keys := level.Keys()
		if ok, missing := f.HasAll(keys...); !ok {
			slog.Debug("level skipped", "domain", d, "level", level, "missing", missing)
			continue
		}

		for _, g := range groupBy(f, keys) {
			sums := make(map[string]frame.Num, len(sumCols))
			for _, col := range sumCols {
				sums[col] = g.sum(f, col)
			}

			row := kpi.NewRow(level)
			for i, k := range keys {
				row.Dims[k] = g.values[i]
			}
			for col, v := range sums {
				row.Metrics[col] = v
			}
			for col, v := range fn(level, g, sums) {
				row.Metrics[col] = v
			}
			table.Rows = append(table.Rows, row)
		}
	}
	return table, nil
}

// dimColumns lists the union of a domain's level keys in first-seen order.
func dimColumns(d kpi.Domain) []string {
	seen := make(map[string]bool)
	var out []string
	for _, level := range kpi.Levels(d) {
		for _, k := range level.Keys() {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

// pct derives n/d as a percentage with a zero default.
func pct(n, d frame.Num) frame.Num {
	return frame.SafeDivide(n, d, 0).Scale(100)
}

// excess returns max(a − b, 0); null if either side is null.
func excess(a, b frame.Num) frame.Num {
	if !a.Valid || !b.Valid {
		return frame.Null
	}
	return frame.Some(a.V - b.V).ClipMin(0)
}

func flag(ok bool) frame.Num {
	if ok {
		return frame.Some(1)
	}
	return frame.Some(0)
}
