package quality

import (
	"log/slog"
	"strings"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
)

// QuantityKeywords mark columns that can never be negative.
var QuantityKeywords = []string{"qty", "units", "stock", "demand", "capacity"}

// Report summarizes the quality of one fact table before KPIs are derived.
type Report struct {
	Name         string         `json:"name"`
	OriginalRows int            `json:"original_rows"`
	FinalRows    int            `json:"final_rows"`
	RowsDropped  int            `json:"rows_dropped"`
	Missing      map[string]int `json:"missing_values"`
	Invalid      map[string]int `json:"invalid_values"`
	Score        float64        `json:"data_quality_score"`
}

// Clone deep-copies the report.
func (r Report) Clone() Report {
	out := r
	out.Missing = make(map[string]int, len(r.Missing))
	for k, v := range r.Missing {
		out.Missing[k] = v
	}
	out.Invalid = make(map[string]int, len(r.Invalid))
	for k, v := range r.Invalid {
		out.Invalid[k] = v
	}
	return out
}

// MissingCells totals the missing-value counts.
func (r Report) MissingCells() int {
	var n int
	for _, v := range r.Missing {
		n += v
	}
	return n
}

// InvalidCells totals the clipped-value counts.
func (r Report) InvalidCells() int {
	var n int
	for _, v := range r.Invalid {
		n += v
	}
	return n
}

// Validator cleans fact tables.
type Validator struct {
	keywords []string
}

// NewValidator creates a validator using QuantityKeywords.
func NewValidator() *Validator {
	return &Validator{keywords: QuantityKeywords}
}

// IsQuantityColumn reports whether a column name matches a quantity keyword.
func (v *Validator) IsQuantityColumn(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range v.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Validate returns a cleaned copy of f and its quality report. Negative
// values in quantity columns are clipped to zero; non-numeric text in a
// quantity column becomes a null cell and counts as missing; missing
// values are counted but left missing. f itself is not modified.
func (v *Validator) Validate(f *frame.Frame) (*frame.Frame, Report) {
	clean := f.Clone()
	columns := clean.Columns()

	report := Report{
		Name:         f.Name,
		OriginalRows: f.Len(),
		Missing:      make(map[string]int),
		Invalid:      make(map[string]int),
		Score:        1.0,
	}

	for _, col := range columns {
		if n := clean.MissingCount(col); n > 0 {
			report.Missing[col] = n
		}
	}

	for _, col := range columns {
		if !v.IsQuantityColumn(col) {
			continue
		}
		var clipped, malformed int
		for i := 0; i < clean.Len(); i++ {
			c := clean.Cell(i, col)
			switch {
			case !c.Num.Valid && !c.Missing():
				clean.Set(i, col, frame.Null)
				malformed++
			case c.Num.Valid && c.Num.V < 0:
				clean.Set(i, col, frame.Some(0))
				clipped++
			}
		}
		if malformed > 0 {
			report.Missing[col] += malformed
			slog.Warn("nulled non-numeric values", "table", f.Name, "column", col, "count", malformed)
		}
		if clipped > 0 {
			report.Invalid[col] = clipped
			slog.Warn("clipped negative values", "table", f.Name, "column", col, "count", clipped)
		}
	}

	totalCells := clean.Len() * len(columns)
	bad := report.MissingCells() + report.InvalidCells()
	report.Score = 1.0 - float64(bad)/float64(max(totalCells, 1))

	report.FinalRows = clean.Len()
	report.RowsDropped = report.OriginalRows - report.FinalRows
	return clean, report
}

// Validate cleans f with the default keyword set.
func Validate(f *frame.Frame) (*frame.Frame, Report) {
	return NewValidator().Validate(f)
}
