package query

import (
	"sort"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
)

// Filter narrows a domain's rows by node id and sub-entity id (line for
// factories, SKU for DCs and stores). Empty fields do not filter.
type Filter struct {
	Node string
	Sub  string
}

// Columns maps the filter's set fields to dimension columns of d.
func (f Filter) Columns(d kpi.Domain) map[string]string {
	out := make(map[string]string, 2)
	if f.Node != "" {
		out[d.NodeColumn()] = f.Node
	}
	if f.Sub != "" {
		out[d.SubColumn()] = f.Sub
	}
	return out
}

// Result is the selected level and its matching rows.
type Result struct {
	Domain kpi.Domain
	Level  kpi.Level
	Rows   []kpi.Row
}

// Empty reports whether no level matched.
func (r Result) Empty() bool {
	return len(r.Rows) == 0
}

// Preference lists the levels Select tries, in order: the domain's levels
// whose keys include every filtered column, fewest keys first. With no
// filters the node level leads; with node and sub-entity filters the
// node+sub level leads, ahead of node+sub+date+hour.
func Preference(d kpi.Domain, f Filter) []kpi.Level {
	cols := f.Columns(d)
	filtered := make([]string, 0, len(cols))
	for c := range cols {
		filtered = append(filtered, c)
	}

	var out []kpi.Level
	for _, level := range kpi.Levels(d) {
		if level.Covers(filtered) {
			out = append(out, level)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Keys()) < len(out[j].Keys())
	})
	return out
}

// Select returns deep copies of the rows of the first preferred level with
// a non-empty filtered result, ordered by dimension values. A table with
// no matching rows yields an empty Result.
func Select(t *kpi.Table, d kpi.Domain, f Filter) Result {
	cols := f.Columns(d)
	for _, level := range Preference(d, f) {
		var rows []kpi.Row
		for _, r := range t.ByLevel(level) {
			if matches(r, cols) {
				rows = append(rows, r)
			}
		}
		if len(rows) > 0 {
			kpi.SortRows(rows)
			return Result{Domain: d, Level: level, Rows: rows}
		}
	}
	return Result{Domain: d}
}

func matches(r kpi.Row, cols map[string]string) bool {
	for col, want := range cols {
		if got, ok := r.Dim(col); !ok || got != want {
			return false
		}
	}
	return true
}
