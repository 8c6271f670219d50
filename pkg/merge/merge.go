package merge

import (
	"log/slog"

	"github.com/cespare/xxhash/v2"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
)

// ColLevelDup holds the right-hand row's level when tables are
// concatenated side by side.
const ColLevelDup = kpi.ColLevel + DupSuffix

// Merge unifies per-domain KPI tables into one table. Empty tables are
// skipped. No row of any input is dropped: unmatched rows carry nulls in
// the other domains' columns.
func Merge(tables []*kpi.Table, schema *Schema) (*kpi.Table, error) {
	var acc *kpi.Table
	for _, t := range tables {
		if t.Empty() {
			continue
		}
		if acc == nil {
			acc = t.Clone()
			continue
		}

		spec := schema.specFor(acc.Domains, t.Domains[0])
		if err := Validate(acc, t, spec); err != nil {
			return nil, err
		}

		before := acc.Len() + t.Len()
		if len(spec.Keys) == 0 {
			acc = concat(acc, t, spec)
		} else {
			acc = outerJoin(acc, t, spec)
		}
		slog.Debug("tables merged", "domains", acc.Domains, "rows", acc.Len(), "matched", before-acc.Len())
	}

	if acc == nil {
		return &kpi.Table{}, nil
	}
	return acc, nil
}

// outerJoin matches rows on spec.Keys. A null key matches a null key.
func outerJoin(left, right *kpi.Table, spec JoinSpec) *kpi.Table {
	out := schemaOf(left, right)

	index := make(map[uint64][]int, right.Len())
	for j, r := range right.Rows {
		h := joinKey(r, spec.Keys)
		index[h] = append(index[h], j)
	}

	matched := make([]bool, right.Len())
	for _, l := range left.Rows {
		var hit bool
		for _, j := range index[joinKey(l, spec.Keys)] {
			r := right.Rows[j]
			if !sameKeys(l, r, spec.Keys) {
				continue
			}
			hit = true
			matched[j] = true
			out.Rows = append(out.Rows, combine(l, r, spec.Shared, out))
		}
		if !hit {
			out.Rows = append(out.Rows, l.Clone())
		}
	}
	for j, r := range right.Rows {
		if !matched[j] {
			out.Rows = append(out.Rows, r.Clone())
		}
	}
	return out
}

// concat pairs row i of left with row i of right. The shorter side
// contributes nothing to the extra rows.
func concat(left, right *kpi.Table, spec JoinSpec) *kpi.Table {
	out := schemaOf(left, right)
	n := max(left.Len(), right.Len())
	for i := 0; i < n; i++ {
		switch {
		case i >= left.Len():
			out.Rows = append(out.Rows, right.Rows[i].Clone())
		case i >= right.Len():
			out.Rows = append(out.Rows, left.Rows[i].Clone())
		default:
			row := combine(left.Rows[i], right.Rows[i], spec.Shared, out)
			row.Dims[ColLevelDup] = string(right.Rows[i].Level)
			addColumn(&out.DimColumns, ColLevelDup)
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// combine merges r into a copy of l. Shared columns keep l's value; a
// differing r value is kept under the _dup column.
func combine(l, r kpi.Row, shared []string, out *kpi.Table) kpi.Row {
	row := l.Clone()
	for k, v := range r.Dims {
		if _, ok := row.Dims[k]; !ok {
			row.Dims[k] = v
		}
	}

	isShared := make(map[string]bool, len(shared))
	for _, c := range shared {
		isShared[c] = true
	}
	for k, v := range r.Metrics {
		cur, ok := row.Metrics[k]
		switch {
		case !ok:
			row.Metrics[k] = v
		case isShared[k] && cur != v:
			row.Metrics[k+DupSuffix] = v
			addColumn(&out.MetricColumns, k+DupSuffix)
		}
	}
	if row.Level == "" {
		row.Level = r.Level
	}
	return row
}

func schemaOf(left, right *kpi.Table) *kpi.Table {
	return &kpi.Table{
		Domains:       append(append([]kpi.Domain(nil), left.Domains...), right.Domains...),
		DimColumns:    unionStrings(left.DimColumns, right.DimColumns),
		MetricColumns: unionStrings(left.MetricColumns, right.MetricColumns),
	}
}

// joinKey hashes the key values of a row; absent values hash as null.
func joinKey(r kpi.Row, keys []string) uint64 {
	d := xxhash.New()
	for _, k := range keys {
		v, ok := r.Dim(k)
		if !ok || frame.IsNullToken(v) {
			_, _ = d.Write([]byte{0x01})
		} else {
			_, _ = d.WriteString(v)
		}
		_, _ = d.Write([]byte{0x00})
	}
	return d.Sum64()
}

func sameKeys(a, b kpi.Row, keys []string) bool {
	for _, k := range keys {
		av, aok := a.Dim(k)
		bv, bok := b.Dim(k)
		aNull := !aok || frame.IsNullToken(av)
		bNull := !bok || frame.IsNullToken(bv)
		if aNull != bNull || (!aNull && av != bv) {
			return false
		}
	}
	return true
}

func addColumn(cols *[]string, c string) {
	for _, x := range *cols {
		if x == c {
			return
		}
	}
	*cols = append(*cols, c)
}
