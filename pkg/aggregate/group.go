package aggregate

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/cast"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
)

// group is the set of raw rows sharing one combination of key values.
type group struct {
	values []string
	rows   []int
}

// sum adds a column over the group's rows.
func (g *group) sum(f *frame.Frame, col string) frame.Num {
	total := frame.Null
	for _, i := range g.rows {
		total = total.Add(f.Float(i, col))
	}
	return total
}

// count returns how many of the group's rows satisfy pred.
func (g *group) count(pred func(i int) bool) int {
	var n int
	for _, i := range g.rows {
		if pred(i) {
			n++
		}
	}
	return n
}

// groupBy buckets rows by the raw values of keys. Rows with a missing key
// value belong to no group. Groups come back ordered by key values.
func groupBy(f *frame.Frame, keys []string) []*group {
	buckets := make(map[uint64][]*group)
	var groups []*group

	values := make([]string, len(keys))
rows:
	for i := 0; i < f.Len(); i++ {
		for j, k := range keys {
			c := f.Cell(i, k)
			if c.Missing() {
				continue rows
			}
			values[j] = c.Raw
		}

		h := groupKey(values)
		var g *group
		for _, cand := range buckets[h] {
			if equal(cand.values, values) {
				g = cand
				break
			}
		}
		if g == nil {
			g = &group{values: append([]string(nil), values...)}
			buckets[h] = append(buckets[h], g)
			groups = append(groups, g)
		}
		g.rows = append(g.rows, i)
	}

	sort.SliceStable(groups, func(a, b int) bool {
		return lessValues(groups[a].values, groups[b].values)
	})
	return groups
}

// groupKey hashes key values into a bucket id.
func groupKey(values []string) uint64 {
	d := xxhash.New()
	for _, v := range values {
		_, _ = d.WriteString(v)
		_, _ = d.WriteString("\x00")
	}
	return d.Sum64()
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// lessValues orders key tuples, comparing numerically where both sides
// are numbers so hour 9 sorts before hour 10.
func lessValues(a, b []string) bool {
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		x, errX := cast.ToFloat64E(a[i])
		y, errY := cast.ToFloat64E(b[i])
		if errX == nil && errY == nil && x != y {
			return x < y
		}
		return strings.Compare(a[i], b[i]) < 0
	}
	return false
}
