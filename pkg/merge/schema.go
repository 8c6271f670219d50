package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
)

// DupSuffix marks the right-hand value of a shared column when it differs
// from the left-hand one on a matched row.
const DupSuffix = "_dup"

// JoinSpec declares how two domains' KPI tables combine.
type JoinSpec struct {
	// Keys are the dimension columns rows must agree on to be matched.
	// An empty set concatenates the tables side by side.
	Keys []string
	// Shared are metric columns both domains publish into one column.
	Shared []string
}

func (s JoinSpec) union(o JoinSpec) JoinSpec {
	return JoinSpec{Keys: unionStrings(s.Keys, o.Keys), Shared: unionStrings(s.Shared, o.Shared)}
}

type pair struct{ a, b kpi.Domain }

func newPair(a, b kpi.Domain) pair {
	if a > b {
		a, b = b, a
	}
	return pair{a, b}
}

// Schema holds the declared join of every domain pair.
type Schema struct {
	joins map[pair]JoinSpec
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{joins: make(map[pair]JoinSpec)}
}

// Declare sets the join of a domain pair. Order does not matter.
func (s *Schema) Declare(a, b kpi.Domain, spec JoinSpec) *Schema {
	s.joins[newPair(a, b)] = spec
	return s
}

// Spec returns the declared join of a pair.
func (s *Schema) Spec(a, b kpi.Domain) (JoinSpec, bool) {
	spec, ok := s.joins[newPair(a, b)]
	return spec, ok
}

// specFor combines the declared joins between every domain already in the
// accumulated table and the next domain.
func (s *Schema) specFor(acc []kpi.Domain, next kpi.Domain) JoinSpec {
	var out JoinSpec
	for _, d := range acc {
		if spec, ok := s.Spec(d, next); ok {
			out = out.union(spec)
		}
	}
	return out
}

// DefaultSchema is the join of the factory, DC and store KPI tables.
// kpi_level is always a key, so rows of different domains never match.
func DefaultSchema() *Schema {
	return NewSchema().
		Declare(kpi.Factory, kpi.DC, JoinSpec{
			Keys: []string{kpi.ColLevel, kpi.ColDate, kpi.ColHour},
		}).
		Declare(kpi.Factory, kpi.Store, JoinSpec{
			Keys:   []string{kpi.ColLevel, kpi.ColDate, kpi.ColHour},
			Shared: []string{kpi.MetricWasteUnits, kpi.MetricWasteSAR},
		}).
		Declare(kpi.DC, kpi.Store, JoinSpec{
			Keys:   []string{kpi.ColLevel, kpi.ColSKU, kpi.ColDate, kpi.ColHour},
			Shared: []string{kpi.ColPredictedDemand},
		})
}

// SchemaError reports a join that does not fit the tables it is applied to.
type SchemaError struct {
	Left   []kpi.Domain
	Right  []kpi.Domain
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("merge %v with %v: column %q %s", e.Left, e.Right, e.Column, e.Reason)
}

// Validate checks a join against two tables: keys must be dimensions of
// both, shared columns metrics of both, and no other column may appear
// on both sides. kpi_level is exempt when there are no keys.
func Validate(left, right *kpi.Table, spec JoinSpec) error {
	fail := func(col, reason string) error {
		return &SchemaError{Left: left.Domains, Right: right.Domains, Column: col, Reason: reason}
	}

	for _, k := range spec.Keys {
		if !left.HasDim(k) || !right.HasDim(k) {
			return fail(k, "is a join key but not a dimension of both tables")
		}
	}
	for _, c := range spec.Shared {
		if !left.HasMetric(c) || !right.HasMetric(c) {
			return fail(c, "is shared but not a metric of both tables")
		}
	}

	declared := make(map[string]bool, len(spec.Keys)+len(spec.Shared))
	for _, c := range spec.Keys {
		declared[c] = true
	}
	for _, c := range spec.Shared {
		declared[c] = true
	}
	if len(spec.Keys) == 0 {
		declared[kpi.ColLevel] = true
	}

	leftCols := make(map[string]bool)
	for _, c := range left.Columns() {
		leftCols[c] = true
	}
	var undeclared []string
	for _, c := range right.Columns() {
		if leftCols[c] && !declared[c] {
			undeclared = append(undeclared, c)
		}
	}
	if len(undeclared) > 0 {
		sort.Strings(undeclared)
		return fail(strings.Join(undeclared, ","), "appears in both tables but is not declared")
	}
	return nil
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
