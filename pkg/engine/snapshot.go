package engine

import (
	"time"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/health"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/insight"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/quality"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/query"
)

// Snapshot is the result of one build. It is never modified after Build
// returns and may be shared by any number of readers; every accessor hands
// out copies.
type Snapshot struct {
	ID       string
	BuiltAt  time.Time
	BaseDir  string
	Pricing  insight.Pricing
	Warnings []string

	unified *kpi.Table
	raw     map[kpi.Domain]*frame.Frame
	reports []quality.Report
	rows    map[kpi.Domain]int
}

// Unified returns a copy of the unified KPI table.
func (s *Snapshot) Unified() *kpi.Table {
	return s.unified.Clone()
}

// Raw returns a copy of a domain's cleaned fact table, or nil.
func (s *Snapshot) Raw(d kpi.Domain) *frame.Frame {
	f, ok := s.raw[d]
	if !ok {
		return nil
	}
	return f.Clone()
}

// QualityReports returns copies of the per-table quality reports.
func (s *Snapshot) QualityReports() []quality.Report {
	out := make([]quality.Report, len(s.reports))
	for i, r := range s.reports {
		out[i] = r.Clone()
	}
	return out
}

// RowCounts returns the number of KPI rows each domain contributed.
func (s *Snapshot) RowCounts() map[kpi.Domain]int {
	out := make(map[kpi.Domain]int, len(s.rows))
	for d, n := range s.rows {
		out[d] = n
	}
	return out
}

// Len returns the number of rows in the unified table.
func (s *Snapshot) Len() int {
	return s.unified.Len()
}

// KPIs selects a domain's rows; see query.Select.
func (s *Snapshot) KPIs(d kpi.Domain, f query.Filter) query.Result {
	return query.Select(s.unified, d, f)
}

// FactoryKPIs filters by factory and line.
func (s *Snapshot) FactoryKPIs(factoryID, lineID string) query.Result {
	return s.KPIs(kpi.Factory, query.Filter{Node: factoryID, Sub: lineID})
}

// DCKPIs filters by DC and SKU.
func (s *Snapshot) DCKPIs(dcID, skuID string) query.Result {
	return s.KPIs(kpi.DC, query.Filter{Node: dcID, Sub: skuID})
}

// StoreKPIs filters by store and SKU.
func (s *Snapshot) StoreKPIs(storeID, skuID string) query.Result {
	return s.KPIs(kpi.Store, query.Filter{Node: storeID, Sub: skuID})
}

// GlobalKPIs computes the cross-domain indicators. The errors name the
// indicators that could not be computed and were left at zero.
func (s *Snapshot) GlobalKPIs() (insight.Global, []error) {
	return insight.Compute(insight.Inputs{
		Unified: s.unified,
		Raw:     s.raw,
		Pricing: s.Pricing,
	})
}

// NodeHealth classifies every node.
func (s *Snapshot) NodeHealth() []health.Record {
	return health.Compute(s.unified, s.raw)
}
