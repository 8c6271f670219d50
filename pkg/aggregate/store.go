package aggregate

import (
	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
)

var storeRequired = []string{kpi.ColOnShelf, kpi.ColCapacity}

// StoreMetrics are the metric columns of the store KPI table.
// predicted_demand is only filled when the source carries it.
var StoreMetrics = []string{
	kpi.ColOnShelf,
	kpi.ColCapacity,
	kpi.ColPredictedDemand,
	kpi.MetricAvailability,
	kpi.MetricStockouts,
	kpi.MetricWasteUnits,
	kpi.MetricWasteSAR,
}

// Store aggregates shelf levels against planogram capacity.
type Store struct {
	WasteCost float64
}

// NewStore creates a store aggregator valuing waste at NominalWasteCost.
func NewStore() *Store {
	return &Store{WasteCost: NominalWasteCost}
}

func (a *Store) Domain() kpi.Domain { return kpi.Store }

func (a *Store) Required() []string { return storeRequired }

func (a *Store) Aggregate(f *frame.Frame) (*kpi.Table, error) {
	if ok, missing := f.HasAll(a.Required()...); !ok {
		return nil, &MissingColumnError{Domain: kpi.Store, Columns: missing}
	}
	f = frame.AtHorizon(f, frame.NextHour)
	ClipOnShelf(f)

	sums := storeRequired
	if f.Has(kpi.ColPredictedDemand) {
		sums = append(append([]string(nil), storeRequired...), kpi.ColPredictedDemand)
	}

	return run(a, f, sums, StoreMetrics, func(level kpi.Level, g *group, s map[string]frame.Num) map[string]frame.Num {
		onShelf := s[kpi.ColOnShelf]
		capacity := s[kpi.ColCapacity]

		// Surplus on one SKU never offsets a gap on another.
		waste := frame.Null
		for _, i := range g.rows {
			waste = waste.Add(excess(f.Float(i, kpi.ColOnShelf), f.Float(i, kpi.ColCapacity)))
		}

		var stockouts frame.Num
		if level == kpi.StoreNode {
			stockouts = frame.Some(float64(g.count(func(i int) bool {
				n := f.Float(i, kpi.ColOnShelf)
				return n.Valid && n.V <= 0
			})))
		} else {
			stockouts = flag(onShelf.IsZero())
		}

		return map[string]frame.Num{
			kpi.MetricAvailability: pct(onShelf, capacity),
			kpi.MetricStockouts:    stockouts,
			kpi.MetricWasteUnits:   waste,
			kpi.MetricWasteSAR:     waste.Scale(a.WasteCost),
		}
	})
}

// ClipOnShelf clips on_shelf_units to non-negative values in place.
func ClipOnShelf(f *frame.Frame) {
	for i := 0; i < f.Len(); i++ {
		n := f.Float(i, kpi.ColOnShelf)
		if n.Valid && n.V < 0 {
			f.Set(i, kpi.ColOnShelf, frame.Some(0))
		}
	}
}
