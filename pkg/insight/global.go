package insight

import (
	"errors"
	"fmt"
	"math"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/aggregate"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/query"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/source"
)

// Nominal prices in SAR per unit.
const (
	DefaultUnitCost  = 2.0
	DefaultUnitPrice = 5.0
)

// Uplift heuristic: a manual plan is assumed to waste 15% more, each
// service-level point is worth 50 and each missing point costs 1000.
const (
	ManualWasteFactor   = 1.15
	ServiceBenefitPerPt = 50.0
	ServicePenaltyPerPt = 1000.0
)

const (
	fullServiceLevel = 100.0
	percent          = 100.0
)

// ErrNoData is returned for an indicator whose inputs are absent.
var ErrNoData = errors.New("no data")

// Pricing values units in SAR. UnitCost applies to waste of every domain.
// WasteValue is the nominal figure behind the per-row waste_sar metric.
type Pricing struct {
	UnitCost   float64 `json:"unit_cost" mapstructure:"unit_cost"`
	UnitPrice  float64 `json:"unit_price" mapstructure:"unit_price"`
	WasteValue float64 `json:"waste_value" mapstructure:"waste_value"`
}

// DefaultPricing returns the nominal bakery prices.
func DefaultPricing() Pricing {
	return Pricing{UnitCost: DefaultUnitCost, UnitPrice: DefaultUnitPrice, WasteValue: aggregate.NominalWasteCost}
}

// Inputs are read-only; Compute never modifies them.
type Inputs struct {
	Unified *kpi.Table
	Raw     map[kpi.Domain]*frame.Frame
	Pricing Pricing
}

// Global holds the cross-domain indicators, unrounded.
type Global struct {
	ForecastAccuracy    float64 `json:"forecast_accuracy"`
	WasteCost           float64 `json:"waste_cost"`
	ServiceLevel        float64 `json:"service_level"`
	OnShelfAvailability float64 `json:"on_shelf_availability"`
	NetMargin           float64 `json:"net_margin"`
	AIUplift            float64 `json:"ai_uplift"`
	Revenue             float64 `json:"revenue"`
	Window              Window  `json:"-"`
}

// Compute derives every indicator. An indicator that cannot be computed
// is left at zero and its error is returned; the others are unaffected.
func Compute(in Inputs) (Global, []error) {
	var g Global
	var errs []error
	collect := func(name string, v float64, err error) float64 {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return 0
		}
		return v
	}

	g.Window = ObservationWindow(in.Raw)

	v, err := ForecastAccuracy(in)
	g.ForecastAccuracy = collect("forecast_accuracy", v, err)

	v, err = WasteCost(in)
	g.WasteCost = collect("waste_cost", v, err)

	v, err = ServiceLevel(in)
	g.ServiceLevel = collect("service_level", v, err)

	v, err = OnShelfAvailability(in)
	g.OnShelfAvailability = collect("on_shelf_availability", v, err)

	v, err = Revenue(in, g.Window)
	g.Revenue = collect("revenue", v, err)

	g.NetMargin = g.Revenue - g.Window.Daily(g.WasteCost)
	g.AIUplift = Uplift(g.WasteCost, g.ServiceLevel)
	return g, errs
}

// ForecastAccuracy is 100 − MAPE of actual against forecast totals, floored
// at zero. Actuals are factory production plus releases to DCs; forecasts
// are the factory plan plus next-hour DC and store demand. Without any
// forecast it falls back to mean factory adherence.
func ForecastAccuracy(in Inputs) (float64, error) {
	var actual, forecast float64

	if f := in.Raw[kpi.Factory]; f.Has(kpi.ColProdActual) && f.Has(kpi.ColProdPlan) {
		actual += f.SumColumn(kpi.ColProdActual).Or(0)
		forecast += f.SumColumn(kpi.ColProdPlan).Or(0)
	}
	if f := in.Raw[kpi.Factory]; f.Has(kpi.ColReleasedToDC) {
		actual += f.SumColumn(kpi.ColReleasedToDC).Or(0)
	}
	for _, d := range []kpi.Domain{kpi.DC, kpi.Store} {
		if f := nextHour(in.Raw, d); f.Has(kpi.ColPredictedDemand) {
			forecast += f.SumColumn(kpi.ColPredictedDemand).Or(0)
		}
	}

	if forecast > 0 {
		mape := math.Abs(actual-forecast) / forecast * percent
		return math.Max(0, percent-mape), nil
	}

	adherence := nodeMean(in.Unified, kpi.Factory, kpi.MetricAdherence)
	if !adherence.Valid {
		return 0, ErrNoData
	}
	return adherence.V, nil
}

// WasteCost values the waste of all three domains at UnitCost. DC waste is
// estimated from its next-hour stock and the mean node waste percentage.
func WasteCost(in Inputs) (float64, error) {
	units := frame.Null

	units = units.Add(nodeSum(in.Unified, kpi.Factory, kpi.MetricWasteUnits))

	wastePct := nodeMean(in.Unified, kpi.DC, kpi.MetricWastePct)
	if dc := nextHour(in.Raw, kpi.DC); wastePct.Valid && dc.Has(kpi.ColOpeningStock) {
		stock := frame.Null
		for i := 0; i < dc.Len(); i++ {
			stock = stock.Add(dc.Float(i, kpi.ColOpeningStock).ClipMin(0))
		}
		units = units.Add(stock.Scale(wastePct.V / percent))
	}

	units = units.Add(nodeSum(in.Unified, kpi.Store, kpi.MetricWasteUnits))

	if !units.Valid {
		return 0, ErrNoData
	}
	return units.V * in.Pricing.UnitCost, nil
}

// ServiceLevel is the unweighted mean of the DC service level and the store
// availability, over whichever of the two exist.
func ServiceLevel(in Inputs) (float64, error) {
	mean := frame.Mean([]frame.Num{
		nodeMean(in.Unified, kpi.DC, kpi.MetricServiceLevel),
		nodeMean(in.Unified, kpi.Store, kpi.MetricAvailability),
	})
	if !mean.Valid {
		return 0, ErrNoData
	}
	return mean.V, nil
}

// OnShelfAvailability is total clipped shelf units over total planogram
// capacity across stores at the next-hour horizon.
func OnShelfAvailability(in Inputs) (float64, error) {
	f := nextHour(in.Raw, kpi.Store)
	if ok, _ := f.HasAll(kpi.ColOnShelf, kpi.ColCapacity); !ok {
		return 0, fmt.Errorf("%s: %w", source.TableName(kpi.Store), ErrNoData)
	}

	onShelf := frame.Null
	for i := 0; i < f.Len(); i++ {
		onShelf = onShelf.Add(f.Float(i, kpi.ColOnShelf).ClipMin(0))
	}
	return frame.SafeDivide(onShelf, f.SumColumn(kpi.ColCapacity), 0).Scale(percent).Or(0), nil
}

// Revenue estimates daily sales value: the mean next-hour demand of each
// (store, SKU) pair, scaled to a day and priced at UnitPrice.
func Revenue(in Inputs, w Window) (float64, error) {
	f := nextHour(in.Raw, kpi.Store)
	if !f.Has(kpi.ColPredictedDemand) {
		return 0, fmt.Errorf("%s: %w", source.TableName(kpi.Store), ErrNoData)
	}

	type acc struct {
		sum   float64
		count int
	}
	pairs := make(map[[2]string]*acc)
	var order [][2]string
	for i := 0; i < f.Len(); i++ {
		demand := f.Float(i, kpi.ColPredictedDemand)
		if !demand.Valid {
			continue
		}
		key := [2]string{f.String(i, kpi.ColStore), f.String(i, kpi.ColSKU)}
		a, ok := pairs[key]
		if !ok {
			a = &acc{}
			pairs[key] = a
			order = append(order, key)
		}
		a.sum += demand.V
		a.count++
	}

	var hourly float64
	for _, key := range order {
		a := pairs[key]
		hourly += a.sum / float64(a.count)
	}
	return w.DailyFromHourly(hourly) * in.Pricing.UnitPrice, nil
}

// Uplift compares the computed plan with a manual baseline that wastes more
// and pays a penalty per missing service-level point. Never negative.
func Uplift(wasteCost, serviceLevel float64) float64 {
	manualWaste := wasteCost * ManualWasteFactor
	uplift := (manualWaste - wasteCost) +
		serviceLevel*ServiceBenefitPerPt -
		(fullServiceLevel-serviceLevel)*ServicePenaltyPerPt
	return math.Max(0, uplift)
}

// nextHour returns the next-hour slice of a raw table, or nil.
func nextHour(raw map[kpi.Domain]*frame.Frame, d kpi.Domain) *frame.Frame {
	f, ok := raw[d]
	if !ok || f == nil {
		return nil
	}
	return frame.AtHorizon(f, frame.NextHour)
}

func nodeMetrics(t *kpi.Table, d kpi.Domain, col string) []frame.Num {
	res := query.Select(t, d, query.Filter{})
	out := make([]frame.Num, 0, len(res.Rows))
	for _, r := range res.Rows {
		out = append(out, r.Metric(col))
	}
	return out
}

func nodeMean(t *kpi.Table, d kpi.Domain, col string) frame.Num {
	return frame.Mean(nodeMetrics(t, d, col))
}

func nodeSum(t *kpi.Table, d kpi.Domain, col string) frame.Num {
	return frame.Sum(nodeMetrics(t, d, col))
}
