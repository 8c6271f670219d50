package aggregate

import (
	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
)

var dcSums = []string{kpi.ColOpeningStock, kpi.ColPredictedDemand}

// DCMetrics are the metric columns of the DC KPI table. days_cover is
// only emitted below the dc level.
var DCMetrics = append(append([]string(nil), dcSums...),
	kpi.MetricServiceLevel,
	kpi.MetricWastePct,
	kpi.MetricBackorders,
	kpi.MetricDaysCover,
)

// DC aggregates distribution-center stock against next-hour demand.
type DC struct{}

// NewDC creates a DC aggregator.
func NewDC() *DC {
	return &DC{}
}

func (a *DC) Domain() kpi.Domain { return kpi.DC }

func (a *DC) Required() []string { return dcSums }

func (a *DC) Aggregate(f *frame.Frame) (*kpi.Table, error) {
	if ok, missing := f.HasAll(a.Required()...); !ok {
		return nil, &MissingColumnError{Domain: kpi.DC, Columns: missing}
	}
	f = frame.AtHorizon(f, frame.NextHour)

	return run(a, f, dcSums, DCMetrics, func(level kpi.Level, _ *group, s map[string]frame.Num) map[string]frame.Num {
		stock := s[kpi.ColOpeningStock]
		demand := s[kpi.ColPredictedDemand]

		backorders := frame.Some(0)
		if stock.IsZero() {
			backorders = demand
		}

		m := map[string]frame.Num{
			kpi.MetricServiceLevel: pct(frame.Min(stock, demand), demand),
			kpi.MetricWastePct:     pct(excess(stock, demand), stock),
			kpi.MetricBackorders:   backorders,
		}
		if level != kpi.DCNode {
			m[kpi.MetricDaysCover] = frame.SafeDivide(stock, demand, 0)
		}
		return m
	})
}
