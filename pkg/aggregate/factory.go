package aggregate

import (
	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
)

var factorySums = []string{
	kpi.ColProdActual,
	kpi.ColProdPlan,
	kpi.ColDefects,
	kpi.ColScrap,
	kpi.ColBatchCapacity,
}

// FactoryMetrics are the metric columns of the factory KPI table.
var FactoryMetrics = append(append([]string(nil), factorySums...),
	kpi.MetricLineUtilization,
	kpi.MetricAdherence,
	kpi.MetricDefectRate,
	kpi.MetricWasteUnits,
	kpi.MetricWasteSAR,
)

// Factory aggregates production events.
type Factory struct {
	WasteCost float64
}

// NewFactory creates a factory aggregator valuing waste at NominalWasteCost.
func NewFactory() *Factory {
	return &Factory{WasteCost: NominalWasteCost}
}

func (a *Factory) Domain() kpi.Domain { return kpi.Factory }

func (a *Factory) Required() []string { return factorySums }

func (a *Factory) Aggregate(f *frame.Frame) (*kpi.Table, error) {
	return run(a, f, factorySums, FactoryMetrics, func(_ kpi.Level, _ *group, s map[string]frame.Num) map[string]frame.Num {
		actual := s[kpi.ColProdActual]
		waste := s[kpi.ColScrap]
		return map[string]frame.Num{
			kpi.MetricLineUtilization: pct(actual, s[kpi.ColBatchCapacity]),
			kpi.MetricAdherence:       pct(actual, s[kpi.ColProdPlan]),
			kpi.MetricDefectRate:      pct(s[kpi.ColDefects], actual),
			kpi.MetricWasteUnits:      waste,
			kpi.MetricWasteSAR:        waste.Scale(a.WasteCost),
		}
	})
}
