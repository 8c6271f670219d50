package health

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/query"
)

// Status is the health tier of a node.
type Status string

const (
	Good    Status = "good"
	Warning Status = "warning"
	Danger  Status = "danger"
)

// Classification thresholds, shared by every domain.
const (
	GoodServiceLevel    = 95.0
	GoodWastePct        = 2.0
	GoodMAPE            = 5.0
	WarningServiceLevel = 90.0
	WarningWastePct     = 4.0
	WarningMAPE         = 7.0
)

// Alert thresholds, shared by every domain.
const (
	AlertServiceLevel = 90.0
	AlertWastePct     = 5.0
	AlertMAPE         = 10.0
)

// Record is the health of one node.
type Record struct {
	NodeID       string  `json:"node_id"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	ServiceLevel float64 `json:"service_level"`
	WastePct     float64 `json:"waste_pct"`
	MAPE         float64 `json:"mape"`
	Alerts       int     `json:"alerts"`
	Status       Status  `json:"status"`
}

// Classify returns good when every metric is within the good band,
// warning when every metric is within the warning band, danger otherwise.
func Classify(serviceLevel, wastePct, mape float64) Status {
	switch {
	case serviceLevel >= GoodServiceLevel && wastePct <= GoodWastePct && mape <= GoodMAPE:
		return Good
	case serviceLevel >= WarningServiceLevel && wastePct <= WarningWastePct && mape <= WarningMAPE:
		return Warning
	}
	return Danger
}

// Alerts counts violated thresholds on top of a base count.
func Alerts(base int, serviceLevel, wastePct, mape float64) int {
	n := base
	if serviceLevel < AlertServiceLevel {
		n++
	}
	if wastePct > AlertWastePct {
		n++
	}
	if mape > AlertMAPE {
		n++
	}
	return n
}

// Evaluate fills the alert count and status of r.
func Evaluate(r Record, baseAlerts int) Record {
	r.Alerts = Alerts(baseAlerts, r.ServiceLevel, r.WastePct, r.MAPE)
	r.Status = Classify(r.ServiceLevel, r.WastePct, r.MAPE)
	return r
}

var prefixes = map[kpi.Domain]string{
	kpi.Factory: "F_",
	kpi.DC:      "DC_",
	kpi.Store:   "ST_",
}

// NodeName turns a node id such as "F_RIYADH_NORTH" into "Riyadh North Factory".
func NodeName(d kpi.Domain, id string) string {
	base := strings.TrimPrefix(id, prefixes[d])
	base = strings.ReplaceAll(base, "_", " ")
	base = cases.Title(language.Und).String(strings.ToLower(base))
	return strings.TrimSpace(base + " " + string(d))
}

// Compute classifies every node of every domain from its node-level KPI
// row and the raw rows of that node. DC and store MAPE read the next-hour
// rows only.
func Compute(unified *kpi.Table, raw map[kpi.Domain]*frame.Frame) []Record {
	var out []Record
	for _, d := range kpi.Domains {
		res := query.Select(unified, d, query.Filter{})
		if res.Level != kpi.NodeLevel(d) {
			continue
		}
		src := raw[d]
		if d != kpi.Factory {
			src = frame.AtHorizon(src, frame.NextHour)
		}
		for _, row := range res.Rows {
			id := row.Dims[d.NodeColumn()]
			out = append(out, nodeRecord(d, id, row, src))
		}
	}
	return out
}

func nodeRecord(d kpi.Domain, id string, row kpi.Row, raw *frame.Frame) Record {
	r := Record{NodeID: id, Name: NodeName(d, id), Type: string(d)}
	var base int

	switch d {
	case kpi.Factory:
		r.ServiceLevel = row.Metric(kpi.MetricAdherence).Or(0)
		r.WastePct = frame.SafeDivide(row.Metric(kpi.MetricWasteUnits), row.Metric(kpi.ColProdActual), 0).Scale(100).Or(0)
		r.MAPE = nodeMAPE(raw, d.NodeColumn(), id, kpi.ColProdActual, kpi.ColProdPlan, false)
	case kpi.DC:
		r.ServiceLevel = row.Metric(kpi.MetricServiceLevel).Or(0)
		r.WastePct = row.Metric(kpi.MetricWastePct).Or(0)
		r.MAPE = nodeMAPE(raw, d.NodeColumn(), id, kpi.ColOpeningStock, kpi.ColPredictedDemand, false)
	case kpi.Store:
		r.ServiceLevel = row.Metric(kpi.MetricAvailability).Or(0)
		r.WastePct = frame.SafeDivide(row.Metric(kpi.MetricWasteUnits), row.Metric(kpi.ColCapacity), 0).Scale(100).Or(0)
		r.MAPE = nodeMAPE(raw, d.NodeColumn(), id, kpi.ColOnShelf, kpi.ColPredictedDemand, true)
		base = int(row.Metric(kpi.MetricStockouts).Or(0))
	}
	return Evaluate(r, base)
}

// nodeMAPE compares the node's summed actual and forecast columns:
// |Σactual − Σforecast| / Σforecast × 100, or 0 without a forecast.
func nodeMAPE(f *frame.Frame, nodeCol, id, actualCol, forecastCol string, clip bool) float64 {
	if ok, _ := f.HasAll(nodeCol, actualCol, forecastCol); !ok {
		return 0
	}
	actual, forecast := frame.Null, frame.Null
	for i := 0; i < f.Len(); i++ {
		if f.String(i, nodeCol) != id {
			continue
		}
		a := f.Float(i, actualCol)
		if clip {
			a = a.ClipMin(0)
		}
		actual = actual.Add(a)
		forecast = forecast.Add(f.Float(i, forecastCol))
	}
	if !forecast.Valid || forecast.V <= 0 {
		return 0
	}
	return math.Abs(actual.Or(0)-forecast.V) / forecast.V * 100
}
