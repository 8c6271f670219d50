// Package report turns snapshot query results into the response shapes
// served over HTTP. Values are rounded here and nowhere else; the KPI
// tables keep full precision.
package report

import (
	"math"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/health"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/insight"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/query"
)

// UnknownID is reported when no node id was requested or found.
const UnknownID = "UNKNOWN"

// Factory is the factory KPI response.
type Factory struct {
	LineUtilization     float64 `json:"lineUtilization"`
	ProductionAdherence float64 `json:"productionAdherence"`
	DefectRate          float64 `json:"defectRate"`
	WasteUnits          int     `json:"wasteUnits"`
	WasteSAR            float64 `json:"wasteSAR"`
}

// DC is the distribution-center KPI response.
type DC struct {
	DCID             string  `json:"dcId"`
	ServiceLevelPct  float64 `json:"serviceLevelPct"`
	WastePercent     float64 `json:"wastePercent"`
	AvgShelfLifeDays float64 `json:"avgShelfLifeDays"`
	Backorders       int     `json:"backorders"`
}

// DaysCover is the stock cover of one DC and SKU.
type DaysCover struct {
	DCID      string  `json:"dcId"`
	SKUID     string  `json:"skuId"`
	DaysCover float64 `json:"daysCover"`
}

// Store is the store KPI response.
type Store struct {
	StoreID             string  `json:"storeId"`
	OnShelfAvailability float64 `json:"onShelfAvailability"`
	StockoutIncidents   int     `json:"stockoutIncidents"`
	WasteUnits          int     `json:"wasteUnits"`
	WasteSAR            float64 `json:"wasteSAR"`
}

// FactoryKPIs averages the percentages and sums the waste of the selected
// rows. An empty result gives zeros.
func FactoryKPIs(res query.Result) Factory {
	if res.Empty() {
		return Factory{}
	}
	return Factory{
		LineUtilization:     Round(mean(res.Rows, kpi.MetricLineUtilization), 1),
		ProductionAdherence: Round(mean(res.Rows, kpi.MetricAdherence), 1),
		DefectRate:          Round(mean(res.Rows, kpi.MetricDefectRate), 2),
		WasteUnits:          int(sum(res.Rows, kpi.MetricWasteUnits)),
		WasteSAR:            Round(sum(res.Rows, kpi.MetricWasteSAR), 2),
	}
}

// DCKPIs summarizes the selected DC rows. dcID is echoed back; when empty
// the first row's DC is used.
func DCKPIs(res query.Result, dcID string, shelfLifeDays float64) DC {
	out := DC{DCID: nodeID(res, kpi.ColDC, dcID), AvgShelfLifeDays: shelfLifeDays}
	if res.Empty() {
		return out
	}
	out.ServiceLevelPct = Round(mean(res.Rows, kpi.MetricServiceLevel), 1)
	out.WastePercent = Round(mean(res.Rows, kpi.MetricWastePct), 1)
	out.Backorders = int(sum(res.Rows, kpi.MetricBackorders))
	return out
}

// DaysCovers lists the days of cover of every DC and SKU pair matching the
// optional filters, read from the SKU-level rows.
func DaysCovers(t *kpi.Table, dcID, skuID string) []DaysCover {
	out := []DaysCover{}
	for _, row := range t.ByLevel(kpi.DCSKU) {
		dc, sku := row.Dims[kpi.ColDC], row.Dims[kpi.ColSKU]
		if (dcID != "" && dc != dcID) || (skuID != "" && sku != skuID) {
			continue
		}
		cover := row.Metric(kpi.MetricDaysCover)
		if !cover.Valid {
			continue
		}
		out = append(out, DaysCover{DCID: orUnknown(dc), SKUID: orUnknown(sku), DaysCover: Round(cover.V, 2)})
	}
	return out
}

// StoreKPIs summarizes the selected store rows.
func StoreKPIs(res query.Result, storeID string) Store {
	out := Store{StoreID: nodeID(res, kpi.ColStore, storeID)}
	if res.Empty() {
		return out
	}
	out.OnShelfAvailability = Round(mean(res.Rows, kpi.MetricAvailability), 1)
	out.StockoutIncidents = int(sum(res.Rows, kpi.MetricStockouts))
	out.WasteUnits = int(sum(res.Rows, kpi.MetricWasteUnits))
	out.WasteSAR = Round(sum(res.Rows, kpi.MetricWasteSAR), 2)
	return out
}

// NodeHealth rounds the health metrics to one decimal.
func NodeHealth(records []health.Record) []health.Record {
	out := make([]health.Record, len(records))
	for i, r := range records {
		r.ServiceLevel = Round(r.ServiceLevel, 1)
		r.WastePct = Round(r.WastePct, 1)
		r.MAPE = Round(r.MAPE, 1)
		out[i] = r
	}
	return out
}

// GlobalKPIs rounds percentages to one decimal and money to two.
func GlobalKPIs(g insight.Global) insight.Global {
	g.ForecastAccuracy = Round(g.ForecastAccuracy, 1)
	g.ServiceLevel = Round(g.ServiceLevel, 1)
	g.OnShelfAvailability = Round(g.OnShelfAvailability, 1)
	g.WasteCost = Round(g.WasteCost, 2)
	g.NetMargin = Round(g.NetMargin, 2)
	g.AIUplift = Round(g.AIUplift, 2)
	g.Revenue = Round(g.Revenue, 2)
	return g
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func mean(rows []kpi.Row, col string) float64 {
	values := make([]frame.Num, len(rows))
	for i, r := range rows {
		values[i] = r.Metric(col)
	}
	return frame.Mean(values).Or(0)
}

func sum(rows []kpi.Row, col string) float64 {
	values := make([]frame.Num, len(rows))
	for i, r := range rows {
		values[i] = r.Metric(col)
	}
	return frame.Sum(values).Or(0)
}

func nodeID(res query.Result, col, requested string) string {
	if requested != "" {
		return requested
	}
	if len(res.Rows) > 0 {
		return orUnknown(res.Rows[0].Dims[col])
	}
	return UnknownID
}

func orUnknown(id string) string {
	if id == "" {
		return UnknownID
	}
	return id
}
