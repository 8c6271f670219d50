package kpi

// Raw source columns read by the aggregators.
const (
	ColTimestamp = "timestamp"

	ColProdActual    = "prod_actual_qty"
	ColProdPlan      = "prod_plan_qty"
	ColDefects       = "defect_qty"
	ColScrap         = "scrap_qty"
	ColBatchCapacity = "batch_size_units"
	ColReleasedToDC  = "released_to_dc_qty"

	ColOpeningStock    = "opening_stock_units"
	ColPredictedDemand = "predicted_demand"

	ColOnShelf  = "on_shelf_units"
	ColCapacity = "planogram_capacity_units"
	ColSKUName  = "sku_name"
)

// Derived metric columns.
const (
	MetricLineUtilization = "line_utilization_pct"
	MetricAdherence       = "production_adherence_pct"
	MetricDefectRate      = "defect_rate_pct"
	MetricWasteUnits      = "waste_units"
	MetricWasteSAR        = "waste_sar"
	MetricServiceLevel    = "service_level_pct"
	MetricWastePct        = "waste_pct"
	MetricBackorders      = "backorder_units"
	MetricDaysCover       = "days_cover"
	MetricAvailability    = "on_shelf_availability_pct"
	MetricStockouts       = "stockout_incidents"
)
