/*
Package aggregate turns cleaned fact tables into precomputed KPI rows.

# Levels

Every domain publishes the same metric family at several granularities,
from the most specific to one row per node:

	Factory  factory_line_date_hour → factory_line_date → factory_line → factory
	DC       dc_sku_date_hour → dc_sku → dc
	Store    store_sku_date_hour → store_sku → store

For each level the raw rows are grouped by the level's key columns and the
quantity columns are summed. Ratios are then derived from the sums, never
averaged from finer rows, so a node row always agrees with the raw data it
covers:

	sum(waste_units at factory_line_date_hour, factory_id=F1)
	    == waste_units at factory, factory_id=F1

# Forecast Horizons

DC and Store tables carry one row per forecast offset (1h to 168h ahead).
Summing across offsets counts the same hour many times, so both
aggregators keep only forecast_hour_offset == 1 before grouping.

# Ratios

All ratios go through frame.SafeDivide with a default of 0:

	line_utilization_pct     = prod_actual_qty / batch_size_units × 100
	production_adherence_pct = prod_actual_qty / prod_plan_qty × 100
	defect_rate_pct          = defect_qty / prod_actual_qty × 100
	service_level_pct        = min(stock, demand) / demand × 100
	waste_pct                = max(stock − demand, 0) / stock × 100
	on_shelf_availability_pct = on_shelf / capacity × 100

# Missing Columns

An aggregator that lacks a required column returns a *MissingColumnError.
The caller treats the domain as having no KPIs; the rest of the build is
unaffected. Levels whose key columns are absent are skipped, and rows
with a missing key value are left out of that level's groups.
*/
package aggregate
