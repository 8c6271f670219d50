// Package export writes the unified KPI table to JSON or CSV and restores
// JSON exports into a snapshot store.
//
// # Formats
//
// JSON carries export metadata plus the table itself (domains, column
// schema and rows, nulls as JSON null) and can be re-imported.
//
// CSV is one header row (kpi_level, the dimension columns, then the metric
// columns) followed by one line per KPI row. Absent dimensions and null
// metrics are empty cells. CSV is export-only.
//
// # HTTP API
//
// Export endpoint: GET /v1/export
// Query parameters:
//   - format: "json" or "csv" (default: json)
//   - domain: Factory, DC or Store (optional)
//   - level: kpi_level, repeatable (optional)
//
// Example:
//
//	curl "http://localhost:8080/v1/export?format=csv&domain=dc" -o dc.csv
//
// Import endpoint: POST /v1/import (Content-Type: application/json).
// The document is saved as one snapshot record; rows with an unknown level
// or a missing key dimension are skipped and listed in the response.
package export
