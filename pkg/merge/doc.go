// Package merge unifies per-domain KPI tables into the unified table.
//
// Which columns two domains join on is declared up front in a Schema and
// checked against the tables before any row is combined, so two domains
// that happen to share a column name never join on it by accident.
package merge
