package kpi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
)

// Domain is one operational area that publishes KPIs.
type Domain string

const (
	Factory Domain = "Factory"
	DC      Domain = "DC"
	Store   Domain = "Store"
)

// Domains lists every domain in build order.
var Domains = []Domain{Factory, DC, Store}

// Dimension and tag columns shared by the unified table.
const (
	ColLevel   = "kpi_level"
	ColFactory = "factory_id"
	ColLine    = "line_id"
	ColDC      = "dc_id"
	ColStore   = "store_id"
	ColSKU     = "sku_id"
	ColDate    = "date"
	ColHour    = "hour"
)

// ParseDomain accepts a domain name in any case.
func ParseDomain(s string) (Domain, bool) {
	for _, d := range Domains {
		if strings.EqualFold(string(d), s) {
			return d, true
		}
	}
	return "", false
}

// NodeColumn returns the dimension that identifies a node of the domain.
func (d Domain) NodeColumn() string {
	switch d {
	case Factory:
		return ColFactory
	case DC:
		return ColDC
	case Store:
		return ColStore
	}
	return ""
}

// SubColumn returns the sub-entity dimension of the domain (line or SKU).
func (d Domain) SubColumn() string {
	if d == Factory {
		return ColLine
	}
	return ColSKU
}

// Level tags the granularity of a KPI row.
type Level string

// Factory levels, most specific first.
const (
	FactoryLineDateHour Level = "factory_line_date_hour"
	FactoryLineDate     Level = "factory_line_date"
	FactoryLine         Level = "factory_line"
	FactoryNode         Level = "factory"
)

// DC levels, most specific first.
const (
	DCSKUDateHour Level = "dc_sku_date_hour"
	DCSKU         Level = "dc_sku"
	DCNode        Level = "dc"
)

// Store levels, most specific first.
const (
	StoreSKUDateHour Level = "store_sku_date_hour"
	StoreSKU         Level = "store_sku"
	StoreNode        Level = "store"
)

type levelInfo struct {
	domain Domain
	keys   []string
}

var levels = map[Level]levelInfo{
	FactoryLineDateHour: {Factory, []string{ColFactory, ColLine, ColDate, ColHour}},
	FactoryLineDate:     {Factory, []string{ColFactory, ColLine, ColDate}},
	FactoryLine:         {Factory, []string{ColFactory, ColLine}},
	FactoryNode:         {Factory, []string{ColFactory}},

	DCSKUDateHour: {DC, []string{ColDC, ColSKU, ColDate, ColHour}},
	DCSKU:         {DC, []string{ColDC, ColSKU}},
	DCNode:        {DC, []string{ColDC}},

	StoreSKUDateHour: {Store, []string{ColStore, ColSKU, ColDate, ColHour}},
	StoreSKU:         {Store, []string{ColStore, ColSKU}},
	StoreNode:        {Store, []string{ColStore}},
}

var domainLevels = map[Domain][]Level{
	Factory: {FactoryLineDateHour, FactoryLineDate, FactoryLine, FactoryNode},
	DC:      {DCSKUDateHour, DCSKU, DCNode},
	Store:   {StoreSKUDateHour, StoreSKU, StoreNode},
}

// Levels returns the domain's levels ordered from most to least specific.
func Levels(d Domain) []Level {
	out := make([]Level, len(domainLevels[d]))
	copy(out, domainLevels[d])
	return out
}

// NodeLevel returns the least specific level of the domain: one row per node.
func NodeLevel(d Domain) Level {
	ls := domainLevels[d]
	if len(ls) == 0 {
		return ""
	}
	return ls[len(ls)-1]
}

// Domain returns the domain a level belongs to.
func (l Level) Domain() Domain {
	return levels[l].domain
}

// Keys returns the dimension columns a level groups by.
func (l Level) Keys() []string {
	k := levels[l].keys
	out := make([]string, len(k))
	copy(out, k)
	return out
}

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	_, ok := levels[l]
	return ok
}

// Covers reports whether the level groups by every one of cols.
func (l Level) Covers(cols []string) bool {
	keys := levels[l].keys
	for _, c := range cols {
		found := false
		for _, k := range keys {
			if k == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Row is one KPI record. Missing map entries are null.
type Row struct {
	Level   Level                `json:"kpi_level"`
	Dims    map[string]string    `json:"dims"`
	Metrics map[string]frame.Num `json:"metrics"`
}

// NewRow creates an empty row for a level.
func NewRow(level Level) Row {
	return Row{
		Level:   level,
		Dims:    make(map[string]string),
		Metrics: make(map[string]frame.Num),
	}
}

// Dim returns a dimension value and whether it is set.
func (r Row) Dim(col string) (string, bool) {
	if col == ColLevel {
		return string(r.Level), r.Level != ""
	}
	v, ok := r.Dims[col]
	return v, ok
}

// Metric returns a metric value; null when absent.
func (r Row) Metric(col string) frame.Num {
	return r.Metrics[col]
}

// Clone deep-copies the row.
func (r Row) Clone() Row {
	out := Row{
		Level:   r.Level,
		Dims:    make(map[string]string, len(r.Dims)),
		Metrics: make(map[string]frame.Num, len(r.Metrics)),
	}
	for k, v := range r.Dims {
		out.Dims[k] = v
	}
	for k, v := range r.Metrics {
		out.Metrics[k] = v
	}
	return out
}

// Key renders the level and sorted dimensions, e.g.
// "factory|factory_id=F1". Used for ordering and storage keys.
func (r Row) Key() string {
	var b strings.Builder
	b.WriteString(string(r.Level))
	keys := make([]string, 0, len(r.Dims))
	for k := range r.Dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(r.Dims[k])
	}
	return b.String()
}

// Table is a set of KPI rows with a declared column schema.
type Table struct {
	Domains       []Domain `json:"domains"`
	DimColumns    []string `json:"dim_columns"`
	MetricColumns []string `json:"metric_columns"`
	Rows          []Row    `json:"rows"`
}

// NewTable creates an empty table for one domain.
func NewTable(d Domain, dims, metrics []string) *Table {
	return &Table{
		Domains:       []Domain{d},
		DimColumns:    append([]string(nil), dims...),
		MetricColumns: append([]string(nil), metrics...),
	}
}

// Len returns the number of rows. A nil table is empty.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table holds no rows.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// HasDomain reports whether rows of d were merged into the table.
func (t *Table) HasDomain(d Domain) bool {
	if t == nil {
		return false
	}
	for _, x := range t.Domains {
		if x == d {
			return true
		}
	}
	return false
}

// HasDim reports whether col is a dimension column (kpi_level included).
func (t *Table) HasDim(col string) bool {
	if col == ColLevel {
		return true
	}
	return contains(t.DimColumns, col)
}

// HasMetric reports whether col is a metric column.
func (t *Table) HasMetric(col string) bool {
	return contains(t.MetricColumns, col)
}

// Columns lists kpi_level, the dimensions and the metrics in order.
func (t *Table) Columns() []string {
	out := make([]string, 0, 1+len(t.DimColumns)+len(t.MetricColumns))
	out = append(out, ColLevel)
	out = append(out, t.DimColumns...)
	out = append(out, t.MetricColumns...)
	return out
}

// ByLevel returns copies of the rows tagged with level.
func (t *Table) ByLevel(level Level) []Row {
	if t == nil {
		return nil
	}
	var out []Row
	for _, r := range t.Rows {
		if r.Level == level {
			out = append(out, r.Clone())
		}
	}
	return out
}

// ByDomain returns copies of the rows whose level belongs to d.
func (t *Table) ByDomain(d Domain) []Row {
	if t == nil {
		return nil
	}
	var out []Row
	for _, r := range t.Rows {
		if r.Level.Domain() == d {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{
		Domains:       append([]Domain(nil), t.Domains...),
		DimColumns:    append([]string(nil), t.DimColumns...),
		MetricColumns: append([]string(nil), t.MetricColumns...),
		Rows:          make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// Append concatenates the rows of other, which must be of the same domain.
func (t *Table) Append(other *Table) error {
	if other == nil {
		return nil
	}
	if len(t.Domains) != 1 || len(other.Domains) != 1 || t.Domains[0] != other.Domains[0] {
		return fmt.Errorf("cannot append %v rows to %v table", other.Domains, t.Domains)
	}
	t.Rows = append(t.Rows, other.Rows...)
	return nil
}

// SortRows orders rows by level then dimension values.
func SortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Key() < rows[j].Key()
	})
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
