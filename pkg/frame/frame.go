package frame

import (
	"strings"

	"github.com/spf13/cast"
)

// nullTokens are raw values treated as missing.
var nullTokens = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"null": true,
	"none": true,
}

// Cell is one value of a frame: the raw text plus its numeric reading.
type Cell struct {
	Raw string
	Num Num
}

// ParseCell reads raw into a Cell. Non-numeric text keeps a null Num.
func ParseCell(raw string) Cell {
	raw = strings.TrimSpace(raw)
	if IsNullToken(raw) {
		return Cell{}
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return Cell{Raw: raw}
	}
	return Cell{Raw: raw, Num: Some(f)}
}

// NumCell builds a Cell from a number.
func NumCell(n Num) Cell {
	return Cell{Raw: n.String(), Num: n}
}

// TextCell builds a non-numeric Cell.
func TextCell(s string) Cell {
	return Cell{Raw: s}
}

// IsNullToken reports whether raw text stands for a missing value.
func IsNullToken(raw string) bool {
	return nullTokens[strings.ToLower(strings.TrimSpace(raw))]
}

// Missing reports whether the cell holds no value.
func (c Cell) Missing() bool {
	return IsNullToken(c.Raw)
}

// Frame is a named, column-ordered fact table loaded from one source.
// A Frame handed out by a published snapshot must not be modified;
// use Clone first.
type Frame struct {
	Name string

	columns []string
	index   map[string]int
	rows    [][]Cell
}

// New creates an empty frame with the given columns.
func New(name string, columns []string) *Frame {
	f := &Frame{
		Name:    name,
		columns: make([]string, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for _, c := range columns {
		c = strings.TrimSpace(c)
		if _, dup := f.index[c]; dup {
			continue
		}
		f.index[c] = len(f.columns)
		f.columns = append(f.columns, c)
	}
	return f
}

// Append adds a row of raw values. Short rows are padded with missing
// cells, extra values are ignored.
func (f *Frame) Append(values []string) {
	row := make([]Cell, len(f.columns))
	for i := range row {
		if i < len(values) {
			row[i] = ParseCell(values[i])
		}
	}
	f.rows = append(f.rows, row)
}

// AppendCells adds a row of already parsed cells keyed by column.
func (f *Frame) AppendCells(cells map[string]Cell) {
	row := make([]Cell, len(f.columns))
	for col, c := range cells {
		if i, ok := f.index[col]; ok {
			row[i] = c
		}
	}
	f.rows = append(f.rows, row)
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.rows)
}

// Columns returns a copy of the column names in order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.columns))
	copy(out, f.columns)
	return out
}

// Has reports whether the frame has a column.
func (f *Frame) Has(col string) bool {
	if f == nil {
		return false
	}
	_, ok := f.index[col]
	return ok
}

// HasAll reports whether every column is present and returns the missing ones.
func (f *Frame) HasAll(cols ...string) (bool, []string) {
	var missing []string
	for _, c := range cols {
		if !f.Has(c) {
			missing = append(missing, c)
		}
	}
	return len(missing) == 0, missing
}

// Cell returns the cell at row i, column col. Unknown columns yield an
// empty cell.
func (f *Frame) Cell(i int, col string) Cell {
	j, ok := f.index[col]
	if !ok {
		return Cell{}
	}
	return f.rows[i][j]
}

// String returns the raw text at row i, column col.
func (f *Frame) String(i int, col string) string {
	return f.Cell(i, col).Raw
}

// Float returns the numeric value at row i, column col.
func (f *Frame) Float(i int, col string) Num {
	return f.Cell(i, col).Num
}

// Set overwrites a numeric cell. It is a no-op for unknown columns.
func (f *Frame) Set(i int, col string, n Num) {
	j, ok := f.index[col]
	if !ok {
		return
	}
	f.rows[i][j] = NumCell(n)
}

// MissingCount counts missing cells in a column.
func (f *Frame) MissingCount(col string) int {
	j, ok := f.index[col]
	if !ok {
		return 0
	}
	var n int
	for _, row := range f.rows {
		if row[j].Missing() {
			n++
		}
	}
	return n
}

// AddColumn appends (or replaces) a column whose cells are produced by fn.
func (f *Frame) AddColumn(name string, fn func(i int) Cell) {
	j, ok := f.index[name]
	if !ok {
		j = len(f.columns)
		f.index[name] = j
		f.columns = append(f.columns, name)
		for i := range f.rows {
			f.rows[i] = append(f.rows[i], Cell{})
		}
	}
	for i := range f.rows {
		f.rows[i][j] = fn(i)
	}
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	out := New(f.Name, f.columns)
	out.rows = make([][]Cell, len(f.rows))
	for i, row := range f.rows {
		cp := make([]Cell, len(row))
		copy(cp, row)
		out.rows[i] = cp
	}
	return out
}

// Filter returns a new frame holding copies of the rows that keep accepts.
func (f *Frame) Filter(keep func(i int) bool) *Frame {
	out := New(f.Name, f.columns)
	for i, row := range f.rows {
		if !keep(i) {
			continue
		}
		cp := make([]Cell, len(row))
		copy(cp, row)
		out.rows = append(out.rows, cp)
	}
	return out
}

// SumColumn adds every valid value of a column.
func (f *Frame) SumColumn(col string) Num {
	total := Null
	for i := 0; i < f.Len(); i++ {
		total = total.Add(f.Float(i, col))
	}
	return total
}

// Distinct returns the distinct non-missing raw values of a column in
// first-seen order.
func (f *Frame) Distinct(col string) []string {
	seen := make(map[string]struct{})
	var out []string
	for i := 0; i < f.Len(); i++ {
		c := f.Cell(i, col)
		if c.Missing() {
			continue
		}
		if _, ok := seen[c.Raw]; ok {
			continue
		}
		seen[c.Raw] = struct{}{}
		out = append(out, c.Raw)
	}
	return out
}
