package frame

import (
	"encoding/json"
	"math"
	"strconv"
)

// Num is a nullable float64. The zero value is null.
//
// "No data" and "zero" are different things for a KPI: a line that never
// reported production has a null adherence, a line that produced nothing
// against a plan has 0%. Num keeps the two apart.
type Num struct {
	V     float64
	Valid bool
}

// Null is the null Num.
var Null = Num{}

// Some wraps v as a valid Num. NaN and ±Inf are treated as null.
func Some(v float64) Num {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Null
	}
	return Num{V: v, Valid: true}
}

// Or returns the value, or def when null.
func (n Num) Or(def float64) float64 {
	if !n.Valid {
		return def
	}
	return n.V
}

// Add sums two values. Null acts as zero unless both sides are null.
func (n Num) Add(o Num) Num {
	switch {
	case !n.Valid && !o.Valid:
		return Null
	case !n.Valid:
		return o
	case !o.Valid:
		return n
	}
	return Some(n.V + o.V)
}

// Scale multiplies a valid value by f.
func (n Num) Scale(f float64) Num {
	if !n.Valid {
		return Null
	}
	return Some(n.V * f)
}

// ClipMin returns max(n, lo). Null stays null.
func (n Num) ClipMin(lo float64) Num {
	if !n.Valid {
		return Null
	}
	if n.V < lo {
		return Some(lo)
	}
	return n
}

// IsZero reports whether n is a valid zero.
func (n Num) IsZero() bool {
	return n.Valid && n.V == 0
}

// String formats the value; null formats as the empty string.
func (n Num) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.V, 'f', -1, 64)
}

// MarshalJSON encodes null as JSON null.
func (n Num) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.V)
}

// UnmarshalJSON decodes JSON null into Null.
func (n *Num) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = Null
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Some(v)
	return nil
}

// SafeDivide returns n/d, or def when d is null or zero (or n is null).
// It is the only way ratios are produced in this module.
func SafeDivide(n, d Num, def float64) Num {
	if !n.Valid || !d.Valid || d.V == 0 {
		return Some(def)
	}
	return Some(n.V / d.V)
}

// Min returns the smaller of two values. Null if either is null.
func Min(a, b Num) Num {
	if !a.Valid || !b.Valid {
		return Null
	}
	return Some(math.Min(a.V, b.V))
}

// Mean averages the valid values. Null if none are valid.
func Mean(values []Num) Num {
	var sum float64
	var count int
	for _, v := range values {
		if !v.Valid {
			continue
		}
		sum += v.V
		count++
	}
	if count == 0 {
		return Null
	}
	return Some(sum / float64(count))
}

// Sum adds the valid values. Null if none are valid.
func Sum(values []Num) Num {
	total := Null
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
