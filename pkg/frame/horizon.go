package frame

// HorizonColumn holds the number of hours ahead a forecast row refers to.
const HorizonColumn = "forecast_hour_offset"

// NextHour is the horizon used for every demand figure. Rows at other
// offsets forecast the same hour again and would be counted twice.
const NextHour = 1

// AtHorizon returns a copy of f restricted to forecast rows at offset h.
// Frames without a horizon column are returned as a full copy.
func AtHorizon(f *Frame, h int) *Frame {
	if f == nil {
		return nil
	}
	if !f.Has(HorizonColumn) {
		return f.Clone()
	}
	want := float64(h)
	return f.Filter(func(i int) bool {
		n := f.Float(i, HorizonColumn)
		return n.Valid && n.V == want
	})
}
