package engine

import (
	"strconv"

	"github.com/spf13/cast"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
)

// DateLayout is how derived dates are written.
const DateLayout = "2006-01-02"

// deriveCalendar sets the date and hour columns of f from its timestamp
// column. Unparseable timestamps leave both missing. Frames without a
// timestamp keep whatever date and hour columns they already have.
func deriveCalendar(f *frame.Frame) {
	if !f.Has(kpi.ColTimestamp) {
		return
	}

	dates := make([]frame.Cell, f.Len())
	hours := make([]frame.Cell, f.Len())
	for i := 0; i < f.Len(); i++ {
		c := f.Cell(i, kpi.ColTimestamp)
		if c.Missing() {
			continue
		}
		ts, err := cast.ToTimeE(c.Raw)
		if err != nil {
			continue
		}
		dates[i] = frame.TextCell(ts.Format(DateLayout))
		hours[i] = frame.ParseCell(strconv.Itoa(ts.Hour()))
	}

	f.AddColumn(kpi.ColDate, func(i int) frame.Cell { return dates[i] })
	f.AddColumn(kpi.ColHour, func(i int) frame.Cell { return hours[i] })
}
