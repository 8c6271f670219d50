package insight

import (
	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
)

// HoursPerDay scales an hourly rate to a daily figure.
const HoursPerDay = 24

// Window is the span of time the raw tables cover, counted in distinct
// observed days and hours at the next-hour horizon. Every indicator that
// turns a total or a rate into a daily figure goes through it.
type Window struct {
	Source kpi.Domain `json:"source"`
	Days   int        `json:"days"`
	Hours  int        `json:"hours"`
}

// Daily spreads a total accumulated over the window across its days.
func (w Window) Daily(total float64) float64 {
	return total / float64(max(w.Days, 1))
}

// DailyFromHourly scales a mean hourly rate to a day.
func (w Window) DailyFromHourly(mean float64) float64 {
	return mean * HoursPerDay
}

// windowOrder is the preference of tables the window is read from.
var windowOrder = []kpi.Domain{kpi.Store, kpi.DC, kpi.Factory}

// ObservationWindow measures the window from the first table, in store,
// DC, factory order, that carries a date column.
func ObservationWindow(raw map[kpi.Domain]*frame.Frame) Window {
	for _, d := range windowOrder {
		f := raw[d]
		if !f.Has(kpi.ColDate) {
			continue
		}
		f = frame.AtHorizon(f, frame.NextHour)

		days := make(map[string]struct{})
		hours := make(map[string]struct{})
		for i := 0; i < f.Len(); i++ {
			date := f.Cell(i, kpi.ColDate)
			if date.Missing() {
				continue
			}
			days[date.Raw] = struct{}{}
			if hour := f.Cell(i, kpi.ColHour); !hour.Missing() {
				hours[date.Raw+" "+hour.Raw] = struct{}{}
			}
		}
		if len(days) == 0 {
			continue
		}
		return Window{Source: d, Days: len(days), Hours: len(hours)}
	}
	return Window{}
}
