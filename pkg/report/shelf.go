package report

import (
	"math"
	"sort"
	"time"

	"github.com/spf13/cast"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
)

// WasteWindowDays is how many observed days WasteLast7 covers.
const WasteWindowDays = 7

// ShelfPerformance is the shelf state of one SKU in a store.
type ShelfPerformance struct {
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	PlanogramCap int     `json:"planogramCap"`
	OnShelf      int     `json:"onShelf"`
	ShelfFill    float64 `json:"shelfFill"`
	SalesPerHour float64 `json:"salesPerHour"`
	WasteLast7   int     `json:"wasteLast7"`
}

type shelfSKU struct {
	latest  int
	at      time.Time
	demand  []frame.Num
	overCap frame.Num
}

// ShelfPerformanceOf reads the next-hour store rows of storeID and reports,
// per SKU, the most recent shelf level, the mean hourly demand and the
// units above planogram capacity over the last WasteWindowDays observed
// days. An empty storeID covers every store. SKUs are sorted by id.
func ShelfPerformanceOf(raw *frame.Frame, storeID string) []ShelfPerformance {
	out := []ShelfPerformance{}
	f := frame.AtHorizon(raw, frame.NextHour)
	if ok, _ := f.HasAll(kpi.ColSKU, kpi.ColOnShelf, kpi.ColCapacity); !ok {
		return out
	}
	if storeID != "" {
		if !f.Has(kpi.ColStore) {
			return out
		}
		f = f.Filter(func(i int) bool { return f.String(i, kpi.ColStore) == storeID })
	}

	recent := recentDates(f, WasteWindowDays)
	skus := make(map[string]*shelfSKU)
	for i := 0; i < f.Len(); i++ {
		id := f.String(i, kpi.ColSKU)
		if id == "" {
			continue
		}
		at := observedAt(f, i)
		s, ok := skus[id]
		if !ok {
			s = &shelfSKU{latest: i, at: at}
			skus[id] = s
		} else if !at.Before(s.at) {
			s.latest, s.at = i, at
		}
		s.demand = append(s.demand, f.Float(i, kpi.ColPredictedDemand))
		onShelf, capacity := f.Float(i, kpi.ColOnShelf), f.Float(i, kpi.ColCapacity)
		if recent[f.String(i, kpi.ColDate)] && onShelf.Valid && capacity.Valid {
			s.overCap = s.overCap.Add(frame.Some(math.Max(onShelf.V-capacity.V, 0)))
		}
	}

	for id, s := range skus {
		onShelf := f.Float(s.latest, kpi.ColOnShelf).ClipMin(0)
		capacity := f.Float(s.latest, kpi.ColCapacity)
		name := f.String(s.latest, kpi.ColSKUName)
		if name == "" {
			name = id
		}
		out = append(out, ShelfPerformance{
			SKU:          id,
			Name:         name,
			PlanogramCap: int(capacity.Or(0)),
			OnShelf:      int(onShelf.Or(0)),
			ShelfFill:    Round(frame.SafeDivide(onShelf, capacity, 0).Scale(100).Or(0), 1),
			SalesPerHour: Round(frame.Mean(s.demand).Or(0), 1),
			WasteLast7:   int(s.overCap.Or(0)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out
}

// recentDates returns the n latest distinct dates of f.
func recentDates(f *frame.Frame, n int) map[string]bool {
	dates := f.Distinct(kpi.ColDate)
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if len(dates) > n {
		dates = dates[:n]
	}
	out := make(map[string]bool, len(dates))
	for _, d := range dates {
		out[d] = true
	}
	return out
}

// observedAt is the row's timestamp, or the zero time when it has none.
func observedAt(f *frame.Frame, i int) time.Time {
	raw := f.String(i, kpi.ColTimestamp)
	if raw == "" {
		return time.Time{}
	}
	ts, err := cast.ToTimeE(raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}
