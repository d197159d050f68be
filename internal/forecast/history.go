package forecast

import (
	"sort"
	"time"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/calendar"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/types"
)

// history is the working daily-volume series the rolling generator reads
// lags from. It starts as observed history and grows as each forecast day's
// median is appended, which is what makes multi-week lags usable across the
// whole horizon.
type history struct {
	series map[types.ServiceType]map[time.Time]float64
}

func newHistory() *history {
	return &history{series: make(map[types.ServiceType]map[time.Time]float64)}
}

// seed loads observed daily volumes, summing duplicates.
func (h *history) seed(daily []types.TimeSeriesRecord) {
	for _, r := range daily {
		h.add(r.Service, calendar.Midnight(r.Timestamp), float64(r.Calls))
	}
}

func (h *history) add(svc types.ServiceType, day time.Time, v float64) {
	if h.series[svc] == nil {
		h.series[svc] = make(map[time.Time]float64)
	}
	h.series[svc][day] += v
}

// append records a forecast day so later days can lag against it.
func (h *history) append(svc types.ServiceType, day time.Time, v float64) {
	if h.series[svc] == nil {
		h.series[svc] = make(map[time.Time]float64)
	}
	h.series[svc][day] = v
}

// lag returns the volume lagDays before day, when known.
func (h *history) lag(svc types.ServiceType, day time.Time, lagDays int) (float64, bool) {
	v, ok := h.series[svc][day.AddDate(0, 0, -lagDays)]
	return v, ok
}

// sameWeekdayMean averages the same weekday over the trailing window. It is
// the statistical anchor the model estimate blends against.
func (h *history) sameWeekdayMean(svc types.ServiceType, day time.Time, windowDays int) (float64, bool) {
	sum := 0.0
	n := 0
	for back := 7; back <= windowDays; back += 7 {
		if v, ok := h.series[svc][day.AddDate(0, 0, -back)]; ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// services returns every service present, in stable order.
func (h *history) services() []types.ServiceType {
	out := make([]types.ServiceType, 0, len(h.series))
	for svc := range h.series {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
