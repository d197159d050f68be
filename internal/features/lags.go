package features

import (
	"sort"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/calendar"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/types"
)

// Row couples a series record with its derived calendar and lag features.
type Row struct {
	types.TimeSeriesRecord
	Cal calendar.Features
	// Lags holds the target value N periods back within the same hierarchy
	// key. A horizon with insufficient history is simply absent from the
	// map; consumers decide between fill-with-zero and drop.
	Lags map[int]float64
}

// Target extracts the lagged measure from a record.
type Target func(types.TimeSeriesRecord) float64

// CallVolume is the default lag target.
func CallVolume(r types.TimeSeriesRecord) float64 { return float64(r.Calls) }

// Build derives calendar features and grouped lag features for call volume.
// Input must be densified (one row per period per key); lags are an ordered
// shift within each hierarchy key and never cross key boundaries.
func Build(c *calendar.Calendar, recs []types.TimeSeriesRecord, lags []int) []Row {
	return BuildTarget(c, recs, lags, CallVolume)
}

// BuildTarget is Build with a custom lag target.
func BuildTarget(c *calendar.Calendar, recs []types.TimeSeriesRecord, lags []int, target Target) []Row {
	sorted := make([]types.TimeSeriesRecord, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Service != sorted[j].Service {
			return sorted[i].Service < sorted[j].Service
		}
		if sorted[i].Segment != sorted[j].Segment {
			return sorted[i].Segment < sorted[j].Segment
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	rows := make([]Row, len(sorted))
	groupStart := 0
	for i := range sorted {
		if i > 0 && sorted[i].Key() != sorted[i-1].Key() {
			groupStart = i
		}
		row := Row{
			TimeSeriesRecord: sorted[i],
			Cal:              c.At(sorted[i].Timestamp),
			Lags:             make(map[int]float64, len(lags)),
		}
		for _, lag := range lags {
			if lag <= 0 {
				continue
			}
			src := i - lag
			if src < groupStart {
				continue // not enough history inside this key
			}
			row.Lags[lag] = target(sorted[src])
		}
		rows[i] = row
	}
	return rows
}

// LagOrZero returns the lag value, or zero when history was too short.
func (r Row) LagOrZero(lag int) float64 {
	return r.Lags[lag]
}

// HasLag reports whether the lag horizon had enough history.
func (r Row) HasLag(lag int) bool {
	_, ok := r.Lags[lag]
	return ok
}
