package hourly

import (
	"time"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/types"
)

// ShapeProfile holds the observed intraday distribution of call volume:
// for each (service, weekday) the share of the day's calls landing in each
// hour bucket. Shares per (service, weekday) sum to 1 when any traffic was
// observed.
type ShapeProfile struct {
	shares map[profileKey][24]float64
}

type profileKey struct {
	Service types.ServiceType
	Weekday int // Monday = 0
}

// BuildShapeProfile derives the profile from hourly history. Records are
// pooled per (service, weekday): pooling over all observed days of the same
// weekday smooths single-day noise without losing the weekly rhythm.
func BuildShapeProfile(recs []types.TimeSeriesRecord) *ShapeProfile {
	sums := make(map[profileKey][24]float64)
	for _, r := range recs {
		k := profileKey{Service: r.Service, Weekday: mondayIndexed(r.Timestamp.Weekday())}
		row := sums[k]
		row[r.Timestamp.Hour()] += float64(r.Calls)
		sums[k] = row
	}

	p := &ShapeProfile{shares: make(map[profileKey][24]float64, len(sums))}
	for k, row := range sums {
		total := 0.0
		for _, v := range row {
			total += v
		}
		if total <= 0 {
			continue
		}
		for h := range row {
			row[h] /= total
		}
		p.shares[k] = row
	}
	return p
}

// Shares returns the hourly share vector for a service weekday. ok is false
// when no traffic was ever observed for the combination.
func (p *ShapeProfile) Shares(svc types.ServiceType, weekday int) ([24]float64, bool) {
	row, ok := p.shares[profileKey{Service: svc, Weekday: weekday}]
	return row, ok
}

// mondayIndexed shifts time.Weekday (Sunday = 0) to Monday = 0.
func mondayIndexed(d time.Weekday) int {
	return (int(d) + 6) % 7
}
