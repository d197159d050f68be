package hourly

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/config"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/metrics"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/types"
)

// Disaggregator spreads daily forecasts onto hour buckets using the shape
// profile, enforces the business-hours mask, and conserves daily totals:
// hourly integer volumes for one (date, service) always sum to the rounded
// daily service volume, across every segment row of that service.
type Disaggregator struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// NewDisaggregator creates a disaggregator.
func NewDisaggregator(cfg *config.Config, logger zerolog.Logger) *Disaggregator {
	return &Disaggregator{cfg: cfg, logger: logger.With().Str("component", "hourly").Logger()}
}

// Disaggregate expands each daily forecast row into 24 hourly rows.
// Closed hours exist with zero volume so the output grid stays dense. The
// internal absence segment is exempt from the mask: absence calls arrive
// around the clock.
func (d *Disaggregator) Disaggregate(daily []types.DailyForecast, profile *ShapeProfile) []types.HourlyForecast {
	out := make([]types.HourlyForecast, 0, len(daily)*24)

	lowTargets := serviceTargets(daily, func(r types.DailyForecast) float64 { return r.VolumeLow })
	volTargets := serviceTargets(daily, func(r types.DailyForecast) float64 { return r.Volume })
	highTargets := serviceTargets(daily, func(r types.DailyForecast) float64 { return r.VolumeHigh })

	expected := make(map[serviceDay]float64)
	emitted := make(map[serviceDay]int)

	for i, row := range daily {
		weights := d.hourWeights(row, profile)

		low := apportion(row.VolumeLow, lowTargets[i], weights)
		vol := apportion(row.Volume, volTargets[i], weights)
		high := apportion(row.VolumeHigh, highTargets[i], weights)

		// Closed days intentionally drop their volume, so they don't count
		// as drift.
		if row.Segment == types.SegmentAbsence || d.cfg.IsOperatingDay(row.Date.Weekday()) {
			k := serviceDay{day: row.Date.Unix(), service: row.Service}
			expected[k] += row.Volume
			for _, v := range vol {
				emitted[k] += v
			}
		}

		for h := 0; h < 24; h++ {
			hf := types.HourlyForecast{
				Timestamp:  row.Date.Add(time.Duration(h) * time.Hour),
				Service:    row.Service,
				Segment:    row.Segment,
				VolumeLow:  low[h],
				Volume:     vol[h],
				VolumeHigh: high[h],
			}
			// Handle-time estimates only make sense where calls land.
			if vol[h] > 0 {
				hf.AHTSecs = row.AHTSecs
				hf.AWTSecs = row.AWTSecs
				hf.CallLoadMins = float64(vol[h]) * row.AHTSecs / 60
				hf.StaffingMins = hf.CallLoadMins / d.cfg.OccupancyTarget
			}
			out = append(out, hf)
		}
	}

	maxDrift := 0.0
	for k, want := range expected {
		if drift := math.Abs(float64(emitted[k]) - want); drift > maxDrift {
			maxDrift = drift
		}
	}

	metrics.Get().RecordConservationDrift(maxDrift)
	if len(daily) > 0 {
		d.logger.Debug().
			Int("daily_rows", len(daily)).
			Float64("max_drift", maxDrift).
			Msg("daily forecast disaggregated")
	}
	return out
}

// hourWeights builds the masked, renormalized share vector for one daily
// row. A row whose profile is empty (or fully masked away) falls back to an
// even split over the open window.
func (d *Disaggregator) hourWeights(row types.DailyForecast, profile *ShapeProfile) [24]float64 {
	var weights [24]float64
	if profile != nil {
		if shares, ok := profile.Shares(row.Service, mondayIndexed(row.Date.Weekday())); ok {
			weights = shares
		}
	}

	masked := row.Segment != types.SegmentAbsence
	if masked {
		if !d.cfg.IsOperatingDay(row.Date.Weekday()) {
			weights = [24]float64{}
		} else {
			for h := 0; h < 24; h++ {
				if h < d.cfg.OpenStartHour || h >= d.cfg.OpenEndHour {
					weights[h] = 0
				}
			}
		}
	}

	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total > 0 {
		for h := range weights {
			weights[h] /= total
		}
		return weights
	}

	// Even-split fallback. For masked rows on closed days every bucket
	// stays zero and the daily volume is dropped from the hourly plan.
	if masked {
		if d.cfg.IsOperatingDay(row.Date.Weekday()) {
			share := 1.0 / float64(d.cfg.OpenHours())
			for h := d.cfg.OpenStartHour; h < d.cfg.OpenEndHour; h++ {
				weights[h] = share
			}
		}
		return weights
	}
	for h := range weights {
		weights[h] = 1.0 / 24
	}
	return weights
}

type serviceDay struct {
	day     int64
	service types.ServiceType
}

// serviceTargets fixes the integer volume each daily row must emit so that
// the segment rows of one (date, service) sum to the rounded service total.
// Rounding each segment row on its own lets drift stack up across segments
// (six rows of 16.5 would round to 102 against a service total of 99);
// largest remainders place the residue units instead.
func serviceTargets(daily []types.DailyForecast, value func(types.DailyForecast) float64) []int {
	groups := make(map[serviceDay][]int)
	for i, row := range daily {
		k := serviceDay{day: row.Date.Unix(), service: row.Service}
		groups[k] = append(groups[k], i)
	}

	out := make([]int, len(daily))
	for _, rows := range groups {
		total := 0.0
		for _, i := range rows {
			if v := value(daily[i]); v > 0 {
				total += v
			}
		}
		target := int(math.Round(total))

		type frac struct {
			row int
			rem float64
		}
		fracs := make([]frac, 0, len(rows))
		assigned := 0
		for _, i := range rows {
			v := value(daily[i])
			if v < 0 {
				v = 0
			}
			base := int(math.Floor(v))
			out[i] = base
			assigned += base
			fracs = append(fracs, frac{row: i, rem: v - float64(base)})
		}
		sort.Slice(fracs, func(a, b int) bool {
			if fracs[a].rem != fracs[b].rem {
				return fracs[a].rem > fracs[b].rem
			}
			return fracs[a].row < fracs[b].row
		})
		for j := 0; j < len(fracs) && assigned < target; j++ {
			if fracs[j].rem <= 0 {
				continue
			}
			out[fracs[j].row]++
			assigned++
		}
	}
	return out
}

// apportion distributes a fractional volume over the weight vector as
// integers that sum exactly to the row's target, using largest remainders to
// place the leftover units.
func apportion(total float64, target int, weights [24]float64) [24]int {
	var out [24]int
	if total <= 0 || target <= 0 {
		return out
	}
	wsum := 0.0
	for _, w := range weights {
		wsum += w
	}
	if wsum <= 0 {
		return out
	}

	type frac struct {
		hour int
		rem  float64
	}
	var fracs []frac
	assigned := 0
	for h, w := range weights {
		exact := total * w / wsum
		base := int(math.Floor(exact))
		out[h] = base
		assigned += base
		fracs = append(fracs, frac{hour: h, rem: exact - float64(base)})
	}

	sort.Slice(fracs, func(i, j int) bool {
		if fracs[i].rem != fracs[j].rem {
			return fracs[i].rem > fracs[j].rem
		}
		return fracs[i].hour < fracs[j].hour
	})
	for i := 0; i < len(fracs) && assigned < target; i++ {
		// Leftover units go to open hours only.
		if weights[fracs[i].hour] <= 0 {
			continue
		}
		out[fracs[i].hour]++
		assigned++
	}
	return out
}
