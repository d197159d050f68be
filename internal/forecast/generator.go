package forecast

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/calendar"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/config"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/features"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/model"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/storage"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/trainer"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/types"
)

// Generator produces the daily forecast by rolling forward one day at a
// time. Each day's accepted median is appended to the working history, so
// day N+1 lags against forecasts, not gaps. The model estimate is blended
// with a same-weekday trailing mean and guarded by a lag-7 floor, which
// keeps a cold or degenerate model from collapsing the forecast to zero.
type Generator struct {
	cfg    *config.Config
	cal    *calendar.Calendar
	store  storage.Store
	logger zerolog.Logger
}

// New creates a generator.
func New(cfg *config.Config, cal *calendar.Calendar, store storage.Store, logger zerolog.Logger) *Generator {
	return &Generator{cfg: cfg, cal: cal, store: store, logger: logger.With().Str("component", "forecast").Logger()}
}

// Generate rolls the forecast HorizonDays forward from the day after now.
func (g *Generator) Generate(ctx context.Context, bundle *Bundle, now time.Time) ([]types.DailyForecast, error) {
	if bundle == nil || bundle.VolumeMedian == nil {
		return nil, fmt.Errorf("no median volume model loaded")
	}

	today := calendar.Midnight(calendar.Normalize(now))
	from := today.AddDate(0, 0, -g.cfg.MaxLag())
	to := today.Add(-time.Second)

	recs, err := g.store.HourlyHistory(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load forecast history: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("no history available to forecast from")
	}

	hist := newHistory()
	hist.seed(features.RollupDaily(recs, features.ByService))

	pairDaily := features.RollupDaily(recs, features.ByServiceAndSegment)
	segmentsByService := segmentMap(pairDaily)
	handleMeans := trailingHandleMeans(pairDaily, today, g.cfg.FallbackWindowDays)

	var out []types.DailyForecast
	for _, svc := range hist.services() {
		segments := segmentsByService[svc]
		if len(segments) == 0 {
			segments = []types.BehaviorSegment{types.SegmentUnknown}
		}

		for d := 1; d <= g.cfg.HorizonDays; d++ {
			date := today.AddDate(0, 0, d)
			low, median, high := g.dailyVolume(bundle, hist, svc, date)

			// The accepted median becomes history so longer lags stay
			// populated across the horizon.
			hist.append(svc, date, median)

			share := 1.0 / float64(len(segments))
			for _, seg := range segments {
				aht, awt := g.handleTimes(bundle, handleMeans, svc, seg, date)
				vol := median * share
				callLoad := vol * aht / 60
				out = append(out, types.DailyForecast{
					Date:         date,
					Service:      svc,
					Segment:      seg,
					VolumeLow:    low * share,
					Volume:       vol,
					VolumeHigh:   high * share,
					AHTSecs:      aht,
					AWTSecs:      awt,
					CallLoadMins: callLoad,
					StaffingMins: callLoad / g.cfg.OccupancyTarget,
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Service != out[j].Service {
			return out[i].Service < out[j].Service
		}
		return out[i].Segment < out[j].Segment
	})

	g.logger.Info().
		Int("days", g.cfg.HorizonDays).
		Int("rows", len(out)).
		Msg("daily forecast generated")
	return out, nil
}

// dailyVolume produces the blended (low, median, high) service volume for
// one date.
func (g *Generator) dailyVolume(bundle *Bundle, hist *history, svc types.ServiceType, date time.Time) (low, median, high float64) {
	numeric, cats := g.featureMaps(hist, svc, "", date)

	modelMedian := clampNonNeg(bundle.VolumeMedian.Predict(numeric, cats))
	statMean, hasStat := hist.sameWeekdayMean(svc, date, g.cfg.FallbackWindowDays)

	switch {
	case hasStat && modelMedian >= g.cfg.BlendMinConfidence:
		median = g.cfg.BlendMixWeight*modelMedian + (1-g.cfg.BlendMixWeight)*statMean
	case hasStat:
		// Near-zero model output is treated as untrustworthy, not as a
		// genuine zero-demand signal.
		median = statMean
	default:
		median = modelMedian
	}

	// A blend far below last week's observation on the same weekday is a
	// degenerate collapse; prefer the lag.
	if lag7, ok := hist.lag(svc, date, 7); ok {
		if median < g.cfg.Lag7OverrideRatio*lag7 && lag7 >= g.cfg.Lag7FloorMin {
			median = lag7
		}
	}

	low = predictOr(bundle.VolumeLow, numeric, cats, median)
	high = predictOr(bundle.VolumeHigh, numeric, cats, median)

	// Keep the band consistent around the blended median.
	if low > median {
		low = median
	}
	if high < median {
		high = median
	}
	return low, median, high
}

// handleTimes predicts AHT/AWT for a segment day, falling back to the
// trailing observed means when a model is missing or degenerate.
func (g *Generator) handleTimes(bundle *Bundle, means map[types.HierarchyKey]handleMean, svc types.ServiceType, seg types.BehaviorSegment, date time.Time) (aht, awt float64) {
	numeric, cats := g.featureMaps(nil, svc, seg, date)
	fallback := means[types.HierarchyKey{Service: svc, Segment: seg}]

	aht = predictOr(bundle.AHT, numeric, cats, fallback.aht)
	if aht <= 0 {
		aht = fallback.aht
	}
	awt = predictOr(bundle.AWT, numeric, cats, fallback.awt)
	if awt <= 0 {
		awt = fallback.awt
	}
	return aht, awt
}

// featureMaps builds the inference-time feature maps. hist may be nil for
// the lag-free handle-time frame.
func (g *Generator) featureMaps(hist *history, svc types.ServiceType, seg types.BehaviorSegment, date time.Time) (map[string]float64, map[string]string) {
	row := features.Row{
		TimeSeriesRecord: types.TimeSeriesRecord{Timestamp: date, Service: svc, Segment: seg},
		Cal:              g.cal.At(date),
		Lags:             make(map[int]float64),
	}
	if hist != nil {
		for _, lag := range g.cfg.Lags {
			if v, ok := hist.lag(svc, date, lag); ok {
				row.Lags[lag] = v
			}
		}
	}
	return trainer.FeatureValues(row, g.cfg.Lags)
}

type handleMean struct {
	aht float64
	awt float64
}

// trailingHandleMeans averages observed daily AHT/AWT per (service, segment)
// over the trailing window, skipping zero-traffic days.
func trailingHandleMeans(daily []types.TimeSeriesRecord, today time.Time, windowDays int) map[types.HierarchyKey]handleMean {
	cutoff := today.AddDate(0, 0, -windowDays)
	type acc struct {
		ahtSum, awtSum float64
		ahtN, awtN     int
	}
	accs := make(map[types.HierarchyKey]*acc)
	for _, r := range daily {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		a := accs[r.Key()]
		if a == nil {
			a = &acc{}
			accs[r.Key()] = a
		}
		if r.AnsweredCalls > 0 {
			a.ahtSum += r.TalkTimeSecs / float64(r.AnsweredCalls)
			a.ahtN++
		}
		if r.Calls > 0 {
			a.awtSum += r.WaitTimeSecs / float64(r.Calls)
			a.awtN++
		}
	}

	out := make(map[types.HierarchyKey]handleMean, len(accs))
	for k, a := range accs {
		m := handleMean{}
		if a.ahtN > 0 {
			m.aht = a.ahtSum / float64(a.ahtN)
		}
		if a.awtN > 0 {
			m.awt = a.awtSum / float64(a.awtN)
		}
		out[k] = m
	}
	return out
}

// segmentMap collects the observed segments per service, sorted for stable
// output.
func segmentMap(daily []types.TimeSeriesRecord) map[types.ServiceType][]types.BehaviorSegment {
	seen := make(map[types.ServiceType]map[types.BehaviorSegment]bool)
	for _, r := range daily {
		if seen[r.Service] == nil {
			seen[r.Service] = make(map[types.BehaviorSegment]bool)
		}
		seen[r.Service][r.Segment] = true
	}
	out := make(map[types.ServiceType][]types.BehaviorSegment, len(seen))
	for svc, segs := range seen {
		list := make([]types.BehaviorSegment, 0, len(segs))
		for s := range segs {
			list = append(list, s)
		}
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		out[svc] = list
	}
	return out
}

func predictOr(a *model.Artifact, numeric map[string]float64, cats map[string]string, fallback float64) float64 {
	if a == nil {
		return fallback
	}
	return clampNonNeg(a.Predict(numeric, cats))
}

func clampNonNeg(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
