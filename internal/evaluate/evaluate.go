package evaluate

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/calendar"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/config"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/storage"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/types"
)

// Evaluator scores the most recent archived forecast run against observed
// traffic. The run under evaluation is locked to the maximum run id, so a
// re-forecast during evaluation never shifts which run is being scored.
type Evaluator struct {
	cfg    *config.Config
	store  storage.Store
	logger zerolog.Logger
}

// New creates an evaluator.
func New(cfg *config.Config, store storage.Store, logger zerolog.Logger) *Evaluator {
	return &Evaluator{cfg: cfg, store: store, logger: logger.With().Str("component", "evaluate").Logger()}
}

// Run computes weighted MAPE over the days of the latest run that already
// have complete actuals, appends the result to the performance log, and
// returns it.
func (e *Evaluator) Run(ctx context.Context, now time.Time) (*types.EvaluationResult, error) {
	runID, err := e.store.LatestRunID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve latest run: %w", err)
	}
	if runID == "" {
		return nil, fmt.Errorf("no archived forecast to evaluate")
	}

	forecastTotals, err := e.store.ArchivedDailyTotals(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(forecastTotals) == 0 {
		return nil, fmt.Errorf("run %s has no archived days", runID)
	}

	// Only fully observed days count: today is still accumulating.
	today := calendar.Midnight(calendar.Normalize(now))
	start, end := forecastRange(forecastTotals)
	if !end.Before(today) {
		end = today.AddDate(0, 0, -1)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("run %s has no completed days yet", runID)
	}

	actuals, err := e.store.ActualDailyTotals(ctx, start, end.Add(24*time.Hour-time.Second))
	if err != nil {
		return nil, err
	}

	var absErrSum, actualSum, forecastSum float64
	days := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		f, ok := forecastTotals[day]
		if !ok {
			continue
		}
		a, ok := actuals[day]
		if !ok {
			continue
		}
		absErrSum += math.Abs(a - f)
		actualSum += a
		forecastSum += f
		days++
	}
	if days == 0 {
		return nil, fmt.Errorf("run %s has no days with observed actuals", runID)
	}
	if actualSum == 0 {
		return nil, fmt.Errorf("run %s evaluation window has zero actual volume", runID)
	}

	wmape := absErrSum / actualSum * 100
	result := &types.EvaluationResult{
		RunID:         runID,
		Start:         start,
		End:           end,
		ActualTotal:   actualSum,
		ForecastTotal: forecastSum,
		WMAPE:         wmape,
		Accuracy:      math.Max(0, 100-wmape),
		Days:          days,
		EvaluatedAt:   time.Now().UTC(),
	}
	if err := e.store.AppendPerformance(ctx, *result); err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("run_id", runID).
		Int("days", days).
		Float64("wmape", wmape).
		Float64("accuracy", result.Accuracy).
		Msg("forecast run evaluated")
	return result, nil
}

func forecastRange(totals map[time.Time]float64) (start, end time.Time) {
	for day := range totals {
		if start.IsZero() || day.Before(start) {
			start = day
		}
		if day.After(end) {
			end = day
		}
	}
	return start, end
}
