package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/calendar"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/config"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/evaluate"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/forecast"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/hourly"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/metrics"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/segment"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/storage"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/trainer"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/types"
)

// shapeWindowDays is how far back the intraday shape profile looks. Longer
// than the blend window: the weekly shape is stable and benefits from more
// pooled days.
const shapeWindowDays = 91

// Pipeline wires the full forecasting flow: segmentation, training,
// rolling forecast generation, hourly disaggregation, persistence and
// evaluation. Each stage is also runnable on its own.
type Pipeline struct {
	cfg    *config.Config
	cal    *calendar.Calendar
	store  storage.Store
	logger zerolog.Logger

	strategy  segment.Strategy
	trainer   *trainer.Trainer
	generator *forecast.Generator
	disagg    *hourly.Disaggregator
	evaluator *evaluate.Evaluator
}

// New assembles a pipeline around the given store.
func New(cfg *config.Config, store storage.Store, logger zerolog.Logger) *Pipeline {
	cal := calendar.New()
	overrides := segment.Overrides{
		AbsenceLineNumber: cfg.AbsenceLineNumber,
		Patterns:          cfg.AbsencePatterns,
	}

	// Rule-based thresholds are the default; clustering is opt-in.
	var strategy segment.Strategy = &segment.RuleBased{Overrides: overrides, Logger: logger}
	if cfg.SegmentStrategy == "kmeans" {
		strategy = &segment.KMeans{Overrides: overrides, Logger: logger}
	}

	return &Pipeline{
		cfg:    cfg,
		cal:    cal,
		store:  store,
		logger: logger.With().Str("component", "pipeline").Logger(),

		strategy:  strategy,
		trainer:   trainer.New(cfg, cal, store, logger),
		generator: forecast.New(cfg, cal, store, logger),
		disagg:    hourly.NewDisaggregator(cfg, logger),
		evaluator: evaluate.New(cfg, store, logger),
	}
}

// Segment rebuilds the customer behavior dimension.
func (p *Pipeline) Segment(ctx context.Context) error {
	profiles, err := p.store.CustomerProfiles(ctx)
	if err != nil {
		metrics.Get().RecordSegmentationError()
		return fmt.Errorf("failed to load customer profiles: %w", err)
	}
	profiles = p.filterExcluded(profiles)
	if len(profiles) == 0 {
		metrics.Get().RecordSegmentationError()
		return fmt.Errorf("no customer profiles to segment")
	}

	assignments := p.strategy.Assign(profiles)
	if err := p.store.ReplaceSegments(ctx, assignments); err != nil {
		metrics.Get().RecordSegmentationError()
		return fmt.Errorf("failed to persist segments: %w", err)
	}

	metrics.Get().RecordSegmentationRun(len(assignments))
	p.logger.Info().
		Str("strategy", p.strategy.Name()).
		Int("customers", len(assignments)).
		Msg("segmentation complete")
	return nil
}

// Train fits and persists all model artifacts.
func (p *Pipeline) Train(ctx context.Context) (*trainer.Report, error) {
	report, err := p.trainer.Run(ctx, calendar.Now(p.cfg.Timezone))
	if err != nil {
		metrics.Get().RecordTrainingError()
		return nil, err
	}
	metrics.Get().RecordTrainingRun(report.Duration, report.Trained)
	return report, nil
}

// Forecast generates, disaggregates, and commits a forecast run. The
// current forecast tables are replaced, never merged: a run fully owns the
// horizon it covers. The same daily rows are appended to the run archive
// for later evaluation.
func (p *Pipeline) Forecast(ctx context.Context) (types.ForecastRun, error) {
	started := time.Now()
	now := calendar.Now(p.cfg.Timezone)

	bundle, err := forecast.LoadBundle(ctx, p.store)
	if err != nil {
		metrics.Get().RecordForecastError()
		return types.ForecastRun{}, err
	}

	daily, err := p.generator.Generate(ctx, bundle, now)
	if err != nil {
		metrics.Get().RecordForecastError()
		return types.ForecastRun{}, err
	}

	profile, err := p.shapeProfile(ctx, now)
	if err != nil {
		metrics.Get().RecordForecastError()
		return types.ForecastRun{}, err
	}
	hourlyRows := p.disagg.Disaggregate(daily, profile)

	run := types.NewForecastRun(now, p.cfg.HorizonDays)
	if err := p.store.ReplaceForecast(ctx, run, daily, hourlyRows); err != nil {
		metrics.Get().RecordForecastError()
		return types.ForecastRun{}, fmt.Errorf("failed to commit forecast: %w", err)
	}
	if err := p.store.ArchiveForecast(ctx, run, daily); err != nil {
		metrics.Get().RecordForecastError()
		return types.ForecastRun{}, fmt.Errorf("failed to archive forecast: %w", err)
	}

	metrics.Get().RecordForecastRun(run.RunID, time.Since(started), len(hourlyRows))
	p.logger.Info().
		Str("run_id", run.RunID).
		Int("daily_rows", len(daily)).
		Int("hourly_rows", len(hourlyRows)).
		Dur("duration", time.Since(started)).
		Msg("forecast run committed")
	return run, nil
}

// Evaluate scores the latest archived run against actuals.
func (p *Pipeline) Evaluate(ctx context.Context) (*types.EvaluationResult, error) {
	result, err := p.evaluator.Run(ctx, calendar.Now(p.cfg.Timezone))
	if err != nil {
		return nil, err
	}
	metrics.Get().RecordEvaluation(result.WMAPE, result.Accuracy)
	return result, nil
}

// RunAll executes the nightly sequence. Evaluation of the previous run
// happens first so it scores the run before it is superseded; a window with
// nothing to evaluate is logged and skipped, not fatal.
func (p *Pipeline) RunAll(ctx context.Context) error {
	if _, err := p.Evaluate(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("evaluation skipped")
	}
	if err := p.Segment(ctx); err != nil {
		return err
	}
	if _, err := p.Train(ctx); err != nil {
		return err
	}
	if _, err := p.Forecast(ctx); err != nil {
		return err
	}
	return nil
}

func (p *Pipeline) shapeProfile(ctx context.Context, now time.Time) (*hourly.ShapeProfile, error) {
	today := calendar.Midnight(now)
	recs, err := p.store.HourlyHistory(ctx, today.AddDate(0, 0, -shapeWindowDays), today.Add(-time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to load shape history: %w", err)
	}
	return hourly.BuildShapeProfile(recs), nil
}

func (p *Pipeline) filterExcluded(profiles []types.CustomerProfile) []types.CustomerProfile {
	if len(p.cfg.ExcludedCustomerIDs) == 0 {
		return profiles
	}
	excluded := make(map[string]bool, len(p.cfg.ExcludedCustomerIDs))
	for _, id := range p.cfg.ExcludedCustomerIDs {
		excluded[id] = true
	}
	out := profiles[:0:0]
	for _, pr := range profiles {
		if excluded[pr.CustomerKey] {
			continue
		}
		out = append(out, pr)
	}
	return out
}
