package trainer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/calendar"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/config"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/features"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/model"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/storage"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/types"
)

// Target names for the five persisted artifacts.
const (
	TargetVolumeLow    = "volume_low"
	TargetVolumeMedian = "volume_median"
	TargetVolumeHigh   = "volume_high"
	TargetAHT          = "aht"
	TargetAWT          = "awt"
)

// Trainer fits the quantile volume models and the point-estimate handle-time
// models from warehouse history and persists them as artifacts.
type Trainer struct {
	cfg    *config.Config
	cal    *calendar.Calendar
	store  storage.Store
	logger zerolog.Logger
}

// New creates a trainer.
func New(cfg *config.Config, cal *calendar.Calendar, store storage.Store, logger zerolog.Logger) *Trainer {
	return &Trainer{cfg: cfg, cal: cal, store: store, logger: logger.With().Str("component", "trainer").Logger()}
}

// Report summarizes one training run.
type Report struct {
	Trained   []string
	Skipped   []string
	TrainRows int
	StartedAt time.Time
	Duration  time.Duration
}

// Run trains all targets on history up to now and persists the artifacts.
// A target with too few usable rows is skipped with a warning; only a run
// where every target is skipped fails.
func (t *Trainer) Run(ctx context.Context, now time.Time) (*Report, error) {
	started := time.Now()
	now = calendar.Normalize(now)
	from := calendar.Midnight(now.AddDate(0, -t.cfg.TrainWindowMonths, 0))
	to := calendar.Midnight(now).Add(-time.Second) // yesterday 23:59:59, today is partial

	hist, err := t.store.HourlyHistory(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load training history: %w", err)
	}
	if len(hist) == 0 {
		return nil, fmt.Errorf("no history in training window %s..%s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	// Densify from the first observation, not the window start: leading
	// all-zero days before the warehouse begins are not real demand.
	first := hist[0].Timestamp
	for _, r := range hist {
		if r.Timestamp.Before(first) {
			first = r.Timestamp
		}
	}
	dense := features.Densify(hist, first, to, time.Hour)
	report := &Report{StartedAt: started}

	if err := t.trainVolume(ctx, dense, report); err != nil {
		return nil, err
	}
	if err := t.trainHandleTimes(ctx, dense, report); err != nil {
		return nil, err
	}

	if len(report.Trained) == 0 {
		return nil, fmt.Errorf("no target had enough history to train (min %d rows)", t.cfg.MinTrainRows)
	}

	report.Duration = time.Since(started)
	t.logger.Info().
		Strs("trained", report.Trained).
		Strs("skipped", report.Skipped).
		Int("train_rows", report.TrainRows).
		Dur("duration", report.Duration).
		Msg("training run complete")
	return report, nil
}

// trainVolume fits the three quantile models on the daily per-service frame.
func (t *Trainer) trainVolume(ctx context.Context, dense []types.TimeSeriesRecord, report *Report) error {
	daily := features.RollupDaily(dense, features.ByService)
	rows := features.Build(t.cal, daily, t.cfg.Lags)

	// Rows without a one-day lag carry no usable recent signal; drop them.
	// Longer missing lags fill with zero inside the encoder.
	usable := rows[:0:0]
	for _, r := range rows {
		if r.HasLag(1) {
			usable = append(usable, r)
		}
	}
	report.TrainRows = len(usable)

	spec := volumeSpec(t.cfg.Lags)
	train, valid := t.splitByDate(usable)
	targets := []struct {
		name  string
		alpha float64
	}{
		{TargetVolumeLow, t.cfg.QuantileLow},
		{TargetVolumeMedian, 0.5},
		{TargetVolumeHigh, t.cfg.QuantileHigh},
	}
	for _, target := range targets {
		params := t.gbtParams(model.ObjectiveQuantile, target.alpha)
		if err := t.trainOne(ctx, target.name, train, valid, spec, params, volumeTarget, report); err != nil {
			return err
		}
	}
	return nil
}

// trainHandleTimes fits AHT and AWT on the daily per-segment frame,
// restricted to days with observed calls: a zero-traffic day says nothing
// about handle times.
func (t *Trainer) trainHandleTimes(ctx context.Context, dense []types.TimeSeriesRecord, report *Report) error {
	daily := features.RollupDaily(dense, features.BySegment)
	active := daily[:0:0]
	for _, r := range daily {
		if r.Calls > 0 {
			active = append(active, r)
		}
	}
	rows := features.Build(t.cal, active, nil)

	spec := segmentSpec()
	train, valid := t.splitByDate(rows)
	params := t.gbtParams(model.ObjectiveSquared, 0)

	if err := t.trainOne(ctx, TargetAHT, train, valid, spec, params, ahtTarget, report); err != nil {
		return err
	}
	return t.trainOne(ctx, TargetAWT, train, valid, spec, params, awtTarget, report)
}

func (t *Trainer) trainOne(ctx context.Context, name string, train, valid []features.Row, spec frameSpec, params model.Params, target func(features.Row) float64, report *Report) error {
	if len(train) < t.cfg.MinTrainRows {
		t.logger.Warn().
			Str("target", name).
			Int("rows", len(train)).
			Int("min_rows", t.cfg.MinTrainRows).
			Msg("skipping target, not enough training rows")
		report.Skipped = append(report.Skipped, name)
		return nil
	}

	tables := fitCategories(train, spec)
	trainDS := encode(train, spec, tables, target)
	var validDS *model.Dataset
	if len(valid) > 0 {
		validDS = encode(valid, spec, tables, target)
	}

	m, err := model.Train(trainDS, params, validDS)
	if err != nil {
		return fmt.Errorf("failed to train %s: %w", name, err)
	}

	artifact := model.NewArtifact(name, spec.featureNames, spec.categorical, tables, m, time.Now().UTC(), trainDS.Len())
	data, err := artifact.Marshal()
	if err != nil {
		return err
	}
	if err := t.store.PutModelArtifact(ctx, name, data); err != nil {
		return err
	}

	report.Trained = append(report.Trained, name)
	t.logger.Info().
		Str("target", name).
		Int("train_rows", trainDS.Len()).
		Int("trees", len(m.Trees)).
		Msg("target trained")
	return nil
}

// splitByDate carves the trailing validation window off the frame: the last
// ValidationDays of dates validate, everything earlier trains. With too
// little history for a meaningful split everything trains.
func (t *Trainer) splitByDate(rows []features.Row) (train, valid []features.Row) {
	var maxDate time.Time
	for _, r := range rows {
		if r.Timestamp.After(maxDate) {
			maxDate = r.Timestamp
		}
	}
	cutoff := maxDate.AddDate(0, 0, -t.cfg.ValidationDays)

	for _, r := range rows {
		if r.Timestamp.After(cutoff) {
			valid = append(valid, r)
		} else {
			train = append(train, r)
		}
	}
	if len(train) < t.cfg.MinTrainRows {
		return rows, nil
	}
	return train, valid
}

func (t *Trainer) gbtParams(obj model.Objective, alpha float64) model.Params {
	return model.Params{
		Objective:           obj,
		Alpha:               alpha,
		NumTrees:            t.cfg.NumTrees,
		LearningRate:        t.cfg.LearningRate,
		MaxDepth:            t.cfg.MaxDepth,
		MinLeafSamples:      t.cfg.MinLeafSamples,
		EarlyStoppingRounds: t.cfg.EarlyStoppingRounds,
	}
}

func volumeTarget(r features.Row) float64 { return float64(r.Calls) }

func ahtTarget(r features.Row) float64 {
	if r.AnsweredCalls == 0 {
		return 0
	}
	return r.TalkTimeSecs / float64(r.AnsweredCalls)
}

func awtTarget(r features.Row) float64 {
	if r.Calls == 0 {
		return 0
	}
	return r.WaitTimeSecs / float64(r.Calls)
}
