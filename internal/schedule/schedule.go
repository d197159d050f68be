package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/calendar"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/config"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/pipeline"
)

// runTimeout bounds one nightly pipeline execution.
const runTimeout = 2 * time.Hour

// Runner triggers the full pipeline once per day at the configured wall
// clock time.
type Runner struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	logger   zerolog.Logger
}

// New creates a Runner
func New(cfg *config.Config, p *pipeline.Pipeline, logger zerolog.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		pipeline: p,
		logger:   logger.With().Str("component", "schedule").Logger(),
	}
}

// Start runs the nightly loop until the context is cancelled. A failed run
// is logged and the loop keeps going; the next night retries.
func (r *Runner) Start(ctx context.Context) {
	hour, minute, err := parseAt(r.cfg.ScheduleAt)
	if err != nil {
		r.logger.Error().Err(err).Str("at", r.cfg.ScheduleAt).Msg("invalid schedule time, scheduler disabled")
		return
	}

	r.logger.Info().Str("at", r.cfg.ScheduleAt).Msg("scheduler started")

	for {
		now := calendar.Now(r.cfg.Timezone)
		wait := nextRun(now, hour, minute).Sub(now)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info().Msg("scheduler stopped")
			return

		case <-timer.C:
			runCtx, cancel := context.WithTimeout(ctx, runTimeout)
			started := time.Now()
			if err := r.pipeline.RunAll(runCtx); err != nil {
				r.logger.Error().Err(err).Dur("duration", time.Since(started)).Msg("nightly pipeline run failed")
			} else {
				r.logger.Info().Dur("duration", time.Since(started)).Msg("nightly pipeline run complete")
			}
			cancel()
		}
	}
}

// nextRun returns the next occurrence of hour:minute strictly after now.
func nextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func parseAt(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("bad hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("bad minute in %q", s)
	}
	return hour, minute, nil
}
