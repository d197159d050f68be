package storage

import (
	"context"
	"time"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/types"
)

// Store defines the warehouse interface the pipeline runs against.
//
// Forecast output follows a replace-then-archive discipline: ReplaceForecast
// atomically swaps the current forecast tables, then ArchiveForecast appends
// the same daily rows to an append-only archive keyed by run id. Evaluation
// reads the archive; the API reads the current tables.
type Store interface {
	// HourlyHistory returns observed hourly traffic in [from, to], both
	// bounds inclusive.
	HourlyHistory(ctx context.Context, from, to time.Time) ([]types.TimeSeriesRecord, error)

	// CustomerProfiles returns per-customer aggregates for segmentation.
	CustomerProfiles(ctx context.Context) ([]types.CustomerProfile, error)

	// ReplaceSegments atomically replaces the customer behavior dimension.
	ReplaceSegments(ctx context.Context, assignments []types.SegmentAssignment) error
	Segments(ctx context.Context) ([]types.SegmentAssignment, error)

	// PutModelArtifact upserts the serialized artifact for a target; the
	// previous artifact for the same target is overwritten.
	PutModelArtifact(ctx context.Context, target string, data []byte) error
	GetModelArtifact(ctx context.Context, target string) ([]byte, error)

	// ReplaceForecast swaps the current daily and hourly forecast tables in
	// one transaction and records the run.
	ReplaceForecast(ctx context.Context, run types.ForecastRun, daily []types.DailyForecast, hourly []types.HourlyForecast) error

	// ArchiveForecast appends daily rows to the run-keyed archive.
	ArchiveForecast(ctx context.Context, run types.ForecastRun, daily []types.DailyForecast) error

	// LatestRunID returns the lexicographically largest archived run id, or
	// "" when the archive is empty.
	LatestRunID(ctx context.Context) (string, error)
	Runs(ctx context.Context, limit int) ([]types.ForecastRun, error)

	// CurrentDailyForecast and CurrentHourlyForecast read the live tables.
	CurrentDailyForecast(ctx context.Context) ([]types.DailyForecast, error)
	CurrentHourlyForecast(ctx context.Context, from, to time.Time) ([]types.HourlyForecast, error)

	// ArchivedForecast returns the archived daily rows of one run.
	ArchivedForecast(ctx context.Context, runID string) ([]types.DailyForecast, error)

	// ArchivedDailyTotals sums archived daily volume per date for one run.
	ArchivedDailyTotals(ctx context.Context, runID string) (map[time.Time]float64, error)

	// ActualDailyTotals sums observed daily call volume per date.
	ActualDailyTotals(ctx context.Context, from, to time.Time) (map[time.Time]float64, error)

	AppendPerformance(ctx context.Context, result types.EvaluationResult) error
	Performance(ctx context.Context, limit int) ([]types.EvaluationResult, error)

	Close() error
}
