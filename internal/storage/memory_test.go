package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/storage"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/types"
)

func TestHourlyHistoryWindow(t *testing.T) {
	store := storage.NewMemoryStore()
	base := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	for d := 0; d < 5; d++ {
		store.SeedHistory(types.TimeSeriesRecord{
			Timestamp: base.AddDate(0, 0, d).Add(9 * time.Hour),
			Service:   "switchboard",
			Calls:     10,
		})
	}

	got, err := store.HourlyHistory(context.Background(), base.AddDate(0, 0, 1), base.AddDate(0, 0, 3).Add(23*time.Hour))
	assert.NoError(t, err)
	assert.Len(t, got, 3, "window should be inclusive on both ends")
}

func TestReplaceForecastSwapsNotAppends(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	date := time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)

	first := types.NewForecastRun(time.Date(2025, 9, 1, 3, 0, 0, 0, time.UTC), 14)
	err := store.ReplaceForecast(ctx, first, []types.DailyForecast{
		{Date: date, Service: "switchboard", Volume: 50},
		{Date: date.AddDate(0, 0, 1), Service: "switchboard", Volume: 60},
	}, nil)
	assert.NoError(t, err)

	second := types.NewForecastRun(time.Date(2025, 9, 2, 3, 0, 0, 0, time.UTC), 14)
	err = store.ReplaceForecast(ctx, second, []types.DailyForecast{
		{Date: date.AddDate(0, 0, 1), Service: "switchboard", Volume: 70},
	}, nil)
	assert.NoError(t, err)

	daily, err := store.CurrentDailyForecast(ctx)
	assert.NoError(t, err)
	assert.Len(t, daily, 1, "replace must drop the previous forecast entirely")
	assert.Equal(t, 70.0, daily[0].Volume)

	runs, err := store.Runs(ctx, 10)
	assert.NoError(t, err)
	if assert.Len(t, runs, 2, "every run is recorded") {
		assert.Equal(t, second.RunID, runs[0].RunID, "runs list newest first")
	}
}

func TestArchiveKeepsEveryRun(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	date := time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)

	older := types.NewForecastRun(time.Date(2025, 9, 1, 3, 0, 0, 0, time.UTC), 14)
	newer := types.NewForecastRun(time.Date(2025, 9, 2, 3, 0, 0, 0, time.UTC), 14)
	assert.NoError(t, store.ArchiveForecast(ctx, older, []types.DailyForecast{{Date: date, Volume: 40}}))
	assert.NoError(t, store.ArchiveForecast(ctx, newer, []types.DailyForecast{{Date: date, Volume: 55}}))

	latest, err := store.LatestRunID(ctx)
	assert.NoError(t, err)
	assert.Equal(t, newer.RunID, latest)

	// Both snapshots stay addressable after the replace-style swap elsewhere.
	oldTotals, err := store.ArchivedDailyTotals(ctx, older.RunID)
	assert.NoError(t, err)
	assert.Equal(t, 40.0, oldTotals[date])

	newTotals, err := store.ArchivedDailyTotals(ctx, newer.RunID)
	assert.NoError(t, err)
	assert.Equal(t, 55.0, newTotals[date])
}

func TestArchivedDailyTotalsSumSegments(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	date := time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)

	run := types.NewForecastRun(time.Date(2025, 9, 1, 3, 0, 0, 0, time.UTC), 14)
	assert.NoError(t, store.ArchiveForecast(ctx, run, []types.DailyForecast{
		{Date: date, Service: "switchboard", Segment: types.SegmentHighVolumeShort, Volume: 30},
		{Date: date, Service: "switchboard", Segment: types.SegmentLowVolumeLong, Volume: 12},
	}))

	totals, err := store.ArchivedDailyTotals(ctx, run.RunID)
	assert.NoError(t, err)
	assert.Equal(t, 42.0, totals[date])
}

func TestActualDailyTotalsRollUpHours(t *testing.T) {
	store := storage.NewMemoryStore()
	date := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	store.SeedHistory(
		types.TimeSeriesRecord{Timestamp: date.Add(9 * time.Hour), Service: "a", Calls: 10},
		types.TimeSeriesRecord{Timestamp: date.Add(10 * time.Hour), Service: "a", Calls: 5},
		types.TimeSeriesRecord{Timestamp: date.Add(10 * time.Hour), Service: "b", Calls: 3},
		types.TimeSeriesRecord{Timestamp: date.AddDate(0, 0, 1).Add(9 * time.Hour), Service: "a", Calls: 99},
	)

	totals, err := store.ActualDailyTotals(context.Background(), date, date.Add(24*time.Hour-time.Second))
	assert.NoError(t, err)
	assert.Len(t, totals, 1)
	assert.Equal(t, 18.0, totals[date], "all services fold into the day total")
}

func TestModelArtifactRoundTrip(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	_, err := store.GetModelArtifact(ctx, "volume_median")
	assert.Error(t, err, "missing artifact is an error, not empty bytes")

	payload := []byte(`{"target":"volume_median"}`)
	assert.NoError(t, store.PutModelArtifact(ctx, "volume_median", payload))

	got, err := store.GetModelArtifact(ctx, "volume_median")
	assert.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReplaceSegmentsSwaps(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	assert.NoError(t, store.ReplaceSegments(ctx, []types.SegmentAssignment{
		{CustomerKey: "c1", Segment: types.SegmentHighVolumeShort},
		{CustomerKey: "c2", Segment: types.SegmentAbsence},
	}))
	assert.NoError(t, store.ReplaceSegments(ctx, []types.SegmentAssignment{
		{CustomerKey: "c1", Segment: types.SegmentLowVolumeLong},
	}))

	got, err := store.Segments(ctx)
	assert.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, types.SegmentLowVolumeLong, got[0].Segment)
}

func TestPerformanceLogNewestFirst(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"20250830T030000", "20250831T030000", "20250901T030000"} {
		assert.NoError(t, store.AppendPerformance(ctx, types.EvaluationResult{RunID: id}))
	}

	got, err := store.Performance(ctx, 2)
	assert.NoError(t, err)
	if assert.Len(t, got, 2) {
		assert.Equal(t, "20250901T030000", got[0].RunID)
		assert.Equal(t, "20250831T030000", got[1].RunID)
	}
}
