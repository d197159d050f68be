package pipeline

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/calendar"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/config"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/storage"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Timezone:           "Europe/Stockholm",
		HorizonDays:        7,
		Lags:               []int{1, 7, 14},
		TrainWindowMonths:  16,
		ValidationDays:     14,
		MinTrainRows:       30,
		QuantileLow:        0.10,
		QuantileHigh:       0.90,
		NumTrees:           20,
		LearningRate:       0.2,
		MaxDepth:           3,
		MinLeafSamples:     5,
		BlendMixWeight:     0.5,
		BlendMinConfidence: 1.0,
		Lag7OverrideRatio:  0.25,
		Lag7FloorMin:       5.0,
		FallbackWindowDays: 35,
		OccupancyTarget:    0.80,
		OpenStartHour:      6,
		OpenEndHour:        18,
		OperatingWeekdays: map[time.Weekday]bool{
			time.Monday: true, time.Tuesday: true, time.Wednesday: true,
			time.Thursday: true, time.Friday: true,
		},
		AbsenceLineNumber: "+46607890220",
		AbsencePatterns:   []string{"sjukanmälan"},
	}
}

func TestNewSelectsSegmentStrategy(t *testing.T) {
	cfg := testConfig()
	p := New(cfg, storage.NewMemoryStore(), zerolog.Nop())
	if got := p.strategy.Name(); got != "rule_based" {
		t.Errorf("default strategy = %s, want rule_based", got)
	}

	cfg.SegmentStrategy = "kmeans"
	p = New(cfg, storage.NewMemoryStore(), zerolog.Nop())
	if got := p.strategy.Name(); got != "kmeans" {
		t.Errorf("strategy = %s, want kmeans", got)
	}
}

// seedWarehouse loads deterministic weekday traffic and a small customer
// base relative to the real clock, since the pipeline stages anchor on it.
func seedWarehouse(store *storage.MemoryStore, cfg *config.Config) {
	today := calendar.Midnight(calendar.Now(cfg.Timezone))
	start := today.AddDate(0, 0, -150)
	for day := start; day.Before(today); day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		for h := 8; h < 16; h++ {
			calls := 5 + h%3
			store.SeedHistory(types.TimeSeriesRecord{
				Timestamp:     day.Add(time.Duration(h) * time.Hour),
				Service:       "switchboard",
				Segment:       types.SegmentHighVolumeShort,
				Calls:         calls,
				AnsweredCalls: calls,
				TalkTimeSecs:  float64(calls) * 180,
				WaitTimeSecs:  float64(calls) * 15,
			})
		}
	}

	store.SeedProfiles(
		types.CustomerProfile{CustomerKey: "c1", Name: "Alfa AB", Service: "switchboard", TotalCalls: 900, AvgHandleSecs: 120, PeakPattern: "Mon-9"},
		types.CustomerProfile{CustomerKey: "c2", Name: "Beta AB", Service: "switchboard", TotalCalls: 40, AvgHandleSecs: 500, PeakPattern: "Tue-14"},
		types.CustomerProfile{CustomerKey: "c3", Name: "Sjukanmälan", Service: "switchboard", LandingNumber: "+46607890220", TotalCalls: 200, AvgHandleSecs: 30, PeakPattern: "Mon-6"},
		types.CustomerProfile{CustomerKey: "c4", Name: "Gamma AB", Service: "switchboard", TotalCalls: 0, AvgHandleSecs: 0, PeakPattern: "unclear"},
	)
}

func TestRunAllEndToEnd(t *testing.T) {
	cfg := testConfig()
	store := storage.NewMemoryStore()
	seedWarehouse(store, cfg)

	p := New(cfg, store, zerolog.Nop())
	ctx := context.Background()

	// First full run: evaluation has nothing to score yet, which must not
	// stop segmentation, training or forecasting.
	if err := p.RunAll(ctx); err != nil {
		t.Fatalf("pipeline run failed: %v", err)
	}

	segments, err := store.Segments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 4 {
		t.Fatalf("expected 4 segment assignments, got %d", len(segments))
	}
	bySegment := make(map[string]types.BehaviorSegment)
	for _, s := range segments {
		bySegment[s.CustomerKey] = s.Segment
	}
	if bySegment["c3"] != types.SegmentAbsence {
		t.Errorf("absence line customer assigned %s", bySegment["c3"])
	}
	if bySegment["c4"] != types.SegmentUnknown {
		t.Errorf("silent customer assigned %s", bySegment["c4"])
	}

	daily, err := store.CurrentDailyForecast(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(daily) == 0 {
		t.Fatal("no daily forecast committed")
	}

	hourly, err := store.CurrentHourlyForecast(ctx, time.Time{}, time.Now().AddDate(1, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(hourly) != len(daily)*24 {
		t.Fatalf("expected %d hourly rows, got %d", len(daily)*24, len(hourly))
	}

	// Conservation: each daily row's hourly split sums back within rounding.
	hourlySums := make(map[types.HierarchyKey]map[time.Time]int)
	for _, h := range hourly {
		key := types.HierarchyKey{Service: h.Service, Segment: h.Segment}
		if hourlySums[key] == nil {
			hourlySums[key] = make(map[time.Time]int)
		}
		hourlySums[key][calendar.Midnight(h.Timestamp)] += h.Volume
	}
	for _, d := range daily {
		got := hourlySums[types.HierarchyKey{Service: d.Service, Segment: d.Segment}][d.Date]
		if diff := math.Abs(float64(got) - d.Volume); diff > 2 {
			t.Errorf("%s %s/%s: hourly sum %d vs daily %v", d.Date.Format("2006-01-02"), d.Service, d.Segment, got, d.Volume)
		}
	}

	runID, err := store.LatestRunID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if runID == "" {
		t.Fatal("forecast run not archived")
	}

	// Second run: now an archive exists but none of its days are complete,
	// so evaluation still skips without failing the night.
	if err := p.RunAll(ctx); err != nil {
		t.Fatalf("second pipeline run failed: %v", err)
	}
	runs, err := store.Runs(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 recorded runs, got %d", len(runs))
	}
}

func TestSegmentFailsWithoutProfiles(t *testing.T) {
	p := New(testConfig(), storage.NewMemoryStore(), zerolog.Nop())
	if err := p.Segment(context.Background()); err == nil {
		t.Fatal("expected error with no customer profiles")
	}
}

func TestSegmentSkipsExcludedCustomers(t *testing.T) {
	cfg := testConfig()
	cfg.ExcludedCustomerIDs = []string{"c2"}
	store := storage.NewMemoryStore()
	store.SeedProfiles(
		types.CustomerProfile{CustomerKey: "c1", Name: "Alfa AB", TotalCalls: 100, AvgHandleSecs: 120},
		types.CustomerProfile{CustomerKey: "c2", Name: "Testkund", TotalCalls: 5000, AvgHandleSecs: 10},
	)

	p := New(cfg, store, zerolog.Nop())
	if err := p.Segment(context.Background()); err != nil {
		t.Fatalf("segmentation failed: %v", err)
	}

	segments, err := store.Segments(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 1 || segments[0].CustomerKey != "c1" {
		t.Errorf("excluded customer leaked into segments: %+v", segments)
	}
}
