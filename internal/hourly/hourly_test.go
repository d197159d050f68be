package hourly

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/config"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/types"
)

func testConfig() *config.Config {
	return &config.Config{
		OpenStartHour: 6,
		OpenEndHour:   18,
		OperatingWeekdays: map[time.Weekday]bool{
			time.Monday: true, time.Tuesday: true, time.Wednesday: true,
			time.Thursday: true, time.Friday: true,
		},
		OccupancyTarget: 0.80,
	}
}

// monday is an operating weekday used throughout.
var monday = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

func dailyRow(vol float64, seg types.BehaviorSegment) types.DailyForecast {
	return types.DailyForecast{
		Date:       monday,
		Service:    "switchboard",
		Segment:    seg,
		VolumeLow:  vol * 0.8,
		Volume:     vol,
		VolumeHigh: vol * 1.2,
		AHTSecs:    180,
		AWTSecs:    20,
	}
}

func sumVolumes(rows []types.HourlyForecast) (low, vol, high int) {
	for _, r := range rows {
		low += r.VolumeLow
		vol += r.Volume
		high += r.VolumeHigh
	}
	return
}

func TestDisaggregateConservesDailyTotal(t *testing.T) {
	d := NewDisaggregator(testConfig(), zerolog.Nop())

	// History with an uneven intraday shape.
	var hist []types.TimeSeriesRecord
	for h := 6; h < 18; h++ {
		hist = append(hist, types.TimeSeriesRecord{
			Timestamp: monday.AddDate(0, 0, -7).Add(time.Duration(h) * time.Hour),
			Service:   "switchboard",
			Calls:     1 + h%5*7,
		})
	}
	profile := BuildShapeProfile(hist)

	for _, total := range []float64{0, 1, 17.4, 99.9, 100, 1234.56} {
		rows := d.Disaggregate([]types.DailyForecast{dailyRow(total, types.SegmentHighVolumeShort)}, profile)
		if len(rows) != 24 {
			t.Fatalf("expected 24 hourly rows, got %d", len(rows))
		}
		_, vol, _ := sumVolumes(rows)
		if diff := math.Abs(float64(vol) - total); diff > 2 {
			t.Errorf("total %v: hourly sum %d drifts by %v", total, vol, diff)
		}
	}
}

func TestDisaggregateConservesServiceTotal(t *testing.T) {
	d := NewDisaggregator(testConfig(), zerolog.Nop())

	// One service split evenly across six segment rows. Each row alone
	// rounds up (16.5 -> 17), so per-row rounding would emit 102 calls
	// against a service total of 99; conservation holds at service grain.
	segments := []types.BehaviorSegment{
		types.SegmentLowVolumeShort, types.SegmentLowVolumeLong,
		types.SegmentHighVolumeShort, types.SegmentHighVolumeLong,
		types.SegmentUnknown, types.SegmentLowVolumeShort,
	}
	var daily []types.DailyForecast
	for _, seg := range segments {
		daily = append(daily, dailyRow(16.5, seg))
	}

	rows := d.Disaggregate(daily, BuildShapeProfile(nil))
	_, vol, _ := sumVolumes(rows)
	if vol != 99 {
		t.Errorf("service total 99.0 emitted %d hourly calls", vol)
	}
	if diff := math.Abs(float64(vol) - 99.0); diff > 2 {
		t.Errorf("service-level drift %v exceeds 2", diff)
	}
}

func TestDisaggregateMasksClosedHours(t *testing.T) {
	d := NewDisaggregator(testConfig(), zerolog.Nop())

	// Profile with weight on closed hours; the mask must still win.
	hist := []types.TimeSeriesRecord{
		{Timestamp: monday.AddDate(0, 0, -7).Add(3 * time.Hour), Service: "switchboard", Calls: 50},
		{Timestamp: monday.AddDate(0, 0, -7).Add(10 * time.Hour), Service: "switchboard", Calls: 50},
	}
	profile := BuildShapeProfile(hist)

	rows := d.Disaggregate([]types.DailyForecast{dailyRow(100, types.SegmentHighVolumeShort)}, profile)
	for _, r := range rows {
		h := r.Timestamp.Hour()
		if (h < 6 || h >= 18) && r.Volume != 0 {
			t.Errorf("closed hour %d got volume %d", h, r.Volume)
		}
	}
	_, vol, _ := sumVolumes(rows)
	if vol != 100 {
		t.Errorf("masked volume should renormalize into open hours, sum %d", vol)
	}
}

func TestDisaggregateAbsenceBypassesMask(t *testing.T) {
	d := NewDisaggregator(testConfig(), zerolog.Nop())

	// Absence traffic observed at night must stay at night.
	hist := []types.TimeSeriesRecord{
		{Timestamp: monday.AddDate(0, 0, -7).Add(2 * time.Hour), Service: "switchboard", Segment: types.SegmentAbsence, Calls: 100},
	}
	profile := BuildShapeProfile(hist)

	rows := d.Disaggregate([]types.DailyForecast{dailyRow(50, types.SegmentAbsence)}, profile)
	nightVolume := 0
	for _, r := range rows {
		if h := r.Timestamp.Hour(); h < 6 || h >= 18 {
			nightVolume += r.Volume
		}
	}
	if nightVolume == 0 {
		t.Error("absence segment should keep night volume")
	}
}

func TestDisaggregateEvenSplitFallback(t *testing.T) {
	d := NewDisaggregator(testConfig(), zerolog.Nop())

	// No profile at all: volume splits evenly across the 12 open hours.
	rows := d.Disaggregate([]types.DailyForecast{dailyRow(120, types.SegmentHighVolumeShort)}, BuildShapeProfile(nil))

	for _, r := range rows {
		h := r.Timestamp.Hour()
		if h >= 6 && h < 18 {
			if r.Volume != 10 {
				t.Errorf("hour %d: expected even split of 10, got %d", h, r.Volume)
			}
		} else if r.Volume != 0 {
			t.Errorf("closed hour %d got volume %d", h, r.Volume)
		}
	}
}

func TestDisaggregateClosedDayDropsVolume(t *testing.T) {
	d := NewDisaggregator(testConfig(), zerolog.Nop())

	sunday := time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC)
	row := dailyRow(80, types.SegmentHighVolumeShort)
	row.Date = sunday

	rows := d.Disaggregate([]types.DailyForecast{row}, BuildShapeProfile(nil))
	_, vol, _ := sumVolumes(rows)
	if vol != 0 {
		t.Errorf("non-operating day should produce zero hourly volume, got %d", vol)
	}
}

func TestDisaggregateZeroVolumeHasZeroHandleTimes(t *testing.T) {
	d := NewDisaggregator(testConfig(), zerolog.Nop())

	rows := d.Disaggregate([]types.DailyForecast{dailyRow(1, types.SegmentHighVolumeShort)}, BuildShapeProfile(nil))
	for _, r := range rows {
		if r.Volume == 0 && (r.AHTSecs != 0 || r.AWTSecs != 0 || r.StaffingMins != 0) {
			t.Errorf("zero-volume hour %d carries handle times: %+v", r.Timestamp.Hour(), r)
		}
		if r.Volume > 0 && r.AHTSecs != 180 {
			t.Errorf("volume hour should carry the daily AHT, got %v", r.AHTSecs)
		}
	}
}

func TestShapeProfileNormalizes(t *testing.T) {
	hist := []types.TimeSeriesRecord{
		{Timestamp: monday.Add(8 * time.Hour), Service: "a", Calls: 30},
		{Timestamp: monday.Add(9 * time.Hour), Service: "a", Calls: 10},
		{Timestamp: monday.AddDate(0, 0, 7).Add(8 * time.Hour), Service: "a", Calls: 20},
	}
	p := BuildShapeProfile(hist)

	shares, ok := p.Shares("a", 0)
	if !ok {
		t.Fatal("expected shares for (a, Monday)")
	}
	sum := 0.0
	for _, s := range shares {
		sum += s
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("shares should sum to 1, got %v", sum)
	}
	if math.Abs(shares[8]-50.0/60.0) > 1e-9 {
		t.Errorf("hour 8 share wrong: %v", shares[8])
	}

	if _, ok := p.Shares("a", 3); ok {
		t.Error("no Thursday history, shares should be absent")
	}
}
