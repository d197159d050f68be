package types

import "time"

// RunIDLayout is the time layout for run identifiers. The format sorts
// lexicographically by generation time, so "max run id" is always the most
// recent run.
const RunIDLayout = "20060102T150405"

// ForecastRun identifies one complete forecast generation.
type ForecastRun struct {
	RunID       string    `json:"runId"`
	GeneratedAt time.Time `json:"generatedAt"`
	HorizonDays int       `json:"horizonDays"`
}

// NewForecastRun creates a run stamped with the given generation time.
func NewForecastRun(generatedAt time.Time, horizonDays int) ForecastRun {
	return ForecastRun{
		RunID:       generatedAt.Format(RunIDLayout),
		GeneratedAt: generatedAt,
		HorizonDays: horizonDays,
	}
}

// DailyForecast is one forecast day for a (service, segment) pair. Volume
// estimates stay fractional at daily grain; rounding happens during hourly
// disaggregation.
type DailyForecast struct {
	Date         time.Time       `json:"date"`
	Service      ServiceType     `json:"service"`
	Segment      BehaviorSegment `json:"segment"`
	VolumeLow    float64         `json:"volumeLow"`
	Volume       float64         `json:"volume"`
	VolumeHigh   float64         `json:"volumeHigh"`
	AHTSecs      float64         `json:"ahtSecs"`
	AWTSecs      float64         `json:"awtSecs"`
	CallLoadMins float64         `json:"callLoadMins"` // volume * AHT / 60
	StaffingMins float64         `json:"staffingMins"` // call load / occupancy target
}

// HourlyForecast is one business-hour bucket of a disaggregated daily
// forecast. Hourly volumes for a (date, service) sum back to the daily
// forecast within integer-rounding tolerance.
type HourlyForecast struct {
	Timestamp    time.Time       `json:"timestamp"`
	Service      ServiceType     `json:"service"`
	Segment      BehaviorSegment `json:"segment"`
	VolumeLow    int             `json:"volumeLow"`
	Volume       int             `json:"volume"`
	VolumeHigh   int             `json:"volumeHigh"`
	AHTSecs      float64         `json:"ahtSecs"`
	AWTSecs      float64         `json:"awtSecs"`
	CallLoadMins float64         `json:"callLoadMins"`
	StaffingMins float64         `json:"staffingMins"`
}

// EvaluationResult summarizes forecast accuracy for one archived run over an
// evaluation range.
type EvaluationResult struct {
	RunID         string    `json:"runId"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	ActualTotal   float64   `json:"actualTotal"`
	ForecastTotal float64   `json:"forecastTotal"`
	WMAPE         float64   `json:"wmape"`    // percent
	Accuracy      float64   `json:"accuracy"` // 100 - wMAPE, floored at 0
	Days          int       `json:"days"`
	EvaluatedAt   time.Time `json:"evaluatedAt"`
}
