package trainer

import (
	"fmt"
	"strconv"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/features"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/model"
)

// Canonical feature names shared between training and forecasting. The
// artifact's ordered feature list is built from these, so both sides agree
// by construction.
const (
	FeatWeekday         = "weekday"
	FeatDayOfYear       = "day_of_year"
	FeatWeekNum         = "week_num"
	FeatMonth           = "month"
	FeatQuarter         = "quarter"
	FeatIsBusinessDay   = "is_business_day"
	FeatIsDayAfterClose = "is_day_after_closed"
	FeatYearSin         = "year_sin"
	FeatYearCos         = "year_cos"
	FeatService         = "service"
	FeatSegment         = "segment"
)

// LagFeatureName names the lag column for a horizon in days.
func LagFeatureName(lag int) string {
	return fmt.Sprintf("calls_lag_%dd", lag)
}

// frameSpec fixes the feature layout of one training frame.
type frameSpec struct {
	featureNames []string
	categorical  []string
	lags         []int
}

// volumeSpec mirrors the daily volume frame: calendar base features, one
// lag column per horizon, service as the hierarchy categorical.
func volumeSpec(lags []int) frameSpec {
	names := []string{FeatWeekday, FeatDayOfYear, FeatWeekNum, FeatMonth, FeatQuarter, FeatIsBusinessDay, FeatIsDayAfterClose, FeatYearSin, FeatYearCos}
	for _, l := range lags {
		names = append(names, LagFeatureName(l))
	}
	names = append(names, FeatService)
	return frameSpec{
		featureNames: names,
		categorical:  []string{FeatService, FeatWeekday, FeatMonth},
		lags:         lags,
	}
}

// segmentSpec is the lag-free daily frame used for AHT/AWT, keyed by
// behavior segment.
func segmentSpec() frameSpec {
	return frameSpec{
		featureNames: []string{FeatWeekday, FeatDayOfYear, FeatWeekNum, FeatMonth, FeatQuarter, FeatIsBusinessDay, FeatIsDayAfterClose, FeatYearSin, FeatYearCos, FeatSegment},
		categorical:  []string{FeatSegment, FeatWeekday, FeatMonth},
	}
}

// FeatureValues flattens a feature row into the numeric and categorical
// maps an artifact encodes from. Lag horizons with insufficient history
// fill with zero here; the trainer has already dropped rows where that
// would leak.
func FeatureValues(row features.Row, lags []int) (map[string]float64, map[string]string) {
	numeric := map[string]float64{
		FeatWeekday:         float64(row.Cal.Weekday),
		FeatDayOfYear:       float64(row.Cal.DayOfYear),
		FeatWeekNum:         float64(row.Cal.WeekNum),
		FeatMonth:           float64(row.Cal.Month),
		FeatQuarter:         float64(row.Cal.Quarter),
		FeatIsBusinessDay:   boolToFloat(row.Cal.IsBusinessDay),
		FeatIsDayAfterClose: boolToFloat(row.Cal.IsDayAfterClosed),
		FeatYearSin:         row.Cal.YearSin,
		FeatYearCos:         row.Cal.YearCos,
	}
	for _, l := range lags {
		numeric[LagFeatureName(l)] = row.LagOrZero(l)
	}

	cats := map[string]string{
		FeatWeekday: strconv.Itoa(row.Cal.Weekday),
		FeatMonth:   strconv.Itoa(row.Cal.Month),
		FeatService: string(row.Service),
		FeatSegment: string(row.Segment),
	}
	return numeric, cats
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// fitCategories builds the training-time category tables for a spec.
func fitCategories(rows []features.Row, spec frameSpec) map[string]*model.CategoryTable {
	values := make(map[string][]string, len(spec.categorical))
	for _, row := range rows {
		_, cats := FeatureValues(row, spec.lags)
		for _, name := range spec.categorical {
			values[name] = append(values[name], cats[name])
		}
	}
	tables := make(map[string]*model.CategoryTable, len(spec.categorical))
	for name, vals := range values {
		tables[name] = model.NewCategoryTable(vals)
	}
	return tables
}

// encode materializes the numeric matrix for a frame, categorical features
// encoded through the fixed tables.
func encode(rows []features.Row, spec frameSpec, tables map[string]*model.CategoryTable, target func(features.Row) float64) *model.Dataset {
	catFlags := make([]bool, len(spec.featureNames))
	for i, name := range spec.featureNames {
		if _, ok := tables[name]; ok {
			catFlags[i] = true
		}
	}

	ds := &model.Dataset{
		FeatureNames: spec.featureNames,
		Categorical:  catFlags,
		X:            make([][]float64, 0, len(rows)),
		Y:            make([]float64, 0, len(rows)),
	}
	for _, row := range rows {
		numeric, cats := FeatureValues(row, spec.lags)
		x := make([]float64, len(spec.featureNames))
		for i, name := range spec.featureNames {
			if catFlags[i] {
				x[i] = tables[name].Code(cats[name])
			} else {
				x[i] = numeric[name]
			}
		}
		ds.X = append(ds.X, x)
		ds.Y = append(ds.Y, target(row))
	}
	return ds
}
