package segment

import (
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/types"
	"github.com/rs/zerolog"
)

// RuleBased buckets customers by fixed percentile thresholds: the 80th
// percentile of total volume and the median of average handle time, both
// computed across customers with at least one call. Simpler and more
// auditable than clustering; this is the default strategy.
type RuleBased struct {
	Overrides      Overrides
	VolumeQuantile float64 // defaults to 0.80 when zero
	AHTQuantile    float64 // defaults to 0.50 when zero
	Logger         zerolog.Logger
}

// Name implements Strategy.
func (r *RuleBased) Name() string { return "rule_based" }

// Assign implements Strategy.
func (r *RuleBased) Assign(profiles []types.CustomerProfile) []types.SegmentAssignment {
	volQ := r.VolumeQuantile
	if volQ == 0 {
		volQ = 0.80
	}
	ahtQ := r.AHTQuantile
	if ahtQ == 0 {
		ahtQ = 0.50
	}

	var volumes, ahts []float64
	for _, p := range profiles {
		if p.TotalCalls > 0 {
			volumes = append(volumes, float64(p.TotalCalls))
			ahts = append(ahts, p.AvgHandleSecs)
		}
	}
	volThreshold := percentile(volumes, volQ)
	ahtThreshold := percentile(ahts, ahtQ)

	r.Logger.Info().
		Float64("volume_threshold", volThreshold).
		Float64("aht_threshold", ahtThreshold).
		Int("customers", len(profiles)).
		Msg("rule-based segmentation thresholds computed")

	out := make([]types.SegmentAssignment, 0, len(profiles))
	for _, p := range profiles {
		switch {
		case r.Overrides.IsAbsence(p):
			out = append(out, assignment(p, types.SegmentAbsence))
		case p.TotalCalls == 0:
			out = append(out, assignment(p, types.SegmentUnknown))
		default:
			highVol := float64(p.TotalCalls) > volThreshold
			longAHT := p.AvgHandleSecs > ahtThreshold
			out = append(out, assignment(p, bucketLabel(highVol, longAHT)))
		}
	}
	return out
}

func bucketLabel(highVolume, longHandle bool) types.BehaviorSegment {
	switch {
	case highVolume && longHandle:
		return types.SegmentHighVolumeLong
	case highVolume:
		return types.SegmentHighVolumeShort
	case longHandle:
		return types.SegmentLowVolumeLong
	default:
		return types.SegmentLowVolumeShort
	}
}
