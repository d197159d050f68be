package segment

import (
	"sort"
	"strings"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/types"
)

// Strategy assigns exactly one behavior segment to every customer profile.
// Customers with no measurable activity get SegmentUnknown; they are never
// dropped and never cause an error.
type Strategy interface {
	Name() string
	Assign(profiles []types.CustomerProfile) []types.SegmentAssignment
}

// Overrides force-assigns operationally distinct traffic before any
// volume/AHT bucketing. The absence line must never be merged into a
// generic segment, whatever its volume looks like.
type Overrides struct {
	AbsenceLineNumber string
	Patterns          []string // matched case-insensitive against key, name and service
}

// IsAbsence reports whether the profile matches the absence override.
func (o Overrides) IsAbsence(p types.CustomerProfile) bool {
	if o.AbsenceLineNumber != "" && p.LandingNumber == o.AbsenceLineNumber {
		return true
	}
	for _, pat := range o.Patterns {
		pat = strings.ToLower(pat)
		if pat == "" {
			continue
		}
		if strings.Contains(strings.ToLower(p.Name), pat) ||
			strings.Contains(strings.ToLower(p.CustomerKey), pat) ||
			strings.Contains(strings.ToLower(string(p.Service)), pat) {
			return true
		}
	}
	return false
}

func assignment(p types.CustomerProfile, s types.BehaviorSegment) types.SegmentAssignment {
	return types.SegmentAssignment{
		CustomerKey:   p.CustomerKey,
		Name:          p.Name,
		Segment:       s,
		TotalCalls:    p.TotalCalls,
		AvgHandleSecs: p.AvgHandleSecs,
		PeakPattern:   p.PeakPattern,
	}
}

// percentile returns the p-quantile (0..1) of values using linear
// interpolation between order statistics.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(pos)
	frac := pos - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[lo]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
