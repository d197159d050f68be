package types

import "time"

// ServiceType identifies a billed service line (queue group) such as
// "switchboard" or "customer_service_calls".
type ServiceType string

// ServiceUnknown is assigned when a queue id has no configured mapping.
const ServiceUnknown ServiceType = "unknown_queue"

// BehaviorSegment is the customer behavior label that, together with the
// service type, forms the forecasting hierarchy key.
type BehaviorSegment string

const (
	SegmentLowVolumeShort  BehaviorSegment = "low_volume_short_handle"
	SegmentLowVolumeLong   BehaviorSegment = "low_volume_long_handle"
	SegmentHighVolumeShort BehaviorSegment = "high_volume_short_handle"
	SegmentHighVolumeLong  BehaviorSegment = "high_volume_long_handle"

	// SegmentAbsence holds internal absence-reporting traffic. It is
	// force-assigned by pattern override and is exempt from the
	// business-hours mask during disaggregation.
	SegmentAbsence BehaviorSegment = "internal_absence"

	// SegmentUnknown is the fallback for customers with no measurable
	// activity.
	SegmentUnknown BehaviorSegment = "unknown"
)

// AllSegments returns every segment label the assigner can produce.
var AllSegments = []BehaviorSegment{
	SegmentLowVolumeShort,
	SegmentLowVolumeLong,
	SegmentHighVolumeShort,
	SegmentHighVolumeLong,
	SegmentAbsence,
	SegmentUnknown,
}

// HierarchyKey groups every time series and model in the pipeline.
type HierarchyKey struct {
	Service ServiceType     `json:"service"`
	Segment BehaviorSegment `json:"segment"`
}

// TimeSeriesRecord is one fixed-width bucket of aggregated call activity.
// A bucket with zero observed events still exists with all measures zero;
// the series is densified over a complete calendar grid.
type TimeSeriesRecord struct {
	Timestamp     time.Time       `json:"timestamp"`
	Service       ServiceType     `json:"service"`
	Segment       BehaviorSegment `json:"segment"`
	Calls         int             `json:"calls"`
	AnsweredCalls int             `json:"answeredCalls"`
	TalkTimeSecs  float64         `json:"talkTimeSecs"`
	WaitTimeSecs  float64         `json:"waitTimeSecs"`
}

// Key returns the record's hierarchy key.
func (r TimeSeriesRecord) Key() HierarchyKey {
	return HierarchyKey{Service: r.Service, Segment: r.Segment}
}

// CustomerProfile is the per-customer aggregate the segmentation assigner
// works from.
type CustomerProfile struct {
	CustomerKey   string      `json:"customerKey"`
	Name          string      `json:"name"`
	Service       ServiceType `json:"service"` // most common service, ServiceUnknown when no calls
	LandingNumber string      `json:"landingNumber"`
	TotalCalls    int         `json:"totalCalls"`
	TotalTalkSecs float64     `json:"totalTalkSecs"`
	AvgHandleSecs float64     `json:"avgHandleSecs"`
	PeakPattern   string      `json:"peakPattern"` // modal "weekday-hour", "unclear" when no calls
}

// SegmentAssignment is one row of the customer behavior dimension.
type SegmentAssignment struct {
	CustomerKey   string          `json:"customerKey"`
	Name          string          `json:"name"`
	Segment       BehaviorSegment `json:"segment"`
	TotalCalls    int             `json:"totalCalls"`
	AvgHandleSecs float64         `json:"avgHandleSecs"`
	PeakPattern   string          `json:"peakPattern"`
}
