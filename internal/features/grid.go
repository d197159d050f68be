package features

import (
	"sort"
	"time"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/calendar"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/types"
)

// Densify expands records onto a complete period grid: every hierarchy key
// gets one record per period between start and end inclusive, with explicit
// zero measures where nothing was observed. Lag computation depends on this:
// after densification, one row equals one period within each key.
func Densify(recs []types.TimeSeriesRecord, start, end time.Time, period time.Duration) []types.TimeSeriesRecord {
	start = calendar.Normalize(start).Truncate(period)
	end = calendar.Normalize(end).Truncate(period)
	if end.Before(start) {
		return nil
	}

	byKey := make(map[types.HierarchyKey]map[time.Time]types.TimeSeriesRecord)
	for _, r := range recs {
		k := r.Key()
		if byKey[k] == nil {
			byKey[k] = make(map[time.Time]types.TimeSeriesRecord)
		}
		ts := calendar.Normalize(r.Timestamp).Truncate(period)
		existing, ok := byKey[k][ts]
		if ok {
			// Duplicate bucket: keep the aggregate sum.
			existing.Calls += r.Calls
			existing.AnsweredCalls += r.AnsweredCalls
			existing.TalkTimeSecs += r.TalkTimeSecs
			existing.WaitTimeSecs += r.WaitTimeSecs
			byKey[k][ts] = existing
		} else {
			r.Timestamp = ts
			byKey[k][ts] = r
		}
	}

	keys := make([]types.HierarchyKey, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Service != keys[j].Service {
			return keys[i].Service < keys[j].Service
		}
		return keys[i].Segment < keys[j].Segment
	})

	periods := int(end.Sub(start)/period) + 1
	out := make([]types.TimeSeriesRecord, 0, periods*len(keys))
	for _, k := range keys {
		for ts := start; !ts.After(end); ts = ts.Add(period) {
			if r, ok := byKey[k][ts]; ok {
				out = append(out, r)
				continue
			}
			out = append(out, types.TimeSeriesRecord{
				Timestamp: ts,
				Service:   k.Service,
				Segment:   k.Segment,
			})
		}
	}
	return out
}

// GroupBy selects which hierarchy dimension a daily rollup preserves.
type GroupBy int

const (
	ByService GroupBy = iota
	BySegment
	ByServiceAndSegment
)

// RollupDaily aggregates records into daily buckets, collapsing the
// hierarchy dimensions not selected by the grouping. Output is sorted by
// key then timestamp.
func RollupDaily(recs []types.TimeSeriesRecord, by GroupBy) []types.TimeSeriesRecord {
	agg := make(map[types.HierarchyKey]map[time.Time]*types.TimeSeriesRecord)
	for _, r := range recs {
		k := r.Key()
		switch by {
		case ByService:
			k.Segment = ""
		case BySegment:
			k.Service = ""
		}
		day := calendar.Midnight(r.Timestamp)
		if agg[k] == nil {
			agg[k] = make(map[time.Time]*types.TimeSeriesRecord)
		}
		cur, ok := agg[k][day]
		if !ok {
			cur = &types.TimeSeriesRecord{Timestamp: day, Service: k.Service, Segment: k.Segment}
			agg[k][day] = cur
		}
		cur.Calls += r.Calls
		cur.AnsweredCalls += r.AnsweredCalls
		cur.TalkTimeSecs += r.TalkTimeSecs
		cur.WaitTimeSecs += r.WaitTimeSecs
	}

	var out []types.TimeSeriesRecord
	for _, days := range agg {
		for _, r := range days {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Service != out[j].Service {
			return out[i].Service < out[j].Service
		}
		if out[i].Segment != out[j].Segment {
			return out[i].Segment < out[j].Segment
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
