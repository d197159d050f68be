package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/calendar"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/types"
)

// MemoryStore is a Store backed by process memory. It mirrors the DuckDB
// store's replace/archive semantics and backs the unit tests.
type MemoryStore struct {
	mu sync.RWMutex

	history     []types.TimeSeriesRecord
	profiles    []types.CustomerProfile
	segments    []types.SegmentAssignment
	artifacts   map[string][]byte
	daily       []types.DailyForecast
	hourly      []types.HourlyForecast
	archive     map[string][]types.DailyForecast
	runs        []types.ForecastRun
	performance []types.EvaluationResult
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		artifacts: make(map[string][]byte),
		archive:   make(map[string][]types.DailyForecast),
	}
}

// SeedHistory appends observed traffic records.
func (s *MemoryStore) SeedHistory(recs ...types.TimeSeriesRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, recs...)
}

// SeedProfiles appends customer profiles.
func (s *MemoryStore) SeedProfiles(profiles ...types.CustomerProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = append(s.profiles, profiles...)
}

func (s *MemoryStore) HourlyHistory(_ context.Context, from, to time.Time) ([]types.TimeSeriesRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.TimeSeriesRecord
	for _, r := range s.history {
		if !r.Timestamp.Before(from) && !r.Timestamp.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) CustomerProfiles(_ context.Context) ([]types.CustomerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.CustomerProfile, len(s.profiles))
	copy(out, s.profiles)
	return out, nil
}

func (s *MemoryStore) ReplaceSegments(_ context.Context, assignments []types.SegmentAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = make([]types.SegmentAssignment, len(assignments))
	copy(s.segments, assignments)
	return nil
}

func (s *MemoryStore) Segments(_ context.Context) ([]types.SegmentAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.SegmentAssignment, len(s.segments))
	copy(out, s.segments)
	return out, nil
}

func (s *MemoryStore) PutModelArtifact(_ context.Context, target string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.artifacts[target] = cp
	return nil
}

func (s *MemoryStore) GetModelArtifact(_ context.Context, target string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.artifacts[target]
	if !ok {
		return nil, fmt.Errorf("no artifact stored for target %s", target)
	}
	return data, nil
}

func (s *MemoryStore) ReplaceForecast(_ context.Context, run types.ForecastRun, daily []types.DailyForecast, hourly []types.HourlyForecast) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily = make([]types.DailyForecast, len(daily))
	copy(s.daily, daily)
	s.hourly = make([]types.HourlyForecast, len(hourly))
	copy(s.hourly, hourly)
	s.runs = append(s.runs, run)
	return nil
}

func (s *MemoryStore) ArchiveForecast(_ context.Context, run types.ForecastRun, daily []types.DailyForecast) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archive[run.RunID] = append(s.archive[run.RunID], daily...)
	return nil
}

func (s *MemoryStore) LatestRunID(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := ""
	for runID := range s.archive {
		if runID > latest {
			latest = runID
		}
	}
	return latest, nil
}

func (s *MemoryStore) Runs(_ context.Context, limit int) ([]types.ForecastRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ForecastRun, len(s.runs))
	copy(out, s.runs)
	// Newest first, run ids sort by generation time.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CurrentDailyForecast(_ context.Context) ([]types.DailyForecast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.DailyForecast, len(s.daily))
	copy(out, s.daily)
	return out, nil
}

func (s *MemoryStore) CurrentHourlyForecast(_ context.Context, from, to time.Time) ([]types.HourlyForecast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.HourlyForecast
	for _, h := range s.hourly {
		if !h.Timestamp.Before(from) && !h.Timestamp.After(to) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *MemoryStore) ArchivedForecast(_ context.Context, runID string) ([]types.DailyForecast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.DailyForecast, len(s.archive[runID]))
	copy(out, s.archive[runID])
	return out, nil
}

func (s *MemoryStore) ArchivedDailyTotals(_ context.Context, runID string) (map[time.Time]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[time.Time]float64)
	for _, d := range s.archive[runID] {
		out[calendar.Midnight(d.Date)] += d.Volume
	}
	return out, nil
}

func (s *MemoryStore) ActualDailyTotals(_ context.Context, from, to time.Time) (map[time.Time]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[time.Time]float64)
	for _, r := range s.history {
		if r.Timestamp.Before(from) || r.Timestamp.After(to) {
			continue
		}
		out[calendar.Midnight(r.Timestamp)] += float64(r.Calls)
	}
	return out, nil
}

func (s *MemoryStore) AppendPerformance(_ context.Context, result types.EvaluationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.performance = append(s.performance, result)
	return nil
}

func (s *MemoryStore) Performance(_ context.Context, limit int) ([]types.EvaluationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.EvaluationResult, len(s.performance))
	copy(out, s.performance)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
