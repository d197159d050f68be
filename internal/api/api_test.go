package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/auth"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/config"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/pipeline"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/storage"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Timezone:    "Europe/Stockholm",
		HorizonDays: 14,
	}
}

func seededStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore()
	date := time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)
	run := types.NewForecastRun(time.Date(2025, 9, 1, 3, 0, 0, 0, time.UTC), 14)

	daily := []types.DailyForecast{
		{Date: date, Service: "switchboard", Segment: types.SegmentHighVolumeShort, Volume: 42},
	}
	hourly := []types.HourlyForecast{
		{Timestamp: date.Add(9 * time.Hour), Service: "switchboard", Segment: types.SegmentHighVolumeShort, Volume: 42},
		{Timestamp: date.AddDate(0, 0, 1).Add(9 * time.Hour), Service: "switchboard", Segment: types.SegmentHighVolumeShort, Volume: 17},
	}
	if err := store.ReplaceForecast(context.Background(), run, daily, hourly); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestHandleDaily(t *testing.T) {
	h := NewForecastHandler(testConfig(), seededStore(t), zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/forecast/daily", nil)
	rec := httptest.NewRecorder()
	h.HandleDaily(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var got []types.DailyForecast
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if len(got) != 1 || got[0].Volume != 42 {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestHandleHourlyDateFilter(t *testing.T) {
	h := NewForecastHandler(testConfig(), seededStore(t), zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/forecast/hourly?from=2025-09-02&to=2025-09-02", nil)
	rec := httptest.NewRecorder()
	h.HandleHourly(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []types.HourlyForecast
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the second day filtered out, got %d rows", len(got))
	}
	if got[0].Volume != 42 {
		t.Errorf("unexpected row: %+v", got[0])
	}
}

func TestHandleHourlyRejectsBadDate(t *testing.T) {
	h := NewForecastHandler(testConfig(), seededStore(t), zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/forecast/hourly?from=02-09-2025", nil)
	rec := httptest.NewRecorder()
	h.HandleHourly(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a malformed date, got %d", rec.Code)
	}
}

func TestHandleRunsLimit(t *testing.T) {
	store := storage.NewMemoryStore()
	for d := 1; d <= 5; d++ {
		run := types.NewForecastRun(time.Date(2025, 9, d, 3, 0, 0, 0, time.UTC), 14)
		if err := store.ReplaceForecast(context.Background(), run, nil, nil); err != nil {
			t.Fatal(err)
		}
	}
	h := NewForecastHandler(testConfig(), store, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/forecast/runs?limit=2", nil)
	rec := httptest.NewRecorder()
	h.HandleRuns(rec, req)

	var got []types.ForecastRun
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected limit to cap runs at 2, got %d", len(got))
	}
	if got[0].RunID != "20250905T030000" {
		t.Errorf("expected newest run first, got %s", got[0].RunID)
	}
}

func TestHandleRunForecast(t *testing.T) {
	store := storage.NewMemoryStore()
	run := types.NewForecastRun(time.Date(2025, 9, 1, 3, 0, 0, 0, time.UTC), 14)
	date := time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)
	if err := store.ArchiveForecast(context.Background(), run, []types.DailyForecast{
		{Date: date, Service: "switchboard", Volume: 42},
	}); err != nil {
		t.Fatal(err)
	}
	h := NewForecastHandler(testConfig(), store, zerolog.Nop())

	r := chi.NewRouter()
	r.Get("/api/forecast/runs/{runID}", h.HandleRunForecast)

	req := httptest.NewRequest(http.MethodGet, "/api/forecast/runs/"+run.RunID, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []types.DailyForecast
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Volume != 42 {
		t.Errorf("unexpected archived rows: %+v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/forecast/runs/19990101T000000", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown run, got %d", rec.Code)
	}
}

func TestHandleSegments(t *testing.T) {
	store := storage.NewMemoryStore()
	if err := store.ReplaceSegments(context.Background(), []types.SegmentAssignment{
		{CustomerKey: "c1", Segment: types.SegmentAbsence},
	}); err != nil {
		t.Fatal(err)
	}
	h := NewForecastHandler(testConfig(), store, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/segments", nil)
	rec := httptest.NewRecorder()
	h.HandleSegments(rec, req)

	var got []types.SegmentAssignment
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Segment != types.SegmentAbsence {
		t.Errorf("unexpected segments: %+v", got)
	}
}

func withClaims(req *http.Request, role string) *http.Request {
	ctx := context.WithValue(req.Context(), auth.UserContextKey, &auth.Claims{Role: role})
	return req.WithContext(ctx)
}

func TestPipelineTriggersRequireAdmin(t *testing.T) {
	p := pipeline.New(testConfig(), storage.NewMemoryStore(), zerolog.Nop())
	h := NewPipelineHandler(p, zerolog.Nop())

	// No claims at all.
	req := httptest.NewRequest(http.MethodPost, "/api/pipeline/train", nil)
	rec := httptest.NewRecorder()
	h.HandleTrain(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 without claims, got %d", rec.Code)
	}

	// Authenticated but not admin.
	req = withClaims(httptest.NewRequest(http.MethodPost, "/api/pipeline/train", nil), "viewer")
	rec = httptest.NewRecorder()
	h.HandleTrain(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for viewer, got %d", rec.Code)
	}
}

func TestPipelineEvaluateReportsFailure(t *testing.T) {
	// Empty store: there is no archived run to score, the trigger must
	// surface that instead of succeeding silently.
	p := pipeline.New(testConfig(), storage.NewMemoryStore(), zerolog.Nop())
	h := NewPipelineHandler(p, zerolog.Nop())

	req := withClaims(httptest.NewRequest(http.MethodPost, "/api/pipeline/evaluate", nil), "admin")
	rec := httptest.NewRecorder()
	h.HandleEvaluate(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 with no archived runs, got %d", rec.Code)
	}
}
