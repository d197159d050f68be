package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/calendar"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/config"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/storage"
)

const dateLayout = "2006-01-02"

// ForecastHandler serves the read side: current forecasts, run history and
// accuracy. All writes go through the pipeline, never through the API.
type ForecastHandler struct {
	cfg    *config.Config
	store  storage.Store
	logger zerolog.Logger
}

// NewForecastHandler creates a new ForecastHandler
func NewForecastHandler(cfg *config.Config, store storage.Store, logger zerolog.Logger) *ForecastHandler {
	return &ForecastHandler{
		cfg:    cfg,
		store:  store,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// HandleDaily handles GET /api/forecast/daily
func (h *ForecastHandler) HandleDaily(w http.ResponseWriter, r *http.Request) {
	daily, err := h.store.CurrentDailyForecast(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load daily forecast")
		http.Error(w, "failed to load forecast", http.StatusInternalServerError)
		return
	}
	writeJSON(w, daily)
}

// HandleHourly handles GET /api/forecast/hourly?from=YYYY-MM-DD&to=YYYY-MM-DD.
// Without parameters it returns the full current horizon.
func (h *ForecastHandler) HandleHourly(w http.ResponseWriter, r *http.Request) {
	now := calendar.Now(h.cfg.Timezone)
	from := calendar.Midnight(now)
	to := from.AddDate(0, 0, h.cfg.HorizonDays+1)

	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			http.Error(w, "invalid from date", http.StatusBadRequest)
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			http.Error(w, "invalid to date", http.StatusBadRequest)
			return
		}
		to = parsed.Add(24*time.Hour - time.Second)
	}

	hourly, err := h.store.CurrentHourlyForecast(r.Context(), from, to)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load hourly forecast")
		http.Error(w, "failed to load forecast", http.StatusInternalServerError)
		return
	}
	writeJSON(w, hourly)
}

// HandleRuns handles GET /api/forecast/runs
func (h *ForecastHandler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.Runs(r.Context(), queryLimit(r, 50))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load runs")
		http.Error(w, "failed to load runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

// HandleRunForecast handles GET /api/forecast/runs/{runID}: the archived
// daily rows of one past run.
func (h *ForecastHandler) HandleRunForecast(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	daily, err := h.store.ArchivedForecast(r.Context(), runID)
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", runID).Msg("failed to load archived forecast")
		http.Error(w, "failed to load archived forecast", http.StatusInternalServerError)
		return
	}
	if len(daily) == 0 {
		http.Error(w, "unknown run id", http.StatusNotFound)
		return
	}
	writeJSON(w, daily)
}

// HandlePerformance handles GET /api/forecast/performance
func (h *ForecastHandler) HandlePerformance(w http.ResponseWriter, r *http.Request) {
	results, err := h.store.Performance(r.Context(), queryLimit(r, 50))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load performance log")
		http.Error(w, "failed to load performance log", http.StatusInternalServerError)
		return
	}
	writeJSON(w, results)
}

// HandleSegments handles GET /api/segments
func (h *ForecastHandler) HandleSegments(w http.ResponseWriter, r *http.Request) {
	segments, err := h.store.Segments(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load segments")
		http.Error(w, "failed to load segments", http.StatusInternalServerError)
		return
	}
	writeJSON(w, segments)
}

func queryLimit(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}
