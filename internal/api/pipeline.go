package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/auth"
	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/pipeline"
)

// PipelineHandler exposes manual pipeline triggers for operators. The
// nightly scheduler uses the same pipeline; these endpoints exist for
// reruns after data fixes.
type PipelineHandler struct {
	pipeline *pipeline.Pipeline
	logger   zerolog.Logger
}

// NewPipelineHandler creates a new PipelineHandler
func NewPipelineHandler(p *pipeline.Pipeline, logger zerolog.Logger) *PipelineHandler {
	return &PipelineHandler{
		pipeline: p,
		logger:   logger.With().Str("component", "pipeline-api").Logger(),
	}
}

// HandleSegment handles POST /api/pipeline/segment
func (h *PipelineHandler) HandleSegment(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	if err := h.pipeline.Segment(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("segmentation trigger failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// HandleTrain handles POST /api/pipeline/train
func (h *PipelineHandler) HandleTrain(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	report, err := h.pipeline.Train(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("training trigger failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"status":  "ok",
		"trained": report.Trained,
		"skipped": report.Skipped,
	})
}

// HandleForecast handles POST /api/pipeline/forecast
func (h *PipelineHandler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	run, err := h.pipeline.Forecast(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("forecast trigger failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, run)
}

// HandleEvaluate handles POST /api/pipeline/evaluate
func (h *PipelineHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	result, err := h.pipeline.Evaluate(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("evaluation trigger failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

func (h *PipelineHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok || !auth.HasRole(claims, "admin") {
		http.Error(w, "Forbidden: admin role required", http.StatusForbidden)
		return false
	}
	return true
}
