package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Training metrics
	TrainingRunsTotal    int64
	TrainingErrorsTotal  int64
	lastTrainingDuration time.Duration
	targetsTrained       map[string]int64

	// Forecast metrics
	ForecastRunsTotal    int64
	ForecastErrorsTotal  int64
	ForecastRowsTotal    int64
	lastForecastDuration time.Duration
	lastRunID            string

	// Segmentation metrics
	SegmentationRunsTotal   int64
	SegmentationErrorsTotal int64
	customersSegmented      int

	// Evaluation metrics
	EvaluationsTotal int64
	lastWMAPE        float64
	lastAccuracy     float64

	// Hourly conservation: worst |sum(hourly) - daily| observed in the last
	// disaggregation pass
	lastMaxDrift float64

	// HTTP metrics
	httpRequestsTotal    map[string]map[int]int64 // endpoint -> status -> count
	httpRequestDurations map[string][]float64     // endpoint -> durations

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			targetsTrained:       make(map[string]int64),
			httpRequestsTotal:    make(map[string]map[int]int64),
			httpRequestDurations: make(map[string][]float64),
			startTime:            time.Now(),
		}
	})
	return instance
}

// RecordTrainingRun records a completed training run
func (m *Metrics) RecordTrainingRun(duration time.Duration, trained []string) {
	m.mu.Lock()
	m.TrainingRunsTotal++
	m.lastTrainingDuration = duration
	for _, target := range trained {
		m.targetsTrained[target]++
	}
	m.mu.Unlock()
}

// RecordTrainingError increments the training error counter
func (m *Metrics) RecordTrainingError() {
	m.mu.Lock()
	m.TrainingErrorsTotal++
	m.mu.Unlock()
}

// RecordForecastRun records a completed forecast run
func (m *Metrics) RecordForecastRun(runID string, duration time.Duration, rows int) {
	m.mu.Lock()
	m.ForecastRunsTotal++
	m.ForecastRowsTotal += int64(rows)
	m.lastForecastDuration = duration
	m.lastRunID = runID
	m.mu.Unlock()
}

// RecordForecastError increments the forecast error counter
func (m *Metrics) RecordForecastError() {
	m.mu.Lock()
	m.ForecastErrorsTotal++
	m.mu.Unlock()
}

// RecordSegmentationRun records a completed segmentation run
func (m *Metrics) RecordSegmentationRun(customers int) {
	m.mu.Lock()
	m.SegmentationRunsTotal++
	m.customersSegmented = customers
	m.mu.Unlock()
}

// RecordSegmentationError increments the segmentation error counter
func (m *Metrics) RecordSegmentationError() {
	m.mu.Lock()
	m.SegmentationErrorsTotal++
	m.mu.Unlock()
}

// RecordEvaluation records an evaluation result
func (m *Metrics) RecordEvaluation(wmape, accuracy float64) {
	m.mu.Lock()
	m.EvaluationsTotal++
	m.lastWMAPE = wmape
	m.lastAccuracy = accuracy
	m.mu.Unlock()
}

// RecordConservationDrift records the worst hourly-vs-daily volume drift of
// a disaggregation pass
func (m *Metrics) RecordConservationDrift(drift float64) {
	m.mu.Lock()
	m.lastMaxDrift = drift
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++

	// Keep last 100 durations for percentile calculation
	if len(m.httpRequestDurations[endpoint]) >= 100 {
		m.httpRequestDurations[endpoint] = m.httpRequestDurations[endpoint][1:]
	}
	m.httpRequestDurations[endpoint] = append(m.httpRequestDurations[endpoint], duration.Seconds())
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		// System metrics
		write("wecall_uptime_seconds", time.Since(m.startTime).Seconds())

		// Training metrics
		write("wecall_training_runs_total", m.TrainingRunsTotal)
		write("wecall_training_errors_total", m.TrainingErrorsTotal)
		write("wecall_training_duration_seconds", m.lastTrainingDuration.Seconds())
		for target, count := range m.targetsTrained {
			write("wecall_targets_trained_total", count, "target", target)
		}

		// Forecast metrics
		write("wecall_forecast_runs_total", m.ForecastRunsTotal)
		write("wecall_forecast_errors_total", m.ForecastErrorsTotal)
		write("wecall_forecast_rows_total", m.ForecastRowsTotal)
		write("wecall_forecast_duration_seconds", m.lastForecastDuration.Seconds())
		write("wecall_hourly_conservation_drift", m.lastMaxDrift)

		// Segmentation metrics
		write("wecall_segmentation_runs_total", m.SegmentationRunsTotal)
		write("wecall_segmentation_errors_total", m.SegmentationErrorsTotal)
		write("wecall_customers_segmented", m.customersSegmented)

		// Evaluation metrics
		write("wecall_evaluations_total", m.EvaluationsTotal)
		write("wecall_last_wmape_percent", m.lastWMAPE)
		write("wecall_last_accuracy_percent", m.lastAccuracy)

		// HTTP metrics
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("wecall_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}
