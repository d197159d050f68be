package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for one pipeline run. It is constructed
// once and passed by reference into each component; nothing reads the
// environment after Load returns.
type Config struct {
	LogLevel string
	Timezone string

	// Warehouse
	WarehousePath string // DuckDB database file, ":memory:" for ephemeral

	// Forecast horizon and lag structure
	HorizonDays int
	Lags        []int // lag horizons in days

	// Business hours window. Hours are bucket indexes: a bucket is open when
	// it overlaps the configured window.
	OpenStartHour     int
	OpenEndHour       int
	OperatingWeekdays map[time.Weekday]bool

	// Staffing
	OccupancyTarget float64

	// Training
	TrainWindowMonths   int
	ValidationDays      int
	MinTrainRows        int
	QuantileLow         float64
	QuantileHigh        float64
	NumTrees            int
	LearningRate        float64
	MaxDepth            int
	MinLeafSamples      int
	EarlyStoppingRounds int

	// Blending heuristics for the rolling generator. Empirically tuned, kept
	// as configuration rather than constants.
	BlendMixWeight     float64 // model share when blending with the statistical mean
	BlendMinConfidence float64 // minimum model estimate before blending applies
	Lag7OverrideRatio  float64 // prefer lag-7 when blend < ratio * lag-7
	Lag7FloorMin       float64 // ...and lag-7 is at least this large
	FallbackWindowDays int     // trailing window for the same-weekday mean

	// Segmentation
	SegmentStrategy string // "rules" or "kmeans"

	// Hierarchy filtering and overrides
	ExcludedCustomerIDs []string
	AbsenceLineNumber   string
	AbsencePatterns     []string

	// HTTP API
	Port           string
	AllowedOrigins []string
	JWTSecret      string
	SkipAuth       bool

	// Scheduler
	ScheduleEnabled bool
	ScheduleAt      string // "HH:MM" local wall clock
}

// Load loads configuration from environment variables, reading .env first
// when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Timezone:      getEnv("PROJECT_TIMEZONE", "Europe/Stockholm"),
		WarehousePath: getEnv("WAREHOUSE_PATH", "forecasting.duckdb"),

		OccupancyTarget: getEnvFloat("AGENT_OCCUPANCY_TARGET", 0.80),

		TrainWindowMonths:   getEnvInt("TRAIN_WINDOW_MONTHS", 16),
		ValidationDays:      getEnvInt("VALIDATION_DAYS", 28),
		MinTrainRows:        getEnvInt("MIN_TRAIN_ROWS", 30),
		QuantileLow:         getEnvFloat("QUANTILE_LOW", 0.10),
		QuantileHigh:        getEnvFloat("QUANTILE_HIGH", 0.90),
		NumTrees:            getEnvInt("GBT_NUM_TREES", 300),
		LearningRate:        getEnvFloat("GBT_LEARNING_RATE", 0.05),
		MaxDepth:            getEnvInt("GBT_MAX_DEPTH", 6),
		MinLeafSamples:      getEnvInt("GBT_MIN_LEAF_SAMPLES", 20),
		EarlyStoppingRounds: getEnvInt("GBT_EARLY_STOPPING_ROUNDS", 30),

		BlendMixWeight:     getEnvFloat("BLEND_MIX_WEIGHT", 0.5),
		BlendMinConfidence: getEnvFloat("BLEND_MIN_CONFIDENCE", 1.0),
		Lag7OverrideRatio:  getEnvFloat("LAG7_OVERRIDE_RATIO", 0.25),
		Lag7FloorMin:       getEnvFloat("LAG7_FLOOR_MIN", 5.0),
		FallbackWindowDays: getEnvInt("FALLBACK_WINDOW_DAYS", 35),

		SegmentStrategy: getEnv("SEGMENT_STRATEGY", "rules"),

		AbsenceLineNumber: getEnv("ABSENCE_LINE_NUMBER", "+46607890220"),

		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: splitAndTrim(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		SkipAuth:       getEnv("SKIP_AUTH", "false") == "true",

		ScheduleEnabled: getEnv("SCHEDULE_ENABLED", "false") == "true",
		ScheduleAt:      getEnv("SCHEDULE_AT", "02:30"),
	}

	horizon := getEnvInt("FORECAST_HORIZON_DAYS", 14)
	if horizon < 1 {
		return nil, fmt.Errorf("invalid FORECAST_HORIZON_DAYS: %d", horizon)
	}
	cfg.HorizonDays = horizon

	lags, err := parseIntList(getEnv("LAG_DAYS", "1,7,14,28,364"))
	if err != nil {
		return nil, fmt.Errorf("invalid LAG_DAYS: %w", err)
	}
	cfg.Lags = lags

	start, err := parseHour(getEnv("BUSINESS_HOURS_START", "06:00"), false)
	if err != nil {
		return nil, fmt.Errorf("invalid BUSINESS_HOURS_START: %w", err)
	}
	end, err := parseHour(getEnv("BUSINESS_HOURS_END", "18:00"), true)
	if err != nil {
		return nil, fmt.Errorf("invalid BUSINESS_HOURS_END: %w", err)
	}
	if end <= start {
		return nil, fmt.Errorf("business hours end (%d) must be after start (%d)", end, start)
	}
	cfg.OpenStartHour = start
	cfg.OpenEndHour = end

	cfg.OperatingWeekdays, err = parseWeekdays(getEnv("OPERATING_WEEKDAYS", "mon,tue,wed,thu,fri"))
	if err != nil {
		return nil, fmt.Errorf("invalid OPERATING_WEEKDAYS: %w", err)
	}

	switch cfg.SegmentStrategy {
	case "rules", "kmeans":
	default:
		return nil, fmt.Errorf("invalid SEGMENT_STRATEGY: %q", cfg.SegmentStrategy)
	}

	cfg.ExcludedCustomerIDs = splitAndTrim(getEnv("EXCLUDE_CUSTOMER_IDS", ""))
	cfg.AbsencePatterns = splitAndTrim(getEnv("ABSENCE_PATTERNS", "sjukanmälan,sick leave,absence"))

	if cfg.OccupancyTarget <= 0 || cfg.OccupancyTarget > 1 {
		cfg.OccupancyTarget = 0.80
	}

	return cfg, nil
}

// OpenHours returns the number of open bucket hours per operating day.
func (c *Config) OpenHours() int {
	return c.OpenEndHour - c.OpenStartHour
}

// IsOperatingDay reports whether the weekday is configured as operating.
func (c *Config) IsOperatingDay(d time.Weekday) bool {
	return c.OperatingWeekdays[d]
}

// MaxLag returns the largest configured lag horizon.
func (c *Config) MaxLag() int {
	max := 0
	for _, l := range c.Lags {
		if l > max {
			max = l
		}
	}
	return max
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseIntList(s string) ([]int, error) {
	var out []int
	for _, p := range splitAndTrim(s) {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}

// parseHour parses "HH:MM" into an hour-bucket index. The start of the
// window rounds down and the end rounds up, so a bucket partially inside
// the window counts as open.
func parseHour(s string, roundUp bool) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	m := 0
	if len(parts) == 2 {
		m, err = strconv.Atoi(parts[1])
		if err != nil || m < 0 || m > 59 {
			return 0, fmt.Errorf("bad minute in %q", s)
		}
	}
	if roundUp && m > 0 {
		h++
	}
	return h, nil
}

var weekdayNames = map[string]time.Weekday{
	"mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
	"sun": time.Sunday,
}

func parseWeekdays(s string) (map[time.Weekday]bool, error) {
	out := make(map[time.Weekday]bool)
	for _, p := range splitAndTrim(s) {
		d, ok := weekdayNames[strings.ToLower(p)]
		if !ok {
			return nil, fmt.Errorf("unknown weekday: %q", p)
		}
		out[d] = true
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no operating weekdays configured")
	}
	return out, nil
}
