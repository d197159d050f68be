package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default values",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "8080" {
					t.Errorf("expected port 8080, got %s", cfg.Port)
				}
				if cfg.LogLevel != "info" {
					t.Errorf("expected log level info, got %s", cfg.LogLevel)
				}
				if cfg.HorizonDays != 14 {
					t.Errorf("expected horizon 14, got %d", cfg.HorizonDays)
				}
				if len(cfg.Lags) != 5 || cfg.Lags[4] != 364 {
					t.Errorf("unexpected default lags: %v", cfg.Lags)
				}
				if cfg.OpenStartHour != 6 || cfg.OpenEndHour != 18 {
					t.Errorf("expected open hours 6..18, got %d..%d", cfg.OpenStartHour, cfg.OpenEndHour)
				}
				if cfg.OccupancyTarget != 0.80 {
					t.Errorf("expected occupancy 0.80, got %v", cfg.OccupancyTarget)
				}
				if cfg.IsOperatingDay(time.Saturday) {
					t.Error("saturday should not be an operating day by default")
				}
				if !cfg.IsOperatingDay(time.Wednesday) {
					t.Error("wednesday should be an operating day by default")
				}
				if cfg.SegmentStrategy != "rules" {
					t.Errorf("expected default segment strategy rules, got %s", cfg.SegmentStrategy)
				}
			},
		},
		{
			name: "custom values",
			env: map[string]string{
				"PORT":                  "9000",
				"LOG_LEVEL":             "debug",
				"FORECAST_HORIZON_DAYS": "7",
				"LAG_DAYS":              "1,7",
				"BUSINESS_HOURS_START":  "07:30",
				"BUSINESS_HOURS_END":    "17:30",
				"OPERATING_WEEKDAYS":    "mon,tue,wed,thu,fri,sat",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "9000" {
					t.Errorf("expected port 9000, got %s", cfg.Port)
				}
				if cfg.HorizonDays != 7 {
					t.Errorf("expected horizon 7, got %d", cfg.HorizonDays)
				}
				if len(cfg.Lags) != 2 {
					t.Errorf("expected 2 lags, got %v", cfg.Lags)
				}
				// Start rounds down, end rounds up: a partial bucket is open.
				if cfg.OpenStartHour != 7 {
					t.Errorf("expected open start 7, got %d", cfg.OpenStartHour)
				}
				if cfg.OpenEndHour != 18 {
					t.Errorf("expected open end 18, got %d", cfg.OpenEndHour)
				}
				if !cfg.IsOperatingDay(time.Saturday) {
					t.Error("saturday should be operating")
				}
			},
		},
		{
			name: "kmeans segment strategy",
			env: map[string]string{
				"SEGMENT_STRATEGY": "kmeans",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.SegmentStrategy != "kmeans" {
					t.Errorf("expected segment strategy kmeans, got %s", cfg.SegmentStrategy)
				}
			},
		},
		{
			name: "unknown segment strategy",
			env: map[string]string{
				"SEGMENT_STRATEGY": "dbscan",
			},
			wantErr: true,
		},
		{
			name: "invalid horizon",
			env: map[string]string{
				"FORECAST_HORIZON_DAYS": "0",
			},
			wantErr: true,
		},
		{
			name: "invalid lag list",
			env: map[string]string{
				"LAG_DAYS": "1,seven",
			},
			wantErr: true,
		},
		{
			name: "business hours end before start",
			env: map[string]string{
				"BUSINESS_HOURS_START": "18:00",
				"BUSINESS_HOURS_END":   "06:00",
			},
			wantErr: true,
		},
		{
			name: "unknown weekday",
			env: map[string]string{
				"OPERATING_WEEKDAYS": "mon,funday",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestMaxLag(t *testing.T) {
	cfg := &Config{Lags: []int{1, 7, 364, 28}}
	if got := cfg.MaxLag(); got != 364 {
		t.Errorf("expected max lag 364, got %d", got)
	}
}

func TestOpenHours(t *testing.T) {
	cfg := &Config{OpenStartHour: 6, OpenEndHour: 18}
	if got := cfg.OpenHours(); got != 12 {
		t.Errorf("expected 12 open hours, got %d", got)
	}
}
