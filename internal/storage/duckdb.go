package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"

	"github.com/Lily-Ibrahimi77/wecall-forecasting-pipeline/internal/types"
)

// DuckDBStore implements Store on a DuckDB warehouse file. A single process
// owns the file; the connection pool is capped at one writer because DuckDB
// serializes writes anyway.
type DuckDBStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewDuckDBStore opens (and migrates) the warehouse at path. Use ":memory:"
// for an ephemeral warehouse.
func NewDuckDBStore(ctx context.Context, path string, logger zerolog.Logger) (*DuckDBStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &DuckDBStore{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Msg("warehouse opened")
	return s, nil
}

func (s *DuckDBStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS hourly_history (
			ts TIMESTAMP NOT NULL,
			service VARCHAR NOT NULL,
			segment VARCHAR NOT NULL,
			calls INTEGER NOT NULL,
			answered_calls INTEGER NOT NULL,
			talk_time_secs DOUBLE NOT NULL,
			wait_time_secs DOUBLE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS customer_profiles (
			customer_key VARCHAR NOT NULL,
			name VARCHAR NOT NULL,
			service VARCHAR NOT NULL,
			landing_number VARCHAR NOT NULL,
			total_calls INTEGER NOT NULL,
			total_talk_secs DOUBLE NOT NULL,
			avg_handle_secs DOUBLE NOT NULL,
			peak_pattern VARCHAR NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS segment_assignments (
			customer_key VARCHAR NOT NULL,
			name VARCHAR NOT NULL,
			segment VARCHAR NOT NULL,
			total_calls INTEGER NOT NULL,
			avg_handle_secs DOUBLE NOT NULL,
			peak_pattern VARCHAR NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS model_artifacts (
			target VARCHAR PRIMARY KEY,
			payload VARCHAR NOT NULL,
			stored_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS forecast_daily (` + dailyColumns + `)`,
		`CREATE TABLE IF NOT EXISTS forecast_hourly (
			ts TIMESTAMP NOT NULL,
			service VARCHAR NOT NULL,
			segment VARCHAR NOT NULL,
			volume_low INTEGER NOT NULL,
			volume INTEGER NOT NULL,
			volume_high INTEGER NOT NULL,
			aht_secs DOUBLE NOT NULL,
			awt_secs DOUBLE NOT NULL,
			call_load_mins DOUBLE NOT NULL,
			staffing_mins DOUBLE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS forecast_archive (
			run_id VARCHAR NOT NULL,` + dailyColumns + `)`,
		`CREATE TABLE IF NOT EXISTS forecast_runs (
			run_id VARCHAR PRIMARY KEY,
			generated_at TIMESTAMP NOT NULL,
			horizon_days INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS performance_log (
			run_id VARCHAR NOT NULL,
			range_start TIMESTAMP NOT NULL,
			range_end TIMESTAMP NOT NULL,
			actual_total DOUBLE NOT NULL,
			forecast_total DOUBLE NOT NULL,
			wmape DOUBLE NOT NULL,
			accuracy DOUBLE NOT NULL,
			days INTEGER NOT NULL,
			evaluated_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate warehouse: %w", err)
		}
	}
	return nil
}

const dailyColumns = `
			date TIMESTAMP NOT NULL,
			service VARCHAR NOT NULL,
			segment VARCHAR NOT NULL,
			volume_low DOUBLE NOT NULL,
			volume DOUBLE NOT NULL,
			volume_high DOUBLE NOT NULL,
			aht_secs DOUBLE NOT NULL,
			awt_secs DOUBLE NOT NULL,
			call_load_mins DOUBLE NOT NULL,
			staffing_mins DOUBLE NOT NULL
		`

func (s *DuckDBStore) HourlyHistory(ctx context.Context, from, to time.Time) ([]types.TimeSeriesRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, service, segment, calls, answered_calls, talk_time_secs, wait_time_secs
		FROM hourly_history
		WHERE ts >= ? AND ts <= ?
		ORDER BY service, segment, ts`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly history: %w", err)
	}
	defer rows.Close()

	var out []types.TimeSeriesRecord
	for rows.Next() {
		var r types.TimeSeriesRecord
		if err := rows.Scan(&r.Timestamp, &r.Service, &r.Segment, &r.Calls, &r.AnsweredCalls, &r.TalkTimeSecs, &r.WaitTimeSecs); err != nil {
			return nil, fmt.Errorf("failed to scan hourly history: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertHourlyHistory appends observed traffic. It exists for ingestion and
// tests; the pipeline itself only reads history.
func (s *DuckDBStore) InsertHourlyHistory(ctx context.Context, recs []types.TimeSeriesRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO hourly_history (ts, service, segment, calls, answered_calls, talk_time_secs, wait_time_secs)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range recs {
			if _, err := stmt.ExecContext(ctx, r.Timestamp, string(r.Service), string(r.Segment), r.Calls, r.AnsweredCalls, r.TalkTimeSecs, r.WaitTimeSecs); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *DuckDBStore) CustomerProfiles(ctx context.Context) ([]types.CustomerProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT customer_key, name, service, landing_number, total_calls, total_talk_secs, avg_handle_secs, peak_pattern
		FROM customer_profiles ORDER BY customer_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query customer profiles: %w", err)
	}
	defer rows.Close()

	var out []types.CustomerProfile
	for rows.Next() {
		var p types.CustomerProfile
		if err := rows.Scan(&p.CustomerKey, &p.Name, &p.Service, &p.LandingNumber, &p.TotalCalls, &p.TotalTalkSecs, &p.AvgHandleSecs, &p.PeakPattern); err != nil {
			return nil, fmt.Errorf("failed to scan customer profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertCustomerProfiles appends profile rows, for ingestion and tests.
func (s *DuckDBStore) InsertCustomerProfiles(ctx context.Context, profiles []types.CustomerProfile) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO customer_profiles (customer_key, name, service, landing_number, total_calls, total_talk_secs, avg_handle_secs, peak_pattern)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, p := range profiles {
			if _, err := stmt.ExecContext(ctx, p.CustomerKey, p.Name, string(p.Service), p.LandingNumber, p.TotalCalls, p.TotalTalkSecs, p.AvgHandleSecs, p.PeakPattern); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceSegments rebuilds the behavior dimension under a staging swap:
// rows land in a staging table first, then replace the live table in the
// same transaction. Readers never observe a half-written dimension.
func (s *DuckDBStore) ReplaceSegments(ctx context.Context, assignments []types.SegmentAssignment) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `CREATE OR REPLACE TABLE segment_assignments_staging AS SELECT * FROM segment_assignments WHERE 1=0`); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO segment_assignments_staging (customer_key, name, segment, total_calls, avg_handle_secs, peak_pattern)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, a := range assignments {
			if _, err := stmt.ExecContext(ctx, a.CustomerKey, a.Name, string(a.Segment), a.TotalCalls, a.AvgHandleSecs, a.PeakPattern); err != nil {
				return err
			}
		}
		return swapStaging(ctx, tx, "segment_assignments")
	})
}

func (s *DuckDBStore) Segments(ctx context.Context) ([]types.SegmentAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT customer_key, name, segment, total_calls, avg_handle_secs, peak_pattern
		FROM segment_assignments ORDER BY customer_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	var out []types.SegmentAssignment
	for rows.Next() {
		var a types.SegmentAssignment
		if err := rows.Scan(&a.CustomerKey, &a.Name, &a.Segment, &a.TotalCalls, &a.AvgHandleSecs, &a.PeakPattern); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *DuckDBStore) PutModelArtifact(ctx context.Context, target string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO model_artifacts (target, payload, stored_at) VALUES (?, ?, ?)`,
		target, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store artifact %s: %w", target, err)
	}
	return nil
}

func (s *DuckDBStore) GetModelArtifact(ctx context.Context, target string) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM model_artifacts WHERE target = ?`, target).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no artifact stored for target %s", target)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact %s: %w", target, err)
	}
	return []byte(payload), nil
}

func (s *DuckDBStore) ReplaceForecast(ctx context.Context, run types.ForecastRun, daily []types.DailyForecast, hourly []types.HourlyForecast) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `CREATE OR REPLACE TABLE forecast_daily_staging AS SELECT * FROM forecast_daily WHERE 1=0`); err != nil {
			return err
		}
		dstmt, err := tx.PrepareContext(ctx, `
			INSERT INTO forecast_daily_staging (date, service, segment, volume_low, volume, volume_high, aht_secs, awt_secs, call_load_mins, staffing_mins)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer dstmt.Close()
		for _, d := range daily {
			if _, err := dstmt.ExecContext(ctx, d.Date, string(d.Service), string(d.Segment), d.VolumeLow, d.Volume, d.VolumeHigh, d.AHTSecs, d.AWTSecs, d.CallLoadMins, d.StaffingMins); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `CREATE OR REPLACE TABLE forecast_hourly_staging AS SELECT * FROM forecast_hourly WHERE 1=0`); err != nil {
			return err
		}
		hstmt, err := tx.PrepareContext(ctx, `
			INSERT INTO forecast_hourly_staging (ts, service, segment, volume_low, volume, volume_high, aht_secs, awt_secs, call_load_mins, staffing_mins)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer hstmt.Close()
		for _, h := range hourly {
			if _, err := hstmt.ExecContext(ctx, h.Timestamp, string(h.Service), string(h.Segment), h.VolumeLow, h.Volume, h.VolumeHigh, h.AHTSecs, h.AWTSecs, h.CallLoadMins, h.StaffingMins); err != nil {
				return err
			}
		}

		if err := swapStaging(ctx, tx, "forecast_daily"); err != nil {
			return err
		}
		if err := swapStaging(ctx, tx, "forecast_hourly"); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO forecast_runs (run_id, generated_at, horizon_days) VALUES (?, ?, ?)`,
			run.RunID, run.GeneratedAt, run.HorizonDays)
		return err
	})
}

func (s *DuckDBStore) ArchiveForecast(ctx context.Context, run types.ForecastRun, daily []types.DailyForecast) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO forecast_archive (run_id, date, service, segment, volume_low, volume, volume_high, aht_secs, awt_secs, call_load_mins, staffing_mins)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, d := range daily {
			if _, err := stmt.ExecContext(ctx, run.RunID, d.Date, string(d.Service), string(d.Segment), d.VolumeLow, d.Volume, d.VolumeHigh, d.AHTSecs, d.AWTSecs, d.CallLoadMins, d.StaffingMins); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *DuckDBStore) LatestRunID(ctx context.Context) (string, error) {
	var runID sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(run_id) FROM forecast_archive`).Scan(&runID)
	if err != nil {
		return "", fmt.Errorf("failed to query latest run: %w", err)
	}
	if !runID.Valid {
		return "", nil
	}
	return runID.String, nil
}

func (s *DuckDBStore) Runs(ctx context.Context, limit int) ([]types.ForecastRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, generated_at, horizon_days FROM forecast_runs
		ORDER BY run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []types.ForecastRun
	for rows.Next() {
		var r types.ForecastRun
		if err := rows.Scan(&r.RunID, &r.GeneratedAt, &r.HorizonDays); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *DuckDBStore) CurrentDailyForecast(ctx context.Context) ([]types.DailyForecast, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, service, segment, volume_low, volume, volume_high, aht_secs, awt_secs, call_load_mins, staffing_mins
		FROM forecast_daily ORDER BY date, service, segment`)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily forecast: %w", err)
	}
	defer rows.Close()

	var out []types.DailyForecast
	for rows.Next() {
		var d types.DailyForecast
		if err := rows.Scan(&d.Date, &d.Service, &d.Segment, &d.VolumeLow, &d.Volume, &d.VolumeHigh, &d.AHTSecs, &d.AWTSecs, &d.CallLoadMins, &d.StaffingMins); err != nil {
			return nil, fmt.Errorf("failed to scan daily forecast: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *DuckDBStore) CurrentHourlyForecast(ctx context.Context, from, to time.Time) ([]types.HourlyForecast, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, service, segment, volume_low, volume, volume_high, aht_secs, awt_secs, call_load_mins, staffing_mins
		FROM forecast_hourly WHERE ts >= ? AND ts <= ?
		ORDER BY ts, service, segment`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly forecast: %w", err)
	}
	defer rows.Close()

	var out []types.HourlyForecast
	for rows.Next() {
		var h types.HourlyForecast
		if err := rows.Scan(&h.Timestamp, &h.Service, &h.Segment, &h.VolumeLow, &h.Volume, &h.VolumeHigh, &h.AHTSecs, &h.AWTSecs, &h.CallLoadMins, &h.StaffingMins); err != nil {
			return nil, fmt.Errorf("failed to scan hourly forecast: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *DuckDBStore) ArchivedForecast(ctx context.Context, runID string) ([]types.DailyForecast, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, service, segment, volume_low, volume, volume_high, aht_secs, awt_secs, call_load_mins, staffing_mins
		FROM forecast_archive WHERE run_id = ? ORDER BY date, service, segment`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived forecast: %w", err)
	}
	defer rows.Close()

	var out []types.DailyForecast
	for rows.Next() {
		var d types.DailyForecast
		if err := rows.Scan(&d.Date, &d.Service, &d.Segment, &d.VolumeLow, &d.Volume, &d.VolumeHigh, &d.AHTSecs, &d.AWTSecs, &d.CallLoadMins, &d.StaffingMins); err != nil {
			return nil, fmt.Errorf("failed to scan archived forecast: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *DuckDBStore) ArchivedDailyTotals(ctx context.Context, runID string) (map[time.Time]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, SUM(volume) FROM forecast_archive WHERE run_id = ? GROUP BY date`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived totals: %w", err)
	}
	defer rows.Close()

	out := make(map[time.Time]float64)
	for rows.Next() {
		var date time.Time
		var total float64
		if err := rows.Scan(&date, &total); err != nil {
			return nil, fmt.Errorf("failed to scan archived total: %w", err)
		}
		out[date] = total
	}
	return out, rows.Err()
}

func (s *DuckDBStore) ActualDailyTotals(ctx context.Context, from, to time.Time) (map[time.Time]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date_trunc('day', ts) AS day, SUM(calls)
		FROM hourly_history WHERE ts >= ? AND ts <= ?
		GROUP BY day`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query actual totals: %w", err)
	}
	defer rows.Close()

	out := make(map[time.Time]float64)
	for rows.Next() {
		var day time.Time
		var total float64
		if err := rows.Scan(&day, &total); err != nil {
			return nil, fmt.Errorf("failed to scan actual total: %w", err)
		}
		out[day] = total
	}
	return out, rows.Err()
}

func (s *DuckDBStore) AppendPerformance(ctx context.Context, r types.EvaluationResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO performance_log (run_id, range_start, range_end, actual_total, forecast_total, wmape, accuracy, days, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Start, r.End, r.ActualTotal, r.ForecastTotal, r.WMAPE, r.Accuracy, r.Days, r.EvaluatedAt)
	if err != nil {
		return fmt.Errorf("failed to append performance row: %w", err)
	}
	return nil
}

func (s *DuckDBStore) Performance(ctx context.Context, limit int) ([]types.EvaluationResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, range_start, range_end, actual_total, forecast_total, wmape, accuracy, days, evaluated_at
		FROM performance_log ORDER BY evaluated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query performance log: %w", err)
	}
	defer rows.Close()

	var out []types.EvaluationResult
	for rows.Next() {
		var r types.EvaluationResult
		if err := rows.Scan(&r.RunID, &r.Start, &r.End, &r.ActualTotal, &r.ForecastTotal, &r.WMAPE, &r.Accuracy, &r.Days, &r.EvaluatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan performance row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *DuckDBStore) Close() error {
	return s.db.Close()
}

func (s *DuckDBStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("transaction failed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// swapStaging replaces table with its fully-written staging twin.
func swapStaging(ctx context.Context, tx *sql.Tx, table string) error {
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE %s`, table)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s_staging RENAME TO %s`, table, table)); err != nil {
		return err
	}
	return nil
}
