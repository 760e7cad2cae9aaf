package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"MacroPull/internal/domain/models"
	pkgch "MacroPull/pkg/clickhouse"
	applogger "MacroPull/pkg/logger"
)

// CHRecordStore implements RecordStore backed by ClickHouse. The table
// is a ReplacingMergeTree keyed by date: inserting a full row for an
// existing date supersedes the old version, which gives the idempotent
// full-record upsert the orchestrator relies on.
type CHRecordStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHRecordStore(ch *pkgch.Client, table string) *CHRecordStore {
	return &CHRecordStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHRecordStore) SetLogger(l *applogger.Logger) { s.l = l }

// SchemaStatements returns the idempotent DDL for the store.
func SchemaStatements(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			date Date,
			interest_rate Nullable(Float64),
			vix Nullable(Float64),
			dxy Nullable(Float64),
			treasury_2y Nullable(Float64),
			treasury_10y Nullable(Float64),
			yield_curve_spread Nullable(Float64),
			ice_bofa_bbb Nullable(Float64),
			gdp_growth Nullable(Float64),
			cpi Nullable(Float64),
			cpi_yoy Nullable(Float64),
			updated_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(updated_at) ORDER BY date`, database, table),
	}
}

func nullable(v models.Value) interface{} {
	if !v.Valid {
		return nil
	}
	return v.Float64
}

func toValue(f sql.NullFloat64) models.Value {
	if !f.Valid {
		return models.None()
	}
	return models.Some(f.Float64)
}

// Upsert writes one full record. The write is a plain insert; the
// ReplacingMergeTree engine collapses rows sharing a date, keeping the
// one with the greatest updated_at.
func (s *CHRecordStore) Upsert(ctx context.Context, rec *models.DailyIndicatorRecord) error {
	start := time.Now()
	q := fmt.Sprintf(`INSERT INTO %s
		(date, interest_rate, vix, dxy, treasury_2y, treasury_10y,
		 yield_curve_spread, ice_bofa_bbb, gdp_growth, cpi, cpi_yoy, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)

	_, err := s.db.ExecContext(ctx, q,
		rec.Date,
		nullable(rec.InterestRate),
		nullable(rec.VIX),
		nullable(rec.DXY),
		nullable(rec.Treasury2Y),
		nullable(rec.Treasury10Y),
		nullable(rec.YieldCurveSpread),
		nullable(rec.ICEBofaBBB),
		nullable(rec.GDPGrowth),
		nullable(rec.CPI),
		nullable(rec.CPIYoY),
		rec.UpdatedAt,
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse upsert error",
				applogger.String("table", s.table),
				applogger.String("date", rec.Date),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("upsert record %s: %w", rec.Date, err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse upsert ok",
			applogger.String("table", s.table),
			applogger.String("date", rec.Date),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

// Get returns the latest version of a date's record, or nil when the
// date has never been persisted.
func (s *CHRecordStore) Get(ctx context.Context, date string) (*models.DailyIndicatorRecord, error) {
	q := fmt.Sprintf(`SELECT
			toString(date), interest_rate, vix, dxy, treasury_2y, treasury_10y,
			yield_curve_spread, ice_bofa_bbb, gdp_growth, cpi, cpi_yoy, updated_at
		FROM %s FINAL
		WHERE date = ?`, s.table)

	var (
		rec  models.DailyIndicatorRecord
		vals [10]sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, q, date).Scan(
		&rec.Date,
		&vals[0], &vals[1], &vals[2], &vals[3], &vals[4],
		&vals[5], &vals[6], &vals[7], &vals[8], &vals[9],
		&rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", date, err)
	}
	for i, name := range models.FieldNames() {
		rec.SetField(name, toValue(vals[i]))
	}
	return &rec, nil
}

// ListDates enumerates existing record keys in [from, to], ascending.
// The backfill gap scan compares this against the expected trading-day
// sequence.
func (s *CHRecordStore) ListDates(ctx context.Context, from, to string) ([]string, error) {
	q := fmt.Sprintf(`SELECT DISTINCT toString(date)
		FROM %s
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC`, s.table)

	rows, err := s.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("list dates: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0, 256)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
