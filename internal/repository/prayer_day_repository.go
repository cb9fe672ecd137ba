package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/prayer-schedule-api/internal/models"
)

const prayerDaySchema = `
CREATE TABLE IF NOT EXISTS prayer_days (
    d_date DATE PRIMARY KEY,
    fajr_begins TEXT NOT NULL,
    fajr_jamah TEXT NOT NULL,
    sunrise TEXT NOT NULL,
    zuhr_begins TEXT NOT NULL,
    zuhr_jamah TEXT NOT NULL,
    asr_mithl_1 TEXT NOT NULL,
    asr_mithl_2 TEXT NOT NULL,
    asr_jamah TEXT NOT NULL,
    maghrib_begins TEXT NOT NULL,
    maghrib_jamah TEXT NOT NULL,
    isha_begins TEXT NOT NULL,
    isha_jamah TEXT NOT NULL,
    is_ramadan SMALLINT NOT NULL DEFAULT 0,
    hijri_date TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PrayerDayRepository is the remote copy of the timeline in PostgreSQL.
type PrayerDayRepository struct {
	db *sqlx.DB
}

// NewPrayerDayRepository builds a repository.
func NewPrayerDayRepository(db *sqlx.DB) *PrayerDayRepository {
	return &PrayerDayRepository{db: db}
}

// EnsureSchema creates the prayer_days table when missing.
func (r *PrayerDayRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, prayerDaySchema); err != nil {
		return fmt.Errorf("ensure prayer_days schema: %w", err)
	}
	return nil
}

// UpsertAll makes the remote table match days exactly: dates absent from days
// are removed, the rest are inserted or overwritten. An empty slice clears the table.
func (r *PrayerDayRepository) UpsertAll(ctx context.Context, days []models.PrayerDay) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin prayer day sync tx: %w", err)
	}

	dates := make([]string, len(days))
	for i := range days {
		dates[i] = days[i].Date
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM prayer_days WHERE NOT (d_date = ANY($1::date[]))`, pq.Array(dates)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prune prayer days: %w", err)
	}

	const query = `INSERT INTO prayer_days (d_date, fajr_begins, fajr_jamah, sunrise, zuhr_begins, zuhr_jamah,
    asr_mithl_1, asr_mithl_2, asr_jamah, maghrib_begins, maghrib_jamah, isha_begins, isha_jamah, is_ramadan, hijri_date, updated_at)
VALUES (:d_date, :fajr_begins, :fajr_jamah, :sunrise, :zuhr_begins, :zuhr_jamah,
    :asr_mithl_1, :asr_mithl_2, :asr_jamah, :maghrib_begins, :maghrib_jamah, :isha_begins, :isha_jamah, :is_ramadan, :hijri_date, NOW())
ON CONFLICT (d_date) DO UPDATE
SET fajr_begins = EXCLUDED.fajr_begins, fajr_jamah = EXCLUDED.fajr_jamah, sunrise = EXCLUDED.sunrise,
    zuhr_begins = EXCLUDED.zuhr_begins, zuhr_jamah = EXCLUDED.zuhr_jamah,
    asr_mithl_1 = EXCLUDED.asr_mithl_1, asr_mithl_2 = EXCLUDED.asr_mithl_2, asr_jamah = EXCLUDED.asr_jamah,
    maghrib_begins = EXCLUDED.maghrib_begins, maghrib_jamah = EXCLUDED.maghrib_jamah,
    isha_begins = EXCLUDED.isha_begins, isha_jamah = EXCLUDED.isha_jamah,
    is_ramadan = EXCLUDED.is_ramadan, hijri_date = EXCLUDED.hijri_date, updated_at = NOW()`
	for i := range days {
		if _, err := tx.NamedExecContext(ctx, query, days[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert prayer day %s: %w", days[i].Date, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit prayer day sync tx: %w", err)
	}
	return nil
}

// LoadAll returns every remote day ordered by date.
func (r *PrayerDayRepository) LoadAll(ctx context.Context) ([]models.PrayerDay, error) {
	const query = `SELECT to_char(d_date, 'YYYY-MM-DD') AS d_date, fajr_begins, fajr_jamah, sunrise, zuhr_begins, zuhr_jamah,
    asr_mithl_1, asr_mithl_2, asr_jamah, maghrib_begins, maghrib_jamah, isha_begins, isha_jamah, is_ramadan, hijri_date
FROM prayer_days ORDER BY d_date ASC`
	days := []models.PrayerDay{}
	if err := r.db.SelectContext(ctx, &days, query); err != nil {
		return nil, fmt.Errorf("load prayer days: %w", err)
	}
	return days, nil
}

// Ping reports whether the database is reachable.
func (r *PrayerDayRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// transientSQLStates lists SQLSTATE codes and classes worth retrying.
var transientSQLStates = []string{
	"08",    // connection exception
	"53",    // insufficient resources
	"57P01", // admin_shutdown
	"57P02", // crash_shutdown
	"57P03", // cannot_connect_now
	"40001", // serialization_failure
	"40P01", // deadlock_detected
}

// IsTransientPQError classifies PostgreSQL errors that a retry may cure.
func IsTransientPQError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	code := string(pqErr.Code)
	for _, state := range transientSQLStates {
		if strings.HasPrefix(code, state) {
			return true
		}
	}
	return false
}
