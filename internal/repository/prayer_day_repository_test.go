package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/prayer-schedule-api/internal/models"
)

func newPrayerDayRepoMock(t *testing.T) (*PrayerDayRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPrayerDayRepository(sqlx.NewDb(db, "postgres")), mock, func() { db.Close() }
}

func samplePrayerDay(date string) models.PrayerDay {
	times := models.NewPrayerTimes()
	times.FajrBegins = "05:01:00"
	times.IshaBegins = "19:40:00"
	return models.PrayerDay{Date: date, PrayerTimes: times, IsRamadan: 1, HijriDate: "1 Ramadan 1446"}
}

func TestPrayerDayRepositoryUpsertAll(t *testing.T) {
	repo, mock, cleanup := newPrayerDayRepoMock(t)
	defer cleanup()

	days := []models.PrayerDay{samplePrayerDay("2025-03-01"), samplePrayerDay("2025-03-02")}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM prayer_days")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	for _, day := range days {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO prayer_days")).
			WithArgs(day.Date, "05:01:00", "00:00:00", "00:00:00", "00:00:00", "00:00:00",
				"00:00:00", "00:00:00", "00:00:00", "00:00:00", "00:00:00", "19:40:00", "00:00:00", 1, "1 Ramadan 1446").
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.UpsertAll(context.Background(), days))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrayerDayRepositoryUpsertAllRollsBack(t *testing.T) {
	repo, mock, cleanup := newPrayerDayRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM prayer_days")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO prayer_days")).
		WillReturnError(&pq.Error{Code: "57P01"})
	mock.ExpectRollback()

	err := repo.UpsertAll(context.Background(), []models.PrayerDay{samplePrayerDay("2025-03-01")})
	require.Error(t, err)
	assert.True(t, IsTransientPQError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrayerDayRepositoryUpsertAllEmptyClears(t *testing.T) {
	repo, mock, cleanup := newPrayerDayRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM prayer_days")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 365))
	mock.ExpectCommit()

	require.NoError(t, repo.UpsertAll(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrayerDayRepositoryLoadAll(t *testing.T) {
	repo, mock, cleanup := newPrayerDayRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"d_date", "fajr_begins", "fajr_jamah", "sunrise", "zuhr_begins", "zuhr_jamah",
		"asr_mithl_1", "asr_mithl_2", "asr_jamah", "maghrib_begins", "maghrib_jamah", "isha_begins", "isha_jamah", "is_ramadan", "hijri_date"}).
		AddRow("2025-03-01", "05:01:00", "05:20:00", "06:30:00", "12:30:00", "13:00:00",
			"15:30:00", "16:15:00", "16:30:00", "18:00:00", "18:05:00", "19:40:00", "20:00:00", 1, "1 Ramadan 1446")

	mock.ExpectQuery("SELECT to_char\\(d_date, 'YYYY-MM-DD'\\) AS d_date").WillReturnRows(rows)

	days, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, "2025-03-01", days[0].Date)
	assert.Equal(t, "16:15:00", days[0].AsrMithl2)
	assert.Equal(t, 1, days[0].IsRamadan)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsTransientPQError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&pq.Error{Code: "08006"}, true},
		{&pq.Error{Code: "53300"}, true},
		{&pq.Error{Code: "57P03"}, true},
		{&pq.Error{Code: "40001"}, true},
		{fmt.Errorf("wrapped: %w", &pq.Error{Code: "08001"}), true},
		{&pq.Error{Code: "23505"}, false},
		{&pq.Error{Code: "42P01"}, false},
		{errors.New("plain"), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsTransientPQError(tc.err), "%v", tc.err)
	}
}
