package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/prayer-schedule-api/internal/models"
)

func validDay(date string) models.PrayerDay {
	return models.PrayerDay{
		Date: date,
		PrayerTimes: models.PrayerTimes{
			FajrBegins: "05:00:00", FajrJamah: "05:20:00", Sunrise: "06:45:00",
			ZuhrBegins: "12:15:00", ZuhrJamah: "13:00:00",
			AsrMithl1: "15:00:00", AsrMithl2: "15:45:00", AsrJamah: "16:00:00",
			MaghribBegins: "17:40:00", MaghribJamah: "17:45:00",
			IshaBegins: "19:30:00", IshaJamah: "19:45:00",
		},
	}
}

func fullYear(year int) []models.PrayerDay {
	var days []models.PrayerDay
	for d := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC); d.Year() == year; d = d.AddDate(0, 0, 1) {
		days = append(days, validDay(d.Format(models.DateLayout)))
	}
	return days
}

func issueCodes(issues []models.ValidationIssue) []string {
	codes := make([]string, 0, len(issues))
	for _, issue := range issues {
		codes = append(codes, issue.Code)
	}
	return codes
}

func TestValidateYearClean(t *testing.T) {
	result := NewScheduleValidator(0).ValidateYear(fullYear(2025))

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidateYearEmpty(t *testing.T) {
	result := NewScheduleValidator(0).ValidateYear(nil)

	assert.False(t, result.IsValid)
	assert.Equal(t, []string{models.IssueEmptyBatch}, issueCodes(result.Errors))
}

func TestValidateYearDuplicateAndLowCount(t *testing.T) {
	var rows []models.PrayerDay
	for i := 1; i <= 50; i++ {
		rows = append(rows, validDay(fmt.Sprintf("2025-01-%02d", (i-1)%31+1)))
	}

	result := NewScheduleValidator(300).ValidateYear(rows)

	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 19)
	for _, issue := range result.Errors {
		assert.Equal(t, models.IssueDuplicateDate, issue.Code)
		assert.Equal(t, models.SeverityError, issue.Severity)
	}
	assert.Equal(t, 32, result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Message, "row 1")
	assert.Equal(t, []string{models.IssueLowRowCount}, issueCodes(result.Warnings))
}

func TestValidateYearFieldChecks(t *testing.T) {
	missing := validDay("2025-01-01")
	missing.FajrBegins = ""
	badDate := validDay("2025-02-30")
	shortDate := validDay("2025-1-03")
	unset := validDay("2025-01-04")
	unset.IshaBegins = models.TimeSentinel
	asrVariant := validDay("2025-01-05")
	asrVariant.AsrMithl1 = ""
	noAsr := validDay("2025-01-06")
	noAsr.AsrMithl1, noAsr.AsrMithl2 = "", ""
	oddTime := validDay("2025-01-07")
	oddTime.Sunrise = "6:45"

	rows := []models.PrayerDay{missing, badDate, shortDate, unset, asrVariant, noAsr, oddTime}
	rows = append(rows, fullYear(2026)...)

	result := NewScheduleValidator(0).ValidateYear(rows)

	assert.False(t, result.IsValid)
	assert.Equal(t, []string{
		models.IssueMissingField,
		models.IssueInvalidDate,
		models.IssueInvalidDate,
		models.IssueMissingField,
	}, issueCodes(result.Errors))
	assert.Equal(t, "fajr_begins", result.Errors[0].Field)
	assert.Equal(t, 6, result.Errors[3].Row)
	assert.Equal(t, "asr_mithl_1", result.Errors[3].Field)

	assert.Equal(t, []string{models.IssueUnsetTime, models.IssueInvalidTime}, issueCodes(result.Warnings))
	assert.Equal(t, "isha_begins", result.Warnings[0].Field)
	assert.Equal(t, 7, result.Warnings[1].Row)
	assert.Equal(t, "sunrise", result.Warnings[1].Field)
}

func TestValidateYearDoesNotMutate(t *testing.T) {
	rows := []models.PrayerDay{validDay("2025-01-01")}
	rows[0].FajrJamah = "5:20"

	NewScheduleValidator(0).ValidateYear(rows)

	assert.Equal(t, "5:20", rows[0].FajrJamah)
}

func TestValidateMonth(t *testing.T) {
	row := func(day int) models.MonthlyRow {
		return models.MonthlyRow{Day: day, PrayerTimes: validDay("2025-04-01").PrayerTimes}
	}
	v := NewScheduleValidator(0)

	clean := v.ValidateMonth([]models.MonthlyRow{row(1), row(30)}, 2025, 4)
	assert.True(t, clean.IsValid)
	assert.Empty(t, clean.Warnings)

	bad := v.ValidateMonth([]models.MonthlyRow{row(1), row(1), row(31)}, 2025, 4)
	assert.False(t, bad.IsValid)
	assert.Equal(t, []string{models.IssueDuplicateDay, models.IssueDayOutOfMonth}, issueCodes(bad.Errors))

	leap := v.ValidateMonth([]models.MonthlyRow{row(29)}, 2024, 2)
	assert.True(t, leap.IsValid)
	notLeap := v.ValidateMonth([]models.MonthlyRow{row(29)}, 2025, 2)
	assert.False(t, notLeap.IsValid)

	odd := row(2)
	odd.MaghribJamah = "17:45"
	warned := v.ValidateMonth([]models.MonthlyRow{odd}, 2025, 4)
	assert.True(t, warned.IsValid)
	assert.Equal(t, []string{models.IssueInvalidTime}, issueCodes(warned.Warnings))

	assert.Equal(t, []string{models.IssueEmptyBatch}, issueCodes(v.ValidateMonth(nil, 2025, 4).Errors))
	assert.Equal(t, []string{models.IssueInvalidMonthArg}, issueCodes(v.ValidateMonth([]models.MonthlyRow{row(1)}, 2025, 13).Errors))
}
