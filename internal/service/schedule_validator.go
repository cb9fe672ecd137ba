package service

import (
	"fmt"
	"regexp"
	"time"

	"github.com/noah-isme/prayer-schedule-api/internal/models"
)

// DefaultMinYearRows is the row count below which a yearly upload looks incomplete.
const DefaultMinYearRows = 300

var isoDateShape = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ScheduleValidator checks parsed batches. It never mutates or normalises its input.
type ScheduleValidator struct {
	minYearRows int
}

// NewScheduleValidator builds a validator; minYearRows <= 0 selects DefaultMinYearRows.
func NewScheduleValidator(minYearRows int) *ScheduleValidator {
	if minYearRows <= 0 {
		minYearRows = DefaultMinYearRows
	}
	return &ScheduleValidator{minYearRows: minYearRows}
}

type requiredTime struct {
	field string
	value func(t *models.PrayerTimes) string
}

var requiredTimes = []requiredTime{
	{"fajr_begins", func(t *models.PrayerTimes) string { return t.FajrBegins }},
	{"zuhr_begins", func(t *models.PrayerTimes) string { return t.ZuhrBegins }},
	{"asr_mithl_1", asrBegins},
	{"maghrib_begins", func(t *models.PrayerTimes) string { return t.MaghribBegins }},
	{"isha_begins", func(t *models.PrayerTimes) string { return t.IshaBegins }},
}

// asrBegins picks whichever asr reckoning is set; either satisfies the requirement.
func asrBegins(t *models.PrayerTimes) string {
	for _, v := range []string{t.AsrMithl1, t.AsrMithl2} {
		if v != "" && v != models.TimeSentinel {
			return v
		}
	}
	if t.AsrMithl1 == models.TimeSentinel || t.AsrMithl2 == models.TimeSentinel {
		return models.TimeSentinel
	}
	return ""
}

// ValidateYear checks a full-year batch.
func (v *ScheduleValidator) ValidateYear(rows []models.PrayerDay) models.ValidationResult {
	result := newValidationResult()
	if len(rows) == 0 {
		result.addError(0, "", models.IssueEmptyBatch, "no rows to import")
		return result.finish()
	}

	firstSeen := make(map[string]int, len(rows))
	for i, row := range rows {
		n := i + 1

		if row.Date == "" {
			result.addError(n, "d_date", models.IssueMissingField, "d_date is required")
		} else if !isValidISODate(row.Date) {
			result.addError(n, "d_date", models.IssueInvalidDate, fmt.Sprintf("%q is not a YYYY-MM-DD date", row.Date))
		} else if prev, dup := firstSeen[row.Date]; dup {
			result.addError(n, "d_date", models.IssueDuplicateDate, fmt.Sprintf("date %s already appears on row %d", row.Date, prev))
		} else {
			firstSeen[row.Date] = n
		}

		checkRequired(&result, n, row.PrayerTimes)
		checkTimes(&result, n, row.PrayerTimes)
	}

	if len(rows) < v.minYearRows {
		result.addWarning(0, "", models.IssueLowRowCount,
			fmt.Sprintf("only %d rows for a full-year upload (expected at least %d)", len(rows), v.minYearRows))
	}
	return result.finish()
}

// ValidateMonth checks a monthly batch against the month it will be merged into.
func (v *ScheduleValidator) ValidateMonth(rows []models.MonthlyRow, year, month int) models.ValidationResult {
	result := newValidationResult()
	if month < 1 || month > 12 || year < 1 {
		result.addError(0, "", models.IssueInvalidMonthArg, fmt.Sprintf("invalid target month %04d-%02d", year, month))
		return result.finish()
	}
	if len(rows) == 0 {
		result.addError(0, "", models.IssueEmptyBatch, "no rows to import")
		return result.finish()
	}

	lastDay := daysIn(year, time.Month(month))
	firstSeen := make(map[int]int, len(rows))
	for i, row := range rows {
		n := i + 1
		if row.Day < 1 || row.Day > lastDay {
			result.addError(n, "day", models.IssueDayOutOfMonth,
				fmt.Sprintf("day %d does not exist in %04d-%02d", row.Day, year, month))
		} else if prev, dup := firstSeen[row.Day]; dup {
			result.addError(n, "day", models.IssueDuplicateDay, fmt.Sprintf("day %d already appears on row %d", row.Day, prev))
		} else {
			firstSeen[row.Day] = n
		}
		checkRequired(&result, n, row.PrayerTimes)
		checkTimes(&result, n, row.PrayerTimes)
	}
	return result.finish()
}

// checkRequired flags empty begin times as errors and sentinel ones as warnings.
func checkRequired(result *validationBuilder, row int, times models.PrayerTimes) {
	for _, req := range requiredTimes {
		switch req.value(&times) {
		case "":
			result.addError(row, req.field, models.IssueMissingField, req.field+" is required")
		case models.TimeSentinel:
			result.addWarning(row, req.field, models.IssueUnsetTime, req.field+" is unset ("+models.TimeSentinel+")")
		}
	}
}

func checkTimes(result *validationBuilder, row int, times models.PrayerTimes) {
	for _, name := range MonthColumns[1:] {
		value := timeColumns[name].get(&times)
		if value != "" && !IsCanonicalTime(value) {
			result.addWarning(row, name, models.IssueInvalidTime, fmt.Sprintf("%s %q is not HH:MM:SS", name, value))
		}
	}
}

func isValidISODate(value string) bool {
	if !isoDateShape.MatchString(value) {
		return false
	}
	_, err := time.Parse(models.DateLayout, value)
	return err == nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

type validationBuilder struct {
	errors   []models.ValidationIssue
	warnings []models.ValidationIssue
}

func newValidationResult() validationBuilder {
	return validationBuilder{errors: []models.ValidationIssue{}, warnings: []models.ValidationIssue{}}
}

func (b *validationBuilder) addError(row int, field, code, msg string) {
	b.errors = append(b.errors, models.ValidationIssue{Row: row, Field: field, Code: code, Severity: models.SeverityError, Message: msg})
}

func (b *validationBuilder) addWarning(row int, field, code, msg string) {
	b.warnings = append(b.warnings, models.ValidationIssue{Row: row, Field: field, Code: code, Severity: models.SeverityWarning, Message: msg})
}

func (b validationBuilder) finish() models.ValidationResult {
	return models.ValidationResult{IsValid: len(b.errors) == 0, Errors: b.errors, Warnings: b.warnings}
}
