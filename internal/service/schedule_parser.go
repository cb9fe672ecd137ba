package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/prayer-schedule-api/internal/models"
)

// Parsing follows a skip-and-continue policy: a bad data line is recorded in
// Skipped and the remaining lines are still parsed. Values are split on plain
// commas; quoted fields are not supported.

// ParseYear turns yearly CSV text into PrayerDay rows.
func ParseYear(text string) models.YearParseResult {
	result := models.YearParseResult{Rows: []models.PrayerDay{}, Skipped: []models.SkippedLine{}}
	header, lines := splitTable(text)
	if header == nil {
		return result
	}
	result.TotalLines = len(lines)

	for _, line := range lines {
		day, err := parseYearLine(header, line.values)
		if err != nil {
			result.Skipped = append(result.Skipped, models.SkippedLine{Line: line.number, Reason: err.Error()})
			continue
		}
		if day.Date == "" {
			result.Skipped = append(result.Skipped, models.SkippedLine{Line: line.number, Reason: "missing d_date"})
			continue
		}
		result.Rows = append(result.Rows, day)
	}
	return result
}

// ParseMonth turns monthly CSV text into MonthlyRow values.
func ParseMonth(text string) models.MonthParseResult {
	result := models.MonthParseResult{Rows: []models.MonthlyRow{}, Skipped: []models.SkippedLine{}}
	header, lines := splitTable(text)
	if header == nil {
		return result
	}
	result.TotalLines = len(lines)

	for _, line := range lines {
		row, err := parseMonthLine(header, line.values)
		if err != nil {
			result.Skipped = append(result.Skipped, models.SkippedLine{Line: line.number, Reason: err.Error()})
			continue
		}
		if row.Day < 1 || row.Day > 31 {
			result.Skipped = append(result.Skipped, models.SkippedLine{
				Line:   line.number,
				Reason: fmt.Sprintf("day %d outside 1..31", row.Day),
			})
			continue
		}
		result.Rows = append(result.Rows, row)
	}
	return result
}

type dataLine struct {
	number int
	values []string
}

// splitTable returns the trimmed header tokens and the data lines, or a nil
// header when there is not at least one header and one data line.
func splitTable(text string) ([]string, []dataLine) {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var header []string
	lines := make([]dataLine, 0, len(raw))
	for i, line := range raw {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if header == nil {
			header = splitValues(strings.TrimPrefix(line, "\ufeff"))
			continue
		}
		lines = append(lines, dataLine{number: i + 1, values: splitValues(line)})
	}
	if header == nil || len(lines) == 0 {
		return nil, nil
	}
	return header, lines
}

func splitValues(line string) []string {
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// checkArity rejects short lines and lines carrying non-empty values beyond the header.
func checkArity(header, values []string) error {
	if len(values) < len(header) {
		return fmt.Errorf("expected %d values, got %d", len(header), len(values))
	}
	for _, extra := range values[len(header):] {
		if extra != "" {
			return fmt.Errorf("expected %d values, got %d", len(header), len(values))
		}
	}
	return nil
}

func parseYearLine(header, values []string) (day models.PrayerDay, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed line: %v", r)
		}
	}()
	if err := checkArity(header, values); err != nil {
		return models.PrayerDay{}, err
	}

	day = models.PrayerDay{PrayerTimes: models.NewPrayerTimes()}
	for i, name := range header {
		col, ok := yearSchema[name]
		if !ok {
			continue
		}
		col.set(&day, values[i])
	}
	return day, nil
}

func parseMonthLine(header, values []string) (row models.MonthlyRow, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed line: %v", r)
		}
	}()
	if err := checkArity(header, values); err != nil {
		return models.MonthlyRow{}, err
	}

	row = models.MonthlyRow{PrayerTimes: models.NewPrayerTimes()}
	for i, name := range header {
		col, ok := monthSchema[name]
		if !ok {
			continue
		}
		col.set(&row, values[i])
	}
	return row, nil
}
