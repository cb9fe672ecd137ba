package service

import (
	"fmt"
	"strconv"

	"github.com/noah-isme/prayer-schedule-api/internal/models"
	"github.com/noah-isme/prayer-schedule-api/pkg/export"
)

// ScheduleSerializer renders timelines in the yearly and monthly CSV formats
// read by ParseYear and ParseMonth.
type ScheduleSerializer struct {
	exporter *export.CSVExporter
}

// NewScheduleSerializer builds a serializer.
func NewScheduleSerializer(exporter *export.CSVExporter) *ScheduleSerializer {
	if exporter == nil {
		exporter = export.NewCSVExporter(export.Plain())
	}
	return &ScheduleSerializer{exporter: exporter}
}

// SerializeYear renders every day of the timeline with the yearly header.
func (s *ScheduleSerializer) SerializeYear(timeline models.Timeline) (string, error) {
	dataset := export.Dataset{Headers: YearColumns, Rows: make([]map[string]string, 0, len(timeline))}
	for i := range timeline {
		record := make(map[string]string, len(YearColumns))
		for _, name := range YearColumns {
			record[name] = yearSchema[name].get(&timeline[i])
		}
		dataset.Rows = append(dataset.Rows, record)
	}
	out, err := s.exporter.Render(dataset)
	if err != nil {
		return "", fmt.Errorf("serialize year: %w", err)
	}
	return string(out), nil
}

// SerializeMonth renders the days of one month with the monthly header.
// It returns "" when the timeline has no day in that month.
func (s *ScheduleSerializer) SerializeMonth(timeline models.Timeline, year, month int) (string, error) {
	days := MonthOf(timeline, year, month)
	if len(days) == 0 {
		return "", nil
	}
	dataset := export.Dataset{Headers: MonthColumns, Rows: make([]map[string]string, 0, len(days))}
	for _, day := range days {
		row := models.MonthlyRow{Day: dayOfMonth(day.Date), PrayerTimes: day.PrayerTimes}
		record := make(map[string]string, len(MonthColumns))
		for _, name := range MonthColumns {
			record[name] = monthSchema[name].get(&row)
		}
		dataset.Rows = append(dataset.Rows, record)
	}
	out, err := s.exporter.Render(dataset)
	if err != nil {
		return "", fmt.Errorf("serialize month: %w", err)
	}
	return string(out), nil
}

func dayOfMonth(date string) int {
	if len(date) < 10 {
		return 0
	}
	n, err := strconv.Atoi(date[8:10])
	if err != nil {
		return 0
	}
	return n
}
