package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/prayer-schedule-api/internal/models"
)

// MergeMonth upserts monthly rows into a copy of timeline and returns the copy.
// Rows replace the day with the same date or are inserted in date order.
// Monthly rows carry no Ramadan flag or Hijri date, so every merged day has
// IsRamadan 0 and an empty HijriDate, replaced or inserted.
func MergeMonth(timeline models.Timeline, rows []models.MonthlyRow, year, month int) models.Timeline {
	merged := make(models.Timeline, len(timeline), len(timeline)+len(rows))
	copy(merged, timeline)

	for _, row := range rows {
		date := fmt.Sprintf("%04d-%02d-%02d", year, month, row.Day)
		day := models.PrayerDay{Date: date, PrayerTimes: row.PrayerTimes}

		idx := sort.Search(len(merged), func(i int) bool { return merged[i].Date >= date })
		if idx < len(merged) && merged[idx].Date == date {
			merged[idx] = day
			continue
		}
		merged = append(merged, models.PrayerDay{})
		copy(merged[idx+1:], merged[idx:])
		merged[idx] = day
	}
	return merged
}

// ReplaceYear returns the yearly rows as the new timeline, untouched.
func ReplaceYear(rows []models.PrayerDay) models.Timeline {
	out := make(models.Timeline, len(rows))
	copy(out, rows)
	return out
}

// MonthOf returns the days of timeline that fall in the given month.
func MonthOf(timeline models.Timeline, year, month int) models.Timeline {
	prefix := fmt.Sprintf("%04d-%02d-", year, month)
	start := sort.Search(len(timeline), func(i int) bool { return timeline[i].Date >= prefix })
	out := models.Timeline{}
	for i := start; i < len(timeline); i++ {
		if !strings.HasPrefix(timeline[i].Date, prefix) {
			break
		}
		out = append(out, timeline[i])
	}
	return out
}

// FindDay looks up date in a sorted timeline.
func FindDay(timeline models.Timeline, date string) (models.PrayerDay, bool) {
	idx := sort.Search(len(timeline), func(i int) bool { return timeline[i].Date >= date })
	if idx < len(timeline) && timeline[idx].Date == date {
		return timeline[idx], true
	}
	return models.PrayerDay{}, false
}

// Canonicalize sorts days by date and keeps the last occurrence of each date.
// Used on data that did not pass through the merger, such as remote snapshots.
func Canonicalize(days []models.PrayerDay) models.Timeline {
	latest := make(map[string]models.PrayerDay, len(days))
	for _, day := range days {
		latest[day.Date] = day
	}
	out := make(models.Timeline, 0, len(latest))
	for _, day := range latest {
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// YearOf returns the days of timeline that fall in year.
func YearOf(timeline models.Timeline, year int) models.Timeline {
	prefix := fmt.Sprintf("%04d-", year)
	out := models.Timeline{}
	for _, day := range timeline {
		if strings.HasPrefix(day.Date, prefix) {
			out = append(out, day)
		}
	}
	return out
}
