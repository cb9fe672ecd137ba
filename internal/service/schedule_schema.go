package service

import (
	"strconv"
	"strings"

	"github.com/noah-isme/prayer-schedule-api/internal/models"
)

// Column names of the yearly and monthly CSV formats, in wire order.
var (
	YearColumns = []string{
		"d_date", "fajr_begins", "fajr_jamah", "sunrise", "zuhr_begins", "zuhr_jamah",
		"asr_mithl_1", "asr_mithl_2", "asr_jamah", "maghrib_begins", "maghrib_jamah",
		"isha_begins", "isha_jamah", "is_ramadan", "hijri_date",
	}
	MonthColumns = []string{
		"day", "fajr_begins", "fajr_jamah", "sunrise", "zuhr_begins", "zuhr_jamah",
		"asr_mithl_1", "asr_mithl_2", "asr_jamah", "maghrib_begins", "maghrib_jamah",
		"isha_begins", "isha_jamah",
	}
)

// timeColumn binds a column name to a field of models.PrayerTimes.
type timeColumn struct {
	get func(t *models.PrayerTimes) string
	set func(t *models.PrayerTimes, v string)
}

var timeColumns = map[string]timeColumn{
	"fajr_begins": {
		get: func(t *models.PrayerTimes) string { return t.FajrBegins },
		set: func(t *models.PrayerTimes, v string) { t.FajrBegins = v },
	},
	"fajr_jamah": {
		get: func(t *models.PrayerTimes) string { return t.FajrJamah },
		set: func(t *models.PrayerTimes, v string) { t.FajrJamah = v },
	},
	"sunrise": {
		get: func(t *models.PrayerTimes) string { return t.Sunrise },
		set: func(t *models.PrayerTimes, v string) { t.Sunrise = v },
	},
	"zuhr_begins": {
		get: func(t *models.PrayerTimes) string { return t.ZuhrBegins },
		set: func(t *models.PrayerTimes, v string) { t.ZuhrBegins = v },
	},
	"zuhr_jamah": {
		get: func(t *models.PrayerTimes) string { return t.ZuhrJamah },
		set: func(t *models.PrayerTimes, v string) { t.ZuhrJamah = v },
	},
	"asr_mithl_1": {
		get: func(t *models.PrayerTimes) string { return t.AsrMithl1 },
		set: func(t *models.PrayerTimes, v string) { t.AsrMithl1 = v },
	},
	"asr_mithl_2": {
		get: func(t *models.PrayerTimes) string { return t.AsrMithl2 },
		set: func(t *models.PrayerTimes, v string) { t.AsrMithl2 = v },
	},
	"asr_jamah": {
		get: func(t *models.PrayerTimes) string { return t.AsrJamah },
		set: func(t *models.PrayerTimes, v string) { t.AsrJamah = v },
	},
	"maghrib_begins": {
		get: func(t *models.PrayerTimes) string { return t.MaghribBegins },
		set: func(t *models.PrayerTimes, v string) { t.MaghribBegins = v },
	},
	"maghrib_jamah": {
		get: func(t *models.PrayerTimes) string { return t.MaghribJamah },
		set: func(t *models.PrayerTimes, v string) { t.MaghribJamah = v },
	},
	"isha_begins": {
		get: func(t *models.PrayerTimes) string { return t.IshaBegins },
		set: func(t *models.PrayerTimes, v string) { t.IshaBegins = v },
	},
	"isha_jamah": {
		get: func(t *models.PrayerTimes) string { return t.IshaJamah },
		set: func(t *models.PrayerTimes, v string) { t.IshaJamah = v },
	},
}

// yearColumn binds a yearly column to a PrayerDay field. Setters receive trimmed raw text.
type yearColumn struct {
	get func(d *models.PrayerDay) string
	set func(d *models.PrayerDay, raw string)
}

var yearSchema = buildYearSchema()

func buildYearSchema() map[string]yearColumn {
	schema := map[string]yearColumn{
		"d_date": {
			get: func(d *models.PrayerDay) string { return d.Date },
			set: func(d *models.PrayerDay, raw string) { d.Date = raw },
		},
		"is_ramadan": {
			get: func(d *models.PrayerDay) string { return strconv.Itoa(d.IsRamadan) },
			set: func(d *models.PrayerDay, raw string) { d.IsRamadan = atoiOrZero(raw) },
		},
		"hijri_date": {
			get: func(d *models.PrayerDay) string { return d.HijriDate },
			set: func(d *models.PrayerDay, raw string) { d.HijriDate = raw },
		},
	}
	for name, col := range timeColumns {
		col := col
		schema[name] = yearColumn{
			get: func(d *models.PrayerDay) string { return col.get(&d.PrayerTimes) },
			set: func(d *models.PrayerDay, raw string) { col.set(&d.PrayerTimes, NormalizeTime(raw)) },
		}
	}
	return schema
}

// monthColumn binds a monthly column to a MonthlyRow field.
type monthColumn struct {
	get func(r *models.MonthlyRow) string
	set func(r *models.MonthlyRow, raw string)
}

var monthSchema = buildMonthSchema()

func buildMonthSchema() map[string]monthColumn {
	schema := map[string]monthColumn{
		"day": {
			get: func(r *models.MonthlyRow) string { return strconv.Itoa(r.Day) },
			set: func(r *models.MonthlyRow, raw string) { r.Day = atoiOrZero(raw) },
		},
	}
	for name, col := range timeColumns {
		col := col
		schema[name] = monthColumn{
			get: func(r *models.MonthlyRow) string { return col.get(&r.PrayerTimes) },
			set: func(r *models.MonthlyRow, raw string) { col.set(&r.PrayerTimes, NormalizeTime(raw)) },
		}
	}
	return schema
}

// atoiOrZero never fails: anything that is not an integer becomes 0.
func atoiOrZero(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}
