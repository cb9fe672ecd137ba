package models

import "time"

// TimeSentinel stands in for an unset or invalid prayer time.
const TimeSentinel = "00:00:00"

// DateLayout is the ISO calendar date used as the timeline key.
const DateLayout = "2006-01-02"

// PrayerTimes is the set of time columns shared by yearly and monthly rows.
// Every value is canonical HH:MM:SS or TimeSentinel.
type PrayerTimes struct {
	FajrBegins    string `db:"fajr_begins" json:"fajr_begins"`
	FajrJamah     string `db:"fajr_jamah" json:"fajr_jamah"`
	Sunrise       string `db:"sunrise" json:"sunrise"`
	ZuhrBegins    string `db:"zuhr_begins" json:"zuhr_begins"`
	ZuhrJamah     string `db:"zuhr_jamah" json:"zuhr_jamah"`
	AsrMithl1     string `db:"asr_mithl_1" json:"asr_mithl_1"`
	AsrMithl2     string `db:"asr_mithl_2" json:"asr_mithl_2"`
	AsrJamah      string `db:"asr_jamah" json:"asr_jamah"`
	MaghribBegins string `db:"maghrib_begins" json:"maghrib_begins"`
	MaghribJamah  string `db:"maghrib_jamah" json:"maghrib_jamah"`
	IshaBegins    string `db:"isha_begins" json:"isha_begins"`
	IshaJamah     string `db:"isha_jamah" json:"isha_jamah"`
}

// PrayerDay is one calendar day of the prayer schedule. Date is unique within a timeline.
type PrayerDay struct {
	Date string `db:"d_date" json:"d_date"`
	PrayerTimes
	IsRamadan int    `db:"is_ramadan" json:"is_ramadan"`
	HijriDate string `db:"hijri_date" json:"hijri_date"`
}

// MonthlyRow is a partial update keyed by day of month only.
type MonthlyRow struct {
	Day int `json:"day"`
	PrayerTimes
}

// NewPrayerTimes returns a PrayerTimes with every column set to the sentinel.
func NewPrayerTimes() PrayerTimes {
	return PrayerTimes{
		FajrBegins:    TimeSentinel,
		FajrJamah:     TimeSentinel,
		Sunrise:       TimeSentinel,
		ZuhrBegins:    TimeSentinel,
		ZuhrJamah:     TimeSentinel,
		AsrMithl1:     TimeSentinel,
		AsrMithl2:     TimeSentinel,
		AsrJamah:      TimeSentinel,
		MaghribBegins: TimeSentinel,
		MaghribJamah:  TimeSentinel,
		IshaBegins:    TimeSentinel,
		IshaJamah:     TimeSentinel,
	}
}

// Timeline is a date-ordered schedule with unique dates.
type Timeline []PrayerDay

// Clone returns an independent copy.
func (t Timeline) Clone() Timeline {
	if t == nil {
		return nil
	}
	out := make(Timeline, len(t))
	copy(out, t)
	return out
}

// IsSorted reports whether dates are strictly ascending.
func (t Timeline) IsSorted() bool {
	for i := 1; i < len(t); i++ {
		if t[i-1].Date >= t[i].Date {
			return false
		}
	}
	return true
}

// TimelineSource names where a loaded timeline came from.
type TimelineSource string

const (
	SourceLocal       TimelineSource = "local"
	SourceBundled     TimelineSource = "bundled"
	SourcePlaceholder TimelineSource = "placeholder"
	SourceRemote      TimelineSource = "remote"
)

// LoadResult is the read-only snapshot handed to display collaborators.
type LoadResult struct {
	Days        Timeline       `json:"days"`
	Source      TimelineSource `json:"source"`
	LastUpdated *time.Time     `json:"last_updated,omitempty"`
}
