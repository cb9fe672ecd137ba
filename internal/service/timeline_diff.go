package service

import "github.com/noah-isme/prayer-schedule-api/internal/models"

// DiffTimelines reports the dates added, removed or changed going from before
// to after. Unsorted input is canonicalised first.
func DiffTimelines(before, after models.Timeline) models.TimelineDiff {
	if !before.IsSorted() {
		before = Canonicalize(before)
	}
	if !after.IsSorted() {
		after = Canonicalize(after)
	}

	diff := models.TimelineDiff{Days: []models.DayChange{}}
	i, j := 0, 0
	for i < len(before) || j < len(after) {
		switch {
		case j >= len(after) || (i < len(before) && before[i].Date < after[j].Date):
			diff.Removed++
			diff.Days = append(diff.Days, models.DayChange{Date: before[i].Date, Kind: models.ChangeRemoved})
			i++
		case i >= len(before) || after[j].Date < before[i].Date:
			diff.Added++
			diff.Days = append(diff.Days, models.DayChange{Date: after[j].Date, Kind: models.ChangeAdded})
			j++
		default:
			if fields := changedFields(&before[i], &after[j]); len(fields) > 0 {
				diff.Changed++
				diff.Days = append(diff.Days, models.DayChange{Date: after[j].Date, Kind: models.ChangeUpdated, Fields: fields})
			}
			i++
			j++
		}
	}
	return diff
}

func changedFields(a, b *models.PrayerDay) []string {
	var fields []string
	for _, name := range YearColumns[1:] {
		col := yearSchema[name]
		if col.get(a) != col.get(b) {
			fields = append(fields, name)
		}
	}
	return fields
}
