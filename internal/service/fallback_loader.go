package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/prayer-schedule-api/internal/models"
)

// BundledDataset supplies the reference schedule shipped with the binary.
type BundledDataset interface {
	Read() ([]byte, error)
}

// FallbackLoader resolves the timeline to display: local store, then the
// bundled dataset, then a placeholder month. Load never fails.
type FallbackLoader struct {
	local      *LocalScheduleStore
	bundled    BundledDataset
	serializer *ScheduleSerializer
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time
}

// FallbackLoaderParams groups constructor dependencies.
type FallbackLoaderParams struct {
	Local      *LocalScheduleStore
	Bundled    BundledDataset
	Serializer *ScheduleSerializer
	Metrics    *MetricsService
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewFallbackLoader builds a loader.
func NewFallbackLoader(p FallbackLoaderParams) *FallbackLoader {
	if p.Serializer == nil {
		p.Serializer = NewScheduleSerializer(nil)
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	return &FallbackLoader{
		local:      p.Local,
		bundled:    p.Bundled,
		serializer: p.Serializer,
		metrics:    p.Metrics,
		logger:     p.Logger,
		now:        p.Clock,
	}
}

// Load returns the first non-empty timeline among the fallback stages.
func (l *FallbackLoader) Load() models.LoadResult {
	result := l.resolve()
	l.metrics.RecordFallbackSource(result.Source)
	return result
}

func (l *FallbackLoader) resolve() models.LoadResult {
	seen, days, lastUpdated, ok := l.fromLocal()
	if ok {
		return models.LoadResult{Days: days, Source: models.SourceLocal, LastUpdated: lastUpdated}
	}
	if days, ok := l.fromBundled(); ok {
		if l.seedLocal(seen, days) {
			return models.LoadResult{Days: days, Source: models.SourceBundled}
		}
		// a write landed while the bundled rows were read; it wins
		if _, stored, lastUpdated, ok := l.fromLocal(); ok {
			return models.LoadResult{Days: stored, Source: models.SourceLocal, LastUpdated: lastUpdated}
		}
		return models.LoadResult{Days: days, Source: models.SourceBundled}
	}
	now := l.now()
	l.logger.Warn("no stored or bundled schedule, serving placeholder month",
		zap.Int("year", now.Year()), zap.Int("month", int(now.Month())))
	return models.LoadResult{Days: PlaceholderMonth(now.Year(), now.Month()), Source: models.SourcePlaceholder}
}

// fromLocal also returns the raw blob it read so a later seed can check that
// nothing was written in between.
func (l *FallbackLoader) fromLocal() (string, models.Timeline, *time.Time, bool) {
	if l.local == nil {
		return "", nil, nil, false
	}
	snapshot, err := l.local.Load()
	if err != nil {
		l.logger.Warn("local schedule unreadable", zap.Error(err))
		return "", nil, nil, false
	}
	if snapshot.CSV == "" {
		return "", nil, nil, false
	}
	parsed := ParseYear(snapshot.CSV)
	if len(parsed.Rows) == 0 {
		l.logger.Warn("local schedule has no usable rows", zap.Int("skipped", len(parsed.Skipped)))
		return snapshot.CSV, nil, nil, false
	}
	days := models.Timeline(parsed.Rows)
	if !days.IsSorted() {
		days = Canonicalize(days)
	}
	return snapshot.CSV, days, snapshot.LastUpdated, true
}

func (l *FallbackLoader) fromBundled() (models.Timeline, bool) {
	if l.bundled == nil {
		return nil, false
	}
	data, err := l.bundled.Read()
	if err != nil {
		l.logger.Warn("bundled schedule unreadable", zap.Error(err))
		return nil, false
	}
	parsed := ParseYear(string(data))
	if len(parsed.Rows) == 0 {
		l.logger.Warn("bundled schedule has no usable rows")
		return nil, false
	}
	return Canonicalize(parsed.Rows), true
}

// seedLocal copies the bundled rows into the local store unless it changed
// since seen was read. It returns false only in that case.
func (l *FallbackLoader) seedLocal(seen string, days models.Timeline) bool {
	if l.local == nil {
		return true
	}
	csv, err := l.serializer.SerializeYear(days)
	if err != nil {
		l.logger.Warn("could not seed local store from bundled schedule", zap.Error(err))
		return true
	}
	wrote, err := l.local.SaveIfUnchanged(seen, csv, l.now())
	switch {
	case err != nil:
		// the bundled rows are still served; the next load retries the copy
		l.logger.Warn("could not seed local store from bundled schedule", zap.Error(err))
		return true
	case !wrote:
		l.logger.Info("local store changed while seeding; keeping stored schedule")
		return false
	}
	l.logger.Info("seeded local store from bundled schedule", zap.Int("days", len(days)))
	return true
}

// PlaceholderMonth synthesises a deterministic, plausible schedule for one
// month. The values are not authoritative; they keep the display populated.
func PlaceholderMonth(year int, month time.Month) models.Timeline {
	last := daysIn(year, month)
	days := make(models.Timeline, 0, last)
	for day := 1; day <= last; day++ {
		drift := (day - 1) % 10
		fajr := 5*60 + drift
		isha := 19*60 + 30 - drift
		days = append(days, models.PrayerDay{
			Date: time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format(models.DateLayout),
			PrayerTimes: models.PrayerTimes{
				FajrBegins:    clockTime(fajr),
				FajrJamah:     clockTime(fajr + 15),
				Sunrise:       clockTime(6*60 + 30),
				ZuhrBegins:    clockTime(12*60 + 30),
				ZuhrJamah:     clockTime(12*60 + 45),
				AsrMithl1:     clockTime(15*60 + 30),
				AsrMithl2:     clockTime(16*60 + 15),
				AsrJamah:      clockTime(16*60 + 30),
				MaghribBegins: clockTime(18 * 60),
				MaghribJamah:  clockTime(18*60 + 10),
				IshaBegins:    clockTime(isha),
				IshaJamah:     clockTime(isha + 15),
			},
		})
	}
	return days
}

func clockTime(minutes int) string {
	return NormalizeTime(time.Date(0, 1, 1, 0, minutes, 0, 0, time.UTC).Format("15:04"))
}
