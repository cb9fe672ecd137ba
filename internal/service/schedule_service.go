package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/prayer-schedule-api/internal/dto"
	"github.com/noah-isme/prayer-schedule-api/internal/models"
	appErrors "github.com/noah-isme/prayer-schedule-api/pkg/errors"
	"github.com/noah-isme/prayer-schedule-api/pkg/jobs"
	"github.com/noah-isme/prayer-schedule-api/pkg/logger"
)

// syncJobKey coalesces remote syncs that have not started yet.
const syncJobKey = "schedule.remote_sync"

// Remote pushes run one at a time so a retrying older push cannot land after
// a newer one.
const syncWorkers = 1

// ScheduleServiceConfig tunes the schedule workflow.
type ScheduleServiceConfig struct {
	// AsyncSync pushes to the remote store from a background queue instead of inline.
	AsyncSync bool
}

// ScheduleServiceParams groups constructor dependencies.
type ScheduleServiceParams struct {
	Loader     *FallbackLoader
	Local      *LocalScheduleStore
	Gateway    *RemoteGateway
	Validator  *ScheduleValidator
	Serializer *ScheduleSerializer
	Cache      *CacheService
	Metrics    *MetricsService
	Validate   *validator.Validate
	Logger     *zap.Logger
	Clock      func() time.Time
	Config     ScheduleServiceConfig
}

// ScheduleService runs the parse, validate, merge and persist workflow.
// Writes are serialised by a mutex; reads go through the fallback loader.
type ScheduleService struct {
	loader     *FallbackLoader
	local      *LocalScheduleStore
	gateway    *RemoteGateway
	checker    *ScheduleValidator
	serializer *ScheduleSerializer
	cache      *CacheService
	metrics    *MetricsService
	validate   *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
	cfg        ScheduleServiceConfig
	queue      *jobs.Queue

	writeMu sync.Mutex
	// writes counts committed local writes; reads compare it to spot a write
	// that finished while they were loading.
	writes   atomic.Uint64
	syncMu   sync.Mutex
	lastSync *models.RemoteOutcome
}

// NewScheduleService wires the workflow.
func NewScheduleService(p ScheduleServiceParams) *ScheduleService {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Validate == nil {
		p.Validate = validator.New()
	}
	if p.Validator == nil {
		p.Validator = NewScheduleValidator(DefaultMinYearRows)
	}
	if p.Serializer == nil {
		p.Serializer = NewScheduleSerializer(nil)
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	s := &ScheduleService{
		loader:     p.Loader,
		local:      p.Local,
		gateway:    p.Gateway,
		checker:    p.Validator,
		serializer: p.Serializer,
		cache:      p.Cache,
		metrics:    p.Metrics,
		validate:   p.Validate,
		logger:     p.Logger,
		now:        p.Clock,
		cfg:        p.Config,
	}
	if p.Config.AsyncSync {
		s.queue = jobs.NewQueue("schedule-sync", s.handleSyncJob, jobs.QueueConfig{
			Workers: syncWorkers,
			Logger:  p.Logger,
		})
	}
	return s
}

// Start launches background sync workers when async sync is enabled.
func (s *ScheduleService) Start(ctx context.Context) {
	if s.queue != nil {
		s.queue.Start(ctx)
	}
}

// Stop stops background sync workers; syncs still queued are dropped.
func (s *ScheduleService) Stop() {
	if s.queue != nil {
		s.queue.Stop()
	}
}

// Current returns the timeline to display.
func (s *ScheduleService) Current(ctx context.Context) models.LoadResult {
	if cached, ok := s.cache.Timeline(ctx); ok {
		return cached
	}
	seen := s.writes.Load()
	result := s.loader.Load()
	if result.Source != models.SourcePlaceholder {
		_ = s.cache.StoreTimeline(ctx, result)
		if s.writes.Load() != seen {
			// the stored result may predate that write
			s.dropCached(ctx, nil)
		}
	}
	return result
}

// Day returns the schedule of one date.
func (s *ScheduleService) Day(ctx context.Context, q dto.DayQuery) (*models.PrayerDay, error) {
	if err := s.validate.Struct(q); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}
	day, ok := FindDay(s.Current(ctx).Days, q.Date)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no schedule for %s", q.Date))
	}
	return &day, nil
}

// Month returns the days of one month; an uncovered month yields an empty timeline.
func (s *ScheduleService) Month(ctx context.Context, q dto.MonthQuery) (models.Timeline, error) {
	if err := s.validate.Struct(q); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid month")
	}
	return MonthOf(s.Current(ctx).Days, q.Year, q.Month), nil
}

// PreviewYear parses and validates a yearly upload without saving it, and
// reports which days the import would change.
func (s *ScheduleService) PreviewYear(ctx context.Context, text string) models.ImportReport {
	parsed := ParseYear(text)
	report := s.yearReport(parsed, s.checker.ValidateYear(parsed.Rows))
	if len(parsed.Rows) > 0 {
		changes := DiffTimelines(s.storedOrNil(ctx), ReplaceYear(parsed.Rows))
		report.Changes = &changes
	}
	return report
}

// PreviewMonth parses and validates a monthly upload without saving it, and
// reports which days the merge would change.
func (s *ScheduleService) PreviewMonth(ctx context.Context, text string, q dto.MonthQuery) (models.ImportReport, error) {
	if err := s.validate.Struct(q); err != nil {
		return models.ImportReport{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid month")
	}
	parsed := ParseMonth(text)
	result := s.checker.ValidateMonth(parsed.Rows, q.Year, q.Month)
	report := s.monthReport(parsed, result)
	if result.IsValid {
		current := s.storedOrNil(ctx)
		changes := DiffTimelines(current, MergeMonth(current, parsed.Rows, q.Year, q.Month))
		report.Changes = &changes
	}
	return report, nil
}

// storedOrNil returns the displayed timeline, or nil while only a placeholder exists.
func (s *ScheduleService) storedOrNil(ctx context.Context) models.Timeline {
	current := s.Current(ctx)
	if current.Source == models.SourcePlaceholder {
		return nil
	}
	return current.Days
}

// ImportYear replaces the whole timeline. It is destructive and always needs
// Confirm; blocking validation errors additionally need Override.
func (s *ScheduleService) ImportYear(ctx context.Context, req dto.ImportYearRequest) (models.ImportReport, error) {
	if err := s.validate.Struct(req); err != nil {
		return models.ImportReport{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "csv body is required")
	}
	parsed := ParseYear(req.CSV)
	report := s.yearReport(parsed, s.checker.ValidateYear(parsed.Rows))

	if len(parsed.Rows) == 0 {
		return report, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "upload contains no usable rows"), report)
	}
	if !report.Validation.IsValid && !req.Override {
		return report, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "yearly upload has blocking errors"), report)
	}
	if !req.Confirm {
		return report, appErrors.WithDetails(appErrors.Clone(appErrors.ErrConfirmationRequired,
			"a yearly upload replaces the whole schedule; confirm to continue"), report)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	timeline := ReplaceYear(parsed.Rows)
	if !report.Validation.IsValid {
		s.logger.Warn("yearly upload imported with validation errors overridden",
			zap.Int("errors", len(report.Validation.Errors)))
	}
	// files may list days out of order, and overridden uploads may repeat them
	if !timeline.IsSorted() {
		timeline = Canonicalize(timeline)
	}
	remote, err := s.persist(ctx, models.ImportModeYear, timeline)
	if err != nil {
		return report, err
	}
	report.Committed = true
	report.TimelineSize = len(timeline)
	report.Remote = &remote
	s.metrics.RecordImportRows(models.ImportModeYear, report.Imported, len(report.Skipped))
	return report, nil
}

// ImportMonth merges a monthly upload into the current timeline. Blocking
// errors always refuse; warnings need Confirm.
func (s *ScheduleService) ImportMonth(ctx context.Context, req dto.ImportMonthRequest) (models.ImportReport, error) {
	if err := s.validate.Struct(req); err != nil {
		return models.ImportReport{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid monthly upload request")
	}
	parsed := ParseMonth(req.CSV)
	report := s.monthReport(parsed, s.checker.ValidateMonth(parsed.Rows, req.Year, req.Month))

	if !report.Validation.IsValid {
		return report, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "monthly upload has blocking errors"), report)
	}
	if report.Validation.HasWarnings() && !req.Confirm {
		return report, appErrors.WithDetails(appErrors.Clone(appErrors.ErrConfirmationRequired,
			"monthly upload has warnings; confirm to continue"), report)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	base := s.loader.Load()
	current := base.Days
	if base.Source == models.SourcePlaceholder {
		current = nil
	}
	timeline := MergeMonth(current, parsed.Rows, req.Year, req.Month)

	remote, err := s.persist(ctx, models.ImportModeMonth, timeline)
	if err != nil {
		return report, err
	}
	report.Committed = true
	report.TimelineSize = len(timeline)
	report.Remote = &remote
	s.metrics.RecordImportRows(models.ImportModeMonth, report.Imported, len(report.Skipped))
	return report, nil
}

// ClearAll empties the local store and the remote copy. The next read falls
// back to the bundled dataset.
func (s *ScheduleService) ClearAll(ctx context.Context, req dto.ClearRequest) (models.ImportReport, error) {
	report := models.ImportReport{Mode: models.ImportModeClear, Skipped: []models.SkippedLine{}}
	if !req.Confirm {
		return report, appErrors.Clone(appErrors.ErrConfirmationRequired, "clearing removes every stored day; confirm to continue")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.local.Clear(); err != nil {
		return report, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to clear local schedule")
	}
	s.writes.Add(1)
	s.dropCached(ctx, nil)
	s.logger.Info("schedule cleared")

	remote := s.pushRemote(ctx, models.ImportModeClear, models.Timeline{})
	report.Committed = true
	report.Remote = &remote
	return report, nil
}

// ExportYear renders the current timeline, or the days of one year, as yearly CSV.
func (s *ScheduleService) ExportYear(ctx context.Context, year int) (string, error) {
	days := s.Current(ctx).Days
	if year > 0 {
		days = YearOf(days, year)
	}
	out, err := s.serializer.SerializeYear(days)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export schedule")
	}
	return out, nil
}

// ExportMonth renders one month as monthly CSV; "" when the month is not covered.
func (s *ScheduleService) ExportMonth(ctx context.Context, q dto.MonthQuery) (string, error) {
	if err := s.validate.Struct(q); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid month")
	}
	out, err := s.serializer.SerializeMonth(s.Current(ctx).Days, q.Year, q.Month)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export schedule")
	}
	return out, nil
}

// SyncRemote pushes the stored timeline to the remote store inline.
func (s *ScheduleService) SyncRemote(ctx context.Context) (models.RemoteOutcome, error) {
	if !s.gateway.Enabled() {
		return models.RemoteOutcome{Status: models.RemoteDisabled}, appErrors.ErrRemoteDisabled
	}
	s.writeMu.Lock()
	days, err := s.storedTimeline()
	s.writeMu.Unlock()
	if err != nil {
		return models.RemoteOutcome{}, err
	}
	if len(days) == 0 {
		return models.RemoteOutcome{}, appErrors.Clone(appErrors.ErrNotFound, "no stored schedule to sync")
	}

	err = s.gateway.Push(ctx, days)
	outcome := s.recordSync(err, "")
	if err != nil {
		return outcome, RemoteAppError(err)
	}
	return outcome, nil
}

// RestoreFromRemote replaces the local store with the remote timeline.
func (s *ScheduleService) RestoreFromRemote(ctx context.Context) (models.ImportReport, error) {
	report := models.ImportReport{Mode: models.ImportModeRestore, Skipped: []models.SkippedLine{}}
	if !s.gateway.Enabled() {
		return report, appErrors.ErrRemoteDisabled
	}
	days, err := s.gateway.Pull(ctx)
	if err != nil {
		return report, RemoteAppError(err)
	}
	if len(days) == 0 {
		return report, appErrors.Clone(appErrors.ErrNotFound, "remote store holds no schedule")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.saveLocal(ctx, days); err != nil {
		return report, err
	}
	report.Imported = len(days)
	report.Committed = true
	report.TimelineSize = len(days)
	s.metrics.RecordImportRows(models.ImportModeRestore, len(days), 0)
	s.logger.Info("schedule restored from remote store", zap.Int("days", len(days)))
	return report, nil
}

// Status summarises the active timeline and the remote store health.
func (s *ScheduleService) Status(ctx context.Context) models.ScheduleStatus {
	current := s.Current(ctx)
	status := models.ScheduleStatus{
		Source:        current.Source,
		Days:          len(current.Days),
		LastUpdated:   current.LastUpdated,
		RemoteEnabled: s.gateway.Enabled(),
	}
	if n := len(current.Days); n > 0 {
		status.FirstDate = current.Days[0].Date
		status.LastDate = current.Days[n-1].Date
	}
	if s.queue != nil {
		status.PendingSyncs = s.queue.Pending()
	}
	s.syncMu.Lock()
	if s.lastSync != nil {
		last := *s.lastSync
		status.LastSync = &last
	}
	s.syncMu.Unlock()
	if breakers := s.gateway.Breakers(); breakers != nil {
		status.Breakers = breakers.Snapshot()
	}
	return status
}

// ResetCircuits closes every remote circuit breaker.
func (s *ScheduleService) ResetCircuits() {
	if breakers := s.gateway.Breakers(); breakers != nil {
		breakers.Reset()
		s.logger.Info("remote circuit breakers reset")
	}
}

// persist writes the local store first, then hands the timeline to the remote store.
// Callers hold writeMu.
func (s *ScheduleService) persist(ctx context.Context, mode models.ImportMode, timeline models.Timeline) (models.RemoteOutcome, error) {
	if err := s.saveLocal(ctx, timeline); err != nil {
		return models.RemoteOutcome{}, err
	}
	remote := s.pushRemote(ctx, mode, timeline)
	logger.WithContext(s.logger, ctx).Info("schedule saved",
		zap.String("mode", string(mode)),
		zap.Int("days", len(timeline)),
		zap.String("remote", string(remote.Status)))
	return remote, nil
}

func (s *ScheduleService) saveLocal(ctx context.Context, timeline models.Timeline) error {
	csv, err := s.serializer.SerializeYear(timeline)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to serialize schedule")
	}
	at := s.now().UTC().Truncate(time.Second)
	if err := s.local.Save(csv, at); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to save schedule locally")
	}
	s.writes.Add(1)
	s.dropCached(ctx, &models.LoadResult{Days: timeline, Source: models.SourceLocal, LastUpdated: &at})
	return nil
}

// dropCached removes cached reads after a write. When the delete fails, fresh
// (if known) is written over the stale entry so reads do not wait for the TTL.
func (s *ScheduleService) dropCached(ctx context.Context, fresh *models.LoadResult) {
	err := s.cache.InvalidateSchedule(ctx)
	if err == nil {
		return
	}
	if fresh != nil {
		if err = s.cache.StoreTimeline(ctx, *fresh); err == nil {
			return
		}
	}
	logger.WithContext(s.logger, ctx).Error("cached schedule may be stale until it expires", zap.Error(err))
}

// pushRemote never fails the workflow: the local copy is already saved.
func (s *ScheduleService) pushRemote(ctx context.Context, mode models.ImportMode, timeline models.Timeline) models.RemoteOutcome {
	if !s.gateway.Enabled() {
		return models.RemoteOutcome{Status: models.RemoteDisabled}
	}
	if s.queue != nil {
		job, err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Key: syncJobKey, Payload: mode})
		if err == nil {
			return models.RemoteOutcome{Status: models.RemoteQueued, JobID: job.ID}
		}
		logger.WithContext(s.logger, ctx).Warn("sync queue unavailable, pushing inline", zap.Error(err))
	}
	return s.recordSync(s.gateway.Push(ctx, timeline), "")
}

// handleSyncJob pushes whatever the local store holds when the job runs, so a
// burst of imports ends with the latest timeline remotely.
func (s *ScheduleService) handleSyncJob(ctx context.Context, job jobs.Job) error {
	s.writeMu.Lock()
	days, err := s.storedTimeline()
	s.writeMu.Unlock()
	if err != nil {
		s.recordSync(err, job.ID)
		return err
	}
	if err := s.gateway.Push(ctx, days); err != nil {
		s.recordSync(err, job.ID)
		return fmt.Errorf("sync job %s: %w", job.ID, err)
	}
	s.recordSync(nil, job.ID)
	return nil
}

func (s *ScheduleService) recordSync(err error, jobID string) models.RemoteOutcome {
	outcome := remoteOutcome(err)
	outcome.JobID = jobID
	at := s.now().UTC()
	outcome.At = &at
	s.syncMu.Lock()
	s.lastSync = &outcome
	s.syncMu.Unlock()
	return outcome
}

// storedTimeline reads the local store only; it never falls back.
func (s *ScheduleService) storedTimeline() (models.Timeline, error) {
	snapshot, err := s.local.Load()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to read local schedule")
	}
	if strings.TrimSpace(snapshot.CSV) == "" {
		return models.Timeline{}, nil
	}
	return models.Timeline(ParseYear(snapshot.CSV).Rows), nil
}

func (s *ScheduleService) yearReport(parsed models.YearParseResult, result models.ValidationResult) models.ImportReport {
	if len(parsed.Skipped) > 0 {
		s.logger.Info("yearly upload skipped lines", zap.Int("skipped", len(parsed.Skipped)), zap.Int("total", parsed.TotalLines))
	}
	return models.ImportReport{
		Mode:       models.ImportModeYear,
		Imported:   len(parsed.Rows),
		TotalLines: parsed.TotalLines,
		Skipped:    parsed.Skipped,
		Validation: result,
	}
}

func (s *ScheduleService) monthReport(parsed models.MonthParseResult, result models.ValidationResult) models.ImportReport {
	if len(parsed.Skipped) > 0 {
		s.logger.Info("monthly upload skipped lines", zap.Int("skipped", len(parsed.Skipped)), zap.Int("total", parsed.TotalLines))
	}
	return models.ImportReport{
		Mode:       models.ImportModeMonth,
		Imported:   len(parsed.Rows),
		TotalLines: parsed.TotalLines,
		Skipped:    parsed.Skipped,
		Validation: result,
	}
}
