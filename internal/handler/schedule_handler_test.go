package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/prayer-schedule-api/assets"
	"github.com/noah-isme/prayer-schedule-api/internal/dto"
	"github.com/noah-isme/prayer-schedule-api/internal/middleware"
	"github.com/noah-isme/prayer-schedule-api/internal/models"
	"github.com/noah-isme/prayer-schedule-api/internal/service"
	appErrors "github.com/noah-isme/prayer-schedule-api/pkg/errors"
	"github.com/noah-isme/prayer-schedule-api/pkg/storage"
)

type scheduleServiceMock struct {
	current    models.LoadResult
	importErr  error
	report     models.ImportReport
	exportYear string
	exportMon  string

	lastYear  dto.ImportYearRequest
	lastMonth dto.ImportMonthRequest
	lastClear dto.ClearRequest
	resets    int
}

func (m *scheduleServiceMock) Current(context.Context) models.LoadResult { return m.current }

func (m *scheduleServiceMock) Day(_ context.Context, q dto.DayQuery) (*models.PrayerDay, error) {
	for _, d := range m.current.Days {
		if d.Date == q.Date {
			return &d, nil
		}
	}
	return nil, appErrors.ErrNotFound
}

func (m *scheduleServiceMock) Month(_ context.Context, q dto.MonthQuery) (models.Timeline, error) {
	return service.MonthOf(m.current.Days, q.Year, q.Month), nil
}

func (m *scheduleServiceMock) PreviewYear(context.Context, string) models.ImportReport {
	return m.report
}

func (m *scheduleServiceMock) PreviewMonth(context.Context, string, dto.MonthQuery) (models.ImportReport, error) {
	return m.report, nil
}

func (m *scheduleServiceMock) ImportYear(_ context.Context, req dto.ImportYearRequest) (models.ImportReport, error) {
	m.lastYear = req
	return m.report, m.importErr
}

func (m *scheduleServiceMock) ImportMonth(_ context.Context, req dto.ImportMonthRequest) (models.ImportReport, error) {
	m.lastMonth = req
	return m.report, m.importErr
}

func (m *scheduleServiceMock) ClearAll(_ context.Context, req dto.ClearRequest) (models.ImportReport, error) {
	m.lastClear = req
	if !req.Confirm {
		return models.ImportReport{}, appErrors.ErrConfirmationRequired
	}
	return m.report, nil
}

func (m *scheduleServiceMock) ExportYear(context.Context, int) (string, error) {
	return m.exportYear, nil
}

func (m *scheduleServiceMock) ExportMonth(context.Context, dto.MonthQuery) (string, error) {
	return m.exportMon, nil
}

func (m *scheduleServiceMock) SyncRemote(context.Context) (models.RemoteOutcome, error) {
	return models.RemoteOutcome{}, appErrors.ErrCircuitOpen
}

func (m *scheduleServiceMock) RestoreFromRemote(context.Context) (models.ImportReport, error) {
	return m.report, nil
}

func (m *scheduleServiceMock) Status(context.Context) models.ScheduleStatus {
	return models.ScheduleStatus{Source: m.current.Source, Days: len(m.current.Days)}
}

func (m *scheduleServiceMock) ResetCircuits() { m.resets++ }

func newScheduleRouter(h *ScheduleHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.WithResponseMeta())
	r.GET("/schedule", h.Current)
	r.GET("/schedule/days/:date", h.Day)
	r.GET("/schedule/months/:year/:month", h.Month)
	r.GET("/schedule/export", h.Export)
	r.GET("/schedule/status", h.Status)
	r.POST("/schedule/preview/year", h.PreviewYear)
	r.POST("/schedule/preview/month", h.PreviewMonth)
	r.POST("/schedule/import/year", h.ImportYear)
	r.POST("/schedule/import/month", h.ImportMonth)
	r.DELETE("/schedule", h.Clear)
	r.POST("/schedule/sync", h.Sync)
	r.POST("/schedule/restore", h.Restore)
	r.POST("/schedule/circuit/reset", h.ResetCircuits)
	return r
}

func serve(r http.Handler, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func sampleDays() models.Timeline {
	day := func(date string) models.PrayerDay {
		return models.PrayerDay{Date: date, PrayerTimes: models.NewPrayerTimes()}
	}
	return models.Timeline{day("2025-03-01"), day("2025-03-02"), day("2025-04-01")}
}

func TestScheduleHandlerCurrentIncludesMeta(t *testing.T) {
	svc := &scheduleServiceMock{current: models.LoadResult{Days: sampleDays(), Source: models.SourceBundled}}
	w := serve(newScheduleRouter(NewScheduleHandler(svc)), http.MethodGet, "/schedule", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, "bundled", env.Meta["source"])
	assert.EqualValues(t, 3, env.Meta["count"])
	assert.Contains(t, env.Meta, "processing_time_ms")
}

func TestScheduleHandlerDayAndMonth(t *testing.T) {
	svc := &scheduleServiceMock{current: models.LoadResult{Days: sampleDays(), Source: models.SourceLocal}}
	r := newScheduleRouter(NewScheduleHandler(svc))

	w := serve(r, http.MethodGet, "/schedule/days/2025-03-02", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"d_date":"2025-03-02"`)

	w = serve(r, http.MethodGet, "/schedule/days/2025-05-01", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(r, http.MethodGet, "/schedule/months/2025/3", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w).Meta["count"])

	w = serve(r, http.MethodGet, "/schedule/months/2025/march", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleHandlerImportYearPassesFlagsAndBody(t *testing.T) {
	svc := &scheduleServiceMock{report: models.ImportReport{Mode: models.ImportModeYear, Committed: true}}
	r := newScheduleRouter(NewScheduleHandler(svc))

	w := serve(r, http.MethodPost, "/schedule/import/year?confirm=true&override=1", []byte("d_date\n2025-01-01\n"), "text/csv")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.lastYear.Confirm)
	assert.True(t, svc.lastYear.Override)
	assert.Equal(t, "d_date\n2025-01-01\n", svc.lastYear.CSV)
}

func TestScheduleHandlerImportMonthQueuedAnswers202(t *testing.T) {
	svc := &scheduleServiceMock{report: models.ImportReport{
		Mode:   models.ImportModeMonth,
		Remote: &models.RemoteOutcome{Status: models.RemoteQueued, JobID: "job-1"},
	}}
	r := newScheduleRouter(NewScheduleHandler(svc))

	w := serve(r, http.MethodPost, "/schedule/import/month?year=2025&month=4", []byte("day,fajr_begins\n1,5:00\n"), "text/csv")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 2025, svc.lastMonth.Year)
	assert.Equal(t, 4, svc.lastMonth.Month)
	assert.False(t, svc.lastMonth.Confirm)
}

func TestScheduleHandlerImportErrorCarriesReport(t *testing.T) {
	report := models.ImportReport{Mode: models.ImportModeYear, Imported: 2}
	svc := &scheduleServiceMock{
		report:    report,
		importErr: appErrors.WithDetails(appErrors.Clone(appErrors.ErrConfirmationRequired, "confirm"), report),
	}
	r := newScheduleRouter(NewScheduleHandler(svc))

	w := serve(r, http.MethodPost, "/schedule/import/year", []byte("d_date\n2025-01-01\n"), "text/csv")
	require.Equal(t, http.StatusPreconditionRequired, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CONFIRMATION_REQUIRED", env.Error.Code)
	assert.NotNil(t, env.Error.Details)
}

func TestScheduleHandlerRejectsBadUploads(t *testing.T) {
	r := newScheduleRouter(NewScheduleHandler(&scheduleServiceMock{}))

	w := serve(r, http.MethodPost, "/schedule/import/year?confirm=true", []byte("  \n"), "text/csv")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	big := bytes.Repeat([]byte("a"), MaxUploadBytes+1)
	w = serve(r, http.MethodPost, "/schedule/preview/year", big, "text/csv")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = serve(r, http.MethodPost, "/schedule/import/year?confirm=maybe", []byte("d_date\n"), "text/csv")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleHandlerMultipartUpload(t *testing.T) {
	svc := &scheduleServiceMock{}
	r := newScheduleRouter(NewScheduleHandler(svc))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "april.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("day,fajr_begins\n1,5:00\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := serve(r, http.MethodPost, "/schedule/import/month?year=2025&month=4&confirm=true", body.Bytes(), mw.FormDataContentType())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "day,fajr_begins\n1,5:00\n", svc.lastMonth.CSV)
	assert.True(t, svc.lastMonth.Confirm)
}

func TestScheduleHandlerExport(t *testing.T) {
	svc := &scheduleServiceMock{exportYear: "d_date\n2025-01-01\n"}
	r := newScheduleRouter(NewScheduleHandler(svc))

	w := serve(r, http.MethodGet, "/schedule/export?year=2025", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "prayer_times_2025.csv")
	assert.Equal(t, "d_date\n2025-01-01\n", w.Body.String())

	w = serve(r, http.MethodGet, "/schedule/export?year=2025&month=7", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScheduleHandlerClearAndAdminActions(t *testing.T) {
	svc := &scheduleServiceMock{report: models.ImportReport{Mode: models.ImportModeClear, Committed: true}}
	r := newScheduleRouter(NewScheduleHandler(svc))

	w := serve(r, http.MethodDelete, "/schedule", nil, "")
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)

	w = serve(r, http.MethodDelete, "/schedule?confirm=true", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.lastClear.Confirm)

	w = serve(r, http.MethodPost, "/schedule/sync", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = serve(r, http.MethodPost, "/schedule/circuit/reset", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, svc.resets)
}

func TestScheduleRoutesWithRealService(t *testing.T) {
	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	local := service.NewLocalScheduleStore(blobs)
	serializer := service.NewScheduleSerializer(nil)
	loader := service.NewFallbackLoader(service.FallbackLoaderParams{
		Local:      local,
		Bundled:    assets.NewDataset(""),
		Serializer: serializer,
	})
	svc := service.NewScheduleService(service.ScheduleServiceParams{
		Loader:     loader,
		Local:      local,
		Gateway:    service.NewRemoteGateway(nil, nil, nil, nil, nil),
		Serializer: serializer,
	})
	r := newScheduleRouter(NewScheduleHandler(svc))

	w := serve(r, http.MethodGet, "/schedule/days/2025-03-10", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var day models.PrayerDay
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &day))
	assert.Equal(t, 1, day.IsRamadan)

	upload := "day,fajr_begins,fajr_jamah,sunrise,zuhr_begins,zuhr_jamah,asr_mithl_1,asr_mithl_2,asr_jamah,maghrib_begins,maghrib_jamah,isha_begins,isha_jamah\n" +
		"10,4:40,5:00,6:20,12:10,13:00,15:10,15:50,16:00,18:00,18:05,19:30,19:45\n"
	w = serve(r, http.MethodPost, "/schedule/import/month?year=2025&month=3", []byte(upload), "text/csv")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(r, http.MethodGet, "/schedule/days/2025-03-10", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &day))
	assert.Equal(t, "04:40:00", day.FajrBegins)
	assert.Equal(t, 0, day.IsRamadan, "monthly merge leaves the ramadan flag unset")
	assert.Equal(t, "", day.HijriDate)

	w = serve(r, http.MethodGet, "/schedule/export?year=2025&month=3", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "day,fajr_begins"))
	assert.Contains(t, w.Body.String(), "10,04:40:00,05:00:00")

	w = serve(r, http.MethodPost, "/schedule/sync", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
