package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/prayer-schedule-api/internal/dto"
	"github.com/noah-isme/prayer-schedule-api/internal/middleware"
	"github.com/noah-isme/prayer-schedule-api/internal/models"
	appErrors "github.com/noah-isme/prayer-schedule-api/pkg/errors"
	"github.com/noah-isme/prayer-schedule-api/pkg/response"
)

// MaxUploadBytes caps the size of an uploaded CSV body.
const MaxUploadBytes = 2 << 20

type scheduleService interface {
	Current(ctx context.Context) models.LoadResult
	Day(ctx context.Context, q dto.DayQuery) (*models.PrayerDay, error)
	Month(ctx context.Context, q dto.MonthQuery) (models.Timeline, error)
	PreviewYear(ctx context.Context, text string) models.ImportReport
	PreviewMonth(ctx context.Context, text string, q dto.MonthQuery) (models.ImportReport, error)
	ImportYear(ctx context.Context, req dto.ImportYearRequest) (models.ImportReport, error)
	ImportMonth(ctx context.Context, req dto.ImportMonthRequest) (models.ImportReport, error)
	ClearAll(ctx context.Context, req dto.ClearRequest) (models.ImportReport, error)
	ExportYear(ctx context.Context, year int) (string, error)
	ExportMonth(ctx context.Context, q dto.MonthQuery) (string, error)
	SyncRemote(ctx context.Context) (models.RemoteOutcome, error)
	RestoreFromRemote(ctx context.Context) (models.ImportReport, error)
	Status(ctx context.Context) models.ScheduleStatus
	ResetCircuits()
}

// ScheduleHandler manages schedule endpoints.
type ScheduleHandler struct {
	service scheduleService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc scheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// Current godoc
// @Summary Current prayer timeline
// @Tags Schedule
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedule [get]
func (h *ScheduleHandler) Current(c *gin.Context) {
	result := h.service.Current(c.Request.Context())
	response.JSON(c, http.StatusOK, result.Days, middleware.ExtractMeta(c, timelineMeta(result)))
}

// Day godoc
// @Summary Prayer times of one date
// @Tags Schedule
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedule/days/{date} [get]
func (h *ScheduleHandler) Day(c *gin.Context) {
	day, err := h.service.Day(c.Request.Context(), dto.DayQuery{Date: c.Param("date")})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, day)
}

// Month godoc
// @Summary Prayer times of one month
// @Tags Schedule
// @Produce json
// @Param year path int true "Year"
// @Param month path int true "Month (1-12)"
// @Success 200 {object} response.Envelope
// @Router /schedule/months/{year}/{month} [get]
func (h *ScheduleHandler) Month(c *gin.Context) {
	var q dto.MonthQuery
	if err := c.ShouldBindUri(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "year and month must be numbers"))
		return
	}
	days, err := h.service.Month(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, days, map[string]interface{}{"count": len(days)})
}

// Export godoc
// @Summary Export the schedule as CSV
// @Description Yearly format unless month is given, in which case the monthly format is used.
// @Tags Schedule
// @Produce text/csv
// @Param year query int false "Year filter (required with month)"
// @Param month query int false "Month (1-12)"
// @Success 200 {string} string "CSV"
// @Router /schedule/export [get]
func (h *ScheduleHandler) Export(c *gin.Context) {
	var q dto.ExportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query"))
		return
	}

	if q.Month != 0 {
		out, err := h.service.ExportMonth(c.Request.Context(), dto.MonthQuery{Year: q.Year, Month: q.Month})
		if err != nil {
			response.Error(c, err)
			return
		}
		if out == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no schedule for %04d-%02d", q.Year, q.Month)))
			return
		}
		response.CSV(c, fmt.Sprintf("prayer_times_%04d_%02d.csv", q.Year, q.Month), out)
		return
	}

	out, err := h.service.ExportYear(c.Request.Context(), q.Year)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := "prayer_times.csv"
	if q.Year > 0 {
		filename = fmt.Sprintf("prayer_times_%04d.csv", q.Year)
	}
	response.CSV(c, filename, out)
}

// Status godoc
// @Summary Timeline source and remote store health
// @Tags Schedule
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedule/status [get]
func (h *ScheduleHandler) Status(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Status(c.Request.Context()))
}

// PreviewYear godoc
// @Summary Validate a yearly CSV without saving it
// @Tags Schedule Admin
// @Security BearerAuth
// @Accept text/csv
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedule/preview/year [post]
func (h *ScheduleHandler) PreviewYear(c *gin.Context) {
	text, err := readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.service.PreviewYear(c.Request.Context(), text))
}

// PreviewMonth godoc
// @Summary Validate a monthly CSV without saving it
// @Tags Schedule Admin
// @Security BearerAuth
// @Accept text/csv
// @Produce json
// @Param year query int true "Year"
// @Param month query int true "Month (1-12)"
// @Success 200 {object} response.Envelope
// @Router /schedule/preview/month [post]
func (h *ScheduleHandler) PreviewMonth(c *gin.Context) {
	var q dto.MonthQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "year and month must be numbers"))
		return
	}
	text, err := readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	report, err := h.service.PreviewMonth(c.Request.Context(), text, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// ImportYear godoc
// @Summary Replace the whole schedule with a yearly CSV
// @Tags Schedule Admin
// @Security BearerAuth
// @Accept text/csv
// @Produce json
// @Param confirm query bool false "Confirm the destructive replacement"
// @Param override query bool false "Import despite blocking validation errors"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 428 {object} response.Envelope
// @Router /schedule/import/year [post]
func (h *ScheduleHandler) ImportYear(c *gin.Context) {
	var req dto.ImportYearRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import flags"))
		return
	}
	text, err := readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	req.CSV = text

	report, err := h.service.ImportYear(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondReport(c, report)
}

// ImportMonth godoc
// @Summary Merge a monthly CSV into the schedule
// @Tags Schedule Admin
// @Security BearerAuth
// @Accept text/csv
// @Produce json
// @Param year query int true "Year"
// @Param month query int true "Month (1-12)"
// @Param confirm query bool false "Accept validation warnings"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 428 {object} response.Envelope
// @Router /schedule/import/month [post]
func (h *ScheduleHandler) ImportMonth(c *gin.Context) {
	var req dto.ImportMonthRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import query"))
		return
	}
	text, err := readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	req.CSV = text

	report, err := h.service.ImportMonth(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondReport(c, report)
}

// Clear godoc
// @Summary Remove the stored schedule
// @Tags Schedule Admin
// @Security BearerAuth
// @Produce json
// @Param confirm query bool true "Must be true"
// @Success 200 {object} response.Envelope
// @Failure 428 {object} response.Envelope
// @Router /schedule [delete]
func (h *ScheduleHandler) Clear(c *gin.Context) {
	var req dto.ClearRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid confirm flag"))
		return
	}
	report, err := h.service.ClearAll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondReport(c, report)
}

// Sync godoc
// @Summary Push the stored schedule to the remote store
// @Tags Schedule Admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /schedule/sync [post]
func (h *ScheduleHandler) Sync(c *gin.Context) {
	outcome, err := h.service.SyncRemote(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome)
}

// Restore godoc
// @Summary Replace the local schedule with the remote copy
// @Tags Schedule Admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedule/restore [post]
func (h *ScheduleHandler) Restore(c *gin.Context) {
	report, err := h.service.RestoreFromRemote(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// ResetCircuits godoc
// @Summary Close every remote circuit breaker
// @Tags Schedule Admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedule/circuit/reset [post]
func (h *ScheduleHandler) ResetCircuits(c *gin.Context) {
	h.service.ResetCircuits()
	response.JSON(c, http.StatusOK, h.service.Status(c.Request.Context()))
}

// respondReport answers 202 when the remote push was queued, 200 otherwise.
func respondReport(c *gin.Context, report models.ImportReport) {
	if report.Remote != nil && report.Remote.Status == models.RemoteQueued {
		response.Accepted(c, report)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

func timelineMeta(result models.LoadResult) map[string]interface{} {
	meta := map[string]interface{}{
		"source": result.Source,
		"count":  len(result.Days),
	}
	if result.LastUpdated != nil {
		meta["last_updated"] = result.LastUpdated
	}
	return meta
}

// readUpload returns the CSV text from a multipart "file" field or the raw body.
func readUpload(c *gin.Context) (string, error) {
	var src io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "multipart upload needs a file field")
		}
		f, err := header.Open()
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable upload")
		}
		defer f.Close()
		src = f
	}
	if src == nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "csv body is required")
	}

	data, err := io.ReadAll(io.LimitReader(src, MaxUploadBytes+1))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable upload")
	}
	if len(data) > MaxUploadBytes {
		return "", appErrors.New("PAYLOAD_TOO_LARGE", http.StatusRequestEntityTooLarge, "csv upload exceeds 2 MiB")
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "csv body is required")
	}
	return string(data), nil
}
