package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fleet-ops-api/internal/dto"
	"github.com/noah-isme/fleet-ops-api/internal/service"
	"github.com/noah-isme/fleet-ops-api/pkg/response"
)

const dateLayout = "2006-01-02"

type reportService interface {
	Dashboard(ctx context.Context) (*dto.DashboardStats, error)
	Weekly(ctx context.Context, date time.Time) (*dto.WeeklyReport, error)
	Monthly(ctx context.Context, date time.Time) (*dto.MonthlyReport, error)
	ExportWeekly(ctx context.Context, req service.ExportRequest) (*dto.ExportFile, error)
	ExportMonthly(ctx context.Context, req service.ExportRequest) (*dto.ExportFile, error)
}

// ReportHandler exposes the dashboard and period reports. Dates in query
// strings are calendar days in the report location.
type ReportHandler struct {
	service  reportService
	location *time.Location
	now      func() time.Time
}

// NewReportHandler constructs the handler.
func NewReportHandler(service reportService, location *time.Location) *ReportHandler {
	if location == nil {
		location = time.UTC
	}
	return &ReportHandler{service: service, location: location, now: time.Now}
}

// Dashboard godoc
// @Summary Dashboard counters
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /dashboard [get]
func (h *ReportHandler) Dashboard(c *gin.Context) {
	stats, err := h.service.Dashboard(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Weekly godoc
// @Summary Weekly incident report
// @Description ISO week (Monday to Sunday) containing date
// @Tags Reports
// @Produce json
// @Param date query string false "YYYY-MM-DD, defaults to today"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/weekly [get]
func (h *ReportHandler) Weekly(c *gin.Context) {
	date, err := h.date(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	report, err := h.service.Weekly(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Monthly godoc
// @Summary Monthly incident report
// @Description Calendar month containing date, with a per ISO week trend
// @Tags Reports
// @Produce json
// @Param date query string false "YYYY-MM-DD, defaults to today"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/monthly [get]
func (h *ReportHandler) Monthly(c *gin.Context) {
	date, err := h.date(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	report, err := h.service.Monthly(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ExportWeekly godoc
// @Summary Download weekly report
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param date query string false "YYYY-MM-DD, defaults to today"
// @Param format query string false "csv | pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/weekly/export [get]
func (h *ReportHandler) ExportWeekly(c *gin.Context) {
	h.export(c, h.service.ExportWeekly)
}

// ExportMonthly godoc
// @Summary Download monthly report
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param date query string false "YYYY-MM-DD, defaults to today"
// @Param format query string false "csv | pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/monthly/export [get]
func (h *ReportHandler) ExportMonthly(c *gin.Context) {
	h.export(c, h.service.ExportMonthly)
}

func (h *ReportHandler) export(c *gin.Context, render func(context.Context, service.ExportRequest) (*dto.ExportFile, error)) {
	date, err := h.date(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := render(c.Request.Context(), service.ExportRequest{Date: date, Format: c.DefaultQuery("format", service.FormatCSV)})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.FileName, file.ContentType, file.Content)
}

func (h *ReportHandler) date(c *gin.Context) (time.Time, error) {
	raw := c.Query("date")
	if raw == "" {
		return h.now().In(h.location), nil
	}
	date, err := time.ParseInLocation(dateLayout, raw, h.location)
	if err != nil {
		return time.Time{}, bindError(err, "date must use YYYY-MM-DD")
	}
	return date, nil
}
