package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goodsign/monday"
	"go.uber.org/zap"

	"github.com/noah-isme/fleet-ops-api/internal/dto"
	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/internal/repository"
	"github.com/noah-isme/fleet-ops-api/pkg/export"
)

const (
	weeklyTopBuses  = 5
	monthlyTopBuses = 6
)

// Export formats accepted by ReportService.Export*.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

// ExportRequest selects the report period and output format.
type ExportRequest struct {
	Date   time.Time
	Format string `validate:"required,oneof=csv pdf"`
}

type renderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ReportService computes dashboard counters and period reports. Calendar math
// runs in the configured location.
type ReportService struct {
	store     repository.Store
	location  *time.Location
	locale    monday.Locale
	renderers map[string]renderer
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// ReportOptions configures the report calendar.
type ReportOptions struct {
	Location *time.Location
	Locale   string
}

// NewReportService constructs the report service.
func NewReportService(store repository.Store, opts ReportOptions, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	locale := monday.Locale(opts.Locale)
	if locale == "" {
		locale = monday.LocaleEsES
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		store:    store,
		location: opts.Location,
		locale:   locale,
		renderers: map[string]renderer{
			FormatCSV: export.NewCSVExporter(),
			FormatPDF: export.NewPDFExporter(),
		},
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// WeekBounds returns Monday 00:00 and the last instant of Sunday for the ISO
// week containing t.
func WeekBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	offset := (int(local.Weekday()) + 6) % 7
	start := time.Date(local.Year(), local.Month(), local.Day()-offset, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 7).Add(-time.Nanosecond)
	return start, end
}

// MonthBounds returns the first and last instant of the calendar month containing t.
func MonthBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}

// Dashboard returns the live counters.
func (s *ReportService) Dashboard(ctx context.Context) (*dto.DashboardStats, error) {
	incidents := s.store.Incidents()
	resolved := models.IncidentStatusResolved
	pending := models.IncidentStatusPending

	totalBuses, err := s.store.Buses().Count(ctx)
	if err != nil {
		return nil, internalError(err, "failed to count buses")
	}
	active, err := incidents.List(ctx, models.IncidentFilter{ExcludeStatus: &resolved})
	if err != nil {
		return nil, internalError(err, "failed to load active incidents")
	}
	pendingCount, err := incidents.Count(ctx, models.IncidentFilter{Status: &pending})
	if err != nil {
		return nil, internalError(err, "failed to count pending incidents")
	}
	weekStart, weekEnd := WeekBounds(s.now(), s.location)
	resolvedWeek, err := incidents.Count(ctx, models.IncidentFilter{Status: &resolved, ResolvedFrom: &weekStart, ResolvedTo: &weekEnd})
	if err != nil {
		return nil, internalError(err, "failed to count resolved incidents")
	}

	byType := make(map[string]int)
	for _, inc := range active {
		byType[string(inc.EquipmentType)]++
	}

	return &dto.DashboardStats{
		TotalBuses:       totalBuses,
		ActiveIncidents:  len(active),
		ResolvedThisWeek: resolvedWeek,
		PendingRepairs:   pendingCount,
		IncidentsByType:  byType,
	}, nil
}

// Weekly aggregates incidents reported in the ISO week containing date.
func (s *ReportService) Weekly(ctx context.Context, date time.Time) (*dto.WeeklyReport, error) {
	start, end := WeekBounds(date, s.location)
	window, err := s.window(ctx, start, end)
	if err != nil {
		return nil, err
	}
	top, err := s.mostAffected(ctx, window, weeklyTopBuses)
	if err != nil {
		return nil, err
	}

	byType, byEquipment := histograms(window)
	return &dto.WeeklyReport{
		WeekStart:            start,
		WeekEnd:              end,
		TotalIncidents:       len(window),
		ResolvedIncidents:    countResolved(window),
		IncidentsByType:      byType,
		IncidentsByEquipment: byEquipment,
		MostAffectedBuses:    top,
	}, nil
}

// Monthly aggregates incidents reported in the calendar month containing
// date. The trend buckets by ISO week-of-year number.
func (s *ReportService) Monthly(ctx context.Context, date time.Time) (*dto.MonthlyReport, error) {
	start, end := MonthBounds(date, s.location)
	window, err := s.window(ctx, start, end)
	if err != nil {
		return nil, err
	}
	top, err := s.mostAffected(ctx, window, monthlyTopBuses)
	if err != nil {
		return nil, err
	}

	weeks := make(map[int]int)
	for _, inc := range window {
		_, week := inc.ReportedAt.In(s.location).ISOWeek()
		weeks[week]++
	}
	trend := make([]dto.WeekCount, 0, len(weeks))
	for week, count := range weeks {
		trend = append(trend, dto.WeekCount{Week: week, Count: count})
	}
	sort.Slice(trend, func(i, j int) bool { return trend[i].Week < trend[j].Week })

	byType, byEquipment := histograms(window)
	return &dto.MonthlyReport{
		Month:                monday.Format(start, "January", s.locale),
		Year:                 start.Year(),
		MonthStart:           start,
		MonthEnd:             end,
		TotalIncidents:       len(window),
		ResolvedIncidents:    countResolved(window),
		IncidentsByType:      byType,
		IncidentsByEquipment: byEquipment,
		WeeklyTrend:          trend,
		MostAffectedBuses:    top,
	}, nil
}

func (s *ReportService) window(ctx context.Context, start, end time.Time) ([]models.Incident, error) {
	incidents, err := s.store.Incidents().List(ctx, models.IncidentFilter{ReportedFrom: &start, ReportedTo: &end})
	if err != nil {
		return nil, internalError(err, "failed to load incidents for report")
	}
	return incidents, nil
}

// mostAffected ranks buses by incident count. Equal counts keep the order in
// which buses first appear in incidents.
func (s *ReportService) mostAffected(ctx context.Context, incidents []models.Incident, limit int) ([]dto.BusIncidentCount, error) {
	index := make(map[string]int)
	ranking := make([]dto.BusIncidentCount, 0)
	for _, inc := range incidents {
		i, ok := index[inc.BusID]
		if !ok {
			i = len(ranking)
			index[inc.BusID] = i
			ranking = append(ranking, dto.BusIncidentCount{BusID: inc.BusID})
		}
		ranking[i].Count++
	}
	sort.SliceStable(ranking, func(i, j int) bool { return ranking[i].Count > ranking[j].Count })
	if len(ranking) > limit {
		ranking = ranking[:limit]
	}

	if len(ranking) == 0 {
		return ranking, nil
	}
	buses, err := s.store.Buses().List(ctx)
	if err != nil {
		return nil, internalError(err, "failed to load buses for report")
	}
	numbers := make(map[string]string, len(buses))
	for _, b := range buses {
		numbers[b.ID] = b.BusNumber
	}
	for i := range ranking {
		ranking[i].BusNumber = numbers[ranking[i].BusID]
	}
	return ranking, nil
}

func histograms(incidents []models.Incident) (map[string]int, map[string]int) {
	byType := make(map[string]int)
	byEquipment := make(map[string]int)
	for _, inc := range incidents {
		byType[string(inc.IncidentType)]++
		byEquipment[string(inc.EquipmentType)]++
	}
	return byType, byEquipment
}

func countResolved(incidents []models.Incident) int {
	n := 0
	for _, inc := range incidents {
		if inc.Status == models.IncidentStatusResolved {
			n++
		}
	}
	return n
}

// ExportWeekly renders the weekly report as CSV or PDF.
func (s *ReportService) ExportWeekly(ctx context.Context, req ExportRequest) (*dto.ExportFile, error) {
	r, err := s.renderer(req)
	if err != nil {
		return nil, err
	}
	report, err := s.Weekly(ctx, req.Date)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{
		Title:    "Reporte semanal de incidentes",
		Subtitle: fmt.Sprintf("%s - %s", report.WeekStart.Format("2006-01-02"), report.WeekEnd.Format("2006-01-02")),
		Headers:  []string{"section", "key", "value"},
	}
	data.Append("summary", "totalIncidents", strconv.Itoa(report.TotalIncidents))
	data.Append("summary", "resolvedIncidents", strconv.Itoa(report.ResolvedIncidents))
	appendHistogram(&data, "incidentsByType", report.IncidentsByType)
	appendHistogram(&data, "incidentsByEquipment", report.IncidentsByEquipment)
	appendRanking(&data, report.MostAffectedBuses)

	name := fmt.Sprintf("weekly-report-%s.%s", report.WeekStart.Format("2006-01-02"), r.Extension())
	return s.render(r, data, name)
}

// ExportMonthly renders the monthly report as CSV or PDF.
func (s *ReportService) ExportMonthly(ctx context.Context, req ExportRequest) (*dto.ExportFile, error) {
	r, err := s.renderer(req)
	if err != nil {
		return nil, err
	}
	report, err := s.Monthly(ctx, req.Date)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{
		Title:    "Reporte mensual de incidentes",
		Subtitle: fmt.Sprintf("%s %d", report.Month, report.Year),
		Headers:  []string{"section", "key", "value"},
	}
	data.Append("summary", "totalIncidents", strconv.Itoa(report.TotalIncidents))
	data.Append("summary", "resolvedIncidents", strconv.Itoa(report.ResolvedIncidents))
	appendHistogram(&data, "incidentsByType", report.IncidentsByType)
	appendHistogram(&data, "incidentsByEquipment", report.IncidentsByEquipment)
	for _, w := range report.WeeklyTrend {
		data.Append("weeklyTrend", strconv.Itoa(w.Week), strconv.Itoa(w.Count))
	}
	appendRanking(&data, report.MostAffectedBuses)

	name := fmt.Sprintf("monthly-report-%s.%s", report.MonthStart.Format("2006-01"), r.Extension())
	return s.render(r, data, name)
}

func (s *ReportService) renderer(req ExportRequest) (renderer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid export request")
	}
	return s.renderers[req.Format], nil
}

func (s *ReportService) render(r renderer, data export.Dataset, name string) (*dto.ExportFile, error) {
	content, err := r.Render(data)
	if err != nil {
		return nil, internalError(err, "failed to render report")
	}
	s.logger.Info("report exported", zap.String("file", name), zap.Int("bytes", len(content)))
	return &dto.ExportFile{FileName: name, ContentType: r.ContentType(), Content: content}, nil
}

func appendHistogram(data *export.Dataset, section string, hist map[string]int) {
	keys := make([]string, 0, len(hist))
	for k := range hist {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data.Append(section, k, strconv.Itoa(hist[k]))
	}
}

func appendRanking(data *export.Dataset, ranking []dto.BusIncidentCount) {
	for _, b := range ranking {
		data.Append("mostAffectedBuses", b.BusNumber, strconv.Itoa(b.Count))
	}
}
