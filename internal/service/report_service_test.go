package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fleet-ops-api/internal/dto"
	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/internal/repository/memory"
	appErrors "github.com/noah-isme/fleet-ops-api/pkg/errors"
)

func newReportFixture(t *testing.T, loc *time.Location) (*memory.Store, *ReportService) {
	t.Helper()
	store := memory.New()
	svc := NewReportService(store, ReportOptions{Location: loc}, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC) }
	return store, svc
}

func seedBus(t *testing.T, store *memory.Store, number string) models.Bus {
	t.Helper()
	bus := models.Bus{BusNumber: number}
	require.NoError(t, store.Buses().Create(context.Background(), &bus))
	return bus
}

func TestWeekBounds(t *testing.T) {
	cases := []time.Time{
		time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 8, 15, 30, 0, 0, time.UTC),
		time.Date(2024, 5, 12, 23, 59, 59, 0, time.UTC),
	}
	for _, c := range cases {
		start, end := WeekBounds(c, time.UTC)
		assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), start, c)
		assert.Equal(t, time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), end, c)
	}

	start, _ := WeekBounds(time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC), start)
}

func TestMonthBounds(t *testing.T) {
	start, end := MonthBounds(time.Date(2024, 2, 17, 8, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), end)

	start, end = MonthBounds(time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 2024, end.Year())
	assert.Equal(t, time.December, end.Month())
}

func TestDashboardCounters(t *testing.T) {
	store, svc := newReportFixture(t, time.UTC)
	a := seedBus(t, store, "101")
	b := seedBus(t, store, "102")
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	seedIncident(t, store, models.Incident{BusID: a.ID, ReportedAt: base})
	seedIncident(t, store, models.Incident{BusID: a.ID, EquipmentType: models.EquipmentGPS, ReportedAt: base})
	seedIncident(t, store, models.Incident{BusID: b.ID, EquipmentType: models.EquipmentDVR, Status: models.IncidentStatusInProgress, ReportedAt: base})
	seedIncident(t, store, models.Incident{
		BusID: b.ID, Status: models.IncidentStatusResolved, ReportedAt: base,
		ResolvedAt: timePtr(time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)),
	})
	seedIncident(t, store, models.Incident{
		BusID: b.ID, Status: models.IncidentStatusResolved, ReportedAt: base,
		ResolvedAt: timePtr(time.Date(2024, 5, 5, 23, 0, 0, 0, time.UTC)),
	})

	stats, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalBuses)
	assert.Equal(t, 3, stats.ActiveIncidents)
	assert.Equal(t, 2, stats.PendingRepairs)
	assert.Equal(t, 1, stats.ResolvedThisWeek)
	assert.Equal(t, map[string]int{"camera": 1, "gps": 1, "dvr": 1}, stats.IncidentsByType)
}

func TestDashboardEmpty(t *testing.T) {
	_, svc := newReportFixture(t, time.UTC)
	stats, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dto.DashboardStats{IncidentsByType: map[string]int{}}, *stats)
}

func TestWeeklyWindowIncludesSundayNight(t *testing.T) {
	store, svc := newReportFixture(t, time.UTC)
	bus := seedBus(t, store, "101")

	seedIncident(t, store, models.Incident{BusID: bus.ID, ReportedAt: time.Date(2024, 5, 12, 23, 59, 59, 0, time.UTC)})
	monday := seedIncident(t, store, models.Incident{BusID: bus.ID, ReportedAt: time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)})
	seedIncident(t, store, models.Incident{BusID: bus.ID, ReportedAt: time.Date(2024, 5, 5, 23, 59, 59, 0, time.UTC)})

	report, err := svc.Weekly(context.Background(), time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalIncidents)
	require.Len(t, report.MostAffectedBuses, 1)
	assert.Equal(t, "101", report.MostAffectedBuses[0].BusNumber)

	next, err := svc.Weekly(context.Background(), monday.ReportedAt)
	require.NoError(t, err)
	assert.Equal(t, 1, next.TotalIncidents)
	assert.Equal(t, monday.ReportedAt, next.WeekStart)
}

func TestWeeklyUsesReportLocation(t *testing.T) {
	loc := time.FixedZone("CLT", -4*3600)
	store, svc := newReportFixture(t, loc)
	bus := seedBus(t, store, "101")

	// Monday 02:00 UTC is still Sunday evening locally
	seedIncident(t, store, models.Incident{BusID: bus.ID, ReportedAt: time.Date(2024, 5, 13, 2, 0, 0, 0, time.UTC)})

	report, err := svc.Weekly(context.Background(), time.Date(2024, 5, 8, 12, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalIncidents)
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, loc), report.WeekStart)
}

func TestWeeklyHistogramsAndRanking(t *testing.T) {
	store, svc := newReportFixture(t, time.UTC)
	day := time.Date(2024, 5, 7, 8, 0, 0, 0, time.UTC)

	// counts 7,6,5,4,3,2,1 across seven buses
	buses := make([]models.Bus, 7)
	for i := range buses {
		buses[i] = seedBus(t, store, string(rune('A'+i)))
		for n := 0; n < 7-i; n++ {
			seedIncident(t, store, models.Incident{BusID: buses[i].ID, ReportedAt: day.Add(time.Duration(n) * time.Minute)})
		}
	}
	seedIncident(t, store, models.Incident{
		BusID: buses[6].ID, EquipmentType: models.EquipmentCable, IncidentType: models.IncidentLooseCable,
		Status: models.IncidentStatusResolved, ReportedAt: day,
	})

	report, err := svc.Weekly(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 29, report.TotalIncidents)
	assert.Equal(t, 1, report.ResolvedIncidents)
	assert.Equal(t, map[string]int{"faulty": 28, "loose_cable": 1}, report.IncidentsByType)
	assert.Equal(t, map[string]int{"camera": 28, "cable": 1}, report.IncidentsByEquipment)

	require.Len(t, report.MostAffectedBuses, 5)
	for i, entry := range report.MostAffectedBuses {
		assert.Equal(t, buses[i].ID, entry.BusID)
		assert.Equal(t, buses[i].BusNumber, entry.BusNumber)
		assert.Equal(t, 7-i, entry.Count)
	}
}

func TestMostAffectedTiesKeepFirstSeenOrder(t *testing.T) {
	store, svc := newReportFixture(t, time.UTC)
	older := seedBus(t, store, "1")
	newer := seedBus(t, store, "2")
	day := time.Date(2024, 5, 7, 8, 0, 0, 0, time.UTC)

	seedIncident(t, store, models.Incident{BusID: older.ID, ReportedAt: day})
	seedIncident(t, store, models.Incident{BusID: older.ID, ReportedAt: day.Add(time.Hour)})
	seedIncident(t, store, models.Incident{BusID: newer.ID, ReportedAt: day.Add(2 * time.Hour)})
	seedIncident(t, store, models.Incident{BusID: newer.ID, ReportedAt: day.Add(3 * time.Hour)})

	report, err := svc.Weekly(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, report.MostAffectedBuses, 2)
	assert.Equal(t, newer.ID, report.MostAffectedBuses[0].BusID)
	assert.Equal(t, older.ID, report.MostAffectedBuses[1].BusID)
}

func TestMonthlyTrendAcrossWeeks(t *testing.T) {
	store, svc := newReportFixture(t, time.UTC)
	bus := seedBus(t, store, "101")
	other := seedBus(t, store, "102")

	plan := []struct {
		day   int
		count int
	}{
		{1, 3}, {5, 3}, // ISO week 18
		{6, 2}, {12, 3}, // week 19
		{13, 4}, // week 20
	}
	for _, p := range plan {
		for n := 0; n < p.count; n++ {
			seedIncident(t, store, models.Incident{BusID: bus.ID, ReportedAt: time.Date(2024, 5, p.day, 10, n, 0, 0, time.UTC)})
		}
	}
	// same ISO week as May 1 but outside the month
	seedIncident(t, store, models.Incident{BusID: other.ID, ReportedAt: time.Date(2024, 4, 30, 10, 0, 0, 0, time.UTC)})

	report, err := svc.Monthly(context.Background(), time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 15, report.TotalIncidents)
	assert.Equal(t, []dto.WeekCount{{Week: 18, Count: 6}, {Week: 19, Count: 5}, {Week: 20, Count: 4}}, report.WeeklyTrend)
	assert.True(t, strings.EqualFold("mayo", report.Month), report.Month)
	assert.Equal(t, 2024, report.Year)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), report.MonthStart)
	require.Len(t, report.MostAffectedBuses, 1)
	assert.Equal(t, 15, report.MostAffectedBuses[0].Count)
}

func TestMonthlyTopSix(t *testing.T) {
	store, svc := newReportFixture(t, time.UTC)
	day := time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		bus := seedBus(t, store, string(rune('A'+i)))
		for n := 0; n <= i; n++ {
			seedIncident(t, store, models.Incident{BusID: bus.ID, ReportedAt: day})
		}
	}

	report, err := svc.Monthly(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, report.MostAffectedBuses, 6)
	assert.Equal(t, "H", report.MostAffectedBuses[0].BusNumber)
	assert.Equal(t, 8, report.MostAffectedBuses[0].Count)
	assert.Equal(t, "C", report.MostAffectedBuses[5].BusNumber)
}

func TestMonthlyEmpty(t *testing.T) {
	_, svc := newReportFixture(t, time.UTC)
	report, err := svc.Monthly(context.Background(), time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, report.TotalIncidents)
	assert.Empty(t, report.WeeklyTrend)
	assert.Empty(t, report.MostAffectedBuses)
	assert.True(t, strings.EqualFold("enero", report.Month), report.Month)
}

func TestExportWeeklyCSV(t *testing.T) {
	store, svc := newReportFixture(t, time.UTC)
	bus := seedBus(t, store, "101")
	day := time.Date(2024, 5, 7, 8, 0, 0, 0, time.UTC)
	seedIncident(t, store, models.Incident{BusID: bus.ID, ReportedAt: day})
	seedIncident(t, store, models.Incident{BusID: bus.ID, EquipmentType: models.EquipmentGPS, ReportedAt: day})

	file, err := svc.ExportWeekly(context.Background(), ExportRequest{Date: day, Format: FormatCSV})
	require.NoError(t, err)
	assert.Equal(t, "weekly-report-2024-05-06.csv", file.FileName)
	assert.Equal(t, "text/csv", file.ContentType)

	lines := strings.Split(strings.TrimSpace(string(file.Content)), "\n")
	assert.Equal(t, "section,key,value", lines[0])
	assert.Contains(t, lines, "summary,totalIncidents,2")
	assert.Contains(t, lines, "incidentsByEquipment,camera,1")
	assert.Contains(t, lines, "incidentsByEquipment,gps,1")
	assert.Contains(t, lines, "mostAffectedBuses,101,2")
}

func TestExportMonthlyPDF(t *testing.T) {
	store, svc := newReportFixture(t, time.UTC)
	bus := seedBus(t, store, "101")
	seedIncident(t, store, models.Incident{BusID: bus.ID, ReportedAt: time.Date(2024, 5, 7, 8, 0, 0, 0, time.UTC)})

	file, err := svc.ExportMonthly(context.Background(), ExportRequest{Date: time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC), Format: FormatPDF})
	require.NoError(t, err)
	assert.Equal(t, "monthly-report-2024-05.pdf", file.FileName)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Content), "%PDF"))
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	_, svc := newReportFixture(t, time.UTC)
	_, err := svc.ExportWeekly(context.Background(), ExportRequest{Date: time.Now(), Format: "xlsx"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
