package dto

import "time"

// DashboardStats is the live snapshot shown on the landing page.
type DashboardStats struct {
	TotalBuses       int            `json:"totalBuses"`
	ActiveIncidents  int            `json:"activeIncidents"`
	ResolvedThisWeek int            `json:"resolvedThisWeek"`
	PendingRepairs   int            `json:"pendingRepairs"`
	IncidentsByType  map[string]int `json:"incidentsByType"`
}

// BusIncidentCount is one entry of a most-affected-buses ranking.
type BusIncidentCount struct {
	BusID     string `json:"busId"`
	BusNumber string `json:"busNumber"`
	Count     int    `json:"count"`
}

// WeekCount is one ISO week bucket of a monthly trend.
type WeekCount struct {
	Week  int `json:"week"`
	Count int `json:"count"`
}

// WeeklyReport aggregates incidents reported inside one Monday-Sunday window.
type WeeklyReport struct {
	WeekStart            time.Time          `json:"weekStart"`
	WeekEnd              time.Time          `json:"weekEnd"`
	TotalIncidents       int                `json:"totalIncidents"`
	ResolvedIncidents    int                `json:"resolvedIncidents"`
	IncidentsByType      map[string]int     `json:"incidentsByType"`
	IncidentsByEquipment map[string]int     `json:"incidentsByEquipment"`
	MostAffectedBuses    []BusIncidentCount `json:"mostAffectedBuses"`
}

// MonthlyReport aggregates incidents reported inside one calendar month.
type MonthlyReport struct {
	Month                string             `json:"month"`
	Year                 int                `json:"year"`
	MonthStart           time.Time          `json:"monthStart"`
	MonthEnd             time.Time          `json:"monthEnd"`
	TotalIncidents       int                `json:"totalIncidents"`
	ResolvedIncidents    int                `json:"resolvedIncidents"`
	IncidentsByType      map[string]int     `json:"incidentsByType"`
	IncidentsByEquipment map[string]int     `json:"incidentsByEquipment"`
	WeeklyTrend          []WeekCount        `json:"weeklyTrend"`
	MostAffectedBuses    []BusIncidentCount `json:"mostAffectedBuses"`
}

// ExportFile is a rendered report download.
type ExportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}
