package dto

import (
	"time"

	"github.com/noah-isme/fleet-ops-api/internal/models"
)

// CameraChannelStatus is the health of one camera position.
type CameraChannelStatus struct {
	Channel models.CameraChannel     `json:"channel"`
	Status  models.OperationalStatus `json:"status"`
}

// BusCameraStatus lists all four channels of one bus in channel order.
type BusCameraStatus struct {
	BusID     string                `json:"busId"`
	BusNumber string                `json:"busNumber"`
	Plate     *string               `json:"plate,omitempty"`
	Cameras   []CameraChannelStatus `json:"cameras"`
}

// ImportRowError describes a spreadsheet line that could not be imported.
type ImportRowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// BusImportResult summarises a bulk bus import.
type BusImportResult struct {
	Created []models.Bus     `json:"created"`
	Skipped []string         `json:"skipped"`
	Errors  []ImportRowError `json:"errors"`
}

// LoginResponse carries a signed access token.
type LoginResponse struct {
	AccessToken string      `json:"accessToken"`
	ExpiresAt   time.Time   `json:"expiresAt"`
	User        models.User `json:"user"`
}

// SystemMetrics is a JSON snapshot of process counters.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	IncidentsCreated         uint64    `json:"incidentsCreated"`
	IncidentsResolved        uint64    `json:"incidentsResolved"`
	LockContention           uint64    `json:"lockContention"`
	ExpiringDocuments        int       `json:"expiringDocuments"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
