package models

import "time"

// OperationalStatus is the projected health of one equipment slot.
type OperationalStatus string

const (
	StatusOperational OperationalStatus = "operational"
	StatusMisaligned  OperationalStatus = "misaligned"
	StatusFaulty      OperationalStatus = "faulty"
)

// EquipmentStatus is the current state of a (bus, equipment, channel) slot.
type EquipmentStatus struct {
	ID             string            `db:"id" json:"id"`
	BusID          string            `db:"bus_id" json:"busId"`
	EquipmentType  EquipmentType     `db:"equipment_type" json:"equipmentType"`
	CameraChannel  *CameraChannel    `db:"camera_channel" json:"cameraChannel,omitempty"`
	Status         OperationalStatus `db:"status" json:"status"`
	LastIncidentID *string           `db:"last_incident_id" json:"lastIncidentId,omitempty"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updatedAt"`
}

// StatusForIncidentType collapses incident types onto projected status values:
// faulty stays faulty, every other type reads as misaligned.
func StatusForIncidentType(t IncidentType) OperationalStatus {
	if t == IncidentFaulty {
		return StatusFaulty
	}
	return StatusMisaligned
}
