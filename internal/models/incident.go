package models

import "time"

// EquipmentType classifies the hardware an incident concerns.
type EquipmentType string

const (
	EquipmentCamera    EquipmentType = "camera"
	EquipmentDVR       EquipmentType = "dvr"
	EquipmentGPS       EquipmentType = "gps"
	EquipmentHardDrive EquipmentType = "hard_drive"
	EquipmentCable     EquipmentType = "cable"
)

// EquipmentTypes lists every equipment type in display order.
var EquipmentTypes = []EquipmentType{EquipmentCamera, EquipmentDVR, EquipmentGPS, EquipmentHardDrive, EquipmentCable}

// IncidentType describes the nature of the reported problem.
type IncidentType string

const (
	IncidentMisaligned  IncidentType = "misaligned"
	IncidentLooseCable  IncidentType = "loose_cable"
	IncidentFaulty      IncidentType = "faulty"
	IncidentReplacement IncidentType = "replacement"
)

// IncidentTypes lists every incident type in display order.
var IncidentTypes = []IncidentType{IncidentMisaligned, IncidentLooseCable, IncidentFaulty, IncidentReplacement}

// IncidentStatus tracks the repair lifecycle.
type IncidentStatus string

const (
	IncidentStatusPending    IncidentStatus = "pending"
	IncidentStatusInProgress IncidentStatus = "in_progress"
	IncidentStatusResolved   IncidentStatus = "resolved"
)

// CameraChannel is one of the four fixed camera positions on a bus.
type CameraChannel string

const (
	ChannelFront      CameraChannel = "ch1"
	ChannelDoor       CameraChannel = "ch2"
	ChannelAisle      CameraChannel = "ch3"
	ChannelPassengers CameraChannel = "ch4"
)

// CameraChannels lists the channels in their canonical order.
var CameraChannels = []CameraChannel{ChannelFront, ChannelDoor, ChannelAisle, ChannelPassengers}

// Incident is a single reported problem with one piece of equipment on one bus.
type Incident struct {
	ID              string         `db:"id" json:"id"`
	BusID           string         `db:"bus_id" json:"busId"`
	EquipmentType   EquipmentType  `db:"equipment_type" json:"equipmentType"`
	IncidentType    IncidentType   `db:"incident_type" json:"incidentType"`
	CameraChannel   *CameraChannel `db:"camera_channel" json:"cameraChannel,omitempty"`
	Status          IncidentStatus `db:"status" json:"status"`
	Description     string         `db:"description" json:"description"`
	ResolutionNotes *string        `db:"resolution_notes" json:"resolutionNotes,omitempty"`
	ReportedBy      string         `db:"reported_by" json:"reportedBy"`
	ReportedAt      time.Time      `db:"reported_at" json:"reportedAt"`
	ResolvedAt      *time.Time     `db:"resolved_at" json:"resolvedAt,omitempty"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updatedAt"`
}

// IsCamera reports whether the incident targets a specific camera channel.
func (i Incident) IsCamera() bool {
	return i.EquipmentType == EquipmentCamera && i.CameraChannel != nil
}

// IncidentFilter narrows incident listings. All time bounds are inclusive.
type IncidentFilter struct {
	Status        *IncidentStatus
	ExcludeStatus *IncidentStatus
	EquipmentType *EquipmentType
	BusID         string
	ReportedFrom  *time.Time
	ReportedTo    *time.Time
	ResolvedFrom  *time.Time
	ResolvedTo    *time.Time
	Limit         int
}

// Matches evaluates the filter against a single incident (limit excluded).
func (f IncidentFilter) Matches(inc Incident) bool {
	if f.Status != nil && inc.Status != *f.Status {
		return false
	}
	if f.ExcludeStatus != nil && inc.Status == *f.ExcludeStatus {
		return false
	}
	if f.EquipmentType != nil && inc.EquipmentType != *f.EquipmentType {
		return false
	}
	if f.BusID != "" && inc.BusID != f.BusID {
		return false
	}
	if f.ReportedFrom != nil && inc.ReportedAt.Before(*f.ReportedFrom) {
		return false
	}
	if f.ReportedTo != nil && inc.ReportedAt.After(*f.ReportedTo) {
		return false
	}
	if f.ResolvedFrom != nil || f.ResolvedTo != nil {
		if inc.ResolvedAt == nil {
			return false
		}
		if f.ResolvedFrom != nil && inc.ResolvedAt.Before(*f.ResolvedFrom) {
			return false
		}
		if f.ResolvedTo != nil && inc.ResolvedAt.After(*f.ResolvedTo) {
			return false
		}
	}
	return true
}
