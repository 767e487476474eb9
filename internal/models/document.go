package models

import "time"

// DocumentType identifies a compliance document.
type DocumentType string

const (
	DocPermisoCirculacion DocumentType = "permiso_circulacion"
	DocRevisionTecnica    DocumentType = "revision_tecnica"
	DocChasis             DocumentType = "chasis"
	DocLicenciaConducir   DocumentType = "licencia_conducir"
	DocCedulaConductor    DocumentType = "cedula_conductor"
)

// documentAlertDays holds the alert window per document type. Types absent here never alert.
var documentAlertDays = map[DocumentType]int{
	DocRevisionTecnica:  5,
	DocLicenciaConducir: 30,
	DocCedulaConductor:  30,
}

// AlertThreshold returns the alert window in days and whether the type alerts at all.
func (t DocumentType) AlertThreshold() (int, bool) {
	days, ok := documentAlertDays[t]
	return days, ok
}

// BusDocument holds metadata for an uploaded compliance file. File bytes live elsewhere.
type BusDocument struct {
	ID         string       `db:"id" json:"id"`
	BusID      string       `db:"bus_id" json:"busId"`
	DriverID   *string      `db:"driver_id" json:"driverId,omitempty"`
	DocType    DocumentType `db:"doc_type" json:"docType"`
	FileName   string       `db:"file_name" json:"fileName"`
	StorageKey *string      `db:"storage_key" json:"storageKey,omitempty"`
	ExpiresAt  *time.Time   `db:"expires_at" json:"expiresAt,omitempty"`
	UploadedAt time.Time    `db:"uploaded_at" json:"uploadedAt"`
}

// ExpiringDocument is a document inside its alert window.
type ExpiringDocument struct {
	DocumentID string       `json:"documentId"`
	BusID      string       `json:"busId"`
	BusNumber  string       `json:"busNumber"`
	DocType    DocumentType `json:"docType"`
	FileName   string       `json:"fileName"`
	ExpiresAt  time.Time    `json:"expiresAt"`
	DaysLeft   int          `json:"daysLeft"`
	DriverName *string      `json:"driverName,omitempty"`
}
