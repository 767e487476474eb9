package repository

import (
	"context"
	"database/sql"

	"github.com/noah-isme/fleet-ops-api/internal/models"
)

// ErrNotFound is returned by lookups that find nothing. It is sql.ErrNoRows so
// postgres and memory results compare the same way.
var ErrNotFound = sql.ErrNoRows

// BusStore persists buses. Delete cascades to the bus's documents, equipment
// status rows, driver assignments and incidents.
type BusStore interface {
	Create(ctx context.Context, bus *models.Bus) error
	GetByID(ctx context.Context, id string) (*models.Bus, error)
	GetByNumber(ctx context.Context, number string) (*models.Bus, error)
	List(ctx context.Context) ([]models.Bus, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, bus *models.Bus) error
	Delete(ctx context.Context, id string) (bool, error)
}

// IncidentStore persists incident history. List orders by reported_at descending.
type IncidentStore interface {
	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, id string) (*models.Incident, error)
	UpdateStatus(ctx context.Context, incident *models.Incident) error
	List(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, error)
	Count(ctx context.Context, filter models.IncidentFilter) (int, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// EquipmentStatusStore persists the current-status projection.
type EquipmentStatusStore interface {
	Find(ctx context.Context, busID string, equipment models.EquipmentType, channel *models.CameraChannel) (*models.EquipmentStatus, error)
	Upsert(ctx context.Context, status *models.EquipmentStatus) error
	ListByEquipment(ctx context.Context, equipment models.EquipmentType) ([]models.EquipmentStatus, error)
}

// DocumentStore persists compliance document metadata.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.BusDocument) error
	GetByID(ctx context.Context, id string) (*models.BusDocument, error)
	ListByBus(ctx context.Context, busID string) ([]models.BusDocument, error)
	ListWithExpiry(ctx context.Context) ([]models.BusDocument, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// DriverStore persists drivers and their bus assignments.
type DriverStore interface {
	Create(ctx context.Context, driver *models.Driver) error
	GetByID(ctx context.Context, id string) (*models.Driver, error)
	List(ctx context.Context) ([]models.Driver, error)
	Delete(ctx context.Context, id string) (bool, error)
	Assign(ctx context.Context, assignment *models.BusDriver) error
	Unassign(ctx context.Context, busID, driverID string) (bool, error)
	ListByBus(ctx context.Context, busID string) ([]models.BusDriverDetail, error)
}

// UserStore persists operator accounts.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// Store groups every collection behind one capability set. WithinTx runs fn
// against a transactional view; any error returned by fn discards all writes.
type Store interface {
	Buses() BusStore
	Incidents() IncidentStore
	EquipmentStatuses() EquipmentStatusStore
	Documents() DocumentStore
	Drivers() DriverStore
	Users() UserStore
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
