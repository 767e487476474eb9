package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fleet-ops-api/internal/models"
)

const busColumns = "id, bus_number, plate, created_at, updated_at"

// BusRepository manages persistence for buses.
type BusRepository struct {
	q sqlx.ExtContext
}

// NewBusRepository constructs a BusRepository.
func NewBusRepository(q sqlx.ExtContext) *BusRepository {
	return &BusRepository{q: q}
}

// Create inserts a new bus.
func (r *BusRepository) Create(ctx context.Context, bus *models.Bus) error {
	if bus.ID == "" {
		bus.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if bus.CreatedAt.IsZero() {
		bus.CreatedAt = now
	}
	bus.UpdatedAt = bus.CreatedAt
	const query = `INSERT INTO buses (id, bus_number, plate, created_at, updated_at)
        VALUES (:id, :bus_number, :plate, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, bus); err != nil {
		return mapWriteError("create bus", err)
	}
	return nil
}

// GetByID fetches a bus by ID.
func (r *BusRepository) GetByID(ctx context.Context, id string) (*models.Bus, error) {
	var bus models.Bus
	if err := sqlx.GetContext(ctx, r.q, &bus, "SELECT "+busColumns+" FROM buses WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &bus, nil
}

// GetByNumber fetches a bus by its fleet number.
func (r *BusRepository) GetByNumber(ctx context.Context, number string) (*models.Bus, error) {
	var bus models.Bus
	if err := sqlx.GetContext(ctx, r.q, &bus, "SELECT "+busColumns+" FROM buses WHERE bus_number = $1", number); err != nil {
		return nil, err
	}
	return &bus, nil
}

// List returns every bus ordered by numeric bus number.
func (r *BusRepository) List(ctx context.Context) ([]models.Bus, error) {
	buses := make([]models.Bus, 0)
	if err := sqlx.SelectContext(ctx, r.q, &buses, "SELECT "+busColumns+" FROM buses"); err != nil {
		return nil, fmt.Errorf("list buses: %w", err)
	}
	models.SortBusesByNumber(buses)
	return buses, nil
}

// Count returns the fleet size.
func (r *BusRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := sqlx.GetContext(ctx, r.q, &total, "SELECT COUNT(*) FROM buses"); err != nil {
		return 0, fmt.Errorf("count buses: %w", err)
	}
	return total, nil
}

// Update modifies number and plate of an existing bus.
func (r *BusRepository) Update(ctx context.Context, bus *models.Bus) error {
	bus.UpdatedAt = time.Now().UTC()
	const query = `UPDATE buses SET bus_number = :bus_number, plate = :plate, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, bus); err != nil {
		return mapWriteError("update bus", err)
	}
	return nil
}

// busDependents lists the tables cleared before a bus row is removed.
var busDependents = []string{"incidents", "equipment_status", "bus_documents", "bus_drivers"}

// Delete removes a bus with its incidents, status rows, documents and driver
// assignments. Callers run it inside WithinTx.
func (r *BusRepository) Delete(ctx context.Context, id string) (bool, error) {
	for _, table := range busDependents {
		if _, err := r.q.ExecContext(ctx, "DELETE FROM "+table+" WHERE bus_id = $1", id); err != nil {
			return false, fmt.Errorf("delete bus %s: %w", table, err)
		}
	}
	res, err := r.q.ExecContext(ctx, "DELETE FROM buses WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete bus: %w", err)
	}
	return affected("delete bus", res)
}
