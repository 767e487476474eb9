package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fleet-ops-api/internal/models"
)

const driverColumns = "id, full_name, rut, phone, created_at"

// DriverRepository manages drivers and bus assignments.
type DriverRepository struct {
	q sqlx.ExtContext
}

// NewDriverRepository constructs a DriverRepository.
func NewDriverRepository(q sqlx.ExtContext) *DriverRepository {
	return &DriverRepository{q: q}
}

// Create inserts a driver.
func (r *DriverRepository) Create(ctx context.Context, driver *models.Driver) error {
	if driver.ID == "" {
		driver.ID = uuid.NewString()
	}
	if driver.CreatedAt.IsZero() {
		driver.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO drivers (id, full_name, rut, phone, created_at)
        VALUES (:id, :full_name, :rut, :phone, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, driver); err != nil {
		return mapWriteError("create driver", err)
	}
	return nil
}

// GetByID fetches a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*models.Driver, error) {
	var driver models.Driver
	if err := sqlx.GetContext(ctx, r.q, &driver, "SELECT "+driverColumns+" FROM drivers WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &driver, nil
}

// List returns drivers ordered by name.
func (r *DriverRepository) List(ctx context.Context) ([]models.Driver, error) {
	drivers := make([]models.Driver, 0)
	if err := sqlx.SelectContext(ctx, r.q, &drivers, "SELECT "+driverColumns+" FROM drivers ORDER BY full_name, id"); err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	return drivers, nil
}

// Delete removes a driver and its assignments.
func (r *DriverRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.q.ExecContext(ctx, "DELETE FROM drivers WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete driver: %w", err)
	}
	return affected("delete driver", res)
}

// Assign links a driver to a bus, replacing the role of an existing link.
func (r *DriverRepository) Assign(ctx context.Context, assignment *models.BusDriver) error {
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}
	const query = `INSERT INTO bus_drivers (bus_id, driver_id, role, assigned_at)
        VALUES (:bus_id, :driver_id, :role, :assigned_at)
        ON CONFLICT (bus_id, driver_id)
        DO UPDATE SET role = EXCLUDED.role, assigned_at = EXCLUDED.assigned_at`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, assignment); err != nil {
		return fmt.Errorf("assign driver: %w", err)
	}
	return nil
}

// Unassign removes a driver from a bus.
func (r *DriverRepository) Unassign(ctx context.Context, busID, driverID string) (bool, error) {
	res, err := r.q.ExecContext(ctx, "DELETE FROM bus_drivers WHERE bus_id = $1 AND driver_id = $2", busID, driverID)
	if err != nil {
		return false, fmt.Errorf("unassign driver: %w", err)
	}
	return affected("unassign driver", res)
}

// ListByBus returns the drivers assigned to a bus, titular first.
func (r *DriverRepository) ListByBus(ctx context.Context, busID string) ([]models.BusDriverDetail, error) {
	const query = `SELECT bd.bus_id, bd.driver_id, bd.role, bd.assigned_at, d.full_name
        FROM bus_drivers bd JOIN drivers d ON d.id = bd.driver_id
        WHERE bd.bus_id = $1
        ORDER BY CASE bd.role WHEN 'titular' THEN 0 ELSE 1 END, d.full_name`
	details := make([]models.BusDriverDetail, 0)
	if err := sqlx.SelectContext(ctx, r.q, &details, query, busID); err != nil {
		return nil, fmt.Errorf("list bus drivers: %w", err)
	}
	return details, nil
}
