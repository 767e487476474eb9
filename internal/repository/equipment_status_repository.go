package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fleet-ops-api/internal/models"
)

const equipmentStatusColumns = "id, bus_id, equipment_type, camera_channel, status, last_incident_id, updated_at"

// EquipmentStatusRepository stores one current-status row per equipment slot.
// A slot is (bus, equipment type, channel) where a missing channel counts as
// its own value.
type EquipmentStatusRepository struct {
	q         sqlx.ExtContext
	forUpdate bool
}

// NewEquipmentStatusRepository constructs an EquipmentStatusRepository.
func NewEquipmentStatusRepository(q sqlx.ExtContext) *EquipmentStatusRepository {
	return &EquipmentStatusRepository{q: q}
}

// Find fetches the row for one slot. Inside a transaction the row is locked.
func (r *EquipmentStatusRepository) Find(ctx context.Context, busID string, equipment models.EquipmentType, channel *models.CameraChannel) (*models.EquipmentStatus, error) {
	query := "SELECT " + equipmentStatusColumns + ` FROM equipment_status
        WHERE bus_id = $1 AND equipment_type = $2 AND COALESCE(camera_channel, '') = $3`
	if r.forUpdate {
		query += " FOR UPDATE"
	}
	var status models.EquipmentStatus
	if err := sqlx.GetContext(ctx, r.q, &status, query, busID, equipment, channelKey(channel)); err != nil {
		return nil, err
	}
	return &status, nil
}

// Upsert writes the slot row, keeping the previous last incident when none is given.
func (r *EquipmentStatusRepository) Upsert(ctx context.Context, status *models.EquipmentStatus) error {
	if status.ID == "" {
		status.ID = uuid.NewString()
	}
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO equipment_status (id, bus_id, equipment_type, camera_channel, status, last_incident_id, updated_at)
        VALUES (:id, :bus_id, :equipment_type, :camera_channel, :status, :last_incident_id, :updated_at)
        ON CONFLICT (bus_id, equipment_type, (COALESCE(camera_channel, '')))
        DO UPDATE SET status = EXCLUDED.status,
                      last_incident_id = COALESCE(EXCLUDED.last_incident_id, equipment_status.last_incident_id),
                      updated_at = EXCLUDED.updated_at
        RETURNING id, last_incident_id`
	rows, err := sqlx.NamedQueryContext(ctx, r.q, query, status)
	if err != nil {
		return fmt.Errorf("upsert equipment status: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&status.ID, &status.LastIncidentID); err != nil {
			return fmt.Errorf("scan equipment status: %w", err)
		}
	}
	return rows.Err()
}

// ListByEquipment returns every slot row for one equipment type.
func (r *EquipmentStatusRepository) ListByEquipment(ctx context.Context, equipment models.EquipmentType) ([]models.EquipmentStatus, error) {
	statuses := make([]models.EquipmentStatus, 0)
	query := "SELECT " + equipmentStatusColumns + " FROM equipment_status WHERE equipment_type = $1 ORDER BY bus_id, camera_channel"
	if err := sqlx.SelectContext(ctx, r.q, &statuses, query, equipment); err != nil {
		return nil, fmt.Errorf("list equipment status: %w", err)
	}
	return statuses, nil
}

func channelKey(channel *models.CameraChannel) string {
	if channel == nil {
		return ""
	}
	return string(*channel)
}
