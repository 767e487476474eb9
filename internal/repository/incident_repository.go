package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fleet-ops-api/internal/models"
)

const incidentColumns = `id, bus_id, equipment_type, incident_type, camera_channel, status, description,
        resolution_notes, reported_by, reported_at, resolved_at, updated_at`

// IncidentRepository manages persistence for incident history.
type IncidentRepository struct {
	q sqlx.ExtContext
}

// NewIncidentRepository constructs an IncidentRepository.
func NewIncidentRepository(q sqlx.ExtContext) *IncidentRepository {
	return &IncidentRepository{q: q}
}

// Create inserts one incident row.
func (r *IncidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	if incident.ID == "" {
		incident.ID = uuid.NewString()
	}
	if incident.ReportedAt.IsZero() {
		incident.ReportedAt = time.Now().UTC()
	}
	if incident.UpdatedAt.IsZero() {
		incident.UpdatedAt = incident.ReportedAt
	}
	const query = `INSERT INTO incidents (id, bus_id, equipment_type, incident_type, camera_channel, status, description,
        resolution_notes, reported_by, reported_at, resolved_at, updated_at)
        VALUES (:id, :bus_id, :equipment_type, :incident_type, :camera_channel, :status, :description,
        :resolution_notes, :reported_by, :reported_at, :resolved_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, incident); err != nil {
		return fmt.Errorf("create incident: %w", err)
	}
	return nil
}

// GetByID fetches an incident by ID.
func (r *IncidentRepository) GetByID(ctx context.Context, id string) (*models.Incident, error) {
	var incident models.Incident
	if err := sqlx.GetContext(ctx, r.q, &incident, "SELECT "+incidentColumns+" FROM incidents WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &incident, nil
}

// UpdateStatus persists the lifecycle fields of an incident.
func (r *IncidentRepository) UpdateStatus(ctx context.Context, incident *models.Incident) error {
	const query = `UPDATE incidents SET status = :status, resolution_notes = :resolution_notes,
        resolved_at = :resolved_at, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, incident); err != nil {
		return fmt.Errorf("update incident status: %w", err)
	}
	return nil
}

// List returns incidents matching filter, newest first.
func (r *IncidentRepository) List(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, error) {
	where, args := incidentConditions(filter)
	query := fmt.Sprintf("SELECT %s FROM incidents WHERE %s ORDER BY reported_at DESC, id ASC", incidentColumns, where)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	incidents := make([]models.Incident, 0)
	if err := sqlx.SelectContext(ctx, r.q, &incidents, query, args...); err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	return incidents, nil
}

// Count returns how many incidents match filter. Limit is ignored.
func (r *IncidentRepository) Count(ctx context.Context, filter models.IncidentFilter) (int, error) {
	where, args := incidentConditions(filter)
	var total int
	if err := sqlx.GetContext(ctx, r.q, &total, "SELECT COUNT(*) FROM incidents WHERE "+where, args...); err != nil {
		return 0, fmt.Errorf("count incidents: %w", err)
	}
	return total, nil
}

// Delete removes one incident row.
func (r *IncidentRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.q.ExecContext(ctx, "DELETE FROM incidents WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete incident: %w", err)
	}
	return affected("delete incident", res)
}

func incidentConditions(filter models.IncidentFilter) (string, []interface{}) {
	conditions := []string{"1=1"}
	var args []interface{}
	add := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.ExcludeStatus != nil {
		add("status <> $%d", *filter.ExcludeStatus)
	}
	if filter.EquipmentType != nil {
		add("equipment_type = $%d", *filter.EquipmentType)
	}
	if filter.BusID != "" {
		add("bus_id = $%d", filter.BusID)
	}
	if filter.ReportedFrom != nil {
		add("reported_at >= $%d", *filter.ReportedFrom)
	}
	if filter.ReportedTo != nil {
		add("reported_at <= $%d", *filter.ReportedTo)
	}
	if filter.ResolvedFrom != nil {
		add("resolved_at >= $%d", *filter.ResolvedFrom)
	}
	if filter.ResolvedTo != nil {
		add("resolved_at <= $%d", *filter.ResolvedTo)
	}
	return strings.Join(conditions, " AND "), args
}
