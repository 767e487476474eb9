package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/internal/repository"
	appErrors "github.com/noah-isme/fleet-ops-api/pkg/errors"
	"github.com/noah-isme/fleet-ops-api/pkg/lock"
)

const (
	defaultIncidentLimit = 100
	maxIncidentLimit     = 500
)

// CreateIncidentRequest reports a problem. For cameras each selected channel
// becomes its own incident.
type CreateIncidentRequest struct {
	BusID          string                 `json:"busId" validate:"required"`
	EquipmentType  models.EquipmentType   `json:"equipmentType" validate:"required,oneof=camera dvr gps hard_drive cable"`
	IncidentType   models.IncidentType    `json:"incidentType" validate:"required,oneof=misaligned loose_cable faulty replacement"`
	CameraChannels []models.CameraChannel `json:"cameraChannels" validate:"omitempty,dive,oneof=ch1 ch2 ch3 ch4"`
	Description    string                 `json:"description" validate:"max=2000"`
	ReportedBy     string                 `json:"reportedBy" validate:"max=120"`
}

// UpdateIncidentStatusRequest moves an incident through its lifecycle.
type UpdateIncidentStatusRequest struct {
	Status          models.IncidentStatus `json:"status" validate:"required,oneof=pending in_progress resolved"`
	ResolutionNotes *string               `json:"resolutionNotes" validate:"omitempty,max=2000"`
}

// ListIncidentsQuery filters incident listings.
type ListIncidentsQuery struct {
	Status        string `form:"status" validate:"omitempty,oneof=pending in_progress resolved"`
	EquipmentType string `form:"equipmentType" validate:"omitempty,oneof=camera dvr gps hard_drive cable"`
	BusID         string `form:"busId"`
	Limit         int    `form:"limit" validate:"omitempty,min=1"`
}

// IncidentService records incidents and keeps the camera projection in step.
// Writes touching a channel hold that channel's lock for the whole transaction.
type IncidentService struct {
	store     repository.Store
	locker    lock.Locker
	metrics   incidentMetrics
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewIncidentService constructs the incident service. A nil locker falls back
// to an in-process lock.
func NewIncidentService(store repository.Store, locker lock.Locker, metrics incidentMetrics, validate *validator.Validate, logger *zap.Logger) *IncidentService {
	if locker == nil {
		locker = lock.NewLocalLocker(3 * time.Second)
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IncidentService{store: store, locker: locker, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// Create persists one incident per distinct channel (or a single incident for
// non-camera equipment) and projects each camera incident onto its channel.
func (s *IncidentService) Create(ctx context.Context, req CreateIncidentRequest) ([]models.Incident, error) {
	req.Description = strings.TrimSpace(req.Description)
	req.ReportedBy = strings.TrimSpace(req.ReportedBy)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid incident payload")
	}

	var channels []*models.CameraChannel
	if req.EquipmentType == models.EquipmentCamera {
		for _, ch := range uniqueChannels(req.CameraChannels) {
			channel := ch
			channels = append(channels, &channel)
		}
	}
	if len(channels) == 0 {
		channels = []*models.CameraChannel{nil}
	}

	release, err := s.lockChannels(ctx, req.BusID, channels)
	if err != nil {
		return nil, err
	}
	defer release()

	now := s.now().UTC()
	created := make([]models.Incident, 0, len(channels))
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Buses().GetByID(ctx, req.BusID); err != nil {
			return notFoundOr(err, "bus not found", "failed to load bus")
		}
		for _, channel := range channels {
			incident := models.Incident{
				BusID:         req.BusID,
				EquipmentType: req.EquipmentType,
				IncidentType:  req.IncidentType,
				CameraChannel: channel,
				Status:        models.IncidentStatusPending,
				Description:   req.Description,
				ReportedBy:    req.ReportedBy,
				ReportedAt:    now,
				UpdatedAt:     now,
			}
			if err := tx.Incidents().Create(ctx, &incident); err != nil {
				return internalError(err, "failed to create incident")
			}
			if incident.IsCamera() {
				next := models.StatusForIncidentType(incident.IncidentType)
				if err := s.project(ctx, tx, incident, next, &incident.ID, now); err != nil {
					return err
				}
			}
			created = append(created, incident)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncidentsCreated(req.EquipmentType, len(created))
	}
	s.logger.Info("incident reported",
		zap.String("bus_id", req.BusID),
		zap.String("equipment_type", string(req.EquipmentType)),
		zap.String("incident_type", string(req.IncidentType)),
		zap.Int("rows", len(created)))
	return created, nil
}

// UpdateStatus changes an incident's status. The first transition into
// resolved stamps resolvedAt and resets the camera channel to operational;
// later resolutions leave both untouched.
func (s *IncidentService) UpdateStatus(ctx context.Context, id string, req UpdateIncidentStatusRequest) (*models.Incident, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid incident status payload")
	}

	current, err := s.store.Incidents().GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "incident not found", "failed to load incident")
	}

	release, err := s.lockChannels(ctx, current.BusID, []*models.CameraChannel{current.CameraChannel})
	if err != nil {
		return nil, err
	}
	defer release()

	now := s.now().UTC()
	var (
		updated       models.Incident
		firstResolved bool
	)
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		incident, err := tx.Incidents().GetByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "incident not found", "failed to load incident")
		}

		incident.Status = req.Status
		if req.ResolutionNotes != nil {
			incident.ResolutionNotes = trimOptional(req.ResolutionNotes)
		}
		incident.UpdatedAt = now
		if req.Status == models.IncidentStatusResolved && incident.ResolvedAt == nil {
			resolvedAt := now
			incident.ResolvedAt = &resolvedAt
			firstResolved = true
		}
		if err := tx.Incidents().UpdateStatus(ctx, incident); err != nil {
			return internalError(err, "failed to update incident")
		}

		if firstResolved && incident.IsCamera() {
			if err := s.project(ctx, tx, *incident, models.StatusOperational, nil, now); err != nil {
				return err
			}
		}
		updated = *incident
		return nil
	})
	if err != nil {
		return nil, err
	}

	if firstResolved {
		if s.metrics != nil {
			s.metrics.IncidentResolved(updated.EquipmentType)
		}
		s.logger.Info("incident resolved", zap.String("incident_id", id), zap.String("bus_id", updated.BusID))
	}
	return &updated, nil
}

// project writes the channel row when it exists. A missing row is tolerated.
// A nil lastIncidentID keeps the stored back-reference.
func (s *IncidentService) project(ctx context.Context, tx repository.Store, incident models.Incident, next models.OperationalStatus, lastIncidentID *string, now time.Time) error {
	row, err := tx.EquipmentStatuses().Find(ctx, incident.BusID, incident.EquipmentType, incident.CameraChannel)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("equipment status row missing, projection skipped",
				zap.String("bus_id", incident.BusID),
				zap.String("channel", string(*incident.CameraChannel)),
				zap.String("incident_id", incident.ID))
			return nil
		}
		return internalError(err, "failed to load equipment status")
	}

	row.Status = next
	if lastIncidentID != nil {
		row.LastIncidentID = lastIncidentID
	}
	row.UpdatedAt = now
	if err := tx.EquipmentStatuses().Upsert(ctx, row); err != nil {
		return internalError(err, "failed to update equipment status")
	}
	return nil
}

func (s *IncidentService) lockChannels(ctx context.Context, busID string, channels []*models.CameraChannel) (lock.Release, error) {
	keys := make([]string, 0, len(channels))
	for _, ch := range channels {
		if ch != nil {
			keys = append(keys, lock.SlotKey(busID, string(*ch)))
		}
	}
	if len(keys) == 0 {
		return func() {}, nil
	}
	release, err := lock.AcquireAll(ctx, s.locker, keys)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			if s.metrics != nil {
				s.metrics.LockContended()
			}
			return nil, appErrors.Clone(appErrors.ErrLockUnavailable, "")
		}
		return nil, internalError(err, "failed to lock equipment channel")
	}
	return release, nil
}

// Get returns one incident.
func (s *IncidentService) Get(ctx context.Context, id string) (*models.Incident, error) {
	incident, err := s.store.Incidents().GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "incident not found", "failed to load incident")
	}
	return incident, nil
}

// List returns incidents newest first. Limit defaults to 100 and is capped at 500.
func (s *IncidentService) List(ctx context.Context, query ListIncidentsQuery) ([]models.Incident, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, validationError(err, "invalid incident filter")
	}
	filter := models.IncidentFilter{BusID: query.BusID, Limit: query.Limit}
	if query.Status != "" {
		status := models.IncidentStatus(query.Status)
		filter.Status = &status
	}
	if query.EquipmentType != "" {
		equipment := models.EquipmentType(query.EquipmentType)
		filter.EquipmentType = &equipment
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultIncidentLimit
	case filter.Limit > maxIncidentLimit:
		filter.Limit = maxIncidentLimit
	}

	incidents, err := s.store.Incidents().List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list incidents")
	}
	return incidents, nil
}

// Delete removes an incident from history. The projection is not recomputed.
func (s *IncidentService) Delete(ctx context.Context, id string) error {
	deleted, err := s.store.Incidents().Delete(ctx, id)
	if err != nil {
		return internalError(err, "failed to delete incident")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "incident not found")
	}
	return nil
}

func uniqueChannels(channels []models.CameraChannel) []models.CameraChannel {
	seen := make(map[models.CameraChannel]struct{}, len(channels))
	out := make([]models.CameraChannel, 0, len(channels))
	for _, ch := range channels {
		if _, ok := seen[ch]; ok {
			continue
		}
		seen[ch] = struct{}{}
		out = append(out, ch)
	}
	return out
}
