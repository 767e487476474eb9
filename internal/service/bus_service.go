package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fleet-ops-api/internal/dto"
	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/internal/repository"
	appErrors "github.com/noah-isme/fleet-ops-api/pkg/errors"
	"github.com/noah-isme/fleet-ops-api/pkg/importer"
)

// CreateBusRequest is the payload for registering a bus.
type CreateBusRequest struct {
	BusNumber string  `json:"busNumber" validate:"required,max=32"`
	Plate     *string `json:"plate" validate:"omitempty,max=16"`
}

// UpdateBusRequest is the payload for editing a bus.
type UpdateBusRequest struct {
	BusNumber string  `json:"busNumber" validate:"required,max=32"`
	Plate     *string `json:"plate" validate:"omitempty,max=16"`
}

// BusService manages the fleet roster and its camera projection seed.
type BusService struct {
	store     repository.Store
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewBusService constructs the bus service.
func NewBusService(store repository.Store, validate *validator.Validate, logger *zap.Logger) *BusService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BusService{store: store, validator: validate, logger: logger, now: time.Now}
}

// Create registers a bus and seeds ch1..ch4 as operational in one transaction.
func (s *BusService) Create(ctx context.Context, req CreateBusRequest) (*models.Bus, error) {
	req.BusNumber = strings.TrimSpace(req.BusNumber)
	req.Plate = trimOptional(req.Plate)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid bus payload")
	}

	bus := &models.Bus{BusNumber: req.BusNumber, Plate: req.Plate}
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		return s.createSeeded(ctx, tx, bus)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("bus created", zap.String("bus_id", bus.ID), zap.String("bus_number", bus.BusNumber))
	return bus, nil
}

func (s *BusService) createSeeded(ctx context.Context, tx repository.Store, bus *models.Bus) error {
	if _, err := tx.Buses().GetByNumber(ctx, bus.BusNumber); err == nil {
		return appErrors.Clone(appErrors.ErrConflict, "bus number already registered")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return internalError(err, "failed to check bus number")
	}

	now := s.now().UTC()
	bus.CreatedAt = now
	if err := tx.Buses().Create(ctx, bus); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return appErrors.Clone(appErrors.ErrConflict, "bus number already registered")
		}
		return internalError(err, "failed to create bus")
	}

	for _, ch := range models.CameraChannels {
		channel := ch
		status := &models.EquipmentStatus{
			BusID:         bus.ID,
			EquipmentType: models.EquipmentCamera,
			CameraChannel: &channel,
			Status:        models.StatusOperational,
			UpdatedAt:     now,
		}
		if err := tx.EquipmentStatuses().Upsert(ctx, status); err != nil {
			return internalError(err, "failed to seed camera status")
		}
	}
	return nil
}

// Get returns one bus.
func (s *BusService) Get(ctx context.Context, id string) (*models.Bus, error) {
	bus, err := s.store.Buses().GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "bus not found", "failed to load bus")
	}
	return bus, nil
}

// List returns the fleet ordered by numeric bus number.
func (s *BusService) List(ctx context.Context) ([]models.Bus, error) {
	buses, err := s.store.Buses().List(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list buses")
	}
	return buses, nil
}

// Update changes number and plate. The number stays unique.
func (s *BusService) Update(ctx context.Context, id string, req UpdateBusRequest) (*models.Bus, error) {
	req.BusNumber = strings.TrimSpace(req.BusNumber)
	req.Plate = trimOptional(req.Plate)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid bus payload")
	}

	var updated *models.Bus
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		bus, err := tx.Buses().GetByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "bus not found", "failed to load bus")
		}
		if req.BusNumber != bus.BusNumber {
			existing, err := tx.Buses().GetByNumber(ctx, req.BusNumber)
			if err == nil && existing.ID != id {
				return appErrors.Clone(appErrors.ErrConflict, "bus number already registered")
			}
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return internalError(err, "failed to check bus number")
			}
		}
		bus.BusNumber = req.BusNumber
		bus.Plate = req.Plate
		if err := tx.Buses().Update(ctx, bus); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrConflict, "bus number already registered")
			}
			return internalError(err, "failed to update bus")
		}
		updated = bus
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a bus with its documents, status rows, assignments and incidents.
func (s *BusService) Delete(ctx context.Context, id string) error {
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		deleted, err := tx.Buses().Delete(ctx, id)
		if err != nil {
			return internalError(err, "failed to delete bus")
		}
		if !deleted {
			return appErrors.Clone(appErrors.ErrNotFound, "bus not found")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("bus deleted", zap.String("bus_id", id))
	return nil
}

// Import creates every row whose bus number is new. Rows repeating a number
// already present, or already seen earlier in the batch, are skipped.
func (s *BusService) Import(ctx context.Context, rows []importer.BusRow) (*dto.BusImportResult, error) {
	result := &dto.BusImportResult{Created: []models.Bus{}, Skipped: []string{}, Errors: []dto.ImportRowError{}}
	seen := make(map[string]struct{}, len(rows))

	for _, row := range rows {
		number := strings.TrimSpace(row.BusNumber)
		if number == "" {
			result.Errors = append(result.Errors, dto.ImportRowError{Line: row.Line, Message: "bus number is required"})
			continue
		}
		if _, dup := seen[number]; dup {
			result.Skipped = append(result.Skipped, number)
			continue
		}
		seen[number] = struct{}{}

		bus := &models.Bus{BusNumber: number, Plate: trimOptional(strPtr(row.Plate))}
		if err := s.validator.Struct(CreateBusRequest{BusNumber: bus.BusNumber, Plate: bus.Plate}); err != nil {
			result.Errors = append(result.Errors, dto.ImportRowError{Line: row.Line, Message: "invalid bus number or plate"})
			continue
		}
		err := s.store.WithinTx(ctx, func(tx repository.Store) error {
			return s.createSeeded(ctx, tx, bus)
		})
		switch {
		case err == nil:
			result.Created = append(result.Created, *bus)
		case appErrors.Is(err, appErrors.ErrConflict):
			result.Skipped = append(result.Skipped, number)
		case ctx.Err() != nil:
			return nil, internalError(ctx.Err(), "bus import cancelled")
		default:
			s.logger.Warn("bus import row failed", zap.Int("line", row.Line), zap.Error(err))
			result.Errors = append(result.Errors, dto.ImportRowError{Line: row.Line, Message: "failed to create bus"})
		}
	}

	s.logger.Info("bus import finished",
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

// ImportExcel parses the first sheet of an .xlsx workbook and imports it.
func (s *BusService) ImportExcel(ctx context.Context, r io.Reader) (*dto.BusImportResult, error) {
	rows, err := importer.ParseBusSheet(r)
	if err != nil {
		return nil, validationError(err, "invalid bus spreadsheet")
	}
	return s.Import(ctx, rows)
}

// CameraStatus returns every bus with exactly four channel entries in
// channel order. Channels without a row report operational.
func (s *BusService) CameraStatus(ctx context.Context) ([]dto.BusCameraStatus, error) {
	buses, err := s.store.Buses().List(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list buses")
	}
	rows, err := s.store.EquipmentStatuses().ListByEquipment(ctx, models.EquipmentCamera)
	if err != nil {
		return nil, internalError(err, "failed to load camera status")
	}

	byBus := make(map[string]map[models.CameraChannel]models.OperationalStatus, len(buses))
	for _, row := range rows {
		if row.CameraChannel == nil {
			continue
		}
		m, ok := byBus[row.BusID]
		if !ok {
			m = make(map[models.CameraChannel]models.OperationalStatus, len(models.CameraChannels))
			byBus[row.BusID] = m
		}
		m[*row.CameraChannel] = row.Status
	}

	out := make([]dto.BusCameraStatus, 0, len(buses))
	for _, bus := range buses {
		entry := dto.BusCameraStatus{
			BusID:     bus.ID,
			BusNumber: bus.BusNumber,
			Plate:     bus.Plate,
			Cameras:   make([]dto.CameraChannelStatus, 0, len(models.CameraChannels)),
		}
		for _, ch := range models.CameraChannels {
			status, ok := byBus[bus.ID][ch]
			if !ok {
				status = models.StatusOperational
			}
			entry.Cameras = append(entry.Cameras, dto.CameraChannelStatus{Channel: ch, Status: status})
		}
		out = append(out, entry)
	}
	return out, nil
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
