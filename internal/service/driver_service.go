package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/internal/repository"
	appErrors "github.com/noah-isme/fleet-ops-api/pkg/errors"
)

// CreateDriverRequest is the payload for registering a driver.
type CreateDriverRequest struct {
	FullName string  `json:"fullName" validate:"required,max=120"`
	RUT      *string `json:"rut" validate:"omitempty,max=16"`
	Phone    *string `json:"phone" validate:"omitempty,max=32"`
}

// AssignDriverRequest links a driver to a bus.
type AssignDriverRequest struct {
	DriverID string            `json:"driverId" validate:"required"`
	Role     models.DriverRole `json:"role" validate:"required,oneof=titular relevo"`
}

// DriverService manages drivers and their bus assignments.
type DriverService struct {
	store     repository.Store
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewDriverService constructs the driver service.
func NewDriverService(store repository.Store, validate *validator.Validate, logger *zap.Logger) *DriverService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DriverService{store: store, validator: validate, logger: logger, now: time.Now}
}

// Create registers a driver.
func (s *DriverService) Create(ctx context.Context, req CreateDriverRequest) (*models.Driver, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid driver payload")
	}
	driver := &models.Driver{
		FullName:  req.FullName,
		RUT:       trimOptional(req.RUT),
		Phone:     trimOptional(req.Phone),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Drivers().Create(ctx, driver); err != nil {
		return nil, internalError(err, "failed to create driver")
	}
	return driver, nil
}

// Get returns one driver.
func (s *DriverService) Get(ctx context.Context, id string) (*models.Driver, error) {
	driver, err := s.store.Drivers().GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "driver not found", "failed to load driver")
	}
	return driver, nil
}

// List returns every driver ordered by name.
func (s *DriverService) List(ctx context.Context) ([]models.Driver, error) {
	drivers, err := s.store.Drivers().List(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list drivers")
	}
	return drivers, nil
}

// Delete removes a driver. Linked documents keep their bus and lose the driver.
func (s *DriverService) Delete(ctx context.Context, id string) error {
	deleted, err := s.store.Drivers().Delete(ctx, id)
	if err != nil {
		return internalError(err, "failed to delete driver")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "driver not found")
	}
	return nil
}

// Assign links a driver to a bus, replacing the role if already linked.
func (s *DriverService) Assign(ctx context.Context, busID string, req AssignDriverRequest) (*models.BusDriver, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid assignment payload")
	}

	assignment := &models.BusDriver{BusID: busID, DriverID: req.DriverID, Role: req.Role, AssignedAt: s.now().UTC()}
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Buses().GetByID(ctx, busID); err != nil {
			return notFoundOr(err, "bus not found", "failed to load bus")
		}
		if _, err := tx.Drivers().GetByID(ctx, req.DriverID); err != nil {
			return notFoundOr(err, "driver not found", "failed to load driver")
		}
		if err := tx.Drivers().Assign(ctx, assignment); err != nil {
			return internalError(err, "failed to assign driver")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("driver assigned", zap.String("bus_id", busID), zap.String("driver_id", req.DriverID), zap.String("role", string(req.Role)))
	return assignment, nil
}

// Unassign removes a driver from a bus.
func (s *DriverService) Unassign(ctx context.Context, busID, driverID string) error {
	removed, err := s.store.Drivers().Unassign(ctx, busID, driverID)
	if err != nil {
		return internalError(err, "failed to unassign driver")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
	}
	return nil
}

// ListByBus returns the drivers of one bus, titular first.
func (s *DriverService) ListByBus(ctx context.Context, busID string) ([]models.BusDriverDetail, error) {
	if _, err := s.store.Buses().GetByID(ctx, busID); err != nil {
		return nil, notFoundOr(err, "bus not found", "failed to load bus")
	}
	details, err := s.store.Drivers().ListByBus(ctx, busID)
	if err != nil {
		return nil, internalError(err, "failed to list bus drivers")
	}
	return details, nil
}
