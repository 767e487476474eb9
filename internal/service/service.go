package service

import (
	"errors"

	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/internal/repository"
	appErrors "github.com/noah-isme/fleet-ops-api/pkg/errors"
)

// incidentMetrics is the slice of MetricsService the incident flow reports to.
type incidentMetrics interface {
	IncidentsCreated(equipment models.EquipmentType, n int)
	IncidentResolved(equipment models.EquipmentType)
	LockContended()
}

type expiryMetrics interface {
	ExpiringDocuments(n int)
}

func internalError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func notFoundOr(err error, notFound, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return internalError(err, message)
}

func strPtr(s string) *string {
	return &s
}
