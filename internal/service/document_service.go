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

// RegisterDocumentRequest records metadata for a file stored elsewhere.
type RegisterDocumentRequest struct {
	BusID      string              `json:"busId" validate:"required"`
	DriverID   *string             `json:"driverId"`
	DocType    models.DocumentType `json:"docType" validate:"required,oneof=permiso_circulacion revision_tecnica chasis licencia_conducir cedula_conductor"`
	FileName   string              `json:"fileName" validate:"required,max=255"`
	StorageKey *string             `json:"storageKey" validate:"omitempty,max=512"`
	ExpiresAt  *time.Time          `json:"expiresAt"`
}

// DocumentService manages compliance document metadata.
type DocumentService struct {
	store     repository.Store
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewDocumentService constructs the document service.
func NewDocumentService(store repository.Store, validate *validator.Validate, logger *zap.Logger) *DocumentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{store: store, validator: validate, logger: logger, now: time.Now}
}

// Register stores a document record. Bus and optional driver must exist.
func (s *DocumentService) Register(ctx context.Context, req RegisterDocumentRequest) (*models.BusDocument, error) {
	req.FileName = strings.TrimSpace(req.FileName)
	req.DriverID = trimOptional(req.DriverID)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid document payload")
	}

	doc := &models.BusDocument{
		BusID:      req.BusID,
		DriverID:   req.DriverID,
		DocType:    req.DocType,
		FileName:   req.FileName,
		StorageKey: trimOptional(req.StorageKey),
		ExpiresAt:  req.ExpiresAt,
		UploadedAt: s.now().UTC(),
	}
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Buses().GetByID(ctx, req.BusID); err != nil {
			return notFoundOr(err, "bus not found", "failed to load bus")
		}
		if req.DriverID != nil {
			if _, err := tx.Drivers().GetByID(ctx, *req.DriverID); err != nil {
				return notFoundOr(err, "driver not found", "failed to load driver")
			}
		}
		if err := tx.Documents().Create(ctx, doc); err != nil {
			return internalError(err, "failed to register document")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("document registered", zap.String("document_id", doc.ID), zap.String("bus_id", doc.BusID), zap.String("doc_type", string(doc.DocType)))
	return doc, nil
}

// ListByBus returns one bus's documents.
func (s *DocumentService) ListByBus(ctx context.Context, busID string) ([]models.BusDocument, error) {
	if _, err := s.store.Buses().GetByID(ctx, busID); err != nil {
		return nil, notFoundOr(err, "bus not found", "failed to load bus")
	}
	docs, err := s.store.Documents().ListByBus(ctx, busID)
	if err != nil {
		return nil, internalError(err, "failed to list documents")
	}
	return docs, nil
}

// Delete removes a document record.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	deleted, err := s.store.Documents().Delete(ctx, id)
	if err != nil {
		return internalError(err, "failed to delete document")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	return nil
}
