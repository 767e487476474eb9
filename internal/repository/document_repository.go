package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fleet-ops-api/internal/models"
)

const documentColumns = "id, bus_id, driver_id, doc_type, file_name, storage_key, expires_at, uploaded_at"

// DocumentRepository manages compliance document metadata.
type DocumentRepository struct {
	q sqlx.ExtContext
}

// NewDocumentRepository constructs a DocumentRepository.
func NewDocumentRepository(q sqlx.ExtContext) *DocumentRepository {
	return &DocumentRepository{q: q}
}

// Create inserts a document record.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.BusDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO bus_documents (id, bus_id, driver_id, doc_type, file_name, storage_key, expires_at, uploaded_at)
        VALUES (:id, :bus_id, :driver_id, :doc_type, :file_name, :storage_key, :expires_at, :uploaded_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID fetches a document by ID.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.BusDocument, error) {
	var doc models.BusDocument
	if err := sqlx.GetContext(ctx, r.q, &doc, "SELECT "+documentColumns+" FROM bus_documents WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByBus returns a bus's documents, newest upload first.
func (r *DocumentRepository) ListByBus(ctx context.Context, busID string) ([]models.BusDocument, error) {
	docs := make([]models.BusDocument, 0)
	query := "SELECT " + documentColumns + " FROM bus_documents WHERE bus_id = $1 ORDER BY uploaded_at DESC, id ASC"
	if err := sqlx.SelectContext(ctx, r.q, &docs, query, busID); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// ListWithExpiry returns every document carrying an expiry date.
func (r *DocumentRepository) ListWithExpiry(ctx context.Context) ([]models.BusDocument, error) {
	docs := make([]models.BusDocument, 0)
	query := "SELECT " + documentColumns + " FROM bus_documents WHERE expires_at IS NOT NULL ORDER BY expires_at ASC, id ASC"
	if err := sqlx.SelectContext(ctx, r.q, &docs, query); err != nil {
		return nil, fmt.Errorf("list expiring documents: %w", err)
	}
	return docs, nil
}

// Delete removes a document record.
func (r *DocumentRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.q.ExecContext(ctx, "DELETE FROM bus_documents WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	return affected("delete document", res)
}
