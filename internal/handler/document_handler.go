package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/internal/service"
	"github.com/noah-isme/fleet-ops-api/pkg/response"
)

type documentService interface {
	Register(ctx context.Context, req service.RegisterDocumentRequest) (*models.BusDocument, error)
	ListByBus(ctx context.Context, busID string) ([]models.BusDocument, error)
	Delete(ctx context.Context, id string) error
}

type expiryService interface {
	Expiring(ctx context.Context) ([]models.ExpiringDocument, error)
}

// DocumentHandler exposes document metadata and the expiry list.
type DocumentHandler struct {
	documents documentService
	expiry    expiryService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(documents documentService, expiry expiryService) *DocumentHandler {
	return &DocumentHandler{documents: documents, expiry: expiry}
}

// Register godoc
// @Summary Register document
// @Description Stores metadata for a file kept in external storage
// @Tags Documents
// @Accept json
// @Produce json
// @Param payload body service.RegisterDocumentRequest true "Document payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /documents [post]
func (h *DocumentHandler) Register(c *gin.Context) {
	var req service.RegisterDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid document payload"))
		return
	}
	doc, err := h.documents.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// ListByBus godoc
// @Summary Documents of a bus
// @Tags Documents
// @Produce json
// @Param id path string true "Bus ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /buses/{id}/documents [get]
func (h *DocumentHandler) ListByBus(c *gin.Context) {
	docs, err := h.documents.ListByBus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Delete godoc
// @Summary Delete document
// @Tags Documents
// @Param id path string true "Document ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Expiring godoc
// @Summary Documents about to expire
// @Description Documents inside their alert window, most urgent first
// @Tags Documents
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /documents/expiring [get]
func (h *DocumentHandler) Expiring(c *gin.Context) {
	docs, err := h.expiry.Expiring(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil, map[string]interface{}{"count": len(docs)})
}
