package handler

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fleet-ops-api/internal/dto"
	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/internal/service"
	appErrors "github.com/noah-isme/fleet-ops-api/pkg/errors"
	"github.com/noah-isme/fleet-ops-api/pkg/response"
)

const maxImportSize = 5 << 20

type busService interface {
	Create(ctx context.Context, req service.CreateBusRequest) (*models.Bus, error)
	Get(ctx context.Context, id string) (*models.Bus, error)
	List(ctx context.Context) ([]models.Bus, error)
	Update(ctx context.Context, id string, req service.UpdateBusRequest) (*models.Bus, error)
	Delete(ctx context.Context, id string) error
	ImportExcel(ctx context.Context, r io.Reader) (*dto.BusImportResult, error)
	CameraStatus(ctx context.Context) ([]dto.BusCameraStatus, error)
}

// BusHandler exposes the fleet roster.
type BusHandler struct {
	service busService
}

// NewBusHandler constructs the handler.
func NewBusHandler(service busService) *BusHandler {
	return &BusHandler{service: service}
}

// List godoc
// @Summary List buses
// @Description Buses ordered numerically by bus number
// @Tags Buses
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /buses [get]
func (h *BusHandler) List(c *gin.Context) {
	buses, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, buses, nil)
}

// Get godoc
// @Summary Get bus
// @Tags Buses
// @Produce json
// @Param id path string true "Bus ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /buses/{id} [get]
func (h *BusHandler) Get(c *gin.Context) {
	bus, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bus, nil)
}

// Create godoc
// @Summary Register bus
// @Description Creates the bus and seeds its four camera channels as operational
// @Tags Buses
// @Accept json
// @Produce json
// @Param payload body service.CreateBusRequest true "Bus payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /buses [post]
func (h *BusHandler) Create(c *gin.Context) {
	var req service.CreateBusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid bus payload"))
		return
	}
	bus, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, bus)
}

// Update godoc
// @Summary Update bus
// @Tags Buses
// @Accept json
// @Produce json
// @Param id path string true "Bus ID"
// @Param payload body service.UpdateBusRequest true "Bus payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /buses/{id} [put]
func (h *BusHandler) Update(c *gin.Context) {
	var req service.UpdateBusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid bus payload"))
		return
	}
	bus, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bus, nil)
}

// Delete godoc
// @Summary Delete bus
// @Description Removes the bus with its documents, camera status, driver links and incidents
// @Tags Buses
// @Param id path string true "Bus ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /buses/{id} [delete]
func (h *BusHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Import godoc
// @Summary Bulk import buses
// @Description Reads bus_number and plate columns from the first sheet of an .xlsx upload
// @Tags Buses
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Workbook"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /buses/import [post]
func (h *BusHandler) Import(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, bindError(err, "file is required"))
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "only .xlsx workbooks are accepted"))
		return
	}
	if header.Size > maxImportSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "workbook too large"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, bindError(err, "unable to read upload"))
		return
	}
	defer file.Close()

	result, err := h.service.ImportExcel(c.Request.Context(), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// CameraStatus godoc
// @Summary Camera status board
// @Description Every bus with the status of camera channels ch1..ch4
// @Tags Equipment
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /equipment/cameras [get]
func (h *BusHandler) CameraStatus(c *gin.Context) {
	status, err := h.service.CameraStatus(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
