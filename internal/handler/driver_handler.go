package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/internal/service"
	"github.com/noah-isme/fleet-ops-api/pkg/response"
)

type driverService interface {
	Create(ctx context.Context, req service.CreateDriverRequest) (*models.Driver, error)
	Get(ctx context.Context, id string) (*models.Driver, error)
	List(ctx context.Context) ([]models.Driver, error)
	Delete(ctx context.Context, id string) error
	Assign(ctx context.Context, busID string, req service.AssignDriverRequest) (*models.BusDriver, error)
	Unassign(ctx context.Context, busID, driverID string) error
	ListByBus(ctx context.Context, busID string) ([]models.BusDriverDetail, error)
}

// DriverHandler exposes drivers and bus assignments.
type DriverHandler struct {
	service driverService
}

// NewDriverHandler constructs the handler.
func NewDriverHandler(service driverService) *DriverHandler {
	return &DriverHandler{service: service}
}

// List godoc
// @Summary List drivers
// @Tags Drivers
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /drivers [get]
func (h *DriverHandler) List(c *gin.Context) {
	drivers, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, drivers, nil)
}

// Get godoc
// @Summary Get driver
// @Tags Drivers
// @Produce json
// @Param id path string true "Driver ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /drivers/{id} [get]
func (h *DriverHandler) Get(c *gin.Context) {
	driver, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, driver, nil)
}

// Create godoc
// @Summary Register driver
// @Tags Drivers
// @Accept json
// @Produce json
// @Param payload body service.CreateDriverRequest true "Driver payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /drivers [post]
func (h *DriverHandler) Create(c *gin.Context) {
	var req service.CreateDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid driver payload"))
		return
	}
	driver, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, driver)
}

// Delete godoc
// @Summary Delete driver
// @Tags Drivers
// @Param id path string true "Driver ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /drivers/{id} [delete]
func (h *DriverHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListByBus godoc
// @Summary Drivers of a bus
// @Tags Drivers
// @Produce json
// @Param id path string true "Bus ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /buses/{id}/drivers [get]
func (h *DriverHandler) ListByBus(c *gin.Context) {
	drivers, err := h.service.ListByBus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, drivers, nil)
}

// Assign godoc
// @Summary Assign driver to bus
// @Tags Drivers
// @Accept json
// @Produce json
// @Param id path string true "Bus ID"
// @Param payload body service.AssignDriverRequest true "Assignment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /buses/{id}/drivers [post]
func (h *DriverHandler) Assign(c *gin.Context) {
	var req service.AssignDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid assignment payload"))
		return
	}
	assignment, err := h.service.Assign(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Unassign godoc
// @Summary Remove driver from bus
// @Tags Drivers
// @Param id path string true "Bus ID"
// @Param driverId path string true "Driver ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /buses/{id}/drivers/{driverId} [delete]
func (h *DriverHandler) Unassign(c *gin.Context) {
	if err := h.service.Unassign(c.Request.Context(), c.Param("id"), c.Param("driverId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
