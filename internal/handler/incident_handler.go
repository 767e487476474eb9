package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fleet-ops-api/internal/middleware"
	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/internal/service"
	"github.com/noah-isme/fleet-ops-api/pkg/response"
)

type incidentService interface {
	Create(ctx context.Context, req service.CreateIncidentRequest) ([]models.Incident, error)
	Get(ctx context.Context, id string) (*models.Incident, error)
	List(ctx context.Context, query service.ListIncidentsQuery) ([]models.Incident, error)
	UpdateStatus(ctx context.Context, id string, req service.UpdateIncidentStatusRequest) (*models.Incident, error)
	Delete(ctx context.Context, id string) error
}

// IncidentHandler exposes incident history and lifecycle.
type IncidentHandler struct {
	service incidentService
}

// NewIncidentHandler constructs the handler.
func NewIncidentHandler(service incidentService) *IncidentHandler {
	return &IncidentHandler{service: service}
}

// List godoc
// @Summary List incidents
// @Description Newest first. Limit defaults to 100 and is capped at 500.
// @Tags Incidents
// @Produce json
// @Param status query string false "pending | in_progress | resolved"
// @Param equipmentType query string false "camera | dvr | gps | hard_drive | cable"
// @Param busId query string false "Bus ID"
// @Param limit query int false "Maximum rows"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /incidents [get]
func (h *IncidentHandler) List(c *gin.Context) {
	var query service.ListIncidentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid incident filter"))
		return
	}
	incidents, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, incidents, nil)
}

// Get godoc
// @Summary Get incident
// @Tags Incidents
// @Produce json
// @Param id path string true "Incident ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /incidents/{id} [get]
func (h *IncidentHandler) Get(c *gin.Context) {
	incident, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, incident, nil)
}

// Create godoc
// @Summary Report incident
// @Description Camera incidents fan out into one incident per selected channel
// @Tags Incidents
// @Accept json
// @Produce json
// @Param payload body service.CreateIncidentRequest true "Incident payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /incidents [post]
func (h *IncidentHandler) Create(c *gin.Context) {
	var req service.CreateIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid incident payload"))
		return
	}
	if req.ReportedBy == "" {
		if claims := middleware.Claims(c); claims != nil {
			req.ReportedBy = claims.Username
		}
	}
	incidents, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, incidents)
}

// UpdateStatus godoc
// @Summary Change incident status
// @Description Resolving stamps resolvedAt once and resets the camera channel to operational
// @Tags Incidents
// @Accept json
// @Produce json
// @Param id path string true "Incident ID"
// @Param payload body service.UpdateIncidentStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /incidents/{id}/status [patch]
func (h *IncidentHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateIncidentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid incident status payload"))
		return
	}
	incident, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, incident, nil)
}

// Delete godoc
// @Summary Delete incident
// @Tags Incidents
// @Param id path string true "Incident ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /incidents/{id} [delete]
func (h *IncidentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
