package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushub/activity-attendance-api/internal/models"
	"github.com/campushub/activity-attendance-api/internal/service"
	appErrors "github.com/campushub/activity-attendance-api/pkg/errors"
	"github.com/campushub/activity-attendance-api/pkg/response"
)

// RegistrationHandler exposes registration endpoints.
type RegistrationHandler struct {
	service *service.RegistrationService
}

// NewRegistrationHandler creates a new handler.
func NewRegistrationHandler(svc *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{service: svc}
}

// Register godoc
// @Summary Register for an activity
// @Tags Registrations
// @Produce json
// @Param id path int true "Activity ID"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /activities/{id}/register [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	activityID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	registration, err := h.service.Register(c.Request.Context(), activityID, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, registration)
}

// Cancel godoc
// @Summary Cancel own registration
// @Tags Registrations
// @Produce json
// @Param id path int true "Activity ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /activities/{id}/register [delete]
func (h *RegistrationHandler) Cancel(c *gin.Context) {
	activityID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	registration, err := h.service.Cancel(c.Request.Context(), activityID, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, registration, nil)
}

// Mine godoc
// @Summary List own registrations
// @Tags Registrations
// @Produce json
// @Param status query string false "ACTIVE or CANCELLED"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /registrations/my [get]
func (h *RegistrationHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter, err := parseRegistrationFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.UserID = claims.UserID

	records, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, pagination)
}

// ListByActivity godoc
// @Summary List registrations for an activity
// @Tags Registrations
// @Produce json
// @Param id path int true "Activity ID"
// @Param status query string false "ACTIVE or CANCELLED"
// @Param search query string false "Participant name or email search"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /activities/{id}/registrations [get]
func (h *RegistrationHandler) ListByActivity(c *gin.Context) {
	activityID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	filter, err := parseRegistrationFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.ActivityID = activityID
	filter.Search = c.Query("search")

	records, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, pagination)
}

// Stats godoc
// @Summary Registration statistics for an activity
// @Tags Registrations
// @Produce json
// @Param id path int true "Activity ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /activities/{id}/registrations/stats [get]
func (h *RegistrationHandler) Stats(c *gin.Context) {
	activityID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), activityID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}

// ExportCSV godoc
// @Summary Export activity registrations as CSV
// @Tags Registrations
// @Produce text/csv
// @Param id path int true "Activity ID"
// @Success 200 {string} string "CSV file"
// @Security BearerAuth
// @Router /activities/{id}/registrations/export [get]
func (h *RegistrationHandler) ExportCSV(c *gin.Context) {
	activityID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	data, err := h.service.ExportCSV(c.Request.Context(), activityID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"registrations-%d.csv\"", activityID))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

func parseRegistrationFilter(c *gin.Context) (models.RegistrationFilter, error) {
	var filter models.RegistrationFilter
	filter.Page, filter.PageSize = parsePageQuery(c)

	if raw := c.Query("status"); raw != "" {
		status := models.RegistrationStatus(raw)
		if status != models.RegistrationActive && status != models.RegistrationCancelled {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
		}
		filter.Status = &status
	}
	return filter, nil
}
