package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campushub/activity-attendance-api/internal/models"
	"github.com/campushub/activity-attendance-api/internal/service"
	appErrors "github.com/campushub/activity-attendance-api/pkg/errors"
	"github.com/campushub/activity-attendance-api/pkg/response"
)

// ActivityHandler exposes activity CRUD, lifecycle and QR endpoints.
type ActivityHandler struct {
	service *service.ActivityService
}

// NewActivityHandler creates a new handler.
func NewActivityHandler(svc *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{service: svc}
}

// Create godoc
// @Summary Create activity
// @Tags Activities
// @Accept json
// @Produce json
// @Param payload body models.CreateActivityRequest true "Activity payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /activities [post]
func (h *ActivityHandler) Create(c *gin.Context) {
	var req models.CreateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid activity payload"))
		return
	}

	activity, err := h.service.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, activity)
}

// Get godoc
// @Summary Get activity by ID
// @Tags Activities
// @Produce json
// @Param id path int true "Activity ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /activities/{id} [get]
func (h *ActivityHandler) Get(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	activity, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, activity, nil)
}

// List godoc
// @Summary List activities
// @Tags Activities
// @Produce json
// @Param status query int false "Status filter (1-4)"
// @Param search query string false "Name or location search"
// @Param date_from query string false "Window start (RFC3339)"
// @Param date_to query string false "Window end (RFC3339)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /activities [get]
func (h *ActivityHandler) List(c *gin.Context) {
	filter, err := parseActivityFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	activities, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, activities, pagination)
}

// Mine godoc
// @Summary List activities created by the current user
// @Tags Activities
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /activities/my [get]
func (h *ActivityHandler) Mine(c *gin.Context) {
	filter, err := parseActivityFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter.CreatedBy = &claims.UserID

	activities, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, activities, pagination)
}

// Update godoc
// @Summary Update activity metadata
// @Tags Activities
// @Accept json
// @Produce json
// @Param id path int true "Activity ID"
// @Param payload body models.UpdateActivityRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /activities/{id} [put]
func (h *ActivityHandler) Update(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.UpdateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid update payload"))
		return
	}

	activity, err := h.service.Update(c.Request.Context(), id, req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, activity, nil)
}

// ChangeStatus godoc
// @Summary Change activity status
// @Description Manual status override; only forward moves and cancellation are allowed
// @Tags Activities
// @Accept json
// @Produce json
// @Param id path int true "Activity ID"
// @Param payload body models.ChangeActivityStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /activities/{id}/status [put]
func (h *ActivityHandler) ChangeStatus(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.ChangeActivityStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	activity, err := h.service.ChangeStatus(c.Request.Context(), id, req.Status, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, activity, nil)
}

// QRCode godoc
// @Summary Generate attendance QR code
// @Description Issues the signed QR payload and a PNG data URL for scanning
// @Tags Activities
// @Produce json
// @Param id path int true "Activity ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /activities/{id}/qrcode [post]
func (h *ActivityHandler) QRCode(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	code, err := h.service.QRCode(c.Request.Context(), id, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, code, nil)
}

// CurrentQR godoc
// @Summary Fetch the current QR code
// @Tags Activities
// @Produce json
// @Param id path int true "Activity ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /activities/{id}/qrcode [get]
func (h *ActivityHandler) CurrentQR(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	code, err := h.service.CurrentQR(c.Request.Context(), id, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, code, nil)
}

// Delete godoc
// @Summary Delete activity
// @Description Hard delete; rejected once any registration exists
// @Tags Activities
// @Param id path int true "Activity ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /activities/{id} [delete]
func (h *ActivityHandler) Delete(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), id, actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

func parseActivityFilter(c *gin.Context) (models.ActivityFilter, error) {
	var filter models.ActivityFilter
	filter.Page, filter.PageSize = parsePageQuery(c)
	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	if raw := c.Query("status"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || !models.ActivityStatus(value).Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
		}
		status := models.ActivityStatus(value)
		filter.Status = &status
	}
	if raw := c.Query("date_from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid date_from")
		}
		filter.DateFrom = &from
	}
	if raw := c.Query("date_to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid date_to")
		}
		filter.DateTo = &to
	}
	return filter, nil
}
