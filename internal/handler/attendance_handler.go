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

// AttendanceHandler exposes check-in and attendance query endpoints.
type AttendanceHandler struct {
	checkins    *service.CheckinService
	attendances *service.AttendanceService
	activities  *service.ActivityService
}

// NewAttendanceHandler creates a new handler.
func NewAttendanceHandler(checkins *service.CheckinService, attendances *service.AttendanceService, activities *service.ActivityService) *AttendanceHandler {
	return &AttendanceHandler{checkins: checkins, attendances: attendances, activities: activities}
}

// CheckinQR godoc
// @Summary Check in via scanned QR payload
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body models.QRCheckinRequest true "Scanned payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/checkin [post]
func (h *AttendanceHandler) CheckinQR(c *gin.Context) {
	var req models.QRCheckinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check-in payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	attendance, err := h.checkins.CheckinViaQR(c.Request.Context(), req.Payload, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, attendance)
}

// ValidateQR godoc
// @Summary Validate a QR payload without checking in
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body models.QRCheckinRequest true "Scanned payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/qr/validate [post]
func (h *AttendanceHandler) ValidateQR(c *gin.Context) {
	var req models.QRCheckinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	activity, err := h.checkins.ValidateQR(c.Request.Context(), req.Payload)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"valid": true, "activity": activity}, nil)
}

// CheckinManual godoc
// @Summary Manually check in a participant
// @Description Creator or admin records attendance on behalf of a student
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path int true "Activity ID"
// @Param payload body models.ManualCheckinRequest true "Target user"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /activities/{id}/attendance/manual [post]
func (h *AttendanceHandler) CheckinManual(c *gin.Context) {
	activityID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.ManualCheckinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check-in payload"))
		return
	}

	attendance, err := h.checkins.CheckinManual(c.Request.Context(), activityID, req.UserID, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, attendance)
}

// Mine godoc
// @Summary List own attendance history
// @Tags Attendance
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/my [get]
func (h *AttendanceHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.AttendanceFilter
	filter.Page, filter.PageSize = parsePageQuery(c)

	records, pagination, err := h.attendances.ListByUser(c.Request.Context(), claims.UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, pagination)
}

// ListByActivity godoc
// @Summary List attendance for an activity
// @Tags Attendance
// @Produce json
// @Param id path int true "Activity ID"
// @Param search query string false "Participant name or email search"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /activities/{id}/attendance [get]
func (h *AttendanceHandler) ListByActivity(c *gin.Context) {
	activityID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var filter models.AttendanceFilter
	filter.Page, filter.PageSize = parsePageQuery(c)
	filter.Search = c.Query("search")

	records, pagination, err := h.attendances.ListByActivity(c.Request.Context(), activityID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, pagination)
}

// Stats godoc
// @Summary Attendance statistics for an activity
// @Description Active registrations, attendance count, rate and method breakdown
// @Tags Attendance
// @Produce json
// @Param id path int true "Activity ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /activities/{id}/attendance/stats [get]
func (h *AttendanceHandler) Stats(c *gin.Context) {
	activityID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	stats, err := h.attendances.Stats(c.Request.Context(), activityID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}

// ExportCSV godoc
// @Summary Export activity attendance as CSV
// @Tags Attendance
// @Produce text/csv
// @Param id path int true "Activity ID"
// @Success 200 {string} string "CSV file"
// @Security BearerAuth
// @Router /activities/{id}/attendance/export [get]
func (h *AttendanceHandler) ExportCSV(c *gin.Context) {
	activityID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	data, err := h.attendances.ExportCSV(c.Request.Context(), activityID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"attendance-%d.csv\"", activityID))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// ExportPDF godoc
// @Summary Export activity attendance report as PDF
// @Tags Attendance
// @Produce application/pdf
// @Param id path int true "Activity ID"
// @Success 200 {string} string "PDF file"
// @Security BearerAuth
// @Router /activities/{id}/attendance/export/pdf [get]
func (h *AttendanceHandler) ExportPDF(c *gin.Context) {
	activityID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	activity, err := h.activities.Get(c.Request.Context(), activityID)
	if err != nil {
		response.Error(c, err)
		return
	}

	data, err := h.attendances.ExportPDF(c.Request.Context(), activityID, activity.Name)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"attendance-%d.pdf\"", activityID))
	c.Data(http.StatusOK, "application/pdf", data)
}
