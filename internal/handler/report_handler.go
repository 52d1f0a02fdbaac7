package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campushub/activity-attendance-api/internal/service"
	"github.com/campushub/activity-attendance-api/pkg/response"
)

// ReportHandler exposes reporting endpoints.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler creates a new handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Overview godoc
// @Summary Platform overview report
// @Description Activity counts by status, registration and attendance totals
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/overview [get]
func (h *ReportHandler) Overview(c *gin.Context) {
	report, err := h.service.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Trend godoc
// @Summary Registration and attendance trend by day
// @Tags Reports
// @Produce json
// @Param days query int false "Window in days (default 14, max 90)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/trend [get]
func (h *ReportHandler) Trend(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "14"))

	points, err := h.service.Trend(c.Request.Context(), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, points, nil)
}

// TopActivities godoc
// @Summary Top activities by active registrations
// @Tags Reports
// @Produce json
// @Param limit query int false "Result limit (default 10, max 50)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/top-activities [get]
func (h *ReportHandler) TopActivities(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	rankings, err := h.service.TopActivities(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rankings, nil)
}

// Snapshot godoc
// @Summary Queue a report snapshot
// @Description Enqueues the daily snapshot job immediately
// @Tags Reports
// @Produce json
// @Success 202 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/snapshot [post]
func (h *ReportHandler) Snapshot(c *gin.Context) {
	if err := h.service.EnqueueSnapshot(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"queued": true}, nil)
}

// LatestSnapshot godoc
// @Summary Latest persisted report snapshot
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/snapshot/latest [get]
func (h *ReportHandler) LatestSnapshot(c *gin.Context) {
	snapshot, err := h.service.LatestSnapshot(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}
