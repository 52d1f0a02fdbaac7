package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/campushub/activity-attendance-api/internal/middleware"
	"github.com/campushub/activity-attendance-api/internal/models"
	"github.com/campushub/activity-attendance-api/internal/service"
	"github.com/campushub/activity-attendance-api/pkg/config"
	"github.com/campushub/activity-attendance-api/pkg/logger"
	corsmiddleware "github.com/campushub/activity-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campushub/activity-attendance-api/pkg/middleware/requestid"
)

// Handlers bundles every HTTP handler mounted by the router.
type Handlers struct {
	Auth         *AuthHandler
	Activity     *ActivityHandler
	Registration *RegistrationHandler
	Attendance   *AttendanceHandler
	Report       *ReportHandler
	Metrics      *MetricsHandler
}

// SetupRouter builds the gin engine with middleware and all routes mounted.
func SetupRouter(cfg *config.Config, logr *zap.Logger, authService *service.AuthService, metricsService *service.MetricsService, h Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", h.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.GET("/me", middleware.JWT(authService), h.Auth.Me)
		auth.PUT("/password", middleware.JWT(authService), h.Auth.ChangePassword)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))

	staff := middleware.RequireRoles(models.RoleManager, models.RoleAdmin)

	activities := authed.Group("/activities")
	{
		activities.GET("", h.Activity.List)
		activities.GET("/my", h.Activity.Mine)
		activities.GET("/:id", h.Activity.Get)
		activities.POST("", staff, h.Activity.Create)
		activities.PUT("/:id", staff, h.Activity.Update)
		activities.DELETE("/:id", staff, h.Activity.Delete)
		activities.PUT("/:id/status", staff, h.Activity.ChangeStatus)
		activities.POST("/:id/qrcode", staff, h.Activity.QRCode)
		activities.GET("/:id/qrcode", staff, h.Activity.CurrentQR)

		activities.POST("/:id/register", h.Registration.Register)
		activities.DELETE("/:id/register", h.Registration.Cancel)
		activities.GET("/:id/registrations", staff, h.Registration.ListByActivity)
		activities.GET("/:id/registrations/stats", staff, h.Registration.Stats)
		activities.GET("/:id/registrations/export", staff, h.Registration.ExportCSV)

		activities.POST("/:id/attendance/manual", staff, h.Attendance.CheckinManual)
		activities.GET("/:id/attendance", staff, h.Attendance.ListByActivity)
		activities.GET("/:id/attendance/stats", staff, h.Attendance.Stats)
		activities.GET("/:id/attendance/export", staff, h.Attendance.ExportCSV)
		activities.GET("/:id/attendance/export/pdf", staff, h.Attendance.ExportPDF)
	}

	registrations := authed.Group("/registrations")
	{
		registrations.GET("/my", h.Registration.Mine)
	}

	attendance := authed.Group("/attendance")
	{
		attendance.POST("/checkin", h.Attendance.CheckinQR)
		attendance.POST("/qr/validate", h.Attendance.ValidateQR)
		attendance.GET("/my", h.Attendance.Mine)
	}

	reports := authed.Group("/reports", staff)
	{
		reports.GET("/overview", h.Report.Overview)
		reports.GET("/trend", h.Report.Trend)
		reports.GET("/top-activities", h.Report.TopActivities)
		reports.POST("/snapshot", h.Report.Snapshot)
		reports.GET("/snapshot/latest", h.Report.LatestSnapshot)
	}

	return r
}
