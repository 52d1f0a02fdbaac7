package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	_ "github.com/campushub/activity-attendance-api/api/swagger"
	"github.com/campushub/activity-attendance-api/internal/handler"
	"github.com/campushub/activity-attendance-api/internal/repository"
	"github.com/campushub/activity-attendance-api/internal/service"
	"github.com/campushub/activity-attendance-api/pkg/cache"
	"github.com/campushub/activity-attendance-api/pkg/clock"
	"github.com/campushub/activity-attendance-api/pkg/config"
	"github.com/campushub/activity-attendance-api/pkg/database"
	"github.com/campushub/activity-attendance-api/pkg/logger"
	"github.com/campushub/activity-attendance-api/pkg/scheduler"
)

// @title Campus Activity Attendance API
// @version 0.1.0
// @description Activity lifecycle, registration and QR attendance tracking
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	sugar := logr.Sugar()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		sugar.Warnw("redis unavailable, report cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	clk := clock.System()

	userRepo := repository.NewUserRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	reportRepo := repository.NewReportRepository(db)

	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "activity-attendance-api",
	})
	activityService := service.NewActivityService(activityRepo, validate, logr, clk, cfg.QR.ImageSize)
	lifecycleService := service.NewLifecycleService(activityRepo, clk, logr, metricsService)
	registrationService := service.NewRegistrationService(registrationRepo, activityRepo, clk, logr, metricsService)
	checkinService := service.NewCheckinService(activityRepo, registrationRepo, attendanceRepo, userRepo, clk, logr, metricsService)
	attendanceService := service.NewAttendanceService(attendanceRepo, registrationRepo, logr)
	reportService := service.NewReportService(reportRepo, redisClient, clk, logr,
		cfg.Reports.OverviewCacheTTL, cfg.Reports.WorkerConcurrency, cfg.Reports.WorkerRetries)

	handlers := handler.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		Activity:     handler.NewActivityHandler(activityService),
		Registration: handler.NewRegistrationHandler(registrationService),
		Attendance:   handler.NewAttendanceHandler(checkinService, attendanceService, activityService),
		Report:       handler.NewReportHandler(reportService),
		Metrics:      handler.NewMetricsHandler(metricsService),
	}

	router := handler.SetupRouter(cfg, logr, authService, metricsService, handlers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reportService.StartWorker(ctx)
	defer reportService.StopWorker()

	sched := scheduler.New(clk, logr)
	sched.Every("lifecycle-sweep", cfg.Lifecycle.SweepInterval, lifecycleService.Run)
	if err := sched.DailyAt("report-snapshot", cfg.Reports.SnapshotTime, reportService.EnqueueSnapshot); err != nil {
		sugar.Fatalw("invalid snapshot time", "error", err)
	}
	sched.Start(ctx)
	defer sched.Stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		sugar.Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sugar.Infow("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("forced shutdown", "error", err)
	}
}
