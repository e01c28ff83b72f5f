package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-academic-api/api/swagger"
	"github.com/noah-isme/sma-academic-api/internal/grading"
	"github.com/noah-isme/sma-academic-api/internal/handler"
	"github.com/noah-isme/sma-academic-api/internal/repository"
	"github.com/noah-isme/sma-academic-api/internal/router"
	"github.com/noah-isme/sma-academic-api/internal/service"
	"github.com/noah-isme/sma-academic-api/pkg/cache"
	"github.com/noah-isme/sma-academic-api/pkg/config"
	"github.com/noah-isme/sma-academic-api/pkg/database"
	"github.com/noah-isme/sma-academic-api/pkg/logger"
)

// @title SMA Academic Records API
// @version 1.0.0
// @description Set reconciliation engine for attendance, schedules, enrollments and grades.
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	// the engine still runs without redis; sheets are then read straight from postgres
	var rdb *redis.Client
	if cfg.Cache.Enabled {
		if rdb, err = cache.NewRedis(cfg.Redis); err != nil {
			logr.Warn("redis unavailable, sheet cache disabled", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	classRepo := repository.NewClassRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	periodRepo := repository.NewAcademicPeriodRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	referenceRepo := repository.NewReferenceRepository(db)

	var cacheRepo service.CacheRepository
	if rdb != nil {
		cacheRepo = repository.NewCacheRepository(rdb, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, rdb != nil)

	gateway := service.NewValidationGateway(referenceRepo, enrollmentRepo, periodRepo)
	reconciler := service.NewReconciler(db, metrics, logr, cfg.Reconcile)
	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	attendanceSvc := service.NewAttendanceService(attendanceRepo, classRepo, gateway, reconciler, cacheSvc, service.SystemClock(), validate, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, classRepo, gateway, reconciler, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, classRepo, studentRepo, gateway, reconciler, validate, logr)
	gradeSvc := service.NewGradeService(gradeRepo, gateway, reconciler, grading.NewRegistry(), cacheSvc, validate, logr)
	deletionSvc := service.NewDeletionService(classRepo, teacherRepo, studentRepo, enrollmentRepo, gradeRepo, attendanceRepo, scheduleRepo, gateway, reconciler, cacheSvc, logr)
	exportSvc := service.NewExportService(attendanceSvc, gradeSvc, logr)

	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	engine := router.Setup(cfg, router.Handlers{
		Attendance: handler.NewAttendanceHandler(attendanceSvc, exportSvc),
		Schedule:   handler.NewScheduleHandler(scheduleSvc),
		Enrollment: handler.NewEnrollmentHandler(enrollmentSvc),
		Grade:      handler.NewGradeHandler(gradeSvc, exportSvc),
		Deletion:   handler.NewDeletionHandler(deletionSvc),
		Metrics:    handler.NewMetricsHandler(metrics, checks),
	}, authSvc, metrics, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Reconcile.Timeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logr.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
