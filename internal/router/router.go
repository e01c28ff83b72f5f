package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-academic-api/internal/handler"
	"github.com/noah-isme/sma-academic-api/internal/middleware"
	"github.com/noah-isme/sma-academic-api/internal/models"
	"github.com/noah-isme/sma-academic-api/internal/service"
	"github.com/noah-isme/sma-academic-api/pkg/config"
	"github.com/noah-isme/sma-academic-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-academic-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-academic-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP adapter mounted by Setup.
type Handlers struct {
	Attendance *handler.AttendanceHandler
	Schedule   *handler.ScheduleHandler
	Enrollment *handler.EnrollmentHandler
	Grade      *handler.GradeHandler
	Deletion   *handler.DeletionHandler
	Metrics    *handler.MetricsHandler
}

// Setup builds the gin engine with the engine routes under cfg.APIPrefix.
func Setup(cfg *config.Config, h Handlers, auth middleware.TokenValidator, metrics *service.MetricsService, logr *zap.Logger) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", h.Metrics.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	staff := middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin)
	admin := middleware.RequireRoles(models.RoleAdmin)
	audit := func(action string) gin.HandlerFunc { return middleware.Audit(logr, action) }

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(auth))

	classes := api.Group("/classes/:id")
	{
		classes.POST("/attendance", staff, audit("reconcile_attendance"), h.Attendance.Reconcile)
		classes.GET("/attendance", h.Attendance.List)
		classes.GET("/attendance/export", h.Attendance.Export)
		classes.PUT("/schedule", admin, audit("replace_schedule"), h.Schedule.Replace)
		classes.GET("/schedule", h.Schedule.List)
		classes.POST("/roster/sync", admin, audit("reconcile_roster"), h.Enrollment.SyncRoster)
		classes.GET("/grades", h.Grade.Sheet)
		classes.GET("/grades/export", h.Grade.Export)
	}

	students := api.Group("/students/:id")
	{
		students.PUT("/placement", admin, audit("reenroll_student"), h.Enrollment.Reenroll)
		students.GET("/enrollments", h.Enrollment.List)
		students.GET("/attendance-rate", h.Attendance.Rate)
	}

	grades := api.Group("/grades")
	{
		grades.POST("", staff, audit("record_grade"), h.Grade.Record)
		grades.POST("/batch", staff, audit("record_grades_batch"), h.Grade.Batch)
	}

	api.DELETE("/:entity/:id", admin, audit("delete_or_deactivate"), h.Deletion.Delete)

	return r
}
