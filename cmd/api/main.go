package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/bayani-hr/payroll-api/internal/handler"
	"github.com/bayani-hr/payroll-api/internal/middleware"
	"github.com/bayani-hr/payroll-api/internal/models"
	"github.com/bayani-hr/payroll-api/internal/repository"
	"github.com/bayani-hr/payroll-api/internal/service"
	"github.com/bayani-hr/payroll-api/pkg/cache"
	"github.com/bayani-hr/payroll-api/pkg/config"
	"github.com/bayani-hr/payroll-api/pkg/database"
	"github.com/bayani-hr/payroll-api/pkg/jobs"
	"github.com/bayani-hr/payroll-api/pkg/logger"
	corsmiddleware "github.com/bayani-hr/payroll-api/pkg/middleware/cors"
	reqidmiddleware "github.com/bayani-hr/payroll-api/pkg/middleware/requestid"
)

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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close() //nolint:errcheck
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}

	validate := validator.New()

	employeeRepo := repository.NewEmployeeRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	recordRepo := repository.NewRecordRepository(db)
	payslipRepo := repository.NewPayslipRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	locks := service.NewKeyedLocks()

	metricsSvc := service.NewMetricsService()

	attendanceSvc := service.NewAttendanceService(attendanceRepo, employeeRepo, cfg.Payroll, validate, logr)
	payrollSvc := service.NewPayrollService(recordRepo, periodRepo, employeeRepo, attendanceRepo,
		approvalRepo, settingsRepo, cfg.Payroll, locks, metricsSvc, logr)
	periodSvc := service.NewPeriodService(periodRepo, recordRepo, employeeRepo, payslipRepo,
		payrollSvc, cacheRepo, cfg.Cache, locks, metricsSvc, validate, logr)
	settingsSvc := service.NewSettingsService(settingsRepo, validate, logr)

	recomputeQueue := jobs.NewQueue("payroll-recompute", func(ctx context.Context, job jobs.Job) error {
		payload, ok := job.Payload.(service.RecomputePayload)
		if !ok {
			return fmt.Errorf("unexpected payload for job %s", job.ID)
		}
		return payrollSvc.RecomputeForDate(ctx, payload.EmployeeID, payload.Date)
	}, jobs.QueueConfig{
		Workers:    cfg.Jobs.RecomputeWorkers,
		MaxRetries: cfg.Jobs.RecomputeRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})
	recomputeQueue.Start(context.Background())
	defer recomputeQueue.Stop()

	approvalSvc := service.NewApprovalService(approvalRepo, employeeRepo, attendanceSvc,
		recomputeQueue, cfg.Approval, cfg.Payroll, locks, metricsSvc, validate, logr)

	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	payrollHandler := handler.NewPayrollHandler(periodSvc, payrollSvc)
	approvalHandler := handler.NewApprovalHandler(approvalSvc)
	settingsHandler := handler.NewSettingsHandler(settingsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.Actor())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Scrape)

	hrRoles := []models.Role{models.RoleHRStaff, models.RoleHRHead, models.RoleAdmin}

	api := r.Group(cfg.APIPrefix)
	{
		attendance := api.Group("/attendance")
		{
			attendance.POST("/check-in", attendanceHandler.CheckIn)
			attendance.POST("/check-out", attendanceHandler.CheckOut)
			attendance.GET("", attendanceHandler.List)
			attendance.GET("/:employeeId/summary", attendanceHandler.Summary)
		}

		periods := api.Group("/payroll/periods")
		{
			periods.POST("", middleware.RequireRole(hrRoles...), payrollHandler.CreatePeriod)
			periods.GET("", payrollHandler.ListPeriods)
			periods.GET("/:id", payrollHandler.GetPeriod)
			periods.POST("/:id/compute", middleware.RequireRole(hrRoles...), payrollHandler.ComputeAll)
			periods.POST("/:id/employees/:employeeId/compute", middleware.RequireRole(hrRoles...), payrollHandler.ComputeRecord)
			periods.GET("/:id/records", payrollHandler.ListRecords)
			periods.POST("/:id/records/:recordId/approve", middleware.RequireRole(hrRoles...), payrollHandler.ApproveRecord)
			periods.POST("/:id/lock", middleware.RequireRole(models.RoleHRHead, models.RoleAdmin), payrollHandler.Lock)
			periods.POST("/:id/payslips", middleware.RequireRole(hrRoles...), payrollHandler.GeneratePayslips)
			periods.GET("/:id/payslips", payrollHandler.ListPayslips)
			periods.GET("/:id/summary", payrollHandler.Summary)
		}
		api.GET("/payroll/records/:recordId", payrollHandler.GetRecord)

		approvals := api.Group("/approvals")
		{
			approvals.POST("/leave", approvalHandler.SubmitLeave)
			approvals.POST("/time-correction", approvalHandler.SubmitCorrection)
			approvals.POST("/:id/approve", approvalHandler.Approve)
			approvals.POST("/:id/reject", approvalHandler.Reject)
			approvals.GET("/:id", approvalHandler.Get)
			approvals.GET("", approvalHandler.List)
		}

		settings := api.Group("/settings", middleware.RequireRole(hrRoles...))
		{
			settings.GET("/tax", settingsHandler.GetTaxSettings)
			settings.PUT("/tax", settingsHandler.UpdateTaxSettings)
			settings.GET("/tax/brackets", settingsHandler.ListTaxBrackets)
			settings.GET("/contributions", settingsHandler.ListContributionBrackets)
			settings.PUT("/contributions", settingsHandler.UpsertContributionBracket)
			settings.GET("/holidays", settingsHandler.ListHolidays)
			settings.PUT("/holidays", settingsHandler.UpsertHoliday)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
