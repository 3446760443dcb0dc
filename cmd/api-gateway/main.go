package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/VenkatagirirajuJicate/tms-admin-api/api/swagger"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/handler"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/middleware"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/notifier"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/repository"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/service"
	"github.com/VenkatagirirajuJicate/tms-admin-api/pkg/cache"
	"github.com/VenkatagirirajuJicate/tms-admin-api/pkg/config"
	"github.com/VenkatagirirajuJicate/tms-admin-api/pkg/database"
	"github.com/VenkatagirirajuJicate/tms-admin-api/pkg/jobs"
	"github.com/VenkatagirirajuJicate/tms-admin-api/pkg/logger"
	corsmiddleware "github.com/VenkatagirirajuJicate/tms-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/VenkatagirirajuJicate/tms-admin-api/pkg/middleware/requestid"
	"github.com/VenkatagirirajuJicate/tms-admin-api/pkg/scheduler"
	"github.com/VenkatagirirajuJicate/tms-admin-api/pkg/storage"
)

// @title TMS Admin API
// @version 1.0.0
// @description Transport grievance management and workflow automation
// @BasePath /api/v1
// @schemes http

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
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	grievanceRepo := repository.NewGrievanceRepository(db)
	stateRepo := repository.NewWorkflowStateRepository(db)
	ruleRepo := repository.NewWorkflowRuleRepository(db)
	escalationRepo := repository.NewEscalationRepository(db)
	eventRepo := repository.NewStatusEventRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	routeRepo := repository.NewRouteRepository(db)
	reportRepo := repository.NewReportRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services, wired leaf-first. The workflow service gains its escalator
	// after the transition service exists to keep the graph acyclic.
	metricsSvc := service.NewMetricsService()
	notificationSvc := service.NewNotificationService(
		service.NewTemplateRegistry(),
		notificationRepo,
		notifier.NewLogEmailSender(logr),
		notifier.NewLogSMSSender(logr),
		service.ChannelConfig{
			EmailEnabled: cfg.Notifications.EmailEnabled,
			SMSEnabled:   cfg.Notifications.SMSEnabled,
		},
		logr,
	)
	transitionSvc := service.NewTransitionService(grievanceRepo, studentRepo, userRepo, escalationRepo, notificationSvc, logr)
	workflowSvc := service.NewWorkflowService(
		ruleRepo,
		stateRepo,
		grievanceRepo,
		escalationRepo,
		studentRepo,
		userRepo,
		notificationSvc,
		service.SLADefaults{
			SLAHours:        cfg.Grievances.DefaultSLAHours,
			EscalationHours: cfg.Grievances.DefaultEscalationHours,
		},
		logr,
	)
	workflowSvc.SetEscalator(transitionSvc)
	if cfg.Grievances.DefaultEscalationHours <= cfg.Grievances.DefaultSLAHours-cfg.Grievances.SLAWarningWindowHours {
		logr.Sugar().Warnw("escalation threshold precedes the SLA warning window, warnings will not fire for default-threshold categories",
			"escalation_hours", cfg.Grievances.DefaultEscalationHours,
			"sla_hours", cfg.Grievances.DefaultSLAHours,
			"warning_window_hours", cfg.Grievances.SLAWarningWindowHours,
		)
	}
	sweeperSvc := service.NewSweeperService(grievanceRepo, workflowSvc, userRepo, notificationSvc, transitionSvc, cfg.Grievances.SLAWarningWindowHours, logr)
	grievanceSvc := service.NewGrievanceService(grievanceRepo, stateRepo, eventRepo, studentRepo, userRepo, workflowSvc, notificationSvc, userRepo, validate, logr)
	ruleSvc := service.NewWorkflowRuleService(ruleRepo, userRepo, validate, logr)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "tms-admin-api",
		SingleSession:      false,
	})
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, cacheRepo, cfg.Grievances.DefaultSLAHours, cfg.Analytics.CacheTTL, logr)
	routeSvc := service.NewRouteService(routeRepo, userRepo, validate, logr)

	reportStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	reportSvc := service.NewReportService(reportRepo, grievanceRepo, reportStorage, signer, logr)
	reportQueue := jobs.NewQueue("reports", reportSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportSvc.SetQueue(reportQueue)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reportQueue.Start(ctx)
	defer reportQueue.Stop()

	sched := scheduler.New(logr)
	if cfg.Sweeper.Enabled {
		if err := sched.Register(scheduler.Task{
			Name:     "sla-sweeper",
			Schedule: cfg.Sweeper.Schedule,
			Run: func(ctx context.Context) error {
				start := time.Now()
				result, err := sweeperSvc.RunOnce(ctx)
				if err != nil {
					return err
				}
				metricsSvc.ObserveSweep(time.Since(start))
				for i := 0; i < result.WarningsSent; i++ {
					metricsSvc.SLAWarningSent()
				}
				for i := 0; i < result.Escalated; i++ {
					metricsSvc.Escalated()
				}
				return nil
			},
		}); err != nil {
			logr.Sugar().Fatalw("failed to register sweeper", "error", err)
		}
	}
	if cfg.Reports.Enabled && cfg.Reports.CleanupInterval > 0 {
		if err := sched.Register(scheduler.Task{
			Name:     "report-cleanup",
			Schedule: "@hourly",
			Run: func(context.Context) error {
				removed, err := reportStorage.CleanupOlderThan(cfg.Reports.SignedURLTTL)
				if err != nil {
					return err
				}
				if len(removed) > 0 {
					logr.Sugar().Infow("expired reports removed", "count", len(removed))
				}
				return nil
			},
		}); err != nil {
			logr.Sugar().Fatalw("failed to register report cleanup", "error", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	grievanceHandler := handler.NewGrievanceHandler(grievanceSvc, transitionSvc, metricsSvc)
	ruleHandler := handler.NewWorkflowRuleHandler(ruleSvc)
	sweeperHandler := handler.NewSweeperHandler(sweeperSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	routeHandler := handler.NewRouteHandler(routeSvc)
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

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	// Signed token is the only credential needed for downloads.
	api.GET("/reports/download/:token", reportHandler.Download)

	staff := middleware.RequireRoles(middleware.AdminRoles()...)

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))

	grievances := secured.Group("/grievances")
	grievances.POST("", grievanceHandler.Create)
	grievances.GET("", grievanceHandler.List)
	grievances.GET("/:id", grievanceHandler.Get)
	grievances.PATCH("/:id", staff, grievanceHandler.Update)
	grievances.POST("/:id/transition", middleware.Audit(userRepo, models.AuditActionGrievanceTransition, "grievances"), grievanceHandler.Transition)
	grievances.POST("/:id/comments", grievanceHandler.AddComment)

	workflow := secured.Group("/workflow", staff)
	workflow.POST("/rules", ruleHandler.Create)
	workflow.GET("/rules", ruleHandler.List)
	workflow.GET("/rules/:id", ruleHandler.Get)
	workflow.PUT("/rules/:id", ruleHandler.Update)
	workflow.DELETE("/rules/:id", ruleHandler.Delete)
	workflow.POST("/sweep", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), sweeperHandler.Run)

	notifications := secured.Group("/notifications")
	notifications.GET("", notificationHandler.Inbox)
	notifications.GET("/deliveries", staff, notificationHandler.Deliveries)
	notifications.POST("/broadcast", staff, middleware.Audit(userRepo, models.AuditActionNotificationSend, "notifications"), notificationHandler.Broadcast)

	if cfg.Analytics.Enabled {
		secured.GET("/analytics/grievances", staff, analyticsHandler.Summary)
	}

	if cfg.Reports.Enabled {
		reports := secured.Group("/reports", staff)
		reports.POST("", reportHandler.Generate)
		reports.GET("", reportHandler.List)
		reports.GET("/:id", reportHandler.Status)
	}

	routes := secured.Group("/routes")
	routes.GET("", routeHandler.List)
	routes.GET("/:id", routeHandler.Get)
	routes.PUT("/:id/allocations", staff, routeHandler.SyncAllocations)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
