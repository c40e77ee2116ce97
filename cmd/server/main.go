package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lalith-99/hsedesk/internal/activity"
	"github.com/lalith-99/hsedesk/internal/api"
	"github.com/lalith-99/hsedesk/internal/auth"
	"github.com/lalith-99/hsedesk/internal/config"
	"github.com/lalith-99/hsedesk/internal/dashboard"
	"github.com/lalith-99/hsedesk/internal/db"
	"github.com/lalith-99/hsedesk/internal/middleware"
	"github.com/lalith-99/hsedesk/internal/observ"
	"github.com/lalith-99/hsedesk/internal/realtime"
	"github.com/lalith-99/hsedesk/internal/repository/postgres"
	"github.com/lalith-99/hsedesk/internal/service"
	"github.com/lalith-99/hsedesk/internal/storage"
	"github.com/lalith-99/hsedesk/internal/tenancy"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Config and logger
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------------------------------------------------------
	// 2. Postgres (and the schema, unless disabled)
	// ---------------------------------------------------------------
	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	// ---------------------------------------------------------------
	// 3. Redis for realtime fan-out. Development runs without it.
	// ---------------------------------------------------------------
	rdb, err := connectRedis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// ---------------------------------------------------------------
	// 4. Object storage
	// ---------------------------------------------------------------
	bucket, closeBucket, err := openBucket(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBucket()
	logger.Info("storage ready", zap.String("backend", cfg.StorageBackend), zap.String("bucket", cfg.StorageBucket))

	// ---------------------------------------------------------------
	// 5. Repositories, services, handlers
	// ---------------------------------------------------------------
	metrics := observ.NewMetrics()
	pool := database.Pool()

	userRepo := postgres.NewUserStore(pool)
	companyRepo := postgres.NewCompanyStore(pool)
	departmentRepo := postgres.NewDepartmentStore(pool)
	employeeRepo := postgres.NewEmployeeStore(pool)
	noteRepo := postgres.NewNoteStore(pool)
	taskRepo := postgres.NewTaskStore(pool)
	checkupRepo := postgres.NewCheckupStore(pool)
	documentRepo := postgres.NewDocumentStore(pool)
	messageRepo := postgres.NewMessageStore(pool)
	activityRepo := postgres.NewActivityStore(pool)
	compliance := postgres.NewComplianceStore(pool)

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	resolver := tenancy.NewResolver(userRepo)

	writer := activity.NewWriter(activityRepo, logger, metrics)
	hub := realtime.NewHub(rdb, logger, metrics)
	dispatcher := service.NewDispatcher(writer, hub, logger)

	companySvc := service.NewCompanyService(companyRepo)
	employeeSvc := service.NewEmployeeService(employeeRepo, noteRepo, dispatcher)
	taskSvc := service.NewTaskService(taskRepo, dispatcher)
	checkupSvc := service.NewCheckupService(checkupRepo, dispatcher, service.PeriodicCheckupRule())
	documentSvc := service.NewDocumentService(documentRepo, bucket, dispatcher, metrics, logger, cfg.MaxUploadBytes)
	messageSvc := service.NewMessageService(messageRepo, dispatcher)
	complianceSvc := service.NewComplianceService(compliance.Audits(), compliance.Trainings(), compliance.Measures(), dispatcher)

	aggregator := dashboard.NewAggregator(dashboard.Sources{
		Counter:   postgres.NewFetcher(pool),
		Employees: employeeRepo,
		Notes:     noteRepo,
		Tasks:     taskRepo,
		Documents: documentRepo,
		Checkups:  checkupRepo,
		Activity:  writer,
	}, logger)

	authHandler := api.NewAuthHandler(userRepo, issuer, logger)
	userHandler := api.NewUserHandler(userRepo, resolver, logger)
	companyHandler := api.NewCompanyHandler(companySvc)
	departmentHandler := api.NewDepartmentHandler(departmentRepo)
	employeeHandler := api.NewEmployeeHandler(employeeSvc, aggregator, writer)
	taskHandler := api.NewTaskHandler(taskSvc)
	checkupHandler := api.NewCheckupHandler(checkupSvc)
	documentHandler := api.NewDocumentHandler(documentSvc, cfg.MaxUploadBytes)
	messageHandler := api.NewMessageHandler(messageSvc)
	complianceHandler := api.NewComplianceHandler(complianceSvc)
	dashboardHandler := api.NewDashboardHandler(aggregator, writer)
	realtimeHandler := api.NewRealtimeHandler(hub, cfg.CORSAllowedOrigins)

	checks := map[string]api.Pinger{"postgres": database}
	if rdb != nil {
		checks["redis"] = api.PingerFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	healthHandler := api.NewHealthHandler(checks)

	limiter, err := middleware.NewLimiter(cfg.RateLimit)
	if err != nil {
		return fmt.Errorf("parse RATE_LIMIT: %w", err)
	}

	// ---------------------------------------------------------------
	// 6. Routes
	// ---------------------------------------------------------------
	srv := gin.New()
	srv.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.Metrics(metrics), cors.New(corsConfig(cfg)))
	srv.MaxMultipartMemory = cfg.MaxUploadBytes

	srv.GET("/metrics", gin.WrapH(metrics.Handler()))
	srv.GET("/v1/health", healthHandler.Health)

	public := srv.Group("/v1/auth", middleware.RateLimit(limiter))
	public.POST("/signup", authHandler.Signup)
	public.POST("/login", authHandler.Login)

	v1 := srv.Group("/v1", middleware.AuthMiddleware(issuer), middleware.ResolvePrincipal(resolver))
	v1.GET("/session", userHandler.Session)
	v1.GET("/users/me", userHandler.GetMe)
	v1.POST("/companies", companyHandler.Setup)

	admin := v1.Group("/admin", middleware.RequireSuperAdmin())
	admin.GET("/companies", companyHandler.List)
	admin.PUT("/companies/:id/subscription", companyHandler.UpdateSubscription)

	t := v1.Group("", middleware.RequireTenant())

	t.GET("/company", companyHandler.Current)

	t.POST("/employees", employeeHandler.Create)
	t.GET("/employees", employeeHandler.List)
	t.GET("/employees/:id", employeeHandler.Get)
	t.PATCH("/employees/:id", employeeHandler.Update)
	t.PUT("/employees/:id/active", employeeHandler.SetActive)
	t.POST("/employees/:id/tags", employeeHandler.AddTag)
	t.DELETE("/employees/:id/tags/:tag", employeeHandler.RemoveTag)
	t.PUT("/employees/:id/profile-fields", employeeHandler.SetProfileFields)
	t.GET("/employees/:id/notes", employeeHandler.ListNotes)
	t.POST("/employees/:id/notes", employeeHandler.AddNote)
	t.GET("/employees/:id/profile", employeeHandler.Profile)
	t.GET("/employees/:id/activity", employeeHandler.Activity)

	t.POST("/departments", departmentHandler.Create)
	t.GET("/departments", departmentHandler.List)

	t.POST("/tasks", taskHandler.Create)
	t.GET("/tasks", taskHandler.List)
	t.GET("/tasks/:id", taskHandler.Get)
	t.PUT("/tasks/:id/status", taskHandler.SetStatus)
	t.DELETE("/tasks/:id", taskHandler.Delete)

	t.POST("/checkups", checkupHandler.Create)
	t.GET("/checkups", checkupHandler.List)
	t.GET("/checkups/:id", checkupHandler.Get)
	t.PUT("/checkups/:id/status", checkupHandler.UpdateStatus)
	t.DELETE("/checkups/:id", checkupHandler.Delete)

	t.POST("/documents", documentHandler.Upload)
	t.GET("/documents", documentHandler.List)
	t.GET("/documents/:id", documentHandler.Get)
	t.GET("/documents/:id/download", documentHandler.Download)
	t.GET("/documents/:id/url", documentHandler.URL)
	t.DELETE("/documents/:id", documentHandler.Delete)

	t.POST("/messages", messageHandler.Create)
	t.GET("/messages", messageHandler.List)

	t.POST("/audits", complianceHandler.CreateAudit)
	t.PUT("/audits/:id/status", complianceHandler.SetAuditStatus)
	t.POST("/trainings", complianceHandler.CreateTraining)
	t.POST("/measures", complianceHandler.CreateMeasure)
	t.PUT("/measures/:id/status", complianceHandler.SetMeasureStatus)

	t.GET("/dashboard", dashboardHandler.Summary)
	t.GET("/activity", dashboardHandler.Activity)
	t.GET("/realtime", realtimeHandler.Subscribe)

	srv.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	// ---------------------------------------------------------------
	// 7. Serve until SIGINT/SIGTERM
	// ---------------------------------------------------------------
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting hsedesk", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}
}

// connectRedis returns nil when realtime should stay in process: no
// REDIS_URL, or redis unreachable outside production.
func connectRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		logger.Info("REDIS_URL not set, realtime events stay in process")
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		if cfg.IsProduction() {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Warn("redis unreachable, realtime events stay in process", zap.Error(err))
		return nil, nil
	}
	logger.Info("redis connection established", zap.String("addr", opts.Addr))
	return rdb, nil
}

func openBucket(ctx context.Context, cfg *config.Config) (storage.Bucket, func(), error) {
	if cfg.StorageBackend != "gcs" {
		return storage.NewMemoryBucket(cfg.StoragePublicBaseURL), func() {}, nil
	}
	b, err := storage.NewGCSBucket(ctx, cfg.StorageBucket, cfg.GCSCredentialsJSON, cfg.StoragePublicBaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open bucket: %w", err)
	}
	return b, func() { _ = b.Close() }, nil
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.DefaultConfig()
	if len(cfg.CORSAllowedOrigins) == 0 || slices.Contains(cfg.CORSAllowedOrigins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.CORSAllowedOrigins
	}
	c.AddAllowHeaders("Authorization", middleware.RequestIDHeader)
	c.AddExposeHeaders(middleware.RequestIDHeader, "X-RateLimit-Remaining")
	return c
}
