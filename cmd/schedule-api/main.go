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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/prayer-schedule-api/api/swagger"
	"github.com/noah-isme/prayer-schedule-api/assets"
	"github.com/noah-isme/prayer-schedule-api/internal/handler"
	"github.com/noah-isme/prayer-schedule-api/internal/middleware"
	"github.com/noah-isme/prayer-schedule-api/internal/models"
	"github.com/noah-isme/prayer-schedule-api/internal/repository"
	"github.com/noah-isme/prayer-schedule-api/internal/service"
	"github.com/noah-isme/prayer-schedule-api/pkg/cache"
	"github.com/noah-isme/prayer-schedule-api/pkg/config"
	"github.com/noah-isme/prayer-schedule-api/pkg/database"
	"github.com/noah-isme/prayer-schedule-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/prayer-schedule-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/prayer-schedule-api/pkg/middleware/requestid"
	"github.com/noah-isme/prayer-schedule-api/pkg/resilience"
	"github.com/noah-isme/prayer-schedule-api/pkg/storage"
)

// @title Prayer Schedule API
// @version 1.0.0
// @description Imports, validates and serves mosque prayer timetables.
// @BasePath /api/v1
// @schemes http https
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()

	blobs, err := storage.NewLocalStorage(cfg.Schedule.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare local schedule storage", zap.Error(err))
	}
	local := service.NewLocalScheduleStore(blobs)
	serializer := service.NewScheduleSerializer(nil)
	loader := service.NewFallbackLoader(service.FallbackLoaderParams{
		Local:      local,
		Bundled:    assets.NewDataset(cfg.Schedule.BundledPath),
		Serializer: serializer,
		Metrics:    metrics,
		Logger:     logger.Component(logr, "fallback_loader"),
	})

	remoteLog := logger.Component(logr, "remote")
	breakers := resilience.NewRegistry(resilience.BreakerConfig{
		Threshold: cfg.Remote.BreakerThreshold,
		Timeout:   cfg.Remote.BreakerTimeout,
		Logger:    remoteLog,
		OnStateChange: func(name string, _, to resilience.State) {
			metrics.SetCircuitState(name, to)
		},
	})
	retrier := resilience.NewRetrier(resilience.RetryConfig{
		MaxRetries:        cfg.Remote.MaxRetries,
		InitialDelay:      cfg.Remote.InitialDelay,
		BackoffMultiplier: cfg.Remote.BackoffMultiplier,
		MaxDelay:          cfg.Remote.MaxDelay,
		Jitter:            cfg.Remote.Jitter,
		RetryableErrors:   cfg.Remote.RetryableErrors,
		Retryable:         repository.IsTransientPQError,
		Logger:            remoteLog,
	})

	checks := map[string]handler.Pinger{"postgres": nil, "redis": nil}

	gateway := service.NewRemoteGateway(nil, retrier, breakers, metrics, remoteLog)
	if cfg.Remote.Enabled {
		db, err := database.Open(cfg.Database)
		if err != nil {
			logr.Fatal("failed to configure postgres", zap.Error(err))
		}
		defer db.Close()
		repo := repository.NewPrayerDayRepository(db)
		gateway = service.NewRemoteGateway(repo, retrier, breakers, metrics, remoteLog)
		checks["postgres"] = repo
		go ensureRemoteSchema(ctx, repo, retrier, remoteLog)
	} else {
		logr.Info("remote schedule store disabled; running local-only")
	}

	var cacheSvc *service.CacheService
	if cfg.Schedule.CacheEnabled {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := cache.NewRedis(pingCtx, cfg.Redis)
		cancel()
		if err != nil {
			logr.Warn("schedule cache disabled", zap.Error(err))
		} else {
			cacheRepo := repository.NewCacheRepository(client, logger.Component(logr, "cache"))
			defer cacheRepo.Close()
			cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Schedule.CacheTTL, logr, true)
			checks["redis"] = cacheRepo
		}
	}

	scheduleSvc := service.NewScheduleService(service.ScheduleServiceParams{
		Loader:     loader,
		Local:      local,
		Gateway:    gateway,
		Validator:  service.NewScheduleValidator(cfg.Schedule.MinYearRows),
		Serializer: serializer,
		Cache:      cacheSvc,
		Metrics:    metrics,
		Validate:   validator.New(),
		Logger:     logger.Component(logr, "schedule"),
		Config: service.ScheduleServiceConfig{
			AsyncSync: cfg.Sync.Async,
		},
	})
	scheduleSvc.Start(ctx)
	defer scheduleSvc.Stop()

	// Warm the local store from the bundled dataset before the first request.
	current := scheduleSvc.Current(ctx)
	logr.Info("schedule loaded", zap.String("source", string(current.Source)), zap.Int("days", len(current.Days)))

	r := newRouter(cfg, logr, routerDeps{
		schedule: handler.NewScheduleHandler(scheduleSvc),
		metrics:  handler.NewMetricsHandler(metrics, checks),
		tokens:   service.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer),
		metricsS: metrics,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

type routerDeps struct {
	schedule *handler.ScheduleHandler
	metrics  *handler.MetricsHandler
	tokens   *service.TokenVerifier
	metricsS *service.MetricsService
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metricsS))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", deps.metrics.Health)
	r.GET("/ready", deps.metrics.Ready)
	r.GET("/metrics", deps.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/metrics/summary", deps.metrics.Summary)

	h := deps.schedule
	schedule := api.Group("/schedule")
	schedule.GET("", h.Current)
	schedule.GET("/days/:date", h.Day)
	schedule.GET("/months/:year/:month", h.Month)
	schedule.GET("/export", h.Export)
	schedule.GET("/status", h.Status)

	audit := logger.Component(logr, "schedule_admin")
	admin := schedule.Group("", middleware.JWT(deps.tokens), middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	admin.POST("/preview/year", h.PreviewYear)
	admin.POST("/preview/month", h.PreviewMonth)
	admin.POST("/import/year", middleware.Audit(audit, "schedule.import_year"), h.ImportYear)
	admin.POST("/import/month", middleware.Audit(audit, "schedule.import_month"), h.ImportMonth)
	admin.DELETE("", middleware.Audit(audit, "schedule.clear"), h.Clear)
	admin.POST("/sync", middleware.Audit(audit, "schedule.sync"), h.Sync)
	admin.POST("/restore", middleware.Audit(audit, "schedule.restore"), h.Restore)
	admin.POST("/circuit/reset", middleware.Audit(audit, "schedule.circuit_reset"), h.ResetCircuits)

	return r
}

// ensureRemoteSchema keeps trying until the prayer_days table exists, so the
// service can start while the database is still coming up.
func ensureRemoteSchema(ctx context.Context, repo *repository.PrayerDayRepository, retrier *resilience.Retrier, logr *zap.Logger) {
	for {
		err := retrier.Do(ctx, repo.EnsureSchema)
		if err == nil {
			logr.Info("remote schema ready")
			return
		}
		logr.Warn("remote schema not ready", zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Minute):
		}
	}
}
