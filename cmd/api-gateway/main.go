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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lostfound-api/api/swagger"
	"github.com/noah-isme/lostfound-api/internal/cron"
	"github.com/noah-isme/lostfound-api/internal/handler"
	internalmiddleware "github.com/noah-isme/lostfound-api/internal/middleware"
	"github.com/noah-isme/lostfound-api/internal/repository"
	"github.com/noah-isme/lostfound-api/internal/service"
	"github.com/noah-isme/lostfound-api/pkg/cache"
	"github.com/noah-isme/lostfound-api/pkg/config"
	"github.com/noah-isme/lostfound-api/pkg/database"
	"github.com/noah-isme/lostfound-api/pkg/jobs"
	"github.com/noah-isme/lostfound-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lostfound-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lostfound-api/pkg/middleware/requestid"
	"github.com/noah-isme/lostfound-api/pkg/migrate"
)

// @title Lost & Found API
// @version 1.0.0
// @description Campus lost and found workflow: item review, claims, donations and notifications
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const deliveryStreamMaxLen = 10000

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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if err := migrate.MaybeRun(ctx, cfg, logr, db.DB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	metricsSvc := service.NewMetricsService()
	validate := validator.New()
	policy := service.NewRolePolicy(cfg.Roles)

	itemRepo := repository.NewItemRepository(db)
	claimRepo := repository.NewClaimRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	deliveryStream := repository.NewDeliveryStream(redisClient, cfg.Notifications.Stream, deliveryStreamMaxLen)

	recipientCache := service.NewCacheService(cacheRepo, metricsSvc, cfg.Notifications.RecipientCacheTTL, logr.Named("cache"), true)
	notificationSvc := service.NewNotificationService(notificationRepo, userRepo, recipientCache, deliveryStream, service.NotificationConfig{
		MaxAttempts:       cfg.Notifications.MaxAttempts,
		BatchSize:         cfg.Notifications.BatchSize,
		RecipientCacheTTL: cfg.Notifications.RecipientCacheTTL,
		LegacyFallback:    cfg.Roles.LegacyEmailFallback,
		LegacyAdminEmail:  cfg.Roles.LegacyAdminEmail,
	}, logr.Named("notifications"), service.WithNotificationMetrics(metricsSvc))

	deliveryQueue := jobs.NewQueue("notification-delivery", notificationSvc.DeliveryHandler, jobs.QueueConfig{
		Workers:    cfg.Notifications.RelayWorkers,
		BufferSize: cfg.Notifications.BatchSize,
		Logger:     logr.Named("delivery"),
	})
	deliveryQueue.Start(ctx)
	defer deliveryQueue.Stop()
	notificationSvc.UseQueue(deliveryQueue)

	itemSvc := service.NewItemService(itemRepo, notificationSvc, policy, validate, logr.Named("items"),
		service.WithItemMetrics(metricsSvc),
		service.WithDonationRetentionDays(cfg.Lifecycle.DonationRetentionDays),
	)
	claimSvc := service.NewClaimService(claimRepo, itemRepo, userRepo, notificationSvc, policy, validate, logr.Named("claims"),
		service.WithClaimMetrics(metricsSvc),
	)
	donationSvc := service.NewDonationService(itemRepo, itemSvc, logr.Named("donations"),
		service.WithDonationRetention(cfg.Lifecycle.DonationRetentionDays),
		service.WithScanBatchSize(cfg.Lifecycle.ScanBatchSize),
	)
	activitySvc := service.NewActivityService(activityRepo, cfg.Lifecycle.ActivityRetentionDays, nil, logr.Named("activity"))
	userSvc := service.NewUserService(userRepo, notificationSvc, policy, validate, logr.Named("users"))
	authSvc := service.NewAuthService(logr.Named("auth"), service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	healthSvc := service.NewHealthService(db, service.PingFunc(func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}), 2*time.Second, logr.Named("health"))

	scheduler, err := newScheduler(cfg, logr, redisClient, metricsSvc, donationSvc, activitySvc, notificationSvc)
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}
	if cfg.Scheduler.Enabled {
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer scheduler.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, healthSvc)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Items:         handler.NewItemHandler(itemSvc),
		Claims:        handler.NewClaimHandler(claimSvc),
		Donations:     handler.NewDonationHandler(donationSvc, scheduler),
		Activity:      handler.NewActivityHandler(activitySvc, scheduler),
		Notifications: handler.NewNotificationHandler(notificationSvc, policy),
		Users:         handler.NewUserHandler(userSvc, policy),
	}, internalmiddleware.JWT(authSvc), policy)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
	}
	return nil
}

func newScheduler(
	cfg *config.Config,
	logr *zap.Logger,
	redisClient *redis.Client,
	metrics *service.MetricsService,
	donations *service.DonationService,
	activity *service.ActivityService,
	notifications *service.NotificationService,
) (*cron.Service, error) {
	registry := cron.NewRegistry()
	registry.Register(cfg.Scheduler.DonationFlagSchedule, cron.NewDonationAutoFlagJob(donations))
	registry.Register(cfg.Scheduler.ActivityArchiveSchedule, cron.NewActivityArchiveJob(activity))
	registry.Register(cfg.Scheduler.NotificationRelaySchedule, cron.NewNotificationRelayJob(notifications))

	return cron.NewService(cron.ServiceParams{
		Logger:     logr,
		Registry:   registry,
		Locks:      cron.RedisLockFactory(redisClient, cfg.Scheduler.LockTTL),
		Metrics:    metrics,
		Timeout:    cfg.Scheduler.JobTimeout,
		MaxRetries: cfg.Scheduler.MaxRetries,
		RetryDelay: cfg.Scheduler.RetryDelay,
	})
}
