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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-backoffice/api/swagger"
	"github.com/noah-isme/sma-backoffice/internal/handler"
	"github.com/noah-isme/sma-backoffice/internal/middleware"
	"github.com/noah-isme/sma-backoffice/internal/repository"
	"github.com/noah-isme/sma-backoffice/internal/service"
	"github.com/noah-isme/sma-backoffice/pkg/cache"
	"github.com/noah-isme/sma-backoffice/pkg/config"
	"github.com/noah-isme/sma-backoffice/pkg/database"
	"github.com/noah-isme/sma-backoffice/pkg/jobs"
	"github.com/noah-isme/sma-backoffice/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-backoffice/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-backoffice/pkg/middleware/requestid"
	"github.com/noah-isme/sma-backoffice/pkg/storage"
)

// @title Student Back Office API
// @version 1.0.0
// @description Student and staff documents, requirement tracking and permissions.
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Permissions.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, role defaults will not be cached", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	files, err := newFileStorage(ctx, cfg)
	if err != nil {
		logr.Fatal("failed to init document storage", zap.Error(err), zap.String("driver", cfg.Documents.StorageDriver))
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()
	resolver := service.NewRequirementResolver()

	staffRepo := repository.NewStaffRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	requirementRepo := repository.NewRequirementRepository(db)
	entityRepo := repository.NewEntityRepository(db)
	permissionRepo := repository.NewPermissionRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Permissions.CacheTTL, logr, redisClient != nil)
	authSvc := service.NewAuthService(staffRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	permissionSvc := service.NewPermissionService(permissionRepo, staffRepo, cacheSvc, resolver, auditRepo, metricsSvc, validate, logr, service.PermissionServiceConfig{
		CacheTTL: cfg.Permissions.CacheTTL,
	})
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)
	documentSvc := service.NewDocumentService(documentRepo, requirementRepo, entityRepo, permissionSvc, resolver, files, signer, auditRepo, metricsSvc, validate, logr, service.DocumentServiceConfig{
		MaxFileSize:     cfg.Documents.MaxFileSizeBytes,
		AllowedMIMEs:    cfg.Documents.AllowedMIMEs,
		PurgeBatchLimit: cfg.Documents.PurgeBatchLimit,
		APIPrefix:       cfg.APIPrefix,
	})
	janitor := service.NewFileJanitor(files, jobs.QueueConfig{Workers: 2}, logr)
	janitor.Start(ctx)
	defer janitor.Stop()
	documentSvc.SetFileCleaner(janitor)
	requirementSvc := service.NewRequirementService(requirementRepo, entityRepo, permissionSvc, resolver, logr)
	exportSvc := service.NewExportService(requirementSvc, nil, nil, logr)

	metricsHandler := handler.NewMetricsHandler(metricsSvc, readinessChecks(db, cacheRepo, redisClient), logr)
	routes := &handler.Router{
		Auth:         handler.NewAuthHandler(authSvc),
		Documents:    handler.NewDocumentHandler(documentSvc),
		Requirements: handler.NewRequirementHandler(requirementSvc, exportSvc),
		Permissions:  handler.NewPermissionHandler(permissionSvc),
		Metrics:      metricsHandler,
	}

	r := gin.New()
	r.MaxMultipartMemory = cfg.Documents.MaxFileSizeBytes
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(metricsSvc))
	}

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	routes.Register(r.Group(cfg.APIPrefix), middleware.JWT(authSvc), middleware.RequireSuperAdmin(permissionSvc))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.Documents.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

func newFileStorage(ctx context.Context, cfg *config.Config) (storage.FileStorage, error) {
	switch cfg.Documents.StorageDriver {
	case config.StorageDriverMinIO:
		return storage.NewMinIOStorage(ctx, cfg.MinIO)
	case config.StorageDriverLocal, "":
		return storage.NewLocalStorage(cfg.Documents.StorageDir)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Documents.StorageDriver)
	}
}

func readinessChecks(db *sqlx.DB, cacheRepo *repository.CacheRepository, redisClient *redis.Client) map[string]handler.Pinger {
	checks := map[string]handler.Pinger{
		"postgres": handler.PingFunc(db.PingContext),
	}
	if redisClient != nil {
		checks["redis"] = cacheRepo
	}
	return checks
}
