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
	"go.uber.org/zap"

	_ "github.com/noah-isme/fleet-ops-api/api/swagger"
	"github.com/noah-isme/fleet-ops-api/internal/handler"
	"github.com/noah-isme/fleet-ops-api/internal/repository"
	"github.com/noah-isme/fleet-ops-api/internal/repository/memory"
	"github.com/noah-isme/fleet-ops-api/internal/router"
	"github.com/noah-isme/fleet-ops-api/internal/service"
	"github.com/noah-isme/fleet-ops-api/pkg/config"
	"github.com/noah-isme/fleet-ops-api/pkg/database"
	"github.com/noah-isme/fleet-ops-api/pkg/lock"
	"github.com/noah-isme/fleet-ops-api/pkg/logger"
)

// @title Fleet Ops API
// @version 1.0.0
// @description Fleet equipment incidents, documents and reporting
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

	store, schema, ready, closeStore, err := openStore(cfg)
	if err != nil {
		logr.Fatal("failed to open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer closeStore()

	boot := service.NewBootstrap(store, schema, service.BootstrapConfig{
		AdminUsername: cfg.Bootstrap.AdminUsername,
		AdminPassword: cfg.Bootstrap.AdminPassword,
		AdminName:     cfg.Bootstrap.AdminName,
	}, logr)
	if _, err := boot.Run(ctx); err != nil {
		logr.Fatal("bootstrap failed", zap.Error(err))
	}

	locker, closeLocker, err := openLocker(cfg)
	if err != nil {
		logr.Fatal("failed to init lock backend", zap.String("driver", cfg.Lock.Driver), zap.Error(err))
	}
	defer closeLocker()

	validate := validator.New()
	metrics := service.NewMetricsService()

	auth := service.NewAuthService(store.Users(), validate, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: "fleet-ops-api",
	})
	buses := service.NewBusService(store, validate, logr)
	drivers := service.NewDriverService(store, validate, logr)
	documents := service.NewDocumentService(store, validate, logr)
	incidents := service.NewIncidentService(store, locker, metrics, validate, logr)
	reports := service.NewReportService(store, service.ReportOptions{
		Location: cfg.Reports.Location(),
		Locale:   cfg.Reports.Locale,
	}, validate, logr)
	expiry := service.NewExpiryService(store, metrics, logr)

	engine := router.New(router.Handlers{
		Auth:      handler.NewAuthHandler(auth),
		Buses:     handler.NewBusHandler(buses),
		Drivers:   handler.NewDriverHandler(drivers),
		Documents: handler.NewDocumentHandler(documents, expiry),
		Incidents: handler.NewIncidentHandler(incidents),
		Reports:   handler.NewReportHandler(reports, cfg.Reports.Location()),
		System:    handler.NewMetricsHandler(metrics, ready),
	}, router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         logr,
		Tokens:         auth,
		Metrics:        metrics,
	})

	if cfg.Expiry.Enabled {
		scheduler := service.NewExpiryScheduler(expiry, service.NewLogNotifier(logr), service.ExpirySchedulerConfig{
			Interval:   cfg.Expiry.Interval,
			Workers:    cfg.Expiry.Workers,
			MaxRetries: 3,
			RetryDelay: time.Second,
		}, logr)
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.Storage.Driver, "lock", cfg.Lock.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStore(cfg *config.Config) (repository.Store, service.SchemaFunc, handler.ReadinessCheck, func(), error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		return memory.New(), nil, nil, func() {}, nil
	case config.StorageDriverPostgres, "":
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		schema := func(ctx context.Context) error { return database.EnsureSchema(ctx, db) }
		return repository.NewPostgresStore(db), schema, db.PingContext, closeDB(db), nil
	default:
		return nil, nil, nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func closeDB(db *sqlx.DB) func() {
	return func() { _ = db.Close() }
}

func openLocker(cfg *config.Config) (lock.Locker, func(), error) {
	switch cfg.Lock.Driver {
	case config.LockDriverLocal, "":
		return lock.NewLocalLocker(cfg.Lock.Wait), func() {}, nil
	case config.LockDriverRedis:
		client, err := lock.NewRedis(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return lock.NewRedisLocker(client, cfg.Lock.TTL, cfg.Lock.Wait), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown lock driver %q", cfg.Lock.Driver)
	}
}
