package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"retail_backend/internal/app/di"
	"retail_backend/internal/app/router"
	"retail_backend/internal/platform/config"
	infradb "retail_backend/internal/platform/db"
	"retail_backend/internal/platform/http/handler"
	"retail_backend/internal/platform/logger"
	"retail_backend/internal/platform/metrics"
	infraredis "retail_backend/internal/platform/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := logger.Init(cfg.Server.Environment); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Log().Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// db
	db, err := infradb.OpenDB(infradb.Config{
		Driver:         cfg.Database.Driver,
		User:           cfg.Database.User,
		Password:       cfg.Database.Password,
		Name:           cfg.Database.Name,
		Host:           cfg.Database.Host,
		Port:           cfg.Database.Port,
		SSLMode:        cfg.Database.SSLMode,
		InstanceName:   cfg.Database.InstanceName,
		Path:           cfg.Database.Path,
		RunMigrations:  cfg.Database.RunMigrations,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			logger.Log().Error("Failed to close database", zap.Error(err))
		}
	}()
	checks := []handler.Check{{Name: "database", Fn: sqlDB.PingContext}}

	// Redis
	var rdb *redisv9.Client
	if cfg.Redis.Enabled {
		tmp, err := infraredis.NewRedisClient(ctx, infraredis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Log().Warn("Redis unavailable. Running without cache.")
		} else {
			rdb = tmp
			defer func() {
				if err := rdb.Close(); err != nil {
					logger.Log().Error("Failed to close Redis client", zap.Error(err))
				}
			}()
			checks = append(checks, handler.Check{Name: "redis", Fn: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			}})
		}
	}

	// Repository
	catalogRepo := di.NewProductRepository(db, rdb, cfg.Catalog)

	// Handler
	m := metrics.New()
	detectionH, cleanup, err := di.NewDetectionHandler(ctx, cfg, catalogRepo, m)
	if err != nil {
		return err
	}
	defer cleanup()
	healthH := handler.NewHealthHandler("retail-backend", checks...)

	// ルータ生成
	r := router.NewRouter(healthH, detectionH, m, router.Options{AllowedOrigins: cfg.Server.AllowedOrigins})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log().Info("Starting server", zap.String("addr", srv.Addr), zap.String("environment", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Log().Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
