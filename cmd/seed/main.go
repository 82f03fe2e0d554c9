package main

import (
	"context"
	"flag"
	"log"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	catalogadapters "retail_backend/internal/feature/catalog/adapters"
	catalogusecase "retail_backend/internal/feature/catalog/usecase"
	"retail_backend/internal/platform/cache"
	"retail_backend/internal/platform/config"
	infradb "retail_backend/internal/platform/db"
	"retail_backend/internal/platform/logger"
	infraredis "retail_backend/internal/platform/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	seedPath := flag.String("file", cfg.Catalog.SeedPath, "catalog seed file (YAML)")
	flag.Parse()

	if err := logger.Init(cfg.Server.Environment); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// 初回投入時はテーブルが無いので常にマイグレーションする
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
		RunMigrations:  true,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	})
	if err != nil {
		logger.Log().Fatal("failed to open database", zap.Error(err))
	}

	// キャッシュを無効化するためにRedisにも接続する
	var rdb *redisv9.Client
	if cfg.Redis.Enabled {
		if tmp, err := infraredis.NewRedisClient(ctx, infraredis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}); err != nil {
			logger.Log().Warn("Redis unavailable. Cached catalog will expire by TTL.")
		} else {
			rdb = tmp
			defer rdb.Close()
		}
	}

	products, err := catalogadapters.LoadSeedFile(*seedPath)
	if err != nil {
		logger.Log().Fatal("failed to load seed file", zap.String("path", *seedPath), zap.Error(err))
	}

	var repo catalogusecase.ProductRepository = catalogadapters.NewProductRepository(db)
	if rdb != nil {
		repo = cache.NewCachingProductRepository(rdb, cfg.Catalog.CacheTTL, repo, cfg.Catalog.CacheNamespace)
	}

	uc := catalogusecase.NewSeedUsecase(repo)
	n, err := uc.Seed(ctx, products)
	if err != nil {
		logger.Log().Fatal("seed failed", zap.Error(err))
	}
	logger.Log().Info("seed ok", zap.String("path", *seedPath), zap.Int("products", n))
}
