package redis

import (
	"context"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"retail_backend/internal/platform/logger"
)

// Config はRedisへの接続設定です。
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr は host:port 形式のアドレスを返します。
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// NewRedisClient はRedisクライアントを生成し、接続を確認します。
func NewRedisClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	addr := cfg.Addr()
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 接続確認
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Log().Error("Redis connection failed", zap.String("address", addr), zap.Error(err))
		_ = rdb.Close()
		return nil, err
	}

	logger.Log().Info("Redis connection successful", zap.String("address", addr))
	return rdb, nil
}
