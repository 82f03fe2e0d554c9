package ratelimiter

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"retail_backend/internal/platform/logger"
)

// Limiter は外部推論サービスの呼び出しなど、操作の頻度を制限するインターフェースです。
type Limiter interface {
	Wait(ctx context.Context) error
}

// RateLimiter はトークンバケットで操作の頻度を制限します。複数のゴルーチンから安全に利用できます。
type RateLimiter struct {
	name    string
	limiter *rate.Limiter
}

var _ Limiter = (*RateLimiter)(nil)

// NewRateLimiter は interval あたり limit 回までの呼び出しを許可するRateLimiterを生成します。
// limit <= 0 の場合は制限しません。
func NewRateLimiter(name string, limit int, interval time.Duration) *RateLimiter {
	if limit <= 0 || interval <= 0 {
		return &RateLimiter{name: name, limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &RateLimiter{
		name:    name,
		limiter: rate.NewLimiter(rate.Every(interval/time.Duration(limit)), limit),
	}
}

// Wait はトークンが利用可能になるまで待機します。ctx がキャンセルされた場合はエラーを返します。
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.limiter.Allow() {
		return nil
	}
	logger.Log().Debug("rate limit reached, waiting", zap.String("limiter", rl.name))
	return rl.limiter.Wait(ctx)
}
