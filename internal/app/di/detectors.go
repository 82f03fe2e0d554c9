// Package di はアプリケーションのコンポーネントを設定から組み立てるファクトリを提供します。
package di

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"retail_backend/internal/feature/detection/adapters/labels"
	"retail_backend/internal/feature/detection/adapters/opencv"
	"retail_backend/internal/feature/detection/adapters/remote"
	"retail_backend/internal/feature/detection/adapters/vision"
	"retail_backend/internal/feature/detection/usecase"
	"retail_backend/internal/platform/config"
	"retail_backend/internal/platform/logger"
	"retail_backend/internal/shared/ratelimiter"
)

// Cleanup は生成したコンポーネントが保持するリソースを解放します。
type Cleanup func()

// NewDetector は設定のバックエンドに応じた検出モデルを生成します。
// role は "brand" または "general" で、ログとレートリミッターの名前に使います。
func NewDetector(ctx context.Context, role string, cfg config.DetectorConfig) (usecase.Detector, Cleanup, error) {
	switch cfg.Backend {
	case config.BackendONNX:
		reg, err := labels.LoadFile(cfg.LabelsPath)
		if err != nil {
			return nil, nil, fmt.Errorf("%s labels: %w", role, err)
		}
		d, err := opencv.NewYOLODetector(cfg.ModelPath, reg)
		if err != nil {
			return nil, nil, fmt.Errorf("%s model: %w", role, err)
		}
		logger.Log().Info("ONNXモデルを読み込みました",
			zap.String("role", role), zap.String("model", cfg.ModelPath), zap.Int("classes", reg.Len()))
		return d, closer(role, d.Close), nil

	case config.BackendRemote:
		reg := labels.NewRegistry()
		if cfg.LabelsPath != "" {
			loaded, err := labels.LoadFile(cfg.LabelsPath)
			if err != nil {
				return nil, nil, fmt.Errorf("%s labels: %w", role, err)
			}
			reg = loaded
		}
		d := remote.NewDetector(remote.Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, newLimiter(role, cfg), reg)
		logger.Log().Info("推論サーバーを使用します",
			zap.String("role", role), zap.String("base_url", cfg.BaseURL), zap.String("model", cfg.Model))
		return d, func() {}, nil

	case config.BackendCloudVision:
		d, err := vision.NewVisionLogoDetector(ctx, newLimiter(role, cfg))
		if err != nil {
			return nil, nil, fmt.Errorf("%s detector: %w", role, err)
		}
		logger.Log().Info("Cloud Vision APIのロゴ検出を使用します", zap.String("role", role))
		return d, closer(role, d.Close), nil

	default:
		return nil, nil, fmt.Errorf("%s detector: unknown backend %q", role, cfg.Backend)
	}
}

func newLimiter(role string, cfg config.DetectorConfig) *ratelimiter.RateLimiter {
	return ratelimiter.NewRateLimiter(role+"-detector", cfg.RequestsPerMinute, time.Minute)
}

func closer(role string, fn func() error) Cleanup {
	return func() {
		if err := fn(); err != nil {
			logger.Log().Error("検出モデルの解放に失敗しました", zap.String("role", role), zap.Error(err))
		}
	}
}
