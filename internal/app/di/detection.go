package di

import (
	"context"
	"fmt"

	"retail_backend/internal/feature/detection/adapters/opencv"
	"retail_backend/internal/feature/detection/adapters/policyfile"
	"retail_backend/internal/feature/detection/transport/handler"
	"retail_backend/internal/feature/detection/usecase"
	"retail_backend/internal/platform/config"
)

// NewDetectionHandler は検出モデル、ポリシー、カタログから検出APIのハンドラーを組み立てます。
// 戻り値のCleanupはサーバー終了時に呼び出してください。
func NewDetectionHandler(ctx context.Context, cfg *config.Config, catalog usecase.ProductCatalog, metrics handler.MetricsRecorder) (*handler.DetectionHandler, Cleanup, error) {
	policy, err := policyfile.Load(cfg.Policy.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("load detection policy: %w", err)
	}

	brand, closeBrand, err := NewDetector(ctx, "brand", cfg.Detectors.Brand)
	if err != nil {
		return nil, nil, err
	}
	general, closeGeneral, err := NewDetector(ctx, "general", cfg.Detectors.General)
	if err != nil {
		closeBrand()
		return nil, nil, err
	}

	uc := usecase.NewDetectionUsecase(brand, general, opencv.NewDecoder(), opencv.NewVideoOpener(), catalog, policy, cfg.Video.StagingDir)
	cleanup := func() {
		closeGeneral()
		closeBrand()
	}
	return handler.NewDetectionHandler(uc, metrics), cleanup, nil
}
