package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	catalogentity "retail_backend/internal/feature/catalog/domain/entity"
	"retail_backend/internal/feature/detection/domain/entity"
	"retail_backend/internal/platform/logger"
)

const (
	// MaxImageSize は画像アップロードの最大サイズ（10MB）です。
	MaxImageSize = 10 * 1024 * 1024
	// MaxVideoSize は動画アップロードの最大サイズ（200MB）です。
	MaxVideoSize = 200 * 1024 * 1024
)

// FrameDecoder は画像バイト列をフレームにデコードします。
type FrameDecoder interface {
	Decode(data []byte) (entity.Frame, error)
}

// VideoSource は1つの動画ファイルから順にフレームを読み出すハンドルです。
// リクエストごとに開き、他のリクエストと共有しません。
type VideoSource interface {
	FrameCount() int
	FPS() float64
	// ReadFrame は指定番号のフレームへシークして読み出します。
	ReadFrame(index int) (entity.Frame, error)
	Close() error
}

// VideoOpener はディスク上の動画ファイルを開きます。
type VideoOpener interface {
	Open(path string) (VideoSource, error)
}

// ProductCatalog は照合に使う商品カタログです。1リクエストにつき1回だけ呼び出されます。
type ProductCatalog interface {
	ListAll(ctx context.Context) ([]catalogentity.Product, error)
}

// detectionUsecase は画像・動画からの商品検出を統括します。
type detectionUsecase struct {
	decoder    FrameDecoder
	videos     VideoOpener
	catalog    ProductCatalog
	policy     *Policy
	collector  *CandidateCollector
	fusion     *FusionEngine
	matcher    *CatalogMatcher
	stagingDir string
}

// NewDetectionUsecase はdetectionUsecaseの新しいインスタンスを生成します。
// stagingDir が空の場合はOSの一時ディレクトリに動画を書き出します。
func NewDetectionUsecase(brand, general Detector, decoder FrameDecoder, videos VideoOpener, catalog ProductCatalog, policy *Policy, stagingDir string) *detectionUsecase {
	if stagingDir == "" {
		stagingDir = os.TempDir()
	}
	return &detectionUsecase{
		decoder:    decoder,
		videos:     videos,
		catalog:    catalog,
		policy:     policy,
		collector:  NewCandidateCollector(brand, general, policy),
		fusion:     NewFusionEngine(policy),
		matcher:    NewCatalogMatcher(),
		stagingDir: stagingDir,
	}
}

// DetectImage は1枚の画像から商品を検出し、カタログと照合した結果を返します。
func (u *detectionUsecase) DetectImage(ctx context.Context, data []byte) ([]entity.MatchedDetection, error) {
	if err := validateSize(data, MaxImageSize); err != nil {
		return nil, err
	}

	frame, err := u.decoder.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodableImage, err)
	}
	defer closeFrame(frame)

	fused, err := u.detectFrame(ctx, frame, false)
	if err != nil {
		return nil, err
	}
	return u.match(ctx, fused)
}

// DetectVideo は動画から一定間隔でフレームを抜き出して検出し、フレーム間の重複を除いてから照合します。
// 一時ファイルはすべての終了経路で削除されます。
func (u *detectionUsecase) DetectVideo(ctx context.Context, data []byte) ([]entity.MatchedDetection, error) {
	if err := validateSize(data, MaxVideoSize); err != nil {
		return nil, err
	}

	path, cleanup, err := u.stageVideo(data)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	src, err := u.videos.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVideoOpenFailed, err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Log().Warn("failed to close video source", zap.Error(err))
		}
	}()

	frameCount, fps := src.FrameCount(), src.FPS()
	if frameCount <= 0 || fps <= 0 {
		return nil, fmt.Errorf("%w: frames=%d fps=%v", ErrInvalidVideo, frameCount, fps)
	}

	vt := u.policy.Video()
	indices := SampleFrameIndices(frameCount, fps, vt)
	logger.Log().Debug("scanning video",
		zap.Int("frames", frameCount),
		zap.Float64("fps", fps),
		zap.Int("samples", len(indices)),
	)

	var all []entity.FusedDetection
	for _, idx := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fused, ok, err := u.detectVideoFrame(ctx, src, idx)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		logger.Log().Debug("sampled frame",
			zap.Int("frame", idx),
			zap.Int("frames", frameCount),
			zap.Int("detections", len(fused)),
		)
		all = append(all, fused...)
	}

	return u.match(ctx, DedupAcrossFrames(all, vt))
}

// detectVideoFrame は1フレームを読み出して検出します。読み出しに失敗したフレームは ok=false で読み飛ばします。
func (u *detectionUsecase) detectVideoFrame(ctx context.Context, src VideoSource, idx int) ([]entity.FusedDetection, bool, error) {
	frame, err := src.ReadFrame(idx)
	if err != nil {
		logger.Log().Debug("skipping unreadable frame", zap.Int("frame", idx), zap.Error(err))
		return nil, false, nil
	}
	defer closeFrame(frame)

	fused, err := u.detectFrame(ctx, frame, true)
	if err != nil {
		return nil, false, fmt.Errorf("frame %d: %w", idx, err)
	}
	return fused, true, nil
}

func (u *detectionUsecase) detectFrame(ctx context.Context, frame entity.Frame, isVideo bool) ([]entity.FusedDetection, error) {
	set, err := u.collector.Collect(ctx, frame, isVideo)
	if err != nil {
		return nil, err
	}
	return u.fusion.Fuse(set.Brand, set.General), nil
}

func (u *detectionUsecase) match(ctx context.Context, fused []entity.FusedDetection) ([]entity.MatchedDetection, error) {
	if len(fused) == 0 {
		return []entity.MatchedDetection{}, nil
	}
	start := time.Now()
	products, err := u.catalog.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	out := u.matcher.Match(fused, products)
	logger.Log().Debug("matched detections",
		zap.Int("detections", len(out)),
		zap.Int("catalog_size", len(products)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

// stageVideo は動画を一意な名前で一時ディレクトリへ書き出し、削除関数を返します。
func (u *detectionUsecase) stageVideo(data []byte) (string, func(), error) {
	path := filepath.Join(u.stagingDir, "video-"+uuid.NewString())
	cleanup := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Log().Warn("failed to remove staged video", zap.String("path", path), zap.Error(err))
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("stage video: %w", err)
	}
	return path, cleanup, nil
}

func validateSize(data []byte, limit int) error {
	if len(data) == 0 {
		return ErrEmptyInput
	}
	if len(data) > limit {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrInputTooLarge, len(data), limit)
	}
	return nil
}

func closeFrame(f entity.Frame) {
	if err := f.Close(); err != nil {
		logger.Log().Warn("failed to release frame", zap.Error(err))
	}
}
