// Package usecase はdetectionフィーチャーのビジネスロジックを実装します。
package usecase

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"retail_backend/internal/feature/detection/domain/entity"
)

// Detector は1つの物体検出モデルです。ブランドモデルと汎用モデルの両方がこの能力を提供します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
// 実装は起動時に一度だけ生成され、複数のリクエストから同時に呼び出されます。
type Detector interface {
	// Detect はフレームから候補を検出します。
	Detect(ctx context.Context, frame entity.Frame, params entity.DetectParams) ([]entity.RawDetection, error)
	// ClassName はクラスIDに対応するクラス名を返します。
	ClassName(classID int) string
}

// CandidateCollector は2つの検出モデルを1フレームに対して実行し、候補をフィルタします。
type CandidateCollector struct {
	brand   Detector
	general Detector
	policy  *Policy
}

// NewCandidateCollector はCandidateCollectorの新しいインスタンスを生成します。
func NewCandidateCollector(brand, general Detector, policy *Policy) *CandidateCollector {
	return &CandidateCollector{brand: brand, general: general, policy: policy}
}

// Collect は両モデルを並行に実行し、ブランド候補と汎用候補を返します。
func (c *CandidateCollector) Collect(ctx context.Context, frame entity.Frame, isVideo bool) (entity.CandidateSet, error) {
	size := c.policy.InferenceSize(isVideo, frame.Width(), frame.Height())

	var brandRaw, generalRaw []entity.RawDetection
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dets, err := c.brand.Detect(gctx, frame, c.policy.BrandParams(size))
		if err != nil {
			return fmt.Errorf("brand detector: %w", err)
		}
		brandRaw = dets
		return nil
	})
	g.Go(func() error {
		dets, err := c.general.Detect(gctx, frame, c.policy.GeneralParams(size))
		if err != nil {
			return fmt.Errorf("general detector: %w", err)
		}
		generalRaw = dets
		return nil
	})
	if err := g.Wait(); err != nil {
		return entity.CandidateSet{}, err
	}

	return entity.CandidateSet{
		Brand:   c.brandCandidates(brandRaw, c.policy.BrandParams(size).ConfidenceFloor),
		General: c.generalCandidates(generalRaw),
	}, nil
}

// brandCandidates はブランドモデルの出力をタグ付けします。クラス別の下限はフュージョン側で適用します。
func (c *CandidateCollector) brandCandidates(dets []entity.RawDetection, floor float64) []entity.RawCandidate {
	out := make([]entity.RawCandidate, 0, len(dets))
	for _, d := range dets {
		if d.Confidence < floor {
			continue
		}
		out = append(out, entity.RawCandidate{
			BBox:       d.BBox,
			Confidence: d.Confidence,
			ClassName:  normalizeClass(c.brand.ClassName(d.ClassID)),
			Source:     entity.SourceBrand,
		})
	}
	return out
}

// generalCandidates はブラックリストとクラス別の信頼度下限を適用します。
func (c *CandidateCollector) generalCandidates(dets []entity.RawDetection) []entity.RawCandidate {
	out := make([]entity.RawCandidate, 0, len(dets))
	for _, d := range dets {
		class := normalizeClass(c.general.ClassName(d.ClassID))
		if c.policy.IsBlacklisted(class) {
			continue
		}
		if d.Confidence < c.policy.GeneralFloor(class) {
			continue
		}
		out = append(out, entity.RawCandidate{
			BBox:       d.BBox,
			Confidence: d.Confidence,
			ClassName:  class,
			Source:     entity.SourceGeneral,
			IsProduce:  c.policy.IsProduce(class),
		})
	}
	return out
}
