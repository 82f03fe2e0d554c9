package usecase

import (
	"sort"

	"retail_backend/internal/feature/detection/domain/entity"
)

// FusionEngine は2つのモデルの候補を3段階の優先度（brand > produce > general）で統合します。
type FusionEngine struct {
	policy *Policy
}

// NewFusionEngine はFusionEngineの新しいインスタンスを生成します。
func NewFusionEngine(policy *Policy) *FusionEngine {
	return &FusionEngine{policy: policy}
}

// Fuse は候補を統合し、ブランド、青果、汎用の順に採用した検出を返します。
// 同じ入力に対しては常に同じ結果を返します。
func (e *FusionEngine) Fuse(brand, general []entity.RawCandidate) []entity.FusedDetection {
	ft := e.policy.Fusion()
	out := make([]entity.FusedDetection, 0, len(brand)+len(general))

	// brand: ティア内の重複抑制はしない
	for _, c := range brand {
		if c.Confidence <= e.policy.BrandFloor(c.ClassName) {
			continue
		}
		out = append(out, entity.FusedDetection{
			BBox:        c.BBox,
			Confidence:  c.Confidence,
			DisplayName: e.policy.BrandDisplayName(c.ClassName),
			Tier:        entity.TierBrand,
		})
	}

	// produce
	accepted := make([]bool, len(general))
	for i, c := range general {
		if !c.IsProduce {
			continue
		}
		if overlapsAny(out, c.BBox, ft.BrandOverlapIoU, func(d entity.FusedDetection) bool {
			return d.Tier == entity.TierBrand && d.Confidence >= c.Confidence
		}) {
			continue
		}
		if overlapsAny(out, c.BBox, ft.ProduceOverlapIoU, func(d entity.FusedDetection) bool {
			return d.Tier == entity.TierProduce
		}) {
			continue
		}
		out = append(out, entity.FusedDetection{
			BBox:        c.BBox,
			Confidence:  c.Confidence,
			DisplayName: e.policy.DisplayName(c.ClassName),
			Tier:        entity.TierProduce,
		})
		accepted[i] = true
	}

	// general
	remaining := make([]entity.RawCandidate, 0, len(general))
	for i, c := range general {
		if !accepted[i] {
			remaining = append(remaining, c)
		}
	}
	sort.SliceStable(remaining, func(i, j int) bool {
		return remaining[i].Confidence > remaining[j].Confidence
	})
	for _, c := range remaining {
		if c.Confidence <= ft.GeneralFloor {
			continue
		}
		if overlapsAny(out, c.BBox, ft.GeneralOverlapIoU, nil) {
			continue
		}
		out = append(out, entity.FusedDetection{
			BBox:        c.BBox,
			Confidence:  c.Confidence,
			DisplayName: e.policy.DisplayName(c.ClassName),
			Tier:        entity.TierGeneral,
		})
	}

	return out
}

// overlapsAny はwhereを満たす採用済み検出のいずれかとIoUがthresholdを超えるかを返します。
// whereがnilの場合はすべての採用済み検出が対象です。
func overlapsAny(accepted []entity.FusedDetection, box entity.BBox, threshold float64, where func(entity.FusedDetection) bool) bool {
	for _, d := range accepted {
		if where != nil && !where(d) {
			continue
		}
		if IoU(box, d.BBox) > threshold {
			return true
		}
	}
	return false
}
