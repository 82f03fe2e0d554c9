package usecase

import (
	"sort"

	"retail_backend/internal/feature/detection/domain/entity"
)

// SampleFrameIndices は動画から推論にかけるフレーム番号を返します。
// 間隔は fps×SampleEverySeconds と ceil(frameCount/MaxSamples) の大きい方で、
// サンプル数は動画の長さに関係なく MaxSamples を超えません。
func SampleFrameIndices(frameCount int, fps float64, vt VideoTables) []int {
	if frameCount <= 0 || fps <= 0 || vt.MaxSamples <= 0 {
		return nil
	}
	step := max(int(fps*vt.SampleEverySeconds), (frameCount+vt.MaxSamples-1)/vt.MaxSamples, 1)

	indices := make([]int, 0, min(vt.MaxSamples, frameCount/step+1))
	for i := 0; i < frameCount && len(indices) < vt.MaxSamples; i += step {
		indices = append(indices, i)
	}
	return indices
}

// DedupAcrossFrames は複数フレームの検出を信頼度の高い順に走査し、同じ物体の重複を取り除きます。
// 同名の検出には SameNameIoU、異なる名前の検出には CrossNameIoU を閾値として使います。
func DedupAcrossFrames(dets []entity.FusedDetection, vt VideoTables) []entity.FusedDetection {
	sorted := make([]entity.FusedDetection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]entity.FusedDetection, 0, len(sorted))
	for _, d := range sorted {
		duplicate := false
		for _, k := range kept {
			threshold := vt.CrossNameIoU
			if k.DisplayName == d.DisplayName {
				threshold = vt.SameNameIoU
			}
			if IoU(d.BBox, k.BBox) > threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, d)
		}
	}
	return kept
}
