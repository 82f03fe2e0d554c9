// Package vision はGoogle Cloud Vision APIのロゴ検出をブランドモデルとして利用するDetector実装を提供します。
package vision

import (
	"context"
	"fmt"
	"strings"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"retail_backend/internal/feature/detection/adapters/labels"
	"retail_backend/internal/feature/detection/domain/entity"
	"retail_backend/internal/feature/detection/usecase"
	"retail_backend/internal/shared/ratelimiter"
)

// maxLogoResults は1リクエストで取得するロゴ検出の最大件数です。
const maxLogoResults = 50

// VisionLogoDetector はGoogle Cloud Vision APIを使用してブランドロゴを検出します。
type VisionLogoDetector struct {
	client  *gvision.ImageAnnotatorClient
	limiter ratelimiter.Limiter
	labels  *labels.Registry
}

// VisionLogoDetectorがDetectorを実装していることをコンパイル時に検証します。
var _ usecase.Detector = (*VisionLogoDetector)(nil)

// NewVisionLogoDetector はADCを使用してVisionLogoDetectorの新しいインスタンスを生成します。
func NewVisionLogoDetector(ctx context.Context, limiter ratelimiter.Limiter) (*VisionLogoDetector, error) {
	client, err := gvision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &VisionLogoDetector{client: client, limiter: limiter, labels: labels.NewRegistry()}, nil
}

// Close はVision APIクライアントを解放します。
func (v *VisionLogoDetector) Close() error {
	return v.client.Close()
}

// ClassName はロゴ名を返します。IDはこのプロセス内で最初に検出された順に割り当てられます。
func (v *VisionLogoDetector) ClassName(classID int) string {
	return v.labels.Name(classID)
}

// Detect はフレームからロゴを検出します。推論解像度とIoU抑制はAPI側で決まるため使用しません。
func (v *VisionLogoDetector) Detect(ctx context.Context, frame entity.Frame, params entity.DetectParams) ([]entity.RawDetection, error) {
	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	imageData, err := frame.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: imageData},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_LOGO_DETECTION, MaxResults: maxLogoResults},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision API request failed: %w", err)
	}

	if len(resp.Responses) == 0 {
		return []entity.RawDetection{}, nil
	}

	if resp.Responses[0].Error != nil {
		return nil, fmt.Errorf("vision API error: %s", resp.Responses[0].Error.Message)
	}

	return toRawDetections(resp.Responses[0].LogoAnnotations, params.ConfidenceFloor, v.labels), nil
}

// toRawDetections はロゴ注釈を検出に変換します。スコアが floor 未満のもの、枠のないものは除外します。
func toRawDetections(annotations []*visionpb.EntityAnnotation, floor float64, reg *labels.Registry) []entity.RawDetection {
	out := make([]entity.RawDetection, 0, len(annotations))
	for _, a := range annotations {
		score := float64(a.GetScore())
		if score < floor {
			continue
		}
		b, ok := boundingBox(a.GetBoundingPoly())
		if !ok {
			continue
		}
		out = append(out, entity.RawDetection{
			BBox:       b,
			Confidence: score,
			ClassID:    reg.ID(strings.ToLower(strings.TrimSpace(a.GetDescription()))),
		})
	}
	return out
}

// boundingBox は多角形の頂点を囲む軸平行の矩形を返します。
func boundingBox(poly *visionpb.BoundingPoly) (entity.BBox, bool) {
	vs := poly.GetVertices()
	if len(vs) == 0 {
		return entity.BBox{}, false
	}
	b := entity.BBox{
		X1: float64(vs[0].GetX()),
		Y1: float64(vs[0].GetY()),
		X2: float64(vs[0].GetX()),
		Y2: float64(vs[0].GetY()),
	}
	for _, p := range vs[1:] {
		x, y := float64(p.GetX()), float64(p.GetY())
		b.X1 = min(b.X1, x)
		b.Y1 = min(b.Y1, y)
		b.X2 = max(b.X2, x)
		b.Y2 = max(b.Y2, y)
	}
	return b, true
}
