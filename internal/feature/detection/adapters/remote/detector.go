package remote

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"retail_backend/internal/feature/detection/adapters/labels"
	"retail_backend/internal/feature/detection/adapters/remote/dto"
	"retail_backend/internal/feature/detection/domain/entity"
	"retail_backend/internal/feature/detection/usecase"
	infrahttp "retail_backend/internal/platform/http"
	"retail_backend/internal/shared/ratelimiter"
)

// ErrRemoteInference は推論サーバーがエラーを返した場合に返されます。
var ErrRemoteInference = errors.New("remote inference failed")

// Detector はHTTPの推論サーバーにフレームを送って検出するDetector実装です。
type Detector struct {
	cfg     Config
	client  *resty.Client
	limiter ratelimiter.Limiter
	labels  *labels.Registry
}

// DetectorがDetectorインターフェースを実装していることをコンパイル時に検証します。
var _ usecase.Detector = (*Detector)(nil)

// NewDetector はDetectorの新しいインスタンスを生成します。
// reg が nil の場合はサーバーが返すクラス名から対応表を構築します。limiter は nil でも構いません。
func NewDetector(cfg Config, limiter ratelimiter.Limiter, reg *labels.Registry) *Detector {
	if reg == nil {
		reg = labels.NewRegistry()
	}
	client := resty.NewWithClient(infrahttp.NewHTTPClient(cfg.Timeout)).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json")
	return &Detector{cfg: cfg, client: client, limiter: limiter, labels: reg}
}

// ClassName はクラスIDに対応するクラス名を返します。
func (d *Detector) ClassName(classID int) string {
	return d.labels.Name(classID)
}

// Detect はフレームをJPEGで送信し、推論結果を返します。
func (d *Detector) Detect(ctx context.Context, frame entity.Frame, params entity.DetectParams) ([]entity.RawDetection, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	img, err := frame.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	var body dto.DetectResponse
	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(dto.DetectRequest{
			Model:      d.cfg.Model,
			Image:      base64.StdEncoding.EncodeToString(img),
			Confidence: params.ConfidenceFloor,
			IoU:        params.IoUSuppression,
			ImageSize:  params.InferenceSize,
		}).
		SetResult(&body).
		SetError(&body).
		Post("/v1/detect")
	if err != nil {
		return nil, fmt.Errorf("remote detect: %w", err)
	}
	if resp.IsError() {
		msg := body.Error
		if msg == "" {
			msg = resp.Status()
		}
		return nil, fmt.Errorf("%w: http %d: %s", ErrRemoteInference, resp.StatusCode(), msg)
	}

	out := make([]entity.RawDetection, 0, len(body.Detections))
	for _, det := range body.Detections {
		classID := det.ClassID
		if det.ClassName != "" {
			// サーバーのクラスIDは信用せず、名前から対応表のIDを引く
			classID = d.labels.ID(det.ClassName)
		}
		out = append(out, entity.RawDetection{
			BBox: entity.BBox{
				X1: det.BBox[0],
				Y1: det.BBox[1],
				X2: det.BBox[2],
				Y2: det.BBox[3],
			},
			Confidence: det.Confidence,
			ClassID:    classID,
		})
	}
	return out, nil
}
