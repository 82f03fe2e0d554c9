// Package dto は推論サーバーの POST /v1/detect のリクエストとレスポンスです。
package dto

// DetectRequest は推論リクエストです。画像はbase64エンコードしたJPEGです。
type DetectRequest struct {
	Model      string  `json:"model"`
	Image      string  `json:"image"`
	Confidence float64 `json:"confidence"`
	IoU        float64 `json:"iou"`
	ImageSize  int     `json:"imgsz"`
}

// DetectResponse は推論結果です。
type DetectResponse struct {
	Detections []Detection `json:"detections"`
	Error      string      `json:"error,omitempty"`
}

// Detection は1件の検出です。BBox は元画像の座標で [x1, y1, x2, y2] です。
type Detection struct {
	ClassID    int        `json:"class_id"`
	ClassName  string     `json:"class_name"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}
