// Package dto はdetectionフィーチャーのHTTPレスポンスを定義します。
package dto

import (
	"math"

	"retail_backend/internal/feature/detection/domain/entity"
)

// BBox は検出枠のピクセル座標です（小数点以下は切り捨て）。
type BBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// DetectionItem は1件の検出結果です。ProductID はカタログに該当がない場合 null です。
type DetectionItem struct {
	ProductName   string  `json:"product_name"`
	ProductExists bool    `json:"product_exists"`
	ProductID     *uint   `json:"product_id"`
	Confidence    float64 `json:"confidence"`
	BBox          BBox    `json:"bbox"`
}

// DetectResponse は検出APIの成功レスポンスです。
type DetectResponse struct {
	Success    bool            `json:"success"`
	Detections []DetectionItem `json:"detections"`
}

// ErrorResponse は検出APIの失敗レスポンスです。
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewErrorResponse は失敗レスポンスを生成します。
func NewErrorResponse(msg string) ErrorResponse {
	return ErrorResponse{Success: false, Error: msg}
}

// FromMatched はユースケースの結果をレスポンスに変換します。
func FromMatched(dets []entity.MatchedDetection) DetectResponse {
	items := make([]DetectionItem, 0, len(dets))
	for _, d := range dets {
		items = append(items, DetectionItem{
			ProductName:   d.DisplayName,
			ProductExists: d.Matched(),
			ProductID:     d.ProductID,
			Confidence:    math.Round(d.Confidence*1000) / 1000,
			BBox: BBox{
				X1: int(d.BBox.X1),
				Y1: int(d.BBox.Y1),
				X2: int(d.BBox.X2),
				Y2: int(d.BBox.Y2),
			},
		})
	}
	return DetectResponse{Success: true, Detections: items}
}
