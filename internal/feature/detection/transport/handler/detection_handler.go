// Package handler はdetectionフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"retail_backend/internal/feature/detection/domain/entity"
	"retail_backend/internal/feature/detection/transport/http/dto"
	"retail_backend/internal/feature/detection/usecase"
	"retail_backend/internal/platform/logger"
)

const (
	// RequestIDHeader はリクエストIDを受け渡すヘッダーです。
	RequestIDHeader = "X-Request-ID"

	kindImage = "image"
	kindVideo = "video"
)

// DetectionUsecase は商品検出のユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type DetectionUsecase interface {
	DetectImage(ctx context.Context, data []byte) ([]entity.MatchedDetection, error)
	DetectVideo(ctx context.Context, data []byte) ([]entity.MatchedDetection, error)
}

// MetricsRecorder は検出リクエストの結果を記録します。
type MetricsRecorder interface {
	ObserveDetection(kind, outcome string, elapsed time.Duration, matched, unmatched int)
}

// DetectionHandler は画像・動画からの商品検出のHTTPリクエストを処理します。
type DetectionHandler struct {
	uc      DetectionUsecase
	metrics MetricsRecorder
}

// NewDetectionHandler はDetectionHandlerの新しいインスタンスを生成します。metrics は nil でも構いません。
func NewDetectionHandler(uc DetectionUsecase, metrics MetricsRecorder) *DetectionHandler {
	return &DetectionHandler{uc: uc, metrics: metrics}
}

// DetectImage は1枚の画像から商品を検出します。
//
// エンドポイント: POST /api/detect/realtime
// Content-Type: multipart/form-data
// フィールド: file（画像ファイル、最大10MB）
func (h *DetectionHandler) DetectImage(c *gin.Context) {
	h.detect(c, kindImage, usecase.MaxImageSize, h.uc.DetectImage)
}

// DetectVideo は動画をサンプリングして商品を検出します。
//
// エンドポイント: POST /api/detect/video
// Content-Type: multipart/form-data
// フィールド: file（動画ファイル、最大200MB）
func (h *DetectionHandler) DetectVideo(c *gin.Context) {
	h.detect(c, kindVideo, usecase.MaxVideoSize, h.uc.DetectVideo)
}

func (h *DetectionHandler) detect(c *gin.Context, kind string, limit int64, run func(context.Context, []byte) ([]entity.MatchedDetection, error)) {
	start := time.Now()
	requestID := c.GetHeader(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header(RequestIDHeader, requestID)
	log := logger.Log().With(zap.String("request_id", requestID), zap.String("kind", kind))

	data, status, err := readUpload(c, limit)
	if err != nil {
		log.Warn("アップロードの読み取りに失敗", zap.Error(err), zap.String("remote_addr", c.ClientIP()))
		h.observe(kind, "rejected", start, nil)
		c.JSON(status, dto.NewErrorResponse(uploadMessage(status)))
		return
	}
	log.Info("検出リクエストを受信", zap.Int("bytes", len(data)))

	dets, err := run(c.Request.Context(), data)
	if err != nil {
		status, msg := classify(err)
		if status >= http.StatusInternalServerError {
			log.Error("検出に失敗", zap.Error(err))
			h.observe(kind, "error", start, nil)
		} else {
			log.Warn("入力が不正なため検出できません", zap.Error(err))
			h.observe(kind, "rejected", start, nil)
		}
		c.JSON(status, dto.NewErrorResponse(msg))
		return
	}

	log.Info("検出が完了",
		zap.Int("detections", len(dets)),
		zap.Duration("elapsed", time.Since(start)),
	)
	h.observe(kind, "ok", start, dets)
	c.JSON(http.StatusOK, dto.FromMatched(dets))
}

func (h *DetectionHandler) observe(kind, outcome string, start time.Time, dets []entity.MatchedDetection) {
	if h.metrics == nil {
		return
	}
	var matched int
	for _, d := range dets {
		if d.Matched() {
			matched++
		}
	}
	h.metrics.ObserveDetection(kind, outcome, time.Since(start), matched, len(dets)-matched)
}

// readUpload はマルチパートの file フィールドを読み取ります。失敗時は返すべきHTTPステータスも返します。
func readUpload(c *gin.Context, limit int64) ([]byte, int, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	if file.Size > limit {
		return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("upload of %d bytes exceeds %d", file.Size, limit)
	}

	f, err := file.Open()
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Log().Warn("アップロードファイルのクローズに失敗", zap.Error(err))
		}
	}()

	// 上限+1バイトまで読み、超過はユースケース側で判定させる
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return data, http.StatusOK, nil
}

func uploadMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "file is required"
	case http.StatusRequestEntityTooLarge:
		return "file is too large"
	default:
		return "failed to read upload"
	}
}

// classify はユースケースのエラーをHTTPステータスと利用者向けメッセージに変換します。内部エラーの詳細は返しません。
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, usecase.ErrEmptyInput):
		return http.StatusBadRequest, "file is empty"
	case errors.Is(err, usecase.ErrInputTooLarge):
		return http.StatusRequestEntityTooLarge, "file is too large"
	case errors.Is(err, usecase.ErrUndecodableImage):
		return http.StatusUnprocessableEntity, "Decode failed"
	case errors.Is(err, usecase.ErrVideoOpenFailed):
		return http.StatusUnprocessableEntity, "Video open failed"
	case errors.Is(err, usecase.ErrInvalidVideo):
		return http.StatusUnprocessableEntity, "Invalid video data"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "detection was cancelled"
	default:
		return http.StatusInternalServerError, "detection failed"
	}
}
