package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	detectionhandler "retail_backend/internal/feature/detection/transport/handler"
	"retail_backend/internal/platform/http/handler"
	"retail_backend/internal/platform/metrics"
)

// Options はルーター生成時の任意設定です。
type Options struct {
	// AllowedOrigins が空の場合はCORSミドルウェアを適用しません。
	AllowedOrigins []string
}

func NewRouter(health *handler.HealthHandler, detection *detectionhandler.DetectionHandler,
	m *metrics.Metrics, opts Options) *gin.Engine {
	r := gin.Default()

	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  opts.AllowedOrigins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", detectionhandler.RequestIDHeader},
			ExposeHeaders: []string{detectionhandler.RequestIDHeader},
			MaxAge:        12 * time.Hour,
		}))
	}
	r.Use(m.Middleware())

	// 導通確認用
	r.GET("/healthz", health.Live)
	r.HEAD("/healthz", health.Live)
	r.OPTIONS("/healthz", health.Live)
	// 依存先を含む準備完了確認
	r.GET("/readyz", health.Ready)
	r.HEAD("/readyz", health.Ready)
	r.GET("/metrics", gin.WrapH(m.Handler()))

	// 商品検出（multipart の file フィールド）
	api := r.Group("/api/detect")
	{
		api.POST("/realtime", detection.DetectImage)
		api.POST("/video", detection.DetectVideo)
	}

	return r
}
