// Package handler はプラットフォームレベルのエンドポイント用HTTPハンドラーを提供します。
package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// defaultCheckTimeout は1つの依存先チェックに許す時間です。
const defaultCheckTimeout = 2 * time.Second

// Check は依存先（DB、Redis、推論サーバーなど）の疎通確認です。
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// HealthHandler は /healthz（生存確認）と /readyz（依存先を含む準備完了確認）を処理します。
type HealthHandler struct {
	service string
	checks  []Check
	timeout time.Duration
}

// NewHealthHandler はHealthHandlerの新しいインスタンスを生成します。
func NewHealthHandler(service string, checks ...Check) *HealthHandler {
	return &HealthHandler{service: service, checks: checks, timeout: defaultCheckTimeout}
}

// Live はプロセスが応答できることだけを返します。依存先は確認しません。
// HTTPメソッドに応じて適切にレスポンスし、キャッシュを防止します。
func (h *HealthHandler) Live(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	switch c.Request.Method {
	case http.MethodHead:
		c.Status(http.StatusOK)
	case http.MethodOptions:
		c.Status(http.StatusNoContent)
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": h.service})
	}
}

// Ready はすべての依存先チェックを並行に実行し、1つでも失敗すれば503を返します。
func (h *HealthHandler) Ready(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	results := h.runChecks(c.Request.Context())
	status, code := "ready", http.StatusOK
	for _, r := range results {
		if r != "ok" {
			status, code = "unavailable", http.StatusServiceUnavailable
			break
		}
	}

	if c.Request.Method == http.MethodHead {
		c.Status(code)
		return
	}
	c.JSON(code, gin.H{"status": status, "service": h.service, "checks": results})
}

func (h *HealthHandler) runChecks(ctx context.Context) map[string]string {
	var mu sync.Mutex
	results := make(map[string]string, len(h.checks))

	// 個々の失敗は結果に記録するだけなので、errgroupのキャンセルは使わない
	var g errgroup.Group
	for _, chk := range h.checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()

			res := "ok"
			if err := chk.Fn(cctx); err != nil {
				res = "error: " + err.Error()
			}
			mu.Lock()
			results[chk.Name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
