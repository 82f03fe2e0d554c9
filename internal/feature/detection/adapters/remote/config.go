package remote

import "time"

// Config は推論サーバーへの接続設定です。
type Config struct {
	BaseURL string        // 例: http://inference:8001
	Model   string        // サーバー側のモデル名（brand / general など）
	Timeout time.Duration // 1リクエストあたりのタイムアウト
}
