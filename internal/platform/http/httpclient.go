package http

import (
	"net"
	"net/http"
	"time"
)

// maxConnsPerHost は1つの推論サーバーに対して保持するアイドル接続数です。
// 検出リクエストはすべて同じホスト宛てです（http.DefaultTransport の既定値は2）。
const maxConnsPerHost = 32

// NewHTTPClient は推論サーバーなど外部サービス呼び出し用のHTTPクライアントを作成します。
// resty.NewWithClient に渡して使います。
//
// timeout はリクエスト全体（画像の送信と推論の待ち時間を含む）の上限です。
// 接続・TLSハンドシェイクはこれより短い固定のタイムアウトで打ち切ります。
func NewHTTPClient(timeout time.Duration) *http.Client {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   maxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: t}
}
