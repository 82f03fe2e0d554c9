// Package logger はアプリケーション全体で共有するzapロガーを提供します。
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logMu sync.RWMutex
	log   *zap.Logger
	sugar *zap.SugaredLogger
)

// Init は環境名に応じてロガーを初期化します。"production" 以外は開発用設定を使います。
func Init(environment string) error {
	if environment == "production" {
		return InitProduction()
	}
	return InitDevelopment()
}

// InitProduction はJSON形式のproductionロガーを初期化します。
func InitProduction() error {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	setLogger(l)
	return nil
}

// InitDevelopment はコンソール向けのdevelopmentロガーを初期化します。
func InitDevelopment() error {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	setLogger(l)
	return nil
}

// Set は任意のロガーを差し替えます（テストでobserverを注入する用途）。
func Set(l *zap.Logger) {
	setLogger(l)
}

func setLogger(l *zap.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	// zap.L()/zap.S() も同じインスタンスを返すようにする
	zap.ReplaceGlobals(l)
	if log != nil {
		_ = log.Sync()
	}
	log = l
	sugar = l.Sugar()
}

// Log は *zap.Logger を返します。未初期化の場合はzapのグローバル（noop）を返します。
func Log() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		return log
	}
	return zap.L()
}

// S は *zap.SugaredLogger を返します。
func S() *zap.SugaredLogger {
	logMu.RLock()
	defer logMu.RUnlock()
	if sugar != nil {
		return sugar
	}
	return zap.S()
}

// Sync はバッファされたログを書き出します。
func Sync() {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		_ = log.Sync()
	}
}
