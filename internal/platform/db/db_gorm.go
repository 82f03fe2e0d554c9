package db

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	catalogadapters "retail_backend/internal/feature/catalog/adapters"
	"retail_backend/internal/platform/logger"
)

// retryInterval は接続失敗時の再試行間隔です。
const retryInterval = 3 * time.Second

// Config はカタログDBへの接続設定です。
type Config struct {
	Driver         string // postgres / sqlite
	User           string
	Password       string
	Name           string
	Host           string
	Port           string
	SSLMode        string
	InstanceName   string // Cloud SQL 接続名（設定時はUnixソケットで接続）
	Path           string // sqlite のファイル
	RunMigrations  bool
	ConnectTimeout time.Duration
}

// BuildDSN はPostgreSQL接続用のDSN文字列を生成します。
// InstanceName が設定されている場合は Host/Port より優先して /cloudsql/ のUnixソケットを使います。
func BuildDSN(cfg Config) string {
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	if cfg.InstanceName != "" {
		return fmt.Sprintf("host=/cloudsql/%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.InstanceName, cfg.User, cfg.Password, cfg.Name, sslmode)
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, sslmode)
}

// ConnectWithRetry は timeout に達するまで一定間隔で接続を再試行します。
func ConnectWithRetry(dsn string, timeout time.Duration, opener func(string) (*gorm.DB, error)) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for {
		db, err := opener(dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().Add(retryInterval).After(deadline) {
			return nil, fmt.Errorf("db connect failed after %v: %w", timeout, err)
		}
		logger.Log().Warn("DB connect failed, retrying...", zap.Error(err), zap.Duration("interval", retryInterval))
		time.Sleep(retryInterval)
	}
}

// OpenDB は設定に応じてPostgreSQLまたはSQLiteに接続し、必要ならマイグレーションを実行します。
func OpenDB(cfg Config) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{})
	case "postgres", "":
		db, err = ConnectWithRetry(BuildDSN(cfg), cfg.ConnectTimeout, func(dsn string) (*gorm.DB, error) {
			return gorm.Open(postgres.Open(dsn), &gorm.Config{})
		})
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RunMigrations {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Migrate はカタログのテーブルを作成・更新します。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&catalogadapters.ProductModel{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}
