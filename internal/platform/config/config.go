// Package config はviperで設定ファイルと環境変数（RETAIL_ 接頭辞）からアプリケーション設定を読み込みます。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 検出器のバックエンド
const (
	BackendONNX        = "onnx"
	BackendRemote      = "remote"
	BackendCloudVision = "cloudvision"
)

// Config はアプリケーション全体の設定です。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Detectors DetectorsConfig `mapstructure:"detectors"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Video     VideoConfig     `mapstructure:"video"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
}

// ServerConfig はHTTPサーバーの設定です。
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"` // development / production
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig はカタログDBの設定です。
type DatabaseConfig struct {
	Driver         string        `mapstructure:"driver"` // postgres / sqlite
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Name           string        `mapstructure:"name"`
	SSLMode        string        `mapstructure:"sslmode"`
	InstanceName   string        `mapstructure:"instance_name"` // Cloud SQL 接続名
	Path           string        `mapstructure:"path"`          // sqlite のファイル
	RunMigrations  bool          `mapstructure:"run_migrations"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// RedisConfig はカタログキャッシュの設定です。Enabled が false の場合はキャッシュしません。
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DetectorsConfig はブランドモデルと汎用モデルの設定です。
type DetectorsConfig struct {
	Brand   DetectorConfig `mapstructure:"brand"`
	General DetectorConfig `mapstructure:"general"`
}

// DetectorConfig は1つの検出モデルの設定です。
type DetectorConfig struct {
	Backend           string        `mapstructure:"backend"`
	ModelPath         string        `mapstructure:"model_path"`  // onnx
	LabelsPath        string        `mapstructure:"labels_path"` // onnx
	BaseURL           string        `mapstructure:"base_url"`    // remote
	Model             string        `mapstructure:"model"`       // remote
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"` // remote / cloudvision、0 は無制限
}

// PolicyConfig は検出ポリシーファイルの設定です。Path が空の場合は組み込みのポリシーを使います。
type PolicyConfig struct {
	Path string `mapstructure:"path"`
}

// VideoConfig は動画処理の設定です。
type VideoConfig struct {
	StagingDir string `mapstructure:"staging_dir"`
}

// CatalogConfig は商品カタログの設定です。
type CatalogConfig struct {
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	CacheNamespace string        `mapstructure:"cache_namespace"`
	SeedPath       string        `mapstructure:"seed_path"`
}

// Load は設定ファイル（config.yaml）、環境変数、デフォルト値から設定を読み込みます。
// 設定ファイルは任意です。環境変数は RETAIL_DATABASE_HOST のように指定します。
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/retail-backend/")
	return load(v)
}

// LoadFile は指定した設定ファイルから読み込みます。ファイルが存在しない場合はエラーです。
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

// load は設定ファイルの場所を指定済みのviperから読み込みます。
// 検索パスで見つからない場合のみデフォルト値で続行します。
func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("RETAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults はデフォルト値を設定します。環境変数で上書きできるよう、すべてのキーをここで宣言します。
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "retail")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "retail")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.instance_name", "")
	v.SetDefault("database.path", "retail.db")
	v.SetDefault("database.run_migrations", false)
	v.SetDefault("database.connect_timeout", "60s")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	for _, role := range []string{"brand", "general"} {
		prefix := "detectors." + role + "."
		v.SetDefault(prefix+"backend", BackendONNX)
		v.SetDefault(prefix+"model_path", "models/"+role+".onnx")
		v.SetDefault(prefix+"labels_path", "models/"+role+".names")
		v.SetDefault(prefix+"base_url", "")
		v.SetDefault(prefix+"model", role)
		v.SetDefault(prefix+"timeout", "30s")
		v.SetDefault(prefix+"requests_per_minute", 0)
	}

	v.SetDefault("policy.path", "")
	v.SetDefault("video.staging_dir", "")

	v.SetDefault("catalog.cache_ttl", "1m")
	v.SetDefault("catalog.cache_namespace", "catalog")
	v.SetDefault("catalog.seed_path", "configs/catalog_seed.yaml")
}

func validate(cfg *Config) error {
	if cfg.Server.Environment != "development" && cfg.Server.Environment != "production" {
		return fmt.Errorf("server environment must be 'development' or 'production', got: %s", cfg.Server.Environment)
	}

	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.Name == "" {
			return fmt.Errorf("database name is required (set RETAIL_DATABASE_NAME)")
		}
	case "sqlite":
		if cfg.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite (set RETAIL_DATABASE_PATH)")
		}
	default:
		return fmt.Errorf("database driver must be 'postgres' or 'sqlite', got: %s", cfg.Database.Driver)
	}

	if err := validateDetector("brand", cfg.Detectors.Brand, BackendONNX, BackendRemote, BackendCloudVision); err != nil {
		return err
	}
	if err := validateDetector("general", cfg.Detectors.General, BackendONNX, BackendRemote); err != nil {
		return err
	}
	return nil
}

func validateDetector(role string, d DetectorConfig, allowed ...string) error {
	ok := false
	for _, b := range allowed {
		if d.Backend == b {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("%s detector backend must be one of %v, got: %s", role, allowed, d.Backend)
	}

	switch d.Backend {
	case BackendONNX:
		if d.ModelPath == "" || d.LabelsPath == "" {
			return fmt.Errorf("%s detector: model_path and labels_path are required for onnx", role)
		}
	case BackendRemote:
		if d.BaseURL == "" {
			return fmt.Errorf("%s detector: base_url is required for remote (set RETAIL_DETECTORS_%s_BASE_URL)", role, strings.ToUpper(role))
		}
	}
	if d.RequestsPerMinute < 0 {
		return fmt.Errorf("%s detector: requests_per_minute must not be negative", role)
	}
	return nil
}
