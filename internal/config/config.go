package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig   `mapstructure:"server"`
	Database  DatabaseConfig `mapstructure:"database"`
	Drafts    DraftsConfig   `mapstructure:"drafts"`
	Audit     AuditConfig    `mapstructure:"audit"`
	Log       LogConfig      `mapstructure:"log"`
	JWTSecret string         `mapstructure:"jwt_secret"`
}

type ServerConfig struct {
	Port        int           `mapstructure:"port"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	BodyLimit   int           `mapstructure:"body_limit"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
	Path     string `mapstructure:"path"` // directory for SQLite database files
}

// DraftsConfig tunes the draft persistence engine.
type DraftsConfig struct {
	MaxItems          int           `mapstructure:"max_items"`
	TempIDThreshold   int64         `mapstructure:"temp_id_threshold"`
	TxTimeout         time.Duration `mapstructure:"tx_timeout"`
	NormalizeMaxDepth int           `mapstructure:"normalize_max_depth"`
}

// AuditConfig selects where committed-save events go.
type AuditConfig struct {
	Driver          string   `mapstructure:"driver"` // log, outbox, kafka, redis, none; comma-separated for several
	BufferSize      int      `mapstructure:"buffer_size"`
	FlushIntervalMs int      `mapstructure:"flush_interval_ms"`
	KafkaBrokers    []string `mapstructure:"kafka_brokers"`
	KafkaTopic      string   `mapstructure:"kafka_topic"`
	RedisAddr       string   `mapstructure:"redis_addr"`
	RedisStream     string   `mapstructure:"redis_stream"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or text
	Output     string `mapstructure:"output"` // stdout, file, both
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DSN returns the driver-specific data source name.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		if d.Name == ":memory:" {
			return d.Name
		}
		return filepath.Join(d.Path, d.Name+".db")
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsSQLite returns true if the driver is sqlite.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver == "sqlite"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.body_limit", 4*1024*1024)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "credentialing")
	v.SetDefault("database.name", "credentialing")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.path", "./data")
	v.SetDefault("drafts.max_items", 50)
	v.SetDefault("drafts.temp_id_threshold", 1_000_000_000)
	v.SetDefault("drafts.tx_timeout", "10s")
	v.SetDefault("drafts.normalize_max_depth", 10)
	v.SetDefault("audit.driver", "log")
	v.SetDefault("audit.buffer_size", 100)
	v.SetDefault("audit.flush_interval_ms", 250)
	v.SetDefault("audit.kafka_topic", "credentialing.drafts.audit")
	v.SetDefault("audit.redis_addr", "localhost:6379")
	v.SetDefault("audit.redis_stream", "credentialing:drafts:audit")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file_path", "./logs/credentialing.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("jwt_secret", "changeme-secret")
}

// Load reads app.yaml (if present) and environment overrides such as
// DATABASE_DRIVER or AUDIT_DRIVER.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("../..")
	return load(v)
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Drafts.MaxItems <= 0 {
		return nil, fmt.Errorf("drafts.max_items must be positive")
	}
	return &cfg, nil
}
