package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when SHOPHOURS_CONFIG_PATH is not set.
const DefaultPath = "configs/config.yaml"

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Backup     BackupConfig     `yaml:"backup"`
	Redis      RedisConfig      `yaml:"redis"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Overrides  OverridesConfig  `yaml:"overrides"`
	Watch      WatchConfig      `yaml:"watch"`
	Shops      ShopsSettings    `yaml:"shops"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	StoragePath   string        `yaml:"storage_path"`
	RetentionDays int           `yaml:"retention_days"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// APIKey is a credential accepted in the X-Api-Key header. Label names
// the caller in logs and as the default override actor.
type APIKey struct {
	Key   string `yaml:"key"`
	Label string `yaml:"label"`
}

type APIConfig struct {
	Keys      []APIKey `yaml:"keys"`
	RateLimit float64  `yaml:"rate_limit"` // requests per second per key
	RateBurst int      `yaml:"rate_burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"` // serves /metrics on the API address
	GRPCHealthPort    int  `yaml:"grpc_health_port"`   // 0 disables the gRPC health service
}

type OverridesConfig struct {
	ExpireAtMidnight bool `yaml:"expire_at_midnight"`
}

type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Shops    []string      `yaml:"shops"` // empty means every stored shop
}

type ShopsSettings struct {
	DefaultTimeZone string        `yaml:"default_time_zone"`
	SeedPath        string        `yaml:"seed_path"`
	ReloadInterval  time.Duration `yaml:"reload_interval"`
	OverwriteOnSeed bool          `yaml:"overwrite_on_seed"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads the YAML config at path, expanding ${ENV_VAR} placeholders,
// and fills defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SHOPHOURS_CONFIG_PATH")
	}
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/shophours.db"
	}
	if c.Backup.Interval <= 0 {
		c.Backup.Interval = 24 * time.Hour
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}
	if c.Redis.CacheTTL <= 0 {
		c.Redis.CacheTTL = 5 * time.Minute
	}
	if c.API.RateLimit <= 0 {
		c.API.RateLimit = 10
	}
	if c.API.RateBurst <= 0 {
		c.API.RateBurst = 20
	}
	if c.Watch.Interval <= 0 {
		c.Watch.Interval = 30 * time.Second
	}
	if c.Shops.DefaultTimeZone == "" {
		c.Shops.DefaultTimeZone = "UTC"
	}
	if c.Shops.ReloadInterval <= 0 {
		c.Shops.ReloadInterval = 30 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Shops.DefaultTimeZone); err != nil {
		return fmt.Errorf("shops.default_time_zone: unknown zone %q", c.Shops.DefaultTimeZone)
	}
	if c.Redis.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("redis.address is required when redis is enabled")
	}
	seen := make(map[string]bool)
	for i, k := range c.API.Keys {
		if k.Key == "" {
			return fmt.Errorf("api.keys[%d]: key is required", i)
		}
		if seen[k.Key] {
			return fmt.Errorf("api.keys[%d]: duplicate key", i)
		}
		seen[k.Key] = true
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("backup.retention_days cannot be negative")
	}
	return nil
}
