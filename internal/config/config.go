package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/common/database"
)

// ServiceConfig holds all configuration for the zone import service.
type ServiceConfig struct {
	Port              string            `mapstructure:"port"`
	AppEnv            string            `mapstructure:"app_env"`
	AllowedOrigins    []string          `mapstructure:"allowed_origins"`
	DBConfig          DatabaseConfig    `mapstructure:"db"`
	KafkaConfig       KafkaConfig       `mapstructure:"kafka"`
	ValkeyConfig      ValkeyConfig      `mapstructure:"valkey"`
	ZoneServiceConfig ZoneServiceConfig `mapstructure:"zone_service"`
	ImportConfig      ImportConfig      `mapstructure:"import"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// KafkaConfig holds broker settings.
type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	GroupPrefix string   `mapstructure:"group_prefix"`
}

// ValkeyConfig holds the shared cache settings. An empty Addr disables the cache.
type ValkeyConfig struct {
	Addr       string `mapstructure:"addr"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// ZoneServiceConfig points at the external zone and store directory service.
type ZoneServiceConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
}

// ImportConfig bounds uploads.
type ImportConfig struct {
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// Addr returns the listen address for the HTTP server.
func (c *ServiceConfig) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// Postgres converts the database settings for the connection helpers.
func (c *ServiceConfig) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:     c.DBConfig.Host,
		Port:     c.DBConfig.Port,
		User:     c.DBConfig.User,
		Password: c.DBConfig.Password,
		DBName:   c.DBConfig.DBName,
		SSLMode:  c.DBConfig.SSLMode,
	}
}

// ValkeyTTL returns the snapshot cache TTL.
func (c *ServiceConfig) ValkeyTTL() time.Duration {
	return time.Duration(c.ValkeyConfig.TTLSeconds) * time.Second
}

// Load reads configuration from an optional config.yaml and ZONE_* environment variables.
func Load() (*ServiceConfig, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*ServiceConfig, error) {
	v.SetDefault("port", "8080")
	v.SetDefault("app_env", "development")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "zone_import")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_prefix", "")
	v.SetDefault("valkey.addr", "")
	v.SetDefault("valkey.ttl_seconds", 300)
	v.SetDefault("zone_service.base_url", "http://localhost:8090")
	v.SetDefault("zone_service.timeout", 10*time.Second)
	v.SetDefault("zone_service.retry_count", 2)
	v.SetDefault("import.max_upload_bytes", 10<<20)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// ZONE_DB_HOST -> db.host
	v.SetEnvPrefix("ZONE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg ServiceConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *ServiceConfig) Validate() error {
	var errs []string

	if strings.TrimPrefix(c.Port, ":") == "" {
		errs = append(errs, "port is required")
	}
	if c.DBConfig.Host == "" {
		errs = append(errs, "db.host is required")
	}
	if c.DBConfig.DBName == "" {
		errs = append(errs, "db.name is required")
	}
	if len(c.KafkaConfig.Brokers) == 0 {
		errs = append(errs, "kafka.brokers is required")
	}
	if c.ZoneServiceConfig.BaseURL == "" {
		errs = append(errs, "zone_service.base_url is required")
	}
	if c.ZoneServiceConfig.Timeout <= 0 {
		errs = append(errs, "zone_service.timeout must be positive")
	}
	if c.ZoneServiceConfig.RetryCount < 0 {
		errs = append(errs, "zone_service.retry_count must not be negative")
	}
	if c.ValkeyConfig.Addr != "" && c.ValkeyConfig.TTLSeconds <= 0 {
		errs = append(errs, "valkey.ttl_seconds must be positive when valkey.addr is set")
	}
	if c.ImportConfig.MaxUploadBytes <= 0 {
		errs = append(errs, "import.max_upload_bytes must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *ServiceConfig) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "test"
}
