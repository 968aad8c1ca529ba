package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port          string `envconfig:"PORT" default:"8080"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`

	DatabaseURL     string        `envconfig:"DATABASE_URL"`
	AutoMigrate     bool          `envconfig:"AUTO_MIGRATE" default:"false"`
	DBMaxOpenConns  int           `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	DBMaxIdleConns  int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	DBConnMaxLife   time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
	DBConnMaxIdle   time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME" default:"5m"`
	SeedDemoData    bool          `envconfig:"SEED_DEMO_DATA" default:"true"`
	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	RedisPassword   string        `envconfig:"REDIS_PASSWORD"`
	RedisDB         int           `envconfig:"REDIS_DB" default:"0"`
	FilterCacheTTLS int           `envconfig:"FILTER_CACHE_TTL_SECONDS" default:"60"`

	AuthSecret            string `envconfig:"AUTH_SECRET"`
	AccessTokenTTLMinutes int    `envconfig:"ACCESS_TOKEN_TTL_MINUTES" default:"480"`

	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"LOG_WARN_STACK" default:"false"`

	PageSize int `envconfig:"PAGE_SIZE" default:"10"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	if cfg.FilterCacheTTLS < 1 {
		cfg.FilterCacheTTLS = 60
	}
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = 10
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) FilterCacheTTL() time.Duration {
	return time.Duration(c.FilterCacheTTLS) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}
