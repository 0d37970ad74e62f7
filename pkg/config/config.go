package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	Service ServiceConfig
	DB      DBConfig
	Redis   RedisConfig
	Shopify ShopifyConfig
	Sync    SyncConfig
	Cron    CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PROMOSYNC_APP_ENV" required:"true"`
	Port         string `envconfig:"PROMOSYNC_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PROMOSYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PROMOSYNC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PROMOSYNC_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"PROMOSYNC_DB_DSN" required:"true"`

	MaxOpenConns    int           `envconfig:"PROMOSYNC_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PROMOSYNC_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PROMOSYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PROMOSYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PROMOSYNC_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"PROMOSYNC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PROMOSYNC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PROMOSYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PROMOSYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PROMOSYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// ShopifyConfig carries app-level Shopify settings. Per-shop access tokens
// live on the shops table, not in the environment.
type ShopifyConfig struct {
	APIVersion    string        `envconfig:"PROMOSYNC_SHOPIFY_API_VERSION" default:"2024-10"`
	WebhookSecret string        `envconfig:"PROMOSYNC_SHOPIFY_WEBHOOK_SECRET" required:"true"`
	HTTPTimeout   time.Duration `envconfig:"PROMOSYNC_SHOPIFY_HTTP_TIMEOUT" default:"15s"`
}

// SyncConfig bounds the discount sync engine's fan-out against the upstream
// cost-based rate limit.
type SyncConfig struct {
	MaxBatchSize   int           `envconfig:"PROMOSYNC_SYNC_MAX_BATCH_SIZE" default:"50"`
	InterCallDelay time.Duration `envconfig:"PROMOSYNC_SYNC_INTER_CALL_DELAY" default:"500ms"`
	InterPageDelay time.Duration `envconfig:"PROMOSYNC_SYNC_INTER_PAGE_DELAY" default:"1s"`
	PageSize       int           `envconfig:"PROMOSYNC_SYNC_PAGE_SIZE" default:"100"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"PROMOSYNC_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"PROMOSYNC_CRON_LOCK_TTL" default:"55m"`
}
