package config

// EnvPrefix is the envconfig prefix shared by every PromoSync process.
const EnvPrefix = "PROMOSYNC"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside envconfig tags (tests, docs).
const (
	EnvAppEnv        = "PROMOSYNC_APP_ENV"
	EnvPort          = "PROMOSYNC_APP_PORT"
	EnvDBDSN         = "PROMOSYNC_DB_DSN"
	EnvRedisURL      = "PROMOSYNC_REDIS_URL"
	EnvWebhookSecret = "PROMOSYNC_SHOPIFY_WEBHOOK_SECRET"
)
