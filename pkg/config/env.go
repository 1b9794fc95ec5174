package config

const (
	EnvPrefix = "MEDCART"

	EnvAppEnv       = "MEDCART_APP_ENV"
	EnvPort         = "MEDCART_APP_PORT"
	EnvLogLevel     = "MEDCART_LOG_LEVEL"
	EnvLogWarnStack = "MEDCART_LOG_WARN_STACK"

	EnvDBDSN      = "MEDCART_DB_DSN"
	EnvDBDriver   = "MEDCART_DB_DRIVER"
	EnvDBHost     = "MEDCART_DB_HOST"
	EnvDBPort     = "MEDCART_DB_PORT"
	EnvDBUser     = "MEDCART_DB_USER"
	EnvDBPassword = "MEDCART_DB_PASSWORD"
	EnvDBName     = "MEDCART_DB_NAME"

	EnvRedisURL = "MEDCART_REDIS_URL"

	EnvJWTSecret              = "MEDCART_JWT_SECRET"
	EnvJWTIssuer              = "MEDCART_JWT_ISSUER"
	EnvJWTExpMins             = "MEDCART_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "MEDCART_REFRESH_TOKEN_TTL_MINUTES"

	EnvUseSQLite   = "MEDCART_USE_SQLITE"
	EnvAutoMigrate = "MEDCART_AUTO_MIGRATE"

	EnvTaxRate                   = "MEDCART_COMMERCE_TAX_RATE"
	EnvDeliveryFee               = "MEDCART_COMMERCE_DELIVERY_FEE"
	EnvFreeDeliveryThreshold     = "MEDCART_COMMERCE_FREE_DELIVERY_THRESHOLD"
	EnvSubscriptionLookahead     = "MEDCART_COMMERCE_SUBSCRIPTION_LOOKAHEAD"
	EnvSubscriptionMaxRejections = "MEDCART_COMMERCE_SUBSCRIPTION_MAX_REJECTIONS"
	EnvExpiryWarningDays         = "MEDCART_COMMERCE_EXPIRY_WARNING_DAYS"
	EnvRefillIntervalDays        = "MEDCART_COMMERCE_REFILL_INTERVAL_DAYS"
	EnvCronInterval              = "MEDCART_CRON_INTERVAL"
	EnvPubSubProjectID           = "MEDCART_PUBSUB_PROJECT_ID"
	EnvPubSubDomainTopic         = "MEDCART_PUBSUB_DOMAIN_TOPIC"
	EnvOutboxPublishBatchSize    = "MEDCART_OUTBOX_PUBLISH_BATCH_SIZE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// legacyDBEnvVars must all be present when no DSN is configured.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
