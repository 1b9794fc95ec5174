package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Commerce      CommerceConfig
	Cron          CronConfig
	Outbox        OutboxConfig
	PubSub        PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Commerce.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MEDCART_APP_ENV" required:"true"`
	Port         string `envconfig:"MEDCART_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"MEDCART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MEDCART_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"MEDCART_LOG_FORMAT" default:"json"`
	// Comma separated list of browser origins allowed by CORS.
	CORSOrigins []string `envconfig:"MEDCART_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MEDCART_DB_DSN"`
	Driver string `envconfig:"MEDCART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MEDCART_DB_HOST"`
	LegacyPort     int    `envconfig:"MEDCART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MEDCART_DB_USER"`
	LegacyPassword string `envconfig:"MEDCART_DB_PASSWORD"`
	LegacyName     string `envconfig:"MEDCART_DB_NAME"`
	LegacySSLMode  string `envconfig:"MEDCART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MEDCART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MEDCART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MEDCART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MEDCART_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQuery time.Duration `envconfig:"MEDCART_DB_SLOW_QUERY" default:"500ms"`
	// TxAttempts bounds retries of transactions aborted by a serialization failure.
	TxAttempts int `envconfig:"MEDCART_DB_TX_ATTEMPTS" default:"3"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MEDCART_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"MEDCART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MEDCART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MEDCART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MEDCART_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"MEDCART_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"MEDCART_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"MEDCART_JWT_ISSUER" default:"medcart"`
	ExpirationMinutes      int    `envconfig:"MEDCART_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"MEDCART_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MEDCART_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MEDCART_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MEDCART_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MEDCART_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MEDCART_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"MEDCART_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"MEDCART_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"MEDCART_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"MEDCART_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"MEDCART_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"MEDCART_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MEDCART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MEDCART_AUTO_MIGRATE" default:"false"`
}

// CommerceConfig holds the pricing and stock policy knobs.
type CommerceConfig struct {
	TaxRate               string `envconfig:"MEDCART_COMMERCE_TAX_RATE" default:"0.05"`
	DeliveryFee           string `envconfig:"MEDCART_COMMERCE_DELIVERY_FEE" default:"50.00"`
	FreeDeliveryThreshold string `envconfig:"MEDCART_COMMERCE_FREE_DELIVERY_THRESHOLD" default:"500.00"`
	SubscriptionLookahead int    `envconfig:"MEDCART_COMMERCE_SUBSCRIPTION_LOOKAHEAD" default:"3"`
	// SubscriptionMaxRejections pauses a subscription after that many
	// consecutive undeliverable due dates.
	SubscriptionMaxRejections int `envconfig:"MEDCART_COMMERCE_SUBSCRIPTION_MAX_REJECTIONS" default:"3"`
	ExpiryWarningDays         int `envconfig:"MEDCART_COMMERCE_EXPIRY_WARNING_DAYS" default:"30"`
	RefillIntervalDays        int `envconfig:"MEDCART_COMMERCE_REFILL_INTERVAL_DAYS" default:"30"`
}

func (c CommerceConfig) validate() error {
	for name, raw := range map[string]string{
		EnvTaxRate:               c.TaxRate,
		EnvDeliveryFee:           c.DeliveryFee,
		EnvFreeDeliveryThreshold: c.FreeDeliveryThreshold,
	} {
		value, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if value.IsNegative() {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if c.SubscriptionLookahead < 1 {
		return fmt.Errorf("%s must be at least 1", EnvSubscriptionLookahead)
	}
	if c.SubscriptionMaxRejections < 1 {
		return fmt.Errorf("%s must be at least 1", EnvSubscriptionMaxRejections)
	}
	if c.ExpiryWarningDays < 1 {
		return fmt.Errorf("%s must be at least 1", EnvExpiryWarningDays)
	}
	if c.RefillIntervalDays < 1 {
		return fmt.Errorf("%s must be at least 1", EnvRefillIntervalDays)
	}
	return nil
}

// Amounts returns the parsed money settings. Load has already validated them.
func (c CommerceConfig) Amounts() (taxRate, deliveryFee, freeThreshold decimal.Decimal) {
	taxRate, _ = decimal.NewFromString(strings.TrimSpace(c.TaxRate))
	deliveryFee, _ = decimal.NewFromString(strings.TrimSpace(c.DeliveryFee))
	freeThreshold, _ = decimal.NewFromString(strings.TrimSpace(c.FreeDeliveryThreshold))
	return taxRate, deliveryFee, freeThreshold
}

type CronConfig struct {
	Interval time.Duration `envconfig:"MEDCART_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"MEDCART_CRON_LOCK_TTL" default:"15m"`
	// JobTimeout caps a single job within a cycle.
	JobTimeout time.Duration `envconfig:"MEDCART_CRON_JOB_TIMEOUT" default:"10m"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MEDCART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MEDCART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MEDCART_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type PubSubConfig struct {
	ProjectID   string `envconfig:"MEDCART_PUBSUB_PROJECT_ID"`
	DomainTopic string `envconfig:"MEDCART_PUBSUB_DOMAIN_TOPIC" default:"medcart-domain-events"`
	// CredentialsFile points at a service account key; empty uses ambient credentials.
	CredentialsFile string `envconfig:"MEDCART_PUBSUB_CREDENTIALS_FILE"`
	// EmulatorEndpoint dials a local emulator over plaintext without auth.
	EmulatorEndpoint string `envconfig:"MEDCART_PUBSUB_EMULATOR_ENDPOINT"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
	}
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(db.Driver, DriverSQLite) {
		db.DSN = "file:medcart.db?cache=shared"
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, key := range legacyDBEnvVars {
		if legacyValues[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
