package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "ALIF_DB_DSN"
	EnvDBHost = "ALIF_DB_HOST"
	EnvDBUser = "ALIF_DB_USER"
	EnvDBName = "ALIF_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Stripe   StripeConfig
	Fees     FeesConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Outbox   OutboxConfig
	Orders   OrdersConfig
	Webhooks WebhooksConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ALIF_APP_ENV" required:"true"`
	Port         string `envconfig:"ALIF_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ALIF_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ALIF_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"ALIF_APP_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ALIF_DB_DSN"`
	Driver string `envconfig:"ALIF_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ALIF_DB_HOST"`
	LegacyPort     int    `envconfig:"ALIF_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ALIF_DB_USER"`
	LegacyPassword string `envconfig:"ALIF_DB_PASSWORD"`
	LegacyName     string `envconfig:"ALIF_DB_NAME"`
	LegacySSLMode  string `envconfig:"ALIF_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ALIF_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ALIF_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ALIF_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ALIF_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ALIF_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ALIF_REDIS_ADDR"`
	Password     string        `envconfig:"ALIF_REDIS_PASSWORD"`
	DB           int           `envconfig:"ALIF_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ALIF_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ALIF_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ALIF_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ALIF_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ALIF_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ALIF_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ALIF_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ALIF_JWT_EXPIRATION_MINUTES" default:"60"`
}

type StripeConfig struct {
	APIKey        string        `envconfig:"ALIF_STRIPE_API_KEY"`
	WebhookSecret string        `envconfig:"ALIF_STRIPE_WEBHOOK_SECRET"`
	Env           string        `envconfig:"ALIF_STRIPE_ENV" default:"test"`
	Timeout       time.Duration `envconfig:"ALIF_STRIPE_TIMEOUT" default:"15s"`
	RefreshURL    string        `envconfig:"ALIF_STRIPE_ONBOARDING_REFRESH_URL"`
	ReturnURL     string        `envconfig:"ALIF_STRIPE_ONBOARDING_RETURN_URL"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type FeesConfig struct {
	// FlatRatePercent is the platform fee applied at offer acceptance.
	FlatRatePercent string `envconfig:"ALIF_FEES_FLAT_RATE_PERCENT" default:"5"`
	Currency        string `envconfig:"ALIF_FEES_CURRENCY" default:"EUR"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ALIF_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ALIF_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ALIF_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"ALIF_PUBSUB_DOMAIN_TOPIC" default:"alif-domain-events"`
	DomainSubscription string `envconfig:"ALIF_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ALIF_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ALIF_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ALIF_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type OrdersConfig struct {
	// UnpaidExpiry is how long an order may sit in pending_payment before
	// the cron worker cancels it.
	UnpaidExpiry time.Duration `envconfig:"ALIF_ORDERS_UNPAID_EXPIRY" default:"72h"`
	// TransferVerifyWindow bounds how long a transferred_to_seller flag may
	// remain unverified before the sweep raises an alert.
	TransferVerifyWindow time.Duration `envconfig:"ALIF_ORDERS_TRANSFER_VERIFY_WINDOW" default:"48h"`
	CronInterval         time.Duration `envconfig:"ALIF_ORDERS_CRON_INTERVAL" default:"10m"`
	MetricsPort          string        `envconfig:"ALIF_CRON_METRICS_PORT" default:"9102"`
}

type WebhooksConfig struct {
	IdempotencyTTL time.Duration `envconfig:"ALIF_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
	// RateLimit caps deliveries per client IP per window on the
	// unauthenticated webhook endpoint. Zero disables it.
	RateLimit       int           `envconfig:"ALIF_WEBHOOK_RATE_LIMIT" default:"120"`
	RateLimitWindow time.Duration `envconfig:"ALIF_WEBHOOK_RATE_LIMIT_WINDOW" default:"1m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
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
