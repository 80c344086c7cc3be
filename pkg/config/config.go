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
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	Ledger       LedgerConfig
	Risk         RiskConfig
	Logistics    LogisticsConfig
	Razorpay     RazorpayConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if !strings.EqualFold(cfg.DB.Driver, DriverSQLite) {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FENSHO_APP_ENV" required:"true"`
	Port         string `envconfig:"FENSHO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FENSHO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FENSHO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FENSHO_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FENSHO_DB_DSN"`
	Driver string `envconfig:"FENSHO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FENSHO_DB_HOST"`
	LegacyPort     int    `envconfig:"FENSHO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FENSHO_DB_USER"`
	LegacyPassword string `envconfig:"FENSHO_DB_PASSWORD"`
	LegacyName     string `envconfig:"FENSHO_DB_NAME"`
	LegacySSLMode  string `envconfig:"FENSHO_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"FENSHO_DB_SQLITE_PATH" default:"file:fensho.db?cache=shared"`

	MaxOpenConns    int           `envconfig:"FENSHO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FENSHO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FENSHO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FENSHO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FENSHO_REDIS_URL"`
	Address      string        `envconfig:"FENSHO_REDIS_ADDR"`
	Password     string        `envconfig:"FENSHO_REDIS_PASSWORD"`
	DB           int           `envconfig:"FENSHO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FENSHO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FENSHO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FENSHO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FENSHO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FENSHO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// JWTConfig only carries verification settings; tokens are minted by the identity provider.
type JWTConfig struct {
	Secret string `envconfig:"FENSHO_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"FENSHO_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FENSHO_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyRetention time.Duration `envconfig:"FENSHO_EVENTING_IDEMPOTENCY_RETENTION" default:"720h"`
	WebhookRateLimit     int           `envconfig:"FENSHO_EVENTING_WEBHOOK_RATE_LIMIT" default:"600"`
	WebhookRateWindow    time.Duration `envconfig:"FENSHO_EVENTING_WEBHOOK_RATE_WINDOW" default:"1m"`
}

type LedgerConfig struct {
	CommissionRate      string        `envconfig:"FENSHO_LEDGER_COMMISSION_RATE" default:"0.10"`
	TDSRate             string        `envconfig:"FENSHO_LEDGER_TDS_RATE" default:"0"`
	SettlementDelayDays int           `envconfig:"FENSHO_LEDGER_SETTLEMENT_DELAY_DAYS" default:"7"`
	PayoutLockTTL       time.Duration `envconfig:"FENSHO_LEDGER_PAYOUT_LOCK_TTL" default:"30s"`
}

// Commission returns the default platform commission rate.
func (l LedgerConfig) Commission() decimal.Decimal {
	return decimal.RequireFromString(defaultString(l.CommissionRate, "0.10"))
}

// TDS returns the default withholding rate.
func (l LedgerConfig) TDS() decimal.Decimal {
	return decimal.RequireFromString(defaultString(l.TDSRate, "0"))
}

// SettlementDelay converts the configured day count into a duration.
func (l LedgerConfig) SettlementDelay() time.Duration {
	return time.Duration(l.SettlementDelayDays) * 24 * time.Hour
}

func (l LedgerConfig) validate() error {
	for env, raw := range map[string]string{EnvCommissionRate: l.CommissionRate, EnvTDSRate: l.TDSRate} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("parsing %s: %w", env, err)
		}
		if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return fmt.Errorf("%s must be in [0, 1)", env)
		}
	}
	if l.SettlementDelayDays < 0 {
		return fmt.Errorf("%s must not be negative", EnvSettlementDelay)
	}
	return nil
}

type RiskConfig struct {
	CODBlockThreshold int `envconfig:"FENSHO_RISK_COD_BLOCK_THRESHOLD" default:"60"`
}

type LogisticsConfig struct {
	LegacyCourier       string `envconfig:"FENSHO_LOGISTICS_LEGACY_COURIER" default:"FENDEX"`
	FendexWebhookSecret string `envconfig:"FENSHO_LOGISTICS_FENDEX_WEBHOOK_SECRET"`
}

type RazorpayConfig struct {
	KeyID         string `envconfig:"FENSHO_RAZORPAY_KEY_ID"`
	KeySecret     string `envconfig:"FENSHO_RAZORPAY_KEY_SECRET"`
	WebhookSecret string `envconfig:"FENSHO_RAZORPAY_WEBHOOK_SECRET"`
	Currency      string `envconfig:"FENSHO_RAZORPAY_CURRENCY" default:"INR"`
}

// Enabled reports whether gateway credentials are present.
func (r RazorpayConfig) Enabled() bool {
	return strings.TrimSpace(r.KeyID) != "" && strings.TrimSpace(r.KeySecret) != ""
}

type CronConfig struct {
	Interval         time.Duration `envconfig:"FENSHO_CRON_INTERVAL" default:"1m"`
	LockTTL          time.Duration `envconfig:"FENSHO_CRON_LOCK_TTL" default:"5m"`
	TrackingBatch    int           `envconfig:"FENSHO_CRON_TRACKING_BATCH" default:"100"`
	ConsistencyBatch int           `envconfig:"FENSHO_CRON_CONSISTENCY_BATCH" default:"500"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FENSHO_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FENSHO_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FENSHO_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"FENSHO_PUBSUB_DOMAIN_TOPIC"`
}

type OutboxConfig struct {
	BatchSize          int           `envconfig:"FENSHO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS     int           `envconfig:"FENSHO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts        int           `envconfig:"FENSHO_OUTBOX_MAX_ATTEMPTS" default:"10"`
	PublishedRetention time.Duration `envconfig:"FENSHO_OUTBOX_PUBLISHED_RETENTION" default:"720h"`
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

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}
