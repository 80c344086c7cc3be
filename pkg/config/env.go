package config

const (
	EnvPrefix = "FENSHO"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverSQLite = "sqlite"
)

const (
	EnvAppEnv   = "FENSHO_APP_ENV"
	EnvPort     = "FENSHO_APP_PORT"
	EnvLogLevel = "FENSHO_LOG_LEVEL"

	EnvDBDSN      = "FENSHO_DB_DSN"
	EnvDBHost     = "FENSHO_DB_HOST"
	EnvDBUser     = "FENSHO_DB_USER"
	EnvDBName     = "FENSHO_DB_NAME"
	EnvDBPassword = "FENSHO_DB_PASSWORD"

	EnvRedisURL = "FENSHO_REDIS_URL"

	EnvJWTSecret = "FENSHO_JWT_SECRET"
	EnvJWTIssuer = "FENSHO_JWT_ISSUER"

	EnvCommissionRate     = "FENSHO_LEDGER_COMMISSION_RATE"
	EnvTDSRate            = "FENSHO_LEDGER_TDS_RATE"
	EnvSettlementDelay    = "FENSHO_LEDGER_SETTLEMENT_DELAY_DAYS"
	EnvRiskCODThreshold   = "FENSHO_RISK_COD_BLOCK_THRESHOLD"
	EnvLegacyCourier      = "FENSHO_LOGISTICS_LEGACY_COURIER"
	EnvRazorpayKeyID      = "FENSHO_RAZORPAY_KEY_ID"
	EnvRazorpayKeySecret  = "FENSHO_RAZORPAY_KEY_SECRET"
	EnvRazorpayWebhookKey = "FENSHO_RAZORPAY_WEBHOOK_SECRET"
	EnvFendexWebhookKey   = "FENSHO_LOGISTICS_FENDEX_WEBHOOK_SECRET"

	EnvGCPProjectID      = "FENSHO_GCP_PROJECT_ID"
	EnvPubSubDomainTopic = "FENSHO_PUBSUB_DOMAIN_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
