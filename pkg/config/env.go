package config

// EnvPrefix is handed to envconfig; every field below carries an explicit envconfig name.
const EnvPrefix = "RESERVATION"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "RESERVATION_APP_ENV"
	EnvPort     = "RESERVATION_APP_PORT"
	EnvLogLevel = "RESERVATION_LOG_LEVEL"

	EnvCORSOrigins = "RESERVATION_CORS_ORIGINS"

	EnvDBDSN  = "RESERVATION_DB_DSN"
	EnvDBHost = "RESERVATION_DB_HOST"
	EnvDBUser = "RESERVATION_DB_USER"
	EnvDBName = "RESERVATION_DB_NAME"

	EnvRedisURL = "RESERVATION_REDIS_URL"

	EnvSlotMinDuration = "RESERVATION_SLOT_MIN_DURATION_MINUTES"
	EnvSlotMaxHorizon  = "RESERVATION_SLOT_MAX_HORIZON"
	EnvSlotHoldTTL     = "RESERVATION_SLOT_HOLD_TTL"

	EnvStockLowThreshold = "RESERVATION_STOCK_LOW_THRESHOLD"

	EnvOutboxBatchSize = "RESERVATION_OUTBOX_BATCH_SIZE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
