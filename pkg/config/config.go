package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Slots        SlotsConfig
	Stock        StockConfig
	Cron         CronConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Slots.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RESERVATION_APP_ENV" required:"true"`
	Port         string `envconfig:"RESERVATION_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"RESERVATION_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RESERVATION_LOG_WARN_STACK" default:"false"`

	CORSOrigins     []string      `envconfig:"RESERVATION_CORS_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout time.Duration `envconfig:"RESERVATION_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"RESERVATION_DB_DSN"`

	LegacyHost     string `envconfig:"RESERVATION_DB_HOST"`
	LegacyPort     int    `envconfig:"RESERVATION_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RESERVATION_DB_USER"`
	LegacyPassword string `envconfig:"RESERVATION_DB_PASSWORD"`
	LegacyName     string `envconfig:"RESERVATION_DB_NAME"`
	LegacySSLMode  string `envconfig:"RESERVATION_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RESERVATION_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RESERVATION_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RESERVATION_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RESERVATION_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RESERVATION_REDIS_URL"`
	Address      string        `envconfig:"RESERVATION_REDIS_ADDR"`
	Password     string        `envconfig:"RESERVATION_REDIS_PASSWORD"`
	DB           int           `envconfig:"RESERVATION_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RESERVATION_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RESERVATION_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RESERVATION_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RESERVATION_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RESERVATION_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"RESERVATION_AUTO_MIGRATE" default:"false"`
}

// SlotsConfig holds the slot generation and hold policies.
type SlotsConfig struct {
	MinDurationMinutes int           `envconfig:"RESERVATION_SLOT_MIN_DURATION_MINUTES" default:"5"`
	MaxHorizon         time.Duration `envconfig:"RESERVATION_SLOT_MAX_HORIZON" default:"720h"`
	HoldTTL            time.Duration `envconfig:"RESERVATION_SLOT_HOLD_TTL" default:"15m"`
	SweepBatchSize     int           `envconfig:"RESERVATION_SLOT_SWEEP_BATCH_SIZE" default:"200"`
}

// MinDuration returns the minimum slot length as a duration.
func (s SlotsConfig) MinDuration() time.Duration {
	return time.Duration(s.MinDurationMinutes) * time.Minute
}

func (s SlotsConfig) validate() error {
	if s.MinDurationMinutes <= 0 {
		return fmt.Errorf("%s must be positive", EnvSlotMinDuration)
	}
	if s.MaxHorizon <= 0 {
		return fmt.Errorf("%s must be positive", EnvSlotMaxHorizon)
	}
	if s.HoldTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvSlotHoldTTL)
	}
	return nil
}

type StockConfig struct {
	LowStockThreshold int `envconfig:"RESERVATION_STOCK_LOW_THRESHOLD" default:"5"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"RESERVATION_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"RESERVATION_CRON_LOCK_TTL" default:"5m"`
}

// OutboxConfig drives the relay that forwards outbox rows to the event stream.
type OutboxConfig struct {
	Stream        string        `envconfig:"RESERVATION_OUTBOX_STREAM" default:"domain"`
	StreamMaxLen  int64         `envconfig:"RESERVATION_OUTBOX_STREAM_MAXLEN" default:"100000"`
	BatchSize     int           `envconfig:"RESERVATION_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval  time.Duration `envconfig:"RESERVATION_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts   int           `envconfig:"RESERVATION_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays int           `envconfig:"RESERVATION_OUTBOX_RETENTION_DAYS" default:"30"`
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
