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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Provider     ProviderConfig
	Reconcile    ReconcileConfig
	Usage        UsageConfig
	Webhook      WebhookConfig
	FeatureFlags FeatureFlagsConfig
	Cron         CronConfig
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
	Env          string `envconfig:"FITCHECK_APP_ENV" required:"true"`
	Port         string `envconfig:"FITCHECK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FITCHECK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FITCHECK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FITCHECK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FITCHECK_DB_DSN"`
	Driver string `envconfig:"FITCHECK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FITCHECK_DB_HOST"`
	LegacyPort     int    `envconfig:"FITCHECK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FITCHECK_DB_USER"`
	LegacyPassword string `envconfig:"FITCHECK_DB_PASSWORD"`
	LegacyName     string `envconfig:"FITCHECK_DB_NAME"`
	LegacySSLMode  string `envconfig:"FITCHECK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FITCHECK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FITCHECK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FITCHECK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FITCHECK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FITCHECK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FITCHECK_REDIS_ADDR"`
	Password     string        `envconfig:"FITCHECK_REDIS_PASSWORD"`
	DB           int           `envconfig:"FITCHECK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FITCHECK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FITCHECK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FITCHECK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FITCHECK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FITCHECK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// ProviderConfig holds the external billing provider connection settings.
type ProviderConfig struct {
	BaseURL      string        `envconfig:"FITCHECK_PROVIDER_BASE_URL"`
	APIKey       string        `envconfig:"FITCHECK_PROVIDER_API_KEY"`
	FetchTimeout time.Duration `envconfig:"FITCHECK_PROVIDER_FETCH_TIMEOUT" default:"2s"`
	MaxRetries   uint64        `envconfig:"FITCHECK_PROVIDER_MAX_RETRIES" default:"2"`
	RetryBackoff time.Duration `envconfig:"FITCHECK_PROVIDER_RETRY_BACKOFF" default:"150ms"`
}

// ReconcileConfig tunes subscription drift detection and the sweep job.
type ReconcileConfig struct {
	CycleEndTolerance  time.Duration `envconfig:"FITCHECK_RECONCILE_CYCLE_END_TOLERANCE" default:"60s"`
	SyncTouchInterval  time.Duration `envconfig:"FITCHECK_RECONCILE_SYNC_TOUCH_INTERVAL" default:"1h"`
	AllowLocalOverride bool          `envconfig:"FITCHECK_RECONCILE_ALLOW_LOCAL_OVERRIDE" default:"false"`
	SweepLimit         int           `envconfig:"FITCHECK_RECONCILE_SWEEP_LIMIT" default:"250"`
	SweepLookback      time.Duration `envconfig:"FITCHECK_RECONCILE_SWEEP_LOOKBACK" default:"168h"`
}

// UsageConfig tunes the rolling usage cycle.
type UsageConfig struct {
	CycleLength time.Duration `envconfig:"FITCHECK_USAGE_CYCLE_LENGTH" default:"720h"`
}

// WebhookConfig holds webhook verification and retention settings.
type WebhookConfig struct {
	SigningSecret string        `envconfig:"FITCHECK_WEBHOOK_SIGNING_SECRET"`
	Retention     time.Duration `envconfig:"FITCHECK_WEBHOOK_RETENTION" default:"720h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FITCHECK_AUTO_MIGRATE" default:"false"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"FITCHECK_CRON_INTERVAL" default:"24h"`
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
