package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable consumed by the platform.
const EnvPrefix = "TILLSYNC"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "TILLSYNC_DB_DSN"
	EnvDBHost = "TILLSYNC_DB_HOST"
	EnvDBUser = "TILLSYNC_DB_USER"
	EnvDBName = "TILLSYNC_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Station      StationConfig
	Poll         PollConfig
	Preview      PreviewConfig
	Pricing      PricingConfig
	Session      SessionConfig
	Janitor      JanitorConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"TILLSYNC_APP_ENV" required:"true"`
	Port         string `envconfig:"TILLSYNC_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"TILLSYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TILLSYNC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TILLSYNC_DB_DSN"`
	Driver string `envconfig:"TILLSYNC_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TILLSYNC_DB_HOST"`
	LegacyPort     int    `envconfig:"TILLSYNC_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TILLSYNC_DB_USER"`
	LegacyPassword string `envconfig:"TILLSYNC_DB_PASSWORD"`
	LegacyName     string `envconfig:"TILLSYNC_DB_NAME"`
	LegacySSLMode  string `envconfig:"TILLSYNC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TILLSYNC_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"TILLSYNC_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"TILLSYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TILLSYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TILLSYNC_REDIS_URL"`
	Address      string        `envconfig:"TILLSYNC_REDIS_ADDR"`
	Password     string        `envconfig:"TILLSYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"TILLSYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TILLSYNC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TILLSYNC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TILLSYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TILLSYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TILLSYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// StationConfig identifies the terminal pair this process belongs to.
type StationConfig struct {
	MerchantID  string `envconfig:"TILLSYNC_MERCHANT_ID"`
	StationID   string `envconfig:"TILLSYNC_STATION_ID"`
	StationName string `envconfig:"TILLSYNC_STATION_NAME"`
	DeviceName  string `envconfig:"TILLSYNC_DEVICE_NAME"`
}

type PollConfig struct {
	POSInterval        time.Duration `envconfig:"TILLSYNC_POLL_POS_INTERVAL" default:"2s"`
	DisplayInterval    time.Duration `envconfig:"TILLSYNC_POLL_DISPLAY_INTERVAL" default:"1500ms"`
	CompletedIdleDelay time.Duration `envconfig:"TILLSYNC_DISPLAY_COMPLETED_IDLE_DELAY" default:"8s"`
}

type PreviewConfig struct {
	Debounce        time.Duration `envconfig:"TILLSYNC_PREVIEW_DEBOUNCE" default:"500ms"`
	EmptyCartDelay  time.Duration `envconfig:"TILLSYNC_PREVIEW_EMPTY_CART_DELAY" default:"1s"`
	StaleAfter      time.Duration `envconfig:"TILLSYNC_PREVIEW_STALE_AFTER" default:"4h"`
	NumberKeyPrefix string        `envconfig:"TILLSYNC_PREVIEW_NUMBER_KEY_PREFIX" default:"order_number"`
}

type PricingConfig struct {
	TaxRate            float64 `envconfig:"TILLSYNC_TAX_RATE" default:"0.08"`
	DualPricingEnabled bool    `envconfig:"TILLSYNC_DUAL_PRICING_ENABLED" default:"false"`
	FlatFeeCents       int64   `envconfig:"TILLSYNC_DUAL_PRICING_FLAT_FEE_CENTS" default:"0"`
	CCSurchargePercent float64 `envconfig:"TILLSYNC_DUAL_PRICING_CC_PERCENT" default:"0"`
	Region             string  `envconfig:"TILLSYNC_DUAL_PRICING_REGION" default:"US"`
	PricingMode        string  `envconfig:"TILLSYNC_DUAL_PRICING_MODE" default:"surcharge"`
}

type SessionConfig struct {
	APIBaseURL        string        `envconfig:"TILLSYNC_SESSION_API_BASE_URL" default:"http://localhost:8080"`
	HeartbeatInterval time.Duration `envconfig:"TILLSYNC_SESSION_HEARTBEAT_INTERVAL" default:"15s"`
	StaleMultiplier   int           `envconfig:"TILLSYNC_SESSION_STALE_MULTIPLIER" default:"3"`
}

// StaleAfter is the window without a heartbeat before observers treat a
// session as disconnected.
func (s SessionConfig) StaleAfter() time.Duration {
	mult := s.StaleMultiplier
	if mult <= 0 {
		mult = 3
	}
	return time.Duration(mult) * s.HeartbeatInterval
}

type JanitorConfig struct {
	Interval time.Duration `envconfig:"TILLSYNC_JANITOR_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"TILLSYNC_JANITOR_LOCK_TTL" default:"4m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TILLSYNC_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TILLSYNC_AUTO_MIGRATE" default:"false"`
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
