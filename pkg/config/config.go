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
	JWT          JWTConfig
	Gateway      GatewayConfig
	Webhook      WebhookConfig
	Maintenance  MaintenanceConfig
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
	cfg.Gateway.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Gateway.BaseURL), "/")
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SCHOOLPAY_APP_ENV" default:"dev"`
	Port         string `envconfig:"SCHOOLPAY_APP_PORT" default:"3001"`
	LogLevel     string `envconfig:"SCHOOLPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SCHOOLPAY_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"SCHOOLPAY_LOG_FORMAT" default:"json"`

	// CORSOrigins are the dashboard origins allowed to call the API.
	CORSOrigins []string `envconfig:"SCHOOLPAY_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SCHOOLPAY_DB_DSN"`
	Driver string `envconfig:"SCHOOLPAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SCHOOLPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"SCHOOLPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SCHOOLPAY_DB_USER"`
	LegacyPassword string `envconfig:"SCHOOLPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"SCHOOLPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"SCHOOLPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SCHOOLPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SCHOOLPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SCHOOLPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SCHOOLPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// RedisConfig is optional. When neither URL nor Address is set the API runs
// without idempotency replay and webhook rate limiting.
type RedisConfig struct {
	URL          string        `envconfig:"SCHOOLPAY_REDIS_URL"`
	Address      string        `envconfig:"SCHOOLPAY_REDIS_ADDR"`
	Password     string        `envconfig:"SCHOOLPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"SCHOOLPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SCHOOLPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SCHOOLPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SCHOOLPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SCHOOLPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SCHOOLPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"SCHOOLPAY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SCHOOLPAY_JWT_ISSUER" default:"schoolpay"`
	ExpirationMinutes int    `envconfig:"SCHOOLPAY_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// GatewayConfig holds the payment gateway credentials. APIKey and PGKey are
// checked at call time so the API can boot (and serve reads) without them.
type GatewayConfig struct {
	BaseURL            string        `envconfig:"SCHOOLPAY_GATEWAY_BASE_URL" default:"https://dev-vanilla.edviron.com/erp"`
	APIKey             string        `envconfig:"SCHOOLPAY_GATEWAY_API_KEY"`
	PGKey              string        `envconfig:"SCHOOLPAY_GATEWAY_PG_KEY"`
	DefaultSchoolID    string        `envconfig:"SCHOOLPAY_GATEWAY_SCHOOL_ID"`
	DefaultGatewayName string        `envconfig:"SCHOOLPAY_GATEWAY_DEFAULT_NAME" default:"Edviron"`
	CreateTimeout      time.Duration `envconfig:"SCHOOLPAY_GATEWAY_CREATE_TIMEOUT" default:"30s"`
	StatusTimeout      time.Duration `envconfig:"SCHOOLPAY_GATEWAY_STATUS_TIMEOUT" default:"15s"`
}

// Missing lists the env vars required for gateway calls that are not set.
func (g GatewayConfig) Missing() []string {
	missing := []string{}
	if strings.TrimSpace(g.PGKey) == "" {
		missing = append(missing, EnvGatewayPGKey)
	}
	if strings.TrimSpace(g.APIKey) == "" {
		missing = append(missing, EnvGatewayAPIKey)
	}
	return missing
}

type WebhookConfig struct {
	RateLimitWindow time.Duration `envconfig:"SCHOOLPAY_WEBHOOK_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimit       int           `envconfig:"SCHOOLPAY_WEBHOOK_RATE_LIMIT" default:"600"`
	MaxBodyBytes    int64         `envconfig:"SCHOOLPAY_WEBHOOK_MAX_BODY_BYTES" default:"1048576"`
}

// MaintenanceConfig drives cmd/maintenance-worker.
type MaintenanceConfig struct {
	Interval           time.Duration `envconfig:"SCHOOLPAY_MAINTENANCE_INTERVAL" default:"1h"`
	UnprocessedGrace   time.Duration `envconfig:"SCHOOLPAY_UNPROCESSED_WEBHOOK_GRACE" default:"15m"`
	StalePaymentAfter  time.Duration `envconfig:"SCHOOLPAY_STALE_PAYMENT_AFTER" default:"2h"`
	StalePaymentSample int           `envconfig:"SCHOOLPAY_STALE_PAYMENT_SAMPLE" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate    bool          `envconfig:"SCHOOLPAY_AUTO_MIGRATE" default:"false"`
	IdempotencyTTL time.Duration `envconfig:"SCHOOLPAY_IDEMPOTENCY_TTL" default:"24h"`
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
