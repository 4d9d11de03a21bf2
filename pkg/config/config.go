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
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Mpesa        MpesaConfig
	Payments     PaymentsConfig
	Cron         CronConfig
	Courier      CourierConfig
	SMTP         SMTPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Mpesa.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PAYFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"PAYFLOW_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PAYFLOW_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"PAYFLOW_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"PAYFLOW_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"PAYFLOW_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"PAYFLOW_DB_DSN"`

	LegacyHost     string `envconfig:"PAYFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"PAYFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PAYFLOW_DB_USER"`
	LegacyPassword string `envconfig:"PAYFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"PAYFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"PAYFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PAYFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PAYFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PAYFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PAYFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"PAYFLOW_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PAYFLOW_REDIS_URL"`
	Address      string        `envconfig:"PAYFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"PAYFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"PAYFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PAYFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PAYFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PAYFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PAYFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PAYFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PAYFLOW_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PAYFLOW_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PAYFLOW_JWT_EXPIRATION_MINUTES" default:"60"`
}

// RateLimitConfig drives the shared fixed-window counters kept in Redis.
type RateLimitConfig struct {
	CheckoutWindow    time.Duration `envconfig:"PAYFLOW_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutUserLimit int           `envconfig:"PAYFLOW_RATE_LIMIT_CHECKOUT_USER_LIMIT" default:"5"`
	CheckoutIPLimit   int           `envconfig:"PAYFLOW_RATE_LIMIT_CHECKOUT_IP_LIMIT" default:"30"`
	WebhookWindow     time.Duration `envconfig:"PAYFLOW_RATE_LIMIT_WEBHOOK_WINDOW" default:"1m"`
	WebhookIPLimit    int           `envconfig:"PAYFLOW_RATE_LIMIT_WEBHOOK_IP_LIMIT" default:"600"`
}

type FeatureFlagsConfig struct {
	AutoMigrate      bool `envconfig:"PAYFLOW_AUTO_MIGRATE" default:"false"`
	AutoDisbursement bool `envconfig:"PAYFLOW_FEATURE_AUTO_DISBURSEMENT" default:"true"`
}

// MpesaConfig holds the mobile money gateway credentials and callback wiring.
type MpesaConfig struct {
	BaseURL            string        `envconfig:"PAYFLOW_MPESA_BASE_URL" default:"https://sandbox.safaricom.co.ke"`
	ConsumerKey        string        `envconfig:"PAYFLOW_MPESA_CONSUMER_KEY"`
	ConsumerSecret     string        `envconfig:"PAYFLOW_MPESA_CONSUMER_SECRET"`
	ShortCode          string        `envconfig:"PAYFLOW_MPESA_SHORTCODE"`
	Passkey            string        `envconfig:"PAYFLOW_MPESA_PASSKEY"`
	B2CShortCode       string        `envconfig:"PAYFLOW_MPESA_B2C_SHORTCODE"`
	InitiatorName      string        `envconfig:"PAYFLOW_MPESA_INITIATOR_NAME"`
	SecurityCredential string        `envconfig:"PAYFLOW_MPESA_SECURITY_CREDENTIAL"`
	CallbackBaseURL    string        `envconfig:"PAYFLOW_MPESA_CALLBACK_BASE_URL"`
	HTTPTimeout        time.Duration `envconfig:"PAYFLOW_MPESA_HTTP_TIMEOUT" default:"30s"`
}

// CallbackURL joins the public callback base with the provided path.
func (m MpesaConfig) CallbackURL(path string) string {
	base := strings.TrimRight(strings.TrimSpace(m.CallbackBaseURL), "/")
	return base + "/" + strings.TrimLeft(path, "/")
}

func (m MpesaConfig) validate() error {
	if m.ConsumerKey == "" && m.ConsumerSecret == "" {
		return nil
	}
	missing := []string{}
	if m.ShortCode == "" {
		missing = append(missing, EnvMpesaShortCode)
	}
	if m.Passkey == "" {
		missing = append(missing, EnvMpesaPasskey)
	}
	if m.CallbackBaseURL == "" {
		missing = append(missing, EnvMpesaCallbackURL)
	}
	if len(missing) > 0 {
		return fmt.Errorf("mpesa credentials set but missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// PaymentsConfig carries the reconciliation windows used by checkout and the sweeper.
type PaymentsConfig struct {
	StaleOrderWindow time.Duration `envconfig:"PAYFLOW_PAYMENTS_STALE_ORDER_WINDOW" default:"30m"`
	RetryWindow      time.Duration `envconfig:"PAYFLOW_PAYMENTS_RETRY_WINDOW" default:"168h"`
	SweepPacing      time.Duration `envconfig:"PAYFLOW_PAYMENTS_SWEEP_PACING" default:"2s"`
	SweepBatchSize   int           `envconfig:"PAYFLOW_PAYMENTS_SWEEP_BATCH_SIZE" default:"100"`
	WebhookGuardTTL  time.Duration `envconfig:"PAYFLOW_PAYMENTS_WEBHOOK_GUARD_TTL" default:"72h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"PAYFLOW_CRON_INTERVAL" default:"15m"`
	LockTTL  time.Duration `envconfig:"PAYFLOW_CRON_LOCK_TTL" default:"14m"`

	NotificationRetention time.Duration `envconfig:"PAYFLOW_CRON_NOTIFICATION_RETENTION" default:"720h"`
}

type CourierConfig struct {
	BaseURL string        `envconfig:"PAYFLOW_COURIER_BASE_URL"`
	APIKey  string        `envconfig:"PAYFLOW_COURIER_API_KEY"`
	Timeout time.Duration `envconfig:"PAYFLOW_COURIER_TIMEOUT" default:"10s"`
}

type SMTPConfig struct {
	Host     string `envconfig:"PAYFLOW_SMTP_HOST"`
	Port     int    `envconfig:"PAYFLOW_SMTP_PORT" default:"587"`
	Username string `envconfig:"PAYFLOW_SMTP_USERNAME"`
	Password string `envconfig:"PAYFLOW_SMTP_PASSWORD"`
	From     string `envconfig:"PAYFLOW_SMTP_FROM"`
}

// Enabled reports whether outbound email is configured.
func (s SMTPConfig) Enabled() bool {
	return strings.TrimSpace(s.Host) != "" && strings.TrimSpace(s.From) != ""
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
