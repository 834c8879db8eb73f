package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable the process reads.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Razorpay     RazorpayConfig
	SMTP         SMTPConfig
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
	Env          string `envconfig:"STOREKART_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREKART_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREKART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREKART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STOREKART_DB_DSN"`
	Driver string `envconfig:"STOREKART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREKART_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREKART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREKART_DB_USER"`
	LegacyPassword string `envconfig:"STOREKART_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREKART_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREKART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREKART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREKART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREKART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREKART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.LegacyHost == "" || d.LegacyUser == "" || d.LegacyName == "" {
		return fmt.Errorf("either STOREKART_DB_DSN or host/user/name parts are required")
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.LegacyUser, d.LegacyPassword),
		Host:   fmt.Sprintf("%s:%d", d.LegacyHost, d.LegacyPort),
		Path:   d.LegacyName,
	}
	q := u.Query()
	q.Set("sslmode", d.LegacySSLMode)
	u.RawQuery = q.Encode()
	d.DSN = u.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREKART_REDIS_URL"`
	Address      string        `envconfig:"STOREKART_REDIS_ADDR"`
	Password     string        `envconfig:"STOREKART_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREKART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREKART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREKART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREKART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREKART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREKART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// RazorpayConfig carries the gateway credentials and the bounded timeout
// applied to every outbound gateway call.
type RazorpayConfig struct {
	KeyID     string        `envconfig:"STOREKART_RAZORPAY_KEY_ID" required:"true"`
	KeySecret string        `envconfig:"STOREKART_RAZORPAY_KEY_SECRET" required:"true"`
	BaseURL   string        `envconfig:"STOREKART_RAZORPAY_BASE_URL" default:"https://api.razorpay.com/v1"`
	Timeout   time.Duration `envconfig:"STOREKART_RAZORPAY_TIMEOUT" default:"10s"`
}

type SMTPConfig struct {
	Host     string `envconfig:"STOREKART_SMTP_HOST"`
	Port     int    `envconfig:"STOREKART_SMTP_PORT" default:"587"`
	Username string `envconfig:"STOREKART_SMTP_USERNAME"`
	Password string `envconfig:"STOREKART_SMTP_PASSWORD"`
	From     string `envconfig:"STOREKART_SMTP_FROM"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOREKART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOREKART_AUTO_MIGRATE" default:"false"`
}
