package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/parkadmin/service-payment/internal/common/database"
)

// Stripe modes.
const (
	StripeModeLive = "live"
	StripeModeMock = "mock"
)

// StripeConfig holds Stripe-specific configuration.
type StripeConfig struct {
	Mode            string
	SecretKey       string
	WebhookSecret   string
	APIURL          string
	Currency        string
	Timeout         time.Duration
	MaxRetries      int64
	MockAutoSucceed bool
}

// JWTConfig holds token settings for the admin API.
type JWTConfig struct {
	Secret    string
	AccessTTL time.Duration
}

// KafkaConfig holds broker settings. No brokers disables event dispatch.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// Enabled reports whether brokers are configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// AccountingConfig holds settings of the best-effort cost accounting dispatch.
type AccountingConfig struct {
	PublishTimeout time.Duration
	ConsumerGroup  string
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// ServiceConfig holds all configuration for the payment service.
type ServiceConfig struct {
	AppEnv           string
	HTTPConfig       HTTPConfig
	DBConfig         database.PostgresConfig
	JWTConfig        JWTConfig
	KafkaConfig      KafkaConfig
	StripeConfig     StripeConfig
	AccountingConfig AccountingConfig
}

// IsDevelopment reports whether the service runs in development mode.
func (c *ServiceConfig) IsDevelopment() bool { return c.AppEnv == "development" }

// Load reads configuration from environment variables, optionally seeded from a
// .env file in the working directory, and validates it.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, fmt.Errorf("read .env: %w", err)
		}
	}
	v.AutomaticEnv()

	cfg := &ServiceConfig{
		AppEnv: v.GetString("APP_ENV"),
		HTTPConfig: HTTPConfig{
			Port:         normalizePort(v.GetString("SERVICE_PORT")),
			ReadTimeout:  v.GetDuration("HTTP_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("HTTP_WRITE_TIMEOUT"),
			CORSOrigins:  splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DBConfig: database.PostgresConfig{
			URL:             v.GetString("DATABASE_URL"),
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetString("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			DBName:          v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		JWTConfig: JWTConfig{
			Secret:    v.GetString("JWT_SECRET"),
			AccessTTL: v.GetDuration("JWT_ACCESS_TTL"),
		},
		KafkaConfig: KafkaConfig{
			Brokers:     splitList(v.GetString("KAFKA_BROKERS")),
			GroupPrefix: v.GetString("KAFKA_GROUP_PREFIX"),
		},
		StripeConfig: StripeConfig{
			Mode:            strings.ToLower(v.GetString("STRIPE_MODE")),
			SecretKey:       v.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret:   v.GetString("STRIPE_WEBHOOK_SECRET"),
			APIURL:          v.GetString("STRIPE_API_URL"),
			Currency:        strings.ToLower(v.GetString("PAYMENT_CURRENCY")),
			Timeout:         v.GetDuration("STRIPE_TIMEOUT"),
			MaxRetries:      v.GetInt64("STRIPE_MAX_RETRIES"),
			MockAutoSucceed: v.GetBool("STRIPE_MOCK_AUTO_SUCCEED"),
		},
		AccountingConfig: AccountingConfig{
			PublishTimeout: v.GetDuration("ACCOUNTING_PUBLISH_TIMEOUT"),
			ConsumerGroup:  v.GetString("ACCOUNTING_CONSUMER_GROUP"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the service cannot start without.
func (c *ServiceConfig) Validate() error {
	var errs []error

	switch c.StripeConfig.Mode {
	case StripeModeLive:
		if c.StripeConfig.SecretKey == "" {
			errs = append(errs, errors.New("STRIPE_SECRET_KEY is required when STRIPE_MODE=live"))
		}
	case StripeModeMock:
	default:
		errs = append(errs, fmt.Errorf("STRIPE_MODE must be %q or %q, got %q", StripeModeLive, StripeModeMock, c.StripeConfig.Mode))
	}
	if c.StripeConfig.WebhookSecret == "" {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required"))
	}
	if c.StripeConfig.Timeout <= 0 {
		errs = append(errs, errors.New("STRIPE_TIMEOUT must be positive"))
	}
	if c.JWTConfig.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.DBConfig.URL == "" && (c.DBConfig.Host == "" || c.DBConfig.DBName == "") {
		errs = append(errs, errors.New("DATABASE_URL or DB_HOST and DB_NAME are required"))
	}
	if c.AccountingConfig.PublishTimeout <= 0 {
		errs = append(errs, errors.New("ACCOUNTING_PUBLISH_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SERVICE_PORT", "8080")
	v.SetDefault("HTTP_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "park_payments")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ACCESS_TTL", 15*time.Minute)

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_GROUP_PREFIX", "")

	v.SetDefault("STRIPE_MODE", StripeModeLive)
	v.SetDefault("STRIPE_SECRET_KEY", "")
	v.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	v.SetDefault("STRIPE_API_URL", "")
	v.SetDefault("PAYMENT_CURRENCY", "usd")
	v.SetDefault("STRIPE_TIMEOUT", 10*time.Second)
	v.SetDefault("STRIPE_MAX_RETRIES", 2)
	v.SetDefault("STRIPE_MOCK_AUTO_SUCCEED", false)

	v.SetDefault("ACCOUNTING_PUBLISH_TIMEOUT", 3*time.Second)
	v.SetDefault("ACCOUNTING_CONSUMER_GROUP", "payment-accounting")
}

func normalizePort(port string) string {
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isMissingFile(err error) bool {
	var pathErr *fs.PathError
	return errors.As(err, &pathErr)
}
