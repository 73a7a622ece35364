package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	CatalogStatic = "static"
	CatalogSQLite = "sqlite"
)

// Config is built once at startup and passed to every collaborator.
type Config struct {
	Environment        string        `mapstructure:"environment"`
	HTTPPort           string        `mapstructure:"http_port"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	MaxRequestBodySize int64         `mapstructure:"max_request_body_size"`
	AllowedOrigins     []string      `mapstructure:"allowed_origins"`

	StripeSecretKey      string        `mapstructure:"stripe_secret_key"`
	StripePublishableKey string        `mapstructure:"stripe_publishable_key"`
	StripeTimeout        time.Duration `mapstructure:"stripe_timeout"`
	BreakerMaxFailures   uint32        `mapstructure:"breaker_max_failures"`
	BreakerOpenTimeout   time.Duration `mapstructure:"breaker_open_timeout"`

	Currency          string `mapstructure:"currency"`
	PaymentMethodType string `mapstructure:"payment_method_type"`
	IntegrationTag    string `mapstructure:"integration_tag"`

	CatalogSource   string        `mapstructure:"catalog_source"`
	CatalogDSN      string        `mapstructure:"catalog_dsn"`
	RedisAddr       string        `mapstructure:"redis_addr"`
	CatalogCacheTTL time.Duration `mapstructure:"catalog_cache_ttl"`

	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("http_port", "8080")
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("max_request_body_size", int64(1<<20)) // 1MB
	v.SetDefault("allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("stripe_secret_key", "")
	v.SetDefault("stripe_publishable_key", "")
	v.SetDefault("stripe_timeout", 10*time.Second)
	v.SetDefault("breaker_max_failures", 5)
	v.SetDefault("breaker_open_timeout", 30*time.Second)

	v.SetDefault("currency", "usd")
	v.SetDefault("payment_method_type", "klarna")
	v.SetDefault("integration_tag", "klarna_payment_element")

	v.SetDefault("catalog_source", CatalogStatic)
	v.SetDefault("catalog_dsn", "catalog.db")
	v.SetDefault("redis_addr", "")
	v.SetDefault("catalog_cache_ttl", 15*time.Minute)

	v.SetDefault("kafka_brokers", []string{})
	v.SetDefault("kafka_topic", "checkout-events")
}

// Load resolves defaults, then the optional YAML file at path, then the
// environment (STRIPE_SECRET_KEY, HTTP_PORT, ALLOWED_ORIGINS, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.Currency = strings.ToLower(cfg.Currency)
	cfg.AllowedOrigins = splitList(cfg.AllowedOrigins)
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers)
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		errs = append(errs, fmt.Errorf("environment must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Environment))
	}
	if c.HTTPPort == "" {
		errs = append(errs, errors.New("http_port is required"))
	}
	if c.StripeSecretKey == "" {
		errs = append(errs, errors.New("stripe_secret_key is required"))
	}
	if c.StripePublishableKey == "" {
		errs = append(errs, errors.New("stripe_publishable_key is required"))
	}
	if len(c.Currency) != 3 {
		errs = append(errs, fmt.Errorf("currency must be a 3-letter ISO code, got %q", c.Currency))
	}
	if c.PaymentMethodType == "" {
		errs = append(errs, errors.New("payment_method_type is required"))
	}
	switch c.CatalogSource {
	case CatalogStatic:
	case CatalogSQLite:
		if c.CatalogDSN == "" {
			errs = append(errs, errors.New("catalog_dsn is required for the sqlite catalog"))
		}
	default:
		errs = append(errs, fmt.Errorf("catalog_source must be %q or %q, got %q", CatalogStatic, CatalogSQLite, c.CatalogSource))
	}
	if c.Environment == EnvProduction {
		if len(c.AllowedOrigins) == 0 {
			errs = append(errs, errors.New("allowed_origins is required in production"))
		}
		for _, origin := range c.AllowedOrigins {
			if origin == "*" {
				errs = append(errs, errors.New("allowed_origins must not contain * in production"))
			}
		}
	}
	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
