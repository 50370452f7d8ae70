// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	AllowedOrigins []string      `yaml:"allowed_origins"` // websocket origin patterns, empty accepts any
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
	Migrate  bool   `yaml:"migrate"` // apply embedded schema on start
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // activity cache entry lifetime
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type MediaConfig struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // S3-compatible endpoint, empty for AWS
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PublicBaseURL   string `yaml:"public_base_url"`
	KeyPrefix       string `yaml:"key_prefix"`
	MaxFiles        int    `yaml:"max_files"`
	MaxFileSize     int64  `yaml:"max_file_size"`
}

type CashfreeConfig struct {
	AppID       string        `yaml:"app_id"`
	SecretKey   string        `yaml:"secret_key"`
	Environment string        `yaml:"environment"` // sandbox|production
	APIVersion  string        `yaml:"api_version"`
	Timeout     time.Duration `yaml:"timeout"`
}

type StripeConfig struct {
	SecretKey  string `yaml:"secret_key"`
	SuccessURL string `yaml:"success_url"`
	CancelURL  string `yaml:"cancel_url"`
}

type PaymentConfig struct {
	Provider             string         `yaml:"provider"` // cashfree|stripe|noop
	Currency             string         `yaml:"currency"`
	ReturnURL            string         `yaml:"return_url"` // may contain {order_id}
	DefaultCustomerPhone string         `yaml:"default_customer_phone"`
	VerifyLockTTL        time.Duration  `yaml:"verify_lock_ttl"`
	Cashfree             CashfreeConfig `yaml:"cashfree"`
	Stripe               StripeConfig   `yaml:"stripe"`
}

type ReconcilerConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
	BatchSize  int           `yaml:"batch_size"`
	Workers    int           `yaml:"workers"`
}

type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Limit   int           `yaml:"limit"`
	Window  time.Duration `yaml:"window"`
}

type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Media      MediaConfig      `yaml:"media"`
	Payment    PaymentConfig    `yaml:"payment"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig parses -config and -dev from the command line and loads the file.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()
	return Load(configPath, dev)
}

// Load reads the YAML file at path, applies .env and environment overrides,
// fills defaults and validates the result.
func Load(path string, dev bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	override(&c.HTTP.Addr, "HTTP_ADDR")
	override(&c.Database.URL, "DATABASE_URL")
	override(&c.Redis.URL, "REDIS_URL")
	override(&c.Redis.Password, "REDIS_PASSWORD")
	override(&c.Auth.JWTSecret, "JWT_SECRET")
	override(&c.Media.AccessKeyID, "MEDIA_ACCESS_KEY_ID")
	override(&c.Media.SecretAccessKey, "MEDIA_SECRET_ACCESS_KEY")
	override(&c.Payment.Provider, "PAYMENT_PROVIDER")
	override(&c.Payment.Cashfree.AppID, "CASHFREE_APP_ID")
	override(&c.Payment.Cashfree.SecretKey, "CASHFREE_SECRET_KEY")
	override(&c.Payment.Cashfree.Environment, "CASHFREE_ENV")
	override(&c.Payment.Stripe.SecretKey, "STRIPE_SECRET_KEY")
}

func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = 30 * time.Second
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 32 << 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	c.Redis.TTL = normalizeTTL(c.Redis.TTL)
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "activity-engine"
	}
	if c.Media.MaxFiles <= 0 {
		c.Media.MaxFiles = 5
	}
	if c.Media.MaxFileSize <= 0 {
		c.Media.MaxFileSize = 5 << 20
	}
	if c.Media.Region == "" {
		c.Media.Region = "us-east-1"
	}
	if c.Media.KeyPrefix == "" {
		c.Media.KeyPrefix = "activities/"
	}
	c.Payment.Provider = strings.ToLower(strings.TrimSpace(c.Payment.Provider))
	if c.Payment.Provider == "" {
		c.Payment.Provider = "noop"
	}
	if c.Payment.Currency == "" {
		c.Payment.Currency = "INR"
	}
	if c.Payment.DefaultCustomerPhone == "" {
		c.Payment.DefaultCustomerPhone = "9999999999"
	}
	if c.Payment.VerifyLockTTL <= 0 {
		c.Payment.VerifyLockTTL = 30 * time.Second
	}
	if c.Payment.Cashfree.Environment == "" {
		c.Payment.Cashfree.Environment = "sandbox"
	}
	if c.Payment.Cashfree.APIVersion == "" {
		c.Payment.Cashfree.APIVersion = "2023-08-01"
	}
	if c.Payment.Cashfree.Timeout <= 0 {
		c.Payment.Cashfree.Timeout = 15 * time.Second
	}
	if c.Reconciler.Interval <= 0 {
		c.Reconciler.Interval = time.Minute
	}
	if c.Reconciler.StaleAfter <= 0 {
		c.Reconciler.StaleAfter = 10 * time.Minute
	}
	if c.Reconciler.BatchSize <= 0 {
		c.Reconciler.BatchSize = 200
	}
	if c.Reconciler.Workers <= 0 {
		c.Reconciler.Workers = 4
	}
	if c.RateLimit.Limit <= 0 {
		c.RateLimit.Limit = 30
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
}

// Validate performs minimal validation.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	switch c.Payment.Provider {
	case "cashfree":
		if c.Payment.Cashfree.AppID == "" || c.Payment.Cashfree.SecretKey == "" {
			return errors.New("payment.cashfree.app_id and secret_key are required")
		}
		if env := c.Payment.Cashfree.Environment; env != "sandbox" && env != "production" {
			return fmt.Errorf("payment.cashfree.environment must be sandbox or production, got %q", env)
		}
	case "stripe":
		if c.Payment.Stripe.SecretKey == "" {
			return errors.New("payment.stripe.secret_key is required")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown payment.provider %q", c.Payment.Provider)
	}
	if c.Media.Bucket == "" {
		return errors.New("media.bucket is required")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Minute
	}
	return d
}
