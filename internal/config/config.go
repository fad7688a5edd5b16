// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
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
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`  // per-request context deadline
	AllowedOrigins  []string      `yaml:"allowed_origins"`  // CORS
	PublicRateLimit float64       `yaml:"public_rate_limit"` // requests/sec per IP on webhooks + verify
	PublicBurst     int           `yaml:"public_burst"`
	CheckoutPerMin  int           `yaml:"checkout_per_min"` // per user, enforced in redis
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret"`
	CookieName string `yaml:"cookie_name"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	Mode          string `yaml:"mode"` // payment_intent | checkout_session
	BaseURL       string `yaml:"base_url"`
}

type PaystackConfig struct {
	SecretKey string `yaml:"secret_key"`
	BaseURL   string `yaml:"base_url"`
}

type PaymentConfig struct {
	DefaultCurrency string         `yaml:"default_currency"`
	HTTPTimeout     time.Duration  `yaml:"http_timeout"`
	SuccessURL      string         `yaml:"success_url"` // browser landing after a resolved success
	FailureURL      string         `yaml:"failure_url"`
	VerifyURL       string         `yaml:"verify_url"` // our /payments/verify, handed to gateways as return URL
	CancelURL       string         `yaml:"cancel_url"` // where a user who abandons the provider page lands
	LockTTL         time.Duration  `yaml:"lock_ttl"`
	Stripe          StripeConfig   `yaml:"stripe"`
	Paystack        PaystackConfig `yaml:"paystack"`
}

type ReconcileConfig struct {
	OlderThan time.Duration `yaml:"older_than"`
	BatchSize int           `yaml:"batch_size"`
	Workers   int           `yaml:"workers"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Payment   PaymentConfig   `yaml:"payment"`
	Reconcile ReconcileConfig `yaml:"reconcile"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig parses -config and -dev from the command line and loads the file.
// Callers may register extra flags before calling it.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()
	return Load(configPath, dev)
}

// Load reads an optional .env, then the YAML file at path with ${VAR}
// references expanded from the environment.
func Load(path string, dev bool) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse([]byte(os.ExpandEnv(string(b))), dev)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		cfg.HTTP.ReadTimeout = 10 * time.Second
	}
	if cfg.HTTP.WriteTimeout <= 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 25 * time.Second
	}
	if cfg.HTTP.PublicRateLimit <= 0 {
		cfg.HTTP.PublicRateLimit = 10
	}
	if cfg.HTTP.PublicBurst <= 0 {
		cfg.HTTP.PublicBurst = 20
	}
	if cfg.HTTP.CheckoutPerMin <= 0 {
		cfg.HTTP.CheckoutPerMin = 10
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "portal_session"
	}

	if cfg.Payment.DefaultCurrency == "" {
		cfg.Payment.DefaultCurrency = "USD"
	}
	cfg.Payment.DefaultCurrency = strings.ToUpper(cfg.Payment.DefaultCurrency)
	if cfg.Payment.HTTPTimeout <= 0 {
		cfg.Payment.HTTPTimeout = 15 * time.Second
	}
	if cfg.Payment.CancelURL == "" {
		cfg.Payment.CancelURL = cancelURLFor(cfg.Payment)
	}
	if cfg.Payment.LockTTL <= 0 {
		cfg.Payment.LockTTL = 30 * time.Second
	}
	if cfg.Payment.Stripe.Mode == "" {
		cfg.Payment.Stripe.Mode = "checkout_session"
	}
	if cfg.Payment.Stripe.BaseURL == "" {
		cfg.Payment.Stripe.BaseURL = "https://api.stripe.com"
	}
	if cfg.Payment.Paystack.BaseURL == "" {
		cfg.Payment.Paystack.BaseURL = "https://api.paystack.co"
	}

	if cfg.Reconcile.OlderThan <= 0 {
		cfg.Reconcile.OlderThan = time.Hour
	}
	if cfg.Reconcile.BatchSize <= 0 {
		cfg.Reconcile.BatchSize = 100
	}
	if cfg.Reconcile.Workers <= 0 {
		cfg.Reconcile.Workers = 4
	}
}

// Minimal validation
func (cfg *Config) validate() error {
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Auth.JWTSecret == "" && !cfg.Runtime.Dev {
		return errors.New("auth.jwt_secret is required")
	}
	switch cfg.Payment.Stripe.Mode {
	case "payment_intent", "checkout_session":
	default:
		return fmt.Errorf("payment.stripe.mode %q must be payment_intent or checkout_session", cfg.Payment.Stripe.Mode)
	}
	if !cfg.Runtime.Dev {
		if cfg.Payment.Stripe.SecretKey != "" && cfg.Payment.Stripe.WebhookSecret == "" {
			return errors.New("payment.stripe.webhook_secret is required when stripe is enabled")
		}
		if cfg.Payment.Stripe.SecretKey == "" && cfg.Payment.Paystack.SecretKey == "" {
			return errors.New("at least one of payment.stripe.secret_key or payment.paystack.secret_key is required")
		}
	}
	return nil
}

// cancelURLFor prefers the configured failure page, else our own
// /payments/failed next to the verify endpoint.
func cancelURLFor(p PaymentConfig) string {
	if p.FailureURL != "" {
		return p.FailureURL
	}
	if p.VerifyURL == "" {
		return ""
	}
	u, err := url.Parse(p.VerifyURL)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Path = "/payments/failed"
	u.RawQuery = ""
	return u.String()
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
