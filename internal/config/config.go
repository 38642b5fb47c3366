// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Access    AccessConfig    `koanf:"access"`
	Billing   BillingConfig   `koanf:"billing"`
	AI        AIConfig        `koanf:"ai"`
	Push      PushConfig      `koanf:"push"`
	Notify    NotifyConfig    `koanf:"notify"`
	Storage   StorageConfig   `koanf:"storage"`
	Mail      MailConfig      `koanf:"mail"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	PublicURL   string `koanf:"public_url"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type JWTConfig struct {
	PrivateKeyPath     string        `koanf:"private_key_path"`
	PublicKeyPath      string        `koanf:"public_key_path"`
	AccessTokenExpire  time.Duration `koanf:"access_token_expire"`
	RefreshTokenExpire time.Duration `koanf:"refresh_token_expire"`
	Issuer             string        `koanf:"issuer"`
	Audience           string        `koanf:"audience"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// AccessConfig controls the trial window and the shared activation code.
type AccessConfig struct {
	TrialDuration      time.Duration `koanf:"trial_duration"`
	ActivationCode     string        `koanf:"activation_code"`
	ActivationDuration time.Duration `koanf:"activation_duration"`
}

type BillingConfig struct {
	StripeSecretKey     string        `koanf:"stripe_secret_key"`
	StripeWebhookSecret string        `koanf:"stripe_webhook_secret"`
	StripePriceID       string        `koanf:"stripe_price_id"`
	SuccessPath         string        `koanf:"success_path"`
	CancelPath          string        `koanf:"cancel_path"`
	Timeout             time.Duration `koanf:"timeout"`
}

func (b BillingConfig) Enabled() bool {
	return b.StripeSecretKey != ""
}

type AIConfig struct {
	GeminiAPIKey string        `koanf:"gemini_api_key"`
	Model        string        `koanf:"model"`
	Temperature  float32       `koanf:"temperature"`
	MaxTokens    int32         `koanf:"max_tokens"`
	Timeout      time.Duration `koanf:"timeout"`
	MaxAudioSize int64         `koanf:"max_audio_size"`
	HourlyLimit  int           `koanf:"hourly_limit"`
}

type PushConfig struct {
	VAPIDPublicKey  string        `koanf:"vapid_public_key"`
	VAPIDPrivateKey string        `koanf:"vapid_private_key"`
	Subject         string        `koanf:"subject"`
	TTL             int           `koanf:"ttl"`
	Timeout         time.Duration `koanf:"timeout"`
}

func (p PushConfig) Enabled() bool {
	return p.VAPIDPublicKey != "" && p.VAPIDPrivateKey != ""
}

// NotifyConfig describes the reminder window. MaxLead-MinLead must be wider
// than Interval so every deadline lands inside at least one run.
type NotifyConfig struct {
	CronSecret      string        `koanf:"cron_secret"`
	TrustCronHeader bool          `koanf:"trust_cron_header"`
	Timezone        string        `koanf:"timezone"`
	MinLead         time.Duration `koanf:"min_lead"`
	MaxLead         time.Duration `koanf:"max_lead"`
	Interval        time.Duration `koanf:"interval"`
	LockTTL         time.Duration `koanf:"lock_ttl"`
}

func (n NotifyConfig) Location() (*time.Location, error) {
	if n.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(n.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", n.Timezone, err)
	}
	return loc, nil
}

type StorageConfig struct {
	Driver       string `koanf:"driver"`
	LocalPath    string `koanf:"local_path"`
	S3Bucket     string `koanf:"s3_bucket"`
	S3Region     string `koanf:"s3_region"`
	AWSAccessKey string `koanf:"aws_access_key"`
	AWSSecretKey string `koanf:"aws_secret_key"`
}

type MailConfig struct {
	SendGridAPIKey string        `koanf:"sendgrid_api_key"`
	FromEmail      string        `koanf:"from_email"`
	FromName       string        `koanf:"from_name"`
	Timeout        time.Duration `koanf:"timeout"`
}

func (m MailConfig) Enabled() bool {
	return m.SendGridAPIKey != "" && m.FromEmail != ""
}

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Dziennik Pracy",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.public_url":  "http://localhost:3000",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "60s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.auto_migrate":       true,

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.access_token_expire":  "15m",
		"jwt.refresh_token_expire": "168h",
		"jwt.issuer":               "dziennik-pracy",
		"jwt.audience":             "dziennik-pracy-api",
		"jwt.private_key_path":     "keys/private.pem",
		"jwt.public_key_path":      "keys/public.pem",

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "dziennik-pracy",

		"metrics.enabled": true,
		"metrics.path":    "/metrics",

		"access.trial_duration":      "168h",
		"access.activation_duration": "720h",

		"billing.success_path": "/?success=true",
		"billing.cancel_path":  "/?canceled=true",
		"billing.timeout":      "15s",

		"ai.model":          "gemini-1.5-flash",
		"ai.temperature":    0.3,
		"ai.max_tokens":     1024,
		"ai.timeout":        "45s",
		"ai.max_audio_size": 10 << 20,
		"ai.hourly_limit":   60,

		"push.subject": "mailto:admin@dziennik-pracy.app",
		"push.ttl":     3600,
		"push.timeout": "10s",

		"notify.trust_cron_header": true,
		"notify.timezone":          "Europe/Warsaw",
		"notify.min_lead":          "50m",
		"notify.max_lead":          "70m",
		"notify.interval":          "15m",
		"notify.lock_ttl":          "2m",

		"storage.driver":     "local",
		"storage.local_path": "data/recordings",

		"mail.from_name": "Dziennik Pracy",
		"mail.timeout":   "10s",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                 "database.url",
	"DATABASE_AUTO_MIGRATE":        "database.auto_migrate",
	"REDIS_URL":                    "redis.url",
	"ENVIRONMENT":                  "app.environment",
	"PUBLIC_URL":                   "app.public_url",
	"NEXTAUTH_URL":                 "app.public_url",
	"HOST":                         "server.host",
	"PORT":                         "server.port",
	"LOG_LEVEL":                    "log.level",
	"LOG_FORMAT":                   "log.format",
	"JWT_PRIVATE_KEY_PATH":         "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":          "jwt.public_key_path",
	"JWT_ACCESS_TOKEN_EXPIRE":      "jwt.access_token_expire",
	"JWT_REFRESH_TOKEN_EXPIRE":     "jwt.refresh_token_expire",
	"JWT_ISSUER":                   "jwt.issuer",
	"JWT_AUDIENCE":                 "jwt.audience",
	"RATE_LIMIT_REQUESTS":          "rate_limit.requests",
	"RATE_LIMIT_WINDOW":            "rate_limit.window",
	"RATE_LIMIT_BURST":             "rate_limit.burst",
	"OTEL_ENDPOINT":                "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT":  "otel.endpoint",
	"OTEL_SERVICE_NAME":            "otel.service_name",
	"OTEL_ENABLED":                 "otel.enabled",
	"OTEL_INSECURE":                "otel.insecure",
	"OTEL_SAMPLE_RATE":             "otel.sample_rate",
	"METRICS_ENABLED":              "metrics.enabled",
	"METRICS_PATH":                 "metrics.path",
	"TRIAL_DURATION":               "access.trial_duration",
	"ACTIVATION_CODE":              "access.activation_code",
	"ACTIVATION_DURATION":          "access.activation_duration",
	"STRIPE_SECRET_KEY":            "billing.stripe_secret_key",
	"STRIPE_WEBHOOK_SECRET":        "billing.stripe_webhook_secret",
	"STRIPE_PRICE_ID":              "billing.stripe_price_id",
	"BILLING_TIMEOUT":              "billing.timeout",
	"GEMINI_API_KEY":               "ai.gemini_api_key",
	"GEMINI_MODEL":                 "ai.model",
	"AI_TIMEOUT":                   "ai.timeout",
	"AI_MAX_AUDIO_SIZE":            "ai.max_audio_size",
	"AI_HOURLY_LIMIT":              "ai.hourly_limit",
	"VAPID_PUBLIC_KEY":             "push.vapid_public_key",
	"NEXT_PUBLIC_VAPID_PUBLIC_KEY": "push.vapid_public_key",
	"VAPID_PRIVATE_KEY":            "push.vapid_private_key",
	"VAPID_SUBJECT":                "push.subject",
	"PUSH_TTL":                     "push.ttl",
	"PUSH_TIMEOUT":                 "push.timeout",
	"CRON_SECRET":                  "notify.cron_secret",
	"NOTIFY_TRUST_CRON_HEADER":     "notify.trust_cron_header",
	"NOTIFY_TIMEZONE":              "notify.timezone",
	"NOTIFY_MIN_LEAD":              "notify.min_lead",
	"NOTIFY_MAX_LEAD":              "notify.max_lead",
	"NOTIFY_INTERVAL":              "notify.interval",
	"NOTIFY_LOCK_TTL":              "notify.lock_ttl",
	"STORAGE_DRIVER":               "storage.driver",
	"STORAGE_LOCAL_PATH":           "storage.local_path",
	"S3_BUCKET":                    "storage.s3_bucket",
	"S3_REGION":                    "storage.s3_region",
	"AWS_ACCESS_KEY_ID":            "storage.aws_access_key",
	"AWS_SECRET_ACCESS_KEY":        "storage.aws_secret_key",
	"SENDGRID_API_KEY":             "mail.sendgrid_api_key",
	"MAIL_FROM_EMAIL":              "mail.from_email",
	"MAIL_FROM_NAME":               "mail.from_name",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

//nolint:gocyclo // flat list of independent checks
func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.JWT.PrivateKeyPath == "" {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH is required")
	}

	if c.JWT.PublicKeyPath == "" {
		return fmt.Errorf("JWT_PUBLIC_KEY_PATH is required")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
		if c.Notify.CronSecret == "" {
			return fmt.Errorf("CRON_SECRET is required in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	if c.Access.TrialDuration <= 0 {
		return fmt.Errorf("access.trial_duration must be positive")
	}

	if c.Access.ActivationDuration <= 0 {
		return fmt.Errorf("access.activation_duration must be positive")
	}

	if c.Notify.MinLead <= 0 || c.Notify.MaxLead <= c.Notify.MinLead {
		return fmt.Errorf("notify.max_lead must be greater than notify.min_lead > 0")
	}

	if c.Notify.MaxLead-c.Notify.MinLead <= c.Notify.Interval {
		return fmt.Errorf(
			"notify window %s-%s must be wider than the trigger interval %s",
			c.Notify.MinLead, c.Notify.MaxLead, c.Notify.Interval,
		)
	}

	if _, err := c.Notify.Location(); err != nil {
		return err
	}

	if c.AI.Timeout <= 0 || c.Push.Timeout <= 0 || c.Billing.Timeout <= 0 {
		return fmt.Errorf("outbound call timeouts must be positive")
	}

	switch c.Storage.Driver {
	case "local":
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("STORAGE_LOCAL_PATH is required for local storage")
		}
	case "s3":
		if c.Storage.S3Bucket == "" || c.Storage.S3Region == "" {
			return fmt.Errorf("S3_BUCKET and S3_REGION are required for s3 storage")
		}
	case "none":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Billing.Enabled() && c.Billing.StripePriceID == "" {
		return fmt.Errorf("STRIPE_PRICE_ID is required when billing is enabled")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
