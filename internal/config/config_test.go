// AngelaMos | 2026
// config_test.go

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{ReadTimeout: time.Second, WriteTimeout: time.Second},
		Database: DatabaseConfig{URL: "postgres://localhost/db"},
		Redis:    RedisConfig{URL: "redis://localhost:6379"},
		JWT: JWTConfig{
			PrivateKeyPath: "keys/private.pem",
			PublicKeyPath:  "keys/public.pem",
		},
		Access: AccessConfig{
			TrialDuration:      7 * 24 * time.Hour,
			ActivationDuration: 30 * 24 * time.Hour,
		},
		Billing: BillingConfig{Timeout: time.Second},
		AI:      AIConfig{Timeout: time.Second},
		Push:    PushConfig{Timeout: time.Second},
		Notify: NotifyConfig{
			Timezone: "UTC",
			MinLead:  50 * time.Minute,
			MaxLead:  70 * time.Minute,
			Interval: 15 * time.Minute,
		},
		Storage: StorageConfig{Driver: "local", LocalPath: "data"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing database url",
			mutate:  func(c *Config) { c.Database.URL = "" },
			wantErr: "DATABASE_URL",
		},
		{
			name: "window narrower than interval",
			mutate: func(c *Config) {
				c.Notify.MinLead = 55 * time.Minute
				c.Notify.MaxLead = 65 * time.Minute
			},
			wantErr: "wider than the trigger interval",
		},
		{
			name:    "inverted window",
			mutate:  func(c *Config) { c.Notify.MaxLead = 40 * time.Minute },
			wantErr: "notify.max_lead",
		},
		{
			name:    "unknown timezone",
			mutate:  func(c *Config) { c.Notify.Timezone = "Mars/Olympus" },
			wantErr: "timezone",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Storage.Driver = "s3" },
			wantErr: "S3_BUCKET",
		},
		{
			name: "billing without price",
			mutate: func(c *Config) {
				c.Billing.StripeSecretKey = "sk_test_123"
			},
			wantErr: "STRIPE_PRICE_ID",
		},
		{
			name: "production requires cron secret",
			mutate: func(c *Config) {
				c.App.Environment = "production"
			},
			wantErr: "CRON_SECRET",
		},
		{
			name: "wildcard origin with credentials",
			mutate: func(c *Config) {
				c.CORS.AllowCredentials = true
				c.CORS.AllowedOrigins = []string{"*"}
			},
			wantErr: "wildcard",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := validate(c)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/app")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CRON_SECRET", "s3cret")
	t.Setenv("NOTIFY_TIMEZONE", "UTC")
	t.Setenv("ACTIVATION_CODE", "WELCOME")

	c, err := load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@localhost:5432/app", c.Database.URL)
	assert.Equal(t, "s3cret", c.Notify.CronSecret)
	assert.Equal(t, "WELCOME", c.Access.ActivationCode)
	assert.Equal(t, 7*24*time.Hour, c.Access.TrialDuration)
	assert.Equal(t, 50*time.Minute, c.Notify.MinLead)
	assert.Equal(t, 70*time.Minute, c.Notify.MaxLead)
	assert.False(t, c.Push.Enabled())
	assert.False(t, c.Billing.Enabled())

	loc, err := c.Notify.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}
