package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DB_DSN":                "file::memory:",
		"STRIPE_SECRET_KEY":     "sk_test_123",
		"STRIPE_WEBHOOK_SECRET": "whsec_123",
		"JWT_SECRET":            "secret",
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(env.Options{Environment: baseEnv()})
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "usd", cfg.Stripe.Currency)
	assert.Equal(t, 15*time.Second, cfg.Stripe.Timeout)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 5, cfg.Invoice.MaxAttempts)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.Scylla.Hosts)
	assert.Empty(t, cfg.Recaptcha.SecretKey)
	assert.Equal(t, "https://www.google.com/recaptcha/api/siteverify", cfg.Recaptcha.VerificationURL)
	assert.Equal(t, 0.5, cfg.Recaptcha.MinScore)
	assert.False(t, cfg.IsProduction())
}

func TestParseOverrides(t *testing.T) {
	vars := baseEnv()
	vars["DB_DRIVER"] = "sqlite"
	vars["STRIPE_CURRENCY"] = "EUR"
	vars["STRIPE_TIMEOUT"] = "3s"
	vars["SCYLLA_HOSTS"] = "10.0.0.1,10.0.0.2"
	vars["APP_ENV"] = "production"
	vars["RECAPTCHA_SECRET_KEY"] = "6Lc-secret"
	vars["RECAPTCHA_MIN_SCORE"] = "0.7"

	cfg, err := Parse(env.Options{Environment: vars})
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "eur", cfg.Stripe.Currency)
	assert.Equal(t, 3*time.Second, cfg.Stripe.Timeout)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Scylla.Hosts)
	assert.Equal(t, "6Lc-secret", cfg.Recaptcha.SecretKey)
	assert.Equal(t, 0.7, cfg.Recaptcha.MinScore)
	assert.True(t, cfg.IsProduction())
}

func TestParseRequiredAndInvalid(t *testing.T) {
	vars := baseEnv()
	delete(vars, "STRIPE_WEBHOOK_SECRET")
	_, err := Parse(env.Options{Environment: vars})
	assert.Error(t, err)

	vars = baseEnv()
	vars["DB_DRIVER"] = "postgres"
	_, err = Parse(env.Options{Environment: vars})
	assert.ErrorContains(t, err, "DB_DRIVER")
}
