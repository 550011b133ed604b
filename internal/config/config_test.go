package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, sandboxBaseURL, cfg.Mpesa.BaseURL)
	assert.Equal(t, "254", cfg.Mpesa.CountryCode)
	assert.Equal(t, 30*time.Second, cfg.Mpesa.Timeout)
	assert.Equal(t, "dev-secret", cfg.JWT.Secret)
	assert.Equal(t, []string{"*"}, cfg.CORS)
	assert.True(t, cfg.TaxRate.IsZero())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://pos@localhost/pos")
	t.Setenv("MPESA_ENV", "production")
	t.Setenv("MPESA_SHORTCODE", "174379")
	t.Setenv("MPESA_TIMEOUT_SECONDS", "5")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, http://pos.local")
	t.Setenv("TAX_RATE", "16")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, productionBaseURL, cfg.Mpesa.BaseURL)
	assert.Equal(t, "174379", cfg.Mpesa.PartyB, "PartyB defaults to the short code")
	assert.Equal(t, 5*time.Second, cfg.Mpesa.Timeout)
	assert.Equal(t, []string{"http://localhost:3000", "http://pos.local"}, cfg.CORS)
	assert.Equal(t, "16", cfg.TaxRate.String())
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing secret in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("JWT_SECRET", "")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("APP_ENV", "development")
		t.Setenv("DB_DRIVER", "oracle")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bad tax rate", func(t *testing.T) {
		t.Setenv("APP_ENV", "development")
		t.Setenv("TAX_RATE", "sixteen")
		_, err := Load()
		assert.Error(t, err)
	})
}
