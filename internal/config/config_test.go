package config

import (
	"os"
	"testing"
	"time"

	"cardshop/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv sets every required variable and clears the optional ones
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("REGISTRATION_BOT_TOKEN", "test_token")
	t.Setenv("TELEGRAM_ADMIN_ID", "42")
	t.Setenv("DB_PASSWORD", "test_db_password")
	for _, key := range []string{
		"MANAGER_BOT_TOKEN", "DATABASE_URL", "DB_HOST", "DB_PORT", "DB_NAME", "DB_USER",
		"DATA_DIR", "FULL_SHOP_PRICE", "SINGLE_CARD_PRICE", "PURCHASE_POLICY",
		"DASHBOARD_ADDR", "DASHBOARD_TOKEN", "SESSION_IDLE_TTL", "LOG_LEVEL", "MIGRATIONS_PATH",
	} {
		t.Setenv(key, "")
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		setEnv       bool
		envValue     string
		expected     string
	}{
		{
			name:         "env variable set",
			key:          "TEST_KEY",
			defaultValue: "default",
			setEnv:       true,
			envValue:     "custom",
			expected:     "custom",
		},
		{
			name:         "env variable not set",
			key:          "TEST_KEY_NOT_SET",
			defaultValue: "default",
			setEnv:       false,
			expected:     "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			result := getEnv(tt.key, tt.defaultValue)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "testuser",
			Password: "testpass",
			Name:     "testdb",
		},
	}

	dsn := cfg.DSN()
	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	assert.Equal(t, expected, dsn)
}

func TestConfig_DSN_URLOverrides(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL:  "postgres://u:p@db:5432/shop?sslmode=disable",
			Host: "localhost",
		},
	}

	assert.Equal(t, "postgres://u:p@db:5432/shop?sslmode=disable", cfg.DSN())
}

func TestLoad_WithDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "test_token", cfg.RegistrationBotToken)
	assert.Empty(t, cfg.ManagerBotToken)
	assert.Equal(t, int64(42), cfg.AdminID)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "cardshop", cfg.Database.Name)
	assert.Equal(t, "cardshop", cfg.Database.User)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 2490.0, cfg.FullShopPrice)
	assert.Equal(t, 39.0, cfg.SingleCardPrice)
	assert.Equal(t, domain.PurchaseScreenshot, cfg.PurchasePolicy)
	assert.Equal(t, 24*time.Hour, cfg.SessionIdleTTL)
	assert.Equal(t, ":8080", cfg.Dashboard.Addr)
	assert.Equal(t, "file://migrations", cfg.MigrationsPath)
	assert.Equal(t, "data/registrations", cfg.RegistrationsDir())
	assert.Equal(t, "data/media", cfg.MediaDir())
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FULL_SHOP_PRICE", "1000")
	t.Setenv("SINGLE_CARD_PRICE", "12.5")
	t.Setenv("PURCHASE_POLICY", "instant")
	t.Setenv("SESSION_IDLE_TTL", "30m")
	t.Setenv("DATA_DIR", "/var/lib/cardshop")
	t.Setenv("MANAGER_BOT_TOKEN", "manager_token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "manager_token", cfg.ManagerBotToken)
	assert.Equal(t, 1000.0, cfg.FullShopPrice)
	assert.Equal(t, 12.5, cfg.SingleCardPrice)
	assert.Equal(t, domain.PurchaseInstant, cfg.PurchasePolicy)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTTL)
	assert.Equal(t, "/var/lib/cardshop/registrations", cfg.RegistrationsDir())
}

func TestLoad_DatabaseURLReplacesPassword(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/cardshop")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/cardshop", cfg.DSN())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		key         string
		value       string
		errContains string
	}{
		{
			name:        "missing registration token",
			key:         "REGISTRATION_BOT_TOKEN",
			value:       "",
			errContains: "REGISTRATION_BOT_TOKEN",
		},
		{
			name:        "missing admin id",
			key:         "TELEGRAM_ADMIN_ID",
			value:       "",
			errContains: "TELEGRAM_ADMIN_ID",
		},
		{
			name:        "non-numeric admin id",
			key:         "TELEGRAM_ADMIN_ID",
			value:       "admin",
			errContains: "TELEGRAM_ADMIN_ID",
		},
		{
			name:        "missing db password",
			key:         "DB_PASSWORD",
			value:       "",
			errContains: "DB_PASSWORD",
		},
		{
			name:        "bad price",
			key:         "FULL_SHOP_PRICE",
			value:       "cheap",
			errContains: "FULL_SHOP_PRICE",
		},
		{
			name:        "negative price",
			key:         "SINGLE_CARD_PRICE",
			value:       "-5",
			errContains: "SINGLE_CARD_PRICE",
		},
		{
			name:        "unknown purchase policy",
			key:         "PURCHASE_POLICY",
			value:       "manual",
			errContains: "PURCHASE_POLICY",
		},
		{
			name:        "bad session ttl",
			key:         "SESSION_IDLE_TTL",
			value:       "forever",
			errContains: "SESSION_IDLE_TTL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()
			assert.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}
