package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"cardshop/internal/domain"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	RegistrationBotToken string
	ManagerBotToken      string
	AdminID              int64
	DataDir              string
	FullShopPrice        float64
	SingleCardPrice      float64
	PurchasePolicy       domain.PurchasePolicy
	SessionIdleTTL       time.Duration
	LogLevel             string
	MigrationsPath       string
	Dashboard            DashboardConfig
	Database             DatabaseConfig
}

// DashboardConfig holds admin HTTP dashboard settings
type DashboardConfig struct {
	Addr  string
	Token string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not exists)
	_ = godotenv.Load()

	cfg := &Config{
		RegistrationBotToken: os.Getenv("REGISTRATION_BOT_TOKEN"),
		ManagerBotToken:      os.Getenv("MANAGER_BOT_TOKEN"),
		DataDir:              getEnv("DATA_DIR", "data"),
		PurchasePolicy:       domain.PurchasePolicy(getEnv("PURCHASE_POLICY", string(domain.PurchaseScreenshot))),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		MigrationsPath:       getEnv("MIGRATIONS_PATH", "file://migrations"),
		Dashboard: DashboardConfig{
			Addr:  getEnv("DASHBOARD_ADDR", ":8080"),
			Token: os.Getenv("DASHBOARD_TOKEN"),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "cardshop"),
			User:     getEnv("DB_USER", "cardshop"),
			Password: os.Getenv("DB_PASSWORD"),
		},
	}

	// Validate required fields
	if cfg.RegistrationBotToken == "" {
		return nil, fmt.Errorf("REGISTRATION_BOT_TOKEN is required")
	}

	adminID := os.Getenv("TELEGRAM_ADMIN_ID")
	if adminID == "" {
		return nil, fmt.Errorf("TELEGRAM_ADMIN_ID is required")
	}
	id, err := strconv.ParseInt(adminID, 10, 64)
	if err != nil || id == 0 {
		return nil, fmt.Errorf("TELEGRAM_ADMIN_ID must be a non-zero chat id, got %q", adminID)
	}
	cfg.AdminID = id

	if cfg.Database.URL == "" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required when DATABASE_URL is not set")
	}

	if cfg.FullShopPrice, err = getEnvFloat("FULL_SHOP_PRICE", 2490.0); err != nil {
		return nil, err
	}
	if cfg.SingleCardPrice, err = getEnvFloat("SINGLE_CARD_PRICE", 39.0); err != nil {
		return nil, err
	}

	if !cfg.PurchasePolicy.Valid() {
		return nil, fmt.Errorf("PURCHASE_POLICY must be %q or %q, got %q",
			domain.PurchaseInstant, domain.PurchaseScreenshot, cfg.PurchasePolicy)
	}

	ttl, err := time.ParseDuration(getEnv("SESSION_IDLE_TTL", "24h"))
	if err != nil || ttl <= 0 {
		return nil, fmt.Errorf("SESSION_IDLE_TTL must be a positive duration")
	}
	cfg.SessionIdleTTL = ttl

	return cfg, nil
}

// DSN returns PostgreSQL connection string
func (c *Config) DSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
	)
}

// RegistrationsDir is where registration records are kept
func (c *Config) RegistrationsDir() string {
	return c.DataDir + "/registrations"
}

// MediaDir is where card images and purchase screenshots are kept
func (c *Config) MediaDir() string {
	return c.DataDir + "/media"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("%s must be a non-negative number, got %q", key, value)
	}
	return f, nil
}
