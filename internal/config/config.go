package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/recurro/recurro/internal/models"
	"github.com/recurro/recurro/pkg/validation"
)

type Config struct {
	Development bool
	// API configuration
	APIPort int
	// Record store configuration
	MemoryStore      bool
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	// Ledger configuration
	LedgerAPIURL string
	Network      string // "testnet" or "mainnet"
	// Payment configuration
	CreatorAddress string
	FacilitatorURL string
	// SettleTimeoutSeconds bounds a single broadcast-and-settle attempt.
	SettleTimeoutSeconds int
	// Scheduler configuration
	SchedulerToken           string
	SchedulerIntervalMinutes int // 0 disables the in-process trigger

	// SMTP configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSender   string

	// Telegram configuration
	TelegramBotToken string
}

// NetworkCAIP2 returns the chain-namespace identifier for the configured
// network.
func (c *Config) NetworkCAIP2() string {
	if c.Network == "mainnet" {
		return models.NetworkMainnet
	}
	return models.NetworkTestnet
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:      getEnvAsBool("DEVELOPMENT", false),
		APIPort:          getEnvAsInt("API_PORT", 6402),
		MemoryStore:      getEnvAsBool("MEMORY_STORE", false),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "recurro"),

		LedgerAPIURL: getEnv("STACKS_API_URL", "https://api.testnet.hiro.so"),
		Network:      getEnv("STACKS_NETWORK", "testnet"),

		CreatorAddress:       getEnv("CREATOR_ADDRESS", ""),
		FacilitatorURL:       getEnv("FACILITATOR_URL", ""),
		SettleTimeoutSeconds: getEnvAsInt("SETTLE_TIMEOUT_SECONDS", models.DefaultMaxTimeoutSeconds),

		SchedulerToken:           getEnv("SCHEDULER_TOKEN", ""),
		SchedulerIntervalMinutes: getEnvAsInt("SCHEDULER_INTERVAL_MINUTES", 0),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPSender:   getEnv("SMTP_SENDER", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
	}

	if cfg.FacilitatorURL == "" {
		cfg.FacilitatorURL = fmt.Sprintf("http://localhost:%d/api/v1/facilitator", cfg.APIPort)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	if c.LedgerAPIURL == "" {
		return fmt.Errorf("STACKS_API_URL is required")
	}

	if c.Network != "testnet" && c.Network != "mainnet" {
		return fmt.Errorf("STACKS_NETWORK must be testnet or mainnet, got %q", c.Network)
	}

	if c.CreatorAddress != "" {
		if err := validation.ValidateAddress(c.CreatorAddress); err != nil {
			return fmt.Errorf("invalid CREATOR_ADDRESS: %w", err)
		}
	}

	if c.SettleTimeoutSeconds <= 0 {
		return fmt.Errorf("SETTLE_TIMEOUT_SECONDS must be positive")
	}

	if !c.MemoryStore {
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required")
		}
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
	}

	return nil
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
