package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported values of DATABASE_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port     string
	LogLevel string

	// Storage settings
	DatabaseDriver string
	DatabasePath   string // sqlite file
	DatabaseURL    string // postgres DSN

	// Messaging settings, publishing is disabled when no broker is set
	KafkaBrokers []string
	KafkaTopic   string

	// HTTP limits
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int

	// Ledger service settings
	CardCacheTTL  time.Duration
	ExtendToToday bool
	MaxSpanDays   int // how far outside its range one fact may extend a ledger
}

// LoadConfig loads configuration from environment variables or a .env file.
func LoadConfig() *AppConfig {
	if errEnv := godotenv.Load(); errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found. Relying on OS environment variables.")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	cfg := &AppConfig{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", DriverSQLite)),
		DatabasePath:   getEnv("DATABASE_PATH", "./ledger.db"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		KafkaBrokers: getEnvAsList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "card_balance_updated"),

		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 30),

		CardCacheTTL:  getEnvAsDuration("CARD_CACHE_TTL", 5*time.Minute),
		ExtendToToday: getEnvAsBool("EXTEND_TO_TODAY", false),
		MaxSpanDays:   getEnvAsInt("MAX_LEDGER_SPAN_DAYS", 3660),
	}

	if cfg.DatabaseDriver == DriverPostgres && cfg.DatabaseURL == "" {
		log.Fatalf("FATAL: DATABASE_URL is required when DATABASE_DRIVER=%s.", DriverPostgres)
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, Driver=%s, Kafka brokers=%d",
		cfg.Port, cfg.LogLevel, cfg.DatabaseDriver, len(cfg.KafkaBrokers))
	return cfg
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid number value for %s ('%s'), using default: %g", key, valueStr, fallback)
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid boolean value for %s ('%s'), using default: %t", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

// getEnvAsList parses a comma-separated list, dropping empty items.
func getEnvAsList(key string) []string {
	var items []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
