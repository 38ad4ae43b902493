package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DbHost     string
	DbPort     string
	DbName     string
	DbUser     string
	DbPassword string

	TagsFile     string
	OutputFile   string
	ProgressFile string

	BaseURL   string
	Payload   string
	Timestamp string
	Session   string

	MaxRetries     int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
	RequestDelay   time.Duration
	RateLimitDelay time.Duration
	MaxPages       int

	APIPort int
}

// NewConfig loads configuration from environment variables
func NewConfig() *Config {
	// Load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	return &Config{
		DbHost:     getEnv("DB_HOST", "localhost"),
		DbPort:     getEnv("DB_PORT", "5432"),
		DbName:     getEnv("DB_NAME", "arkham_db"),
		DbUser:     getEnv("DB_USER", "postgres"),
		DbPassword: getEnv("DB_PASSWORD", "postgres"),

		TagsFile:     getEnv("TAGS_FILE", "data/full_tags_by_type.json"),
		OutputFile:   getEnv("OUTPUT_FILE", "data/arkham_addresses.txt"),
		ProgressFile: getEnv("PROGRESS_FILE", "data/arkham_progress.json"),

		BaseURL:   getEnv("ARKHAM_BASE_URL", "https://api.arkm.com"),
		Payload:   getEnv("ARKHAM_PAYLOAD", ""),
		Timestamp: getEnv("ARKHAM_TIMESTAMP", ""),
		Session:   getEnv("ARKHAM_SESSION", ""),

		MaxRetries:     getEnvInt("API_MAX_RETRIES", 3),
		RetryDelay:     getEnvSeconds("API_RETRY_DELAY", 5*time.Second),
		RequestTimeout: getEnvSeconds("API_REQUEST_TIMEOUT", 30*time.Second),
		RequestDelay:   getEnvSeconds("API_REQUEST_DELAY", time.Second),
		RateLimitDelay: getEnvSeconds("API_RATE_LIMIT_DELAY", 60*time.Second),
		MaxPages:       getEnvInt("API_MAX_PAGES", 2000),

		APIPort: getEnvInt("API_PORT", 8080),
	}
}

// DbURL builds the lib/pq connection string from the discrete DB settings.
func (c *Config) DbURL() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=disable",
		c.DbHost, c.DbPort, c.DbName, c.DbUser, c.DbPassword)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(parsed * float64(time.Second))
		}
	}
	return defaultValue
}
