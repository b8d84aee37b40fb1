package chdata

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// DefaultBaseURL is the public Companies House API host.
const DefaultBaseURL = "https://api.company-information.service.gov.uk"

const (
	defaultRequestTimeout  = 10 * time.Second
	defaultRequestInterval = 800 * time.Millisecond
	defaultDatabasePath    = "chdata.db"
)

// Config carries everything the pipeline needs from the environment.
type Config struct {
	APIKey          string
	BaseURL         string
	DatabasePath    string
	LogLevel        string
	RequestTimeout  time.Duration
	RequestInterval time.Duration
}

// LoadConfig reads configuration from the environment, loading a .env file
// first if one is present.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		APIKey:          os.Getenv("CH_API_KEY"),
		BaseURL:         getEnv("CH_BASE_URL", DefaultBaseURL),
		DatabasePath:    getEnv("CHDATA_DB_PATH", defaultDatabasePath),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RequestTimeout:  getEnvAsDuration("CH_REQUEST_TIMEOUT", defaultRequestTimeout),
		RequestInterval: getEnvAsDuration("CH_REQUEST_INTERVAL", defaultRequestInterval),
	}
}

// withDefaults fills zero values so hand-built configs in tests behave.
func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.RequestInterval <= 0 {
		c.RequestInterval = defaultRequestInterval
	}
	return c
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
