package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "bizfinder/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Database configuration
	DBPath string

	// Redis configuration
	RedisAddr      string
	RedisDB        int
	RedisStream    string
	RedisStreamMax int64

	// Memcache configuration
	MemcacheAddr string

	// Slack configuration
	SlackWebhookURL string

	// Acquire.com credentials
	AcquireUsername string
	AcquirePassword string

	// Browser settings
	Headless    bool
	ChromePath  string
	PageTimeout time.Duration

	// Proxy pool, optional. ProxyAddr is resolved from the pool at startup
	// and passed straight to the browser when set.
	ProxyList []string
	ProxyAddr string

	// URLs for the marketplace sources
	FlippaURL  string
	AcquireURL string
	MicronsURL string

	// Default filters, from environment
	Filters FilterConfig

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults.
// A .env file in the working directory is honored when present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	redisStreamMax, _ := strconv.ParseInt(getEnv("REDIS_STREAM_MAX_LENGTH", "500"), 10, 64)
	pageTimeout, _ := strconv.Atoi(getEnv("PAGE_TIMEOUT_SECONDS", "30"))

	return &Config{
		DBPath:          getEnv("BIZFINDER_DB_PATH", "data/bizfinder.db"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:         redisDB,
		RedisStream:     getEnv("REDIS_STREAM", "bizfinder:listings"),
		RedisStreamMax:  redisStreamMax,
		MemcacheAddr:    getEnv("MEMCACHE_ADDR", "localhost:11211"),
		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
		AcquireUsername: getEnv("ACQUIRE_USERNAME", ""),
		AcquirePassword: getEnv("ACQUIRE_PASSWORD", ""),
		Headless:        getEnvBool("HEADLESS", true),
		ChromePath:      getEnv("CHROME_PATH", ""),
		PageTimeout:     time.Duration(pageTimeout) * time.Second,
		ProxyList:       getEnvList("PROXY_LIST"),
		ProxyAddr:       getEnv("PROXY_ADDR", ""),
		FlippaURL:       getEnv("FLIPPA_URL", "https://flippa.com/search"),
		AcquireURL:      getEnv("ACQUIRE_URL", "https://app.acquire.com/all-listing"),
		MicronsURL:      getEnv("MICRONS_URL", "https://www.microns.io"),
		Filters:         loadFilterConfig(),
		Environment:     getEnv("BIZFINDER_ENVIRONMENT", "development"),
	}
}

// Validate checks that required settings are present for the requested features
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return apperrors.NewConfiguration("BIZFINDER_DB_PATH must not be empty", nil)
	}
	if c.PageTimeout <= 0 {
		return apperrors.NewConfiguration("PAGE_TIMEOUT_SECONDS must be positive", nil)
	}
	return nil
}

// RequireAcquireCredentials checks that Acquire.com login credentials are configured
func (c *Config) RequireAcquireCredentials() error {
	if c.AcquireUsername == "" || c.AcquirePassword == "" {
		return apperrors.NewConfiguration("ACQUIRE_USERNAME and ACQUIRE_PASSWORD must be set", nil)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvList splits a comma-separated environment variable into trimmed
// non-empty entries
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnvCents parses a dollar amount from the environment into cents.
// Returns 0 when unset or unparseable.
func getEnvCents(key string) int64 {
	value := os.Getenv(key)
	if value == "" {
		return 0
	}
	dollars, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil {
		return 0
	}
	return int64(dollars * 100)
}
