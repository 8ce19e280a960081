package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	// Test with default values
	config := LoadConfig()
	assert.Equal(t, "data/bizfinder.db", config.DBPath)
	assert.Equal(t, "localhost:6379", config.RedisAddr)
	assert.Equal(t, 0, config.RedisDB)
	assert.Equal(t, "bizfinder:listings", config.RedisStream)
	assert.Equal(t, "localhost:11211", config.MemcacheAddr)
	assert.Equal(t, 30*time.Second, config.PageTimeout)
	assert.True(t, config.Headless)

	// Test with environment variables
	os.Setenv("BIZFINDER_DB_PATH", "/tmp/test.db")
	os.Setenv("REDIS_ADDR", "redis.example.com:6379")
	os.Setenv("REDIS_DB", "1")
	os.Setenv("PAGE_TIMEOUT_SECONDS", "10")
	os.Setenv("HEADLESS", "false")
	os.Setenv("FLIPPA_URL", "https://example.com/flippa")

	config = LoadConfig()
	assert.Equal(t, "/tmp/test.db", config.DBPath)
	assert.Equal(t, "redis.example.com:6379", config.RedisAddr)
	assert.Equal(t, 1, config.RedisDB)
	assert.Equal(t, 10*time.Second, config.PageTimeout)
	assert.False(t, config.Headless)
	assert.Equal(t, "https://example.com/flippa", config.FlippaURL)

	// Clean up
	os.Unsetenv("BIZFINDER_DB_PATH")
	os.Unsetenv("REDIS_ADDR")
	os.Unsetenv("REDIS_DB")
	os.Unsetenv("PAGE_TIMEOUT_SECONDS")
	os.Unsetenv("HEADLESS")
	os.Unsetenv("FLIPPA_URL")
}

func TestLoadConfigFilterEnv(t *testing.T) {
	os.Setenv("MIN_ANNUAL_REVENUE", "10000")
	os.Setenv("MAX_ASKING_PRICE", "250,000")
	os.Setenv("CATEGORY_BLACKLIST_EXTRA", "crypto, gambling")
	defer func() {
		os.Unsetenv("MIN_ANNUAL_REVENUE")
		os.Unsetenv("MAX_ASKING_PRICE")
		os.Unsetenv("CATEGORY_BLACKLIST_EXTRA")
	}()

	config := LoadConfig()
	assert.Equal(t, int64(1000000), config.Filters.MinAnnualRevenueCents)
	assert.Equal(t, int64(25000000), config.Filters.MaxAskingPriceCents)
	assert.Contains(t, config.Filters.CategoryBlacklist, "crypto")
	assert.Contains(t, config.Filters.CategoryBlacklist, "gambling")
}

func TestRequireAcquireCredentials(t *testing.T) {
	config := &Config{}
	assert.Error(t, config.RequireAcquireCredentials())

	config.AcquireUsername = "user@example.com"
	assert.Error(t, config.RequireAcquireCredentials())

	config.AcquirePassword = "secret"
	assert.NoError(t, config.RequireAcquireCredentials())
}

func TestLoadConfigProxyList(t *testing.T) {
	os.Setenv("PROXY_LIST", "socks5://10.0.0.1:1080, 10.0.0.2:8080 ,")
	defer os.Unsetenv("PROXY_LIST")

	config := LoadConfig()
	assert.Equal(t, []string{"socks5://10.0.0.1:1080", "10.0.0.2:8080"}, config.ProxyList)
	assert.Empty(t, config.ProxyAddr)
}
