package cache

import (
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/stretchr/testify/assert"

	"bizfinder/internal/scraper"
)

// This test requires a running memcached instance and is skipped otherwise
func TestMemcacheService(t *testing.T) {
	mc := NewMemcacheService("localhost:11211")

	_, err := mc.client.Get("probe")
	if err != nil && err != memcache.ErrCacheMiss {
		t.Skip("Memcached is not available, skipping test")
	}

	err = mc.Set("test_key", []byte("test_value"), 1*time.Second)
	assert.NoError(t, err)

	value, err := mc.Get("test_key")
	assert.NoError(t, err)
	assert.Equal(t, "test_value", string(value))

	err = mc.Delete("test_key")
	assert.NoError(t, err)

	_, err = mc.Get("test_key")
	assert.Error(t, err)
}

// Guard over a real memcached instance, exercising TTL expiry
func TestGuardOnMemcache(t *testing.T) {
	mc := NewMemcacheService("localhost:11211")
	if _, err := mc.client.Get("probe"); err != nil && err != memcache.ErrCacheMiss {
		t.Skip("Memcached is not available, skipping test")
	}

	g := NewGuard(mc)
	g.MarkBlocked(scraper.SourceFlippa, "captcha", time.Second)
	indicator, blocked := g.IsBlocked(scraper.SourceFlippa)
	assert.True(t, blocked)
	assert.Equal(t, "captcha", indicator)

	time.Sleep(1500 * time.Millisecond)
	_, blocked = g.IsBlocked(scraper.SourceFlippa)
	assert.False(t, blocked)
}
