package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBackoff(t *testing.T) {
	rl := NewRateLimiter(time.Second, 8*time.Second, 2.0, 5)
	assert.Equal(t, time.Second, rl.CurrentDelay())

	assert.True(t, rl.RecordFailure())
	assert.Equal(t, 2*time.Second, rl.CurrentDelay())
	assert.True(t, rl.RecordFailure())
	assert.Equal(t, 4*time.Second, rl.CurrentDelay())
	assert.True(t, rl.RecordFailure())
	assert.Equal(t, 8*time.Second, rl.CurrentDelay())

	// capped at MaxDelay
	assert.True(t, rl.RecordFailure())
	assert.Equal(t, 8*time.Second, rl.CurrentDelay())
	assert.Equal(t, 4, rl.ConsecutiveFailures())

	// fifth failure hits the ceiling
	assert.False(t, rl.RecordFailure())
}

func TestRateLimiterSuccessResets(t *testing.T) {
	rl := NewRateLimiter(time.Second, time.Minute, 2.0, 3)
	rl.RecordFailure()
	rl.RecordFailure()
	assert.Equal(t, 2, rl.ConsecutiveFailures())

	rl.RecordSuccess()
	assert.Equal(t, 0, rl.ConsecutiveFailures())
	assert.Equal(t, time.Second, rl.CurrentDelay())
}

func TestRateLimiterWaitCancel(t *testing.T) {
	rl := NewRateLimiter(time.Minute, time.Hour, 2.0, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, rl.Wait(ctx))
}

func TestRandomDelayCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, RandomDelay(ctx, time.Minute, 2*time.Minute))
}

func TestDetectBlock(t *testing.T) {
	indicator, blocked := DetectBlock("Too Many Requests - please slow down")
	assert.True(t, blocked)
	assert.Equal(t, "too many requests", indicator)

	indicator, blocked = DetectBlock("Please complete the CAPTCHA to continue")
	assert.True(t, blocked)
	assert.Equal(t, "captcha", indicator)

	_, blocked = DetectBlock("SaaS business for sale, $50k/yr profit")
	assert.False(t, blocked)
}
