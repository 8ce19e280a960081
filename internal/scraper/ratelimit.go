package scraper

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// RateLimiter paces repeated fetches with exponential backoff. Each
// failure stretches the next delay by the backoff factor up to MaxDelay;
// any success resets the delay to BaseDelay. RecordFailure returns false
// once the consecutive-failure ceiling is hit, signaling the caller to
// abort the pass while keeping partial results.
type RateLimiter struct {
	BaseDelay              time.Duration
	MaxDelay               time.Duration
	BackoffFactor          float64
	MaxConsecutiveFailures int

	currentDelay        time.Duration
	consecutiveFailures int
}

// NewRateLimiter creates a limiter with the given pacing parameters
func NewRateLimiter(base, max time.Duration, factor float64, maxFailures int) *RateLimiter {
	return &RateLimiter{
		BaseDelay:              base,
		MaxDelay:               max,
		BackoffFactor:          factor,
		MaxConsecutiveFailures: maxFailures,
		currentDelay:           base,
	}
}

// Wait sleeps for the current delay, returning early on context cancel
func (r *RateLimiter) Wait(ctx context.Context) error {
	return sleepCtx(ctx, r.currentDelay)
}

// RecordSuccess resets the failure streak and the delay
func (r *RateLimiter) RecordSuccess() {
	r.consecutiveFailures = 0
	r.currentDelay = r.BaseDelay
}

// RecordFailure stretches the delay and reports whether the caller may
// keep going
func (r *RateLimiter) RecordFailure() bool {
	r.consecutiveFailures++
	next := time.Duration(float64(r.currentDelay) * r.BackoffFactor)
	if next > r.MaxDelay {
		next = r.MaxDelay
	}
	r.currentDelay = next
	return r.consecutiveFailures < r.MaxConsecutiveFailures
}

// ConsecutiveFailures returns the current failure streak
func (r *RateLimiter) ConsecutiveFailures() int {
	return r.consecutiveFailures
}

// CurrentDelay returns the delay the next Wait will apply
func (r *RateLimiter) CurrentDelay() time.Duration {
	return r.currentDelay
}

// RandomDelay sleeps a politeness interval drawn uniformly from
// [min, max], returning early on context cancel.
func RandomDelay(ctx context.Context, min, max time.Duration) error {
	d := min
	if max > min {
		d += time.Duration(rand.Int63n(int64(max - min)))
	}
	return sleepCtx(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// rate limit / CAPTCHA signatures looked for in page body text
var blockIndicators = []string{
	"rate limit",
	"too many requests",
	"please try again later",
	"captcha",
	"verify you're human",
	"access denied",
	"blocked",
}

// DetectBlock reports whether page text carries a rate-limit or CAPTCHA
// signature, and which indicator matched.
func DetectBlock(pageText string) (string, bool) {
	lower := strings.ToLower(pageText)
	for _, indicator := range blockIndicators {
		if strings.Contains(lower, indicator) {
			return indicator, true
		}
	}
	return "", false
}
