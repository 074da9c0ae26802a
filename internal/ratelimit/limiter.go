// Package ratelimit implements fixed-window rate limiting backed by Redis.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// IP limits: requests per window, per purpose
	ipLimit  = 10
	ipWindow = 15 * time.Minute

	// Per-email cooldown between reset emails
	emailCooldown = 2 * time.Minute
)

// Limiter enforces per-IP request limits and per-email cooldowns
type Limiter struct {
	client *redis.Client
}

func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

func ipKey(ip, purpose string) string {
	return fmt.Sprintf("ratelimit:ip:%s:%s", purpose, ip)
}

func emailKey(email string) string {
	return fmt.Sprintf("ratelimit:email:%s", strings.ToLower(strings.TrimSpace(email)))
}

// CheckIPRateLimit reports whether an IP has exhausted the default window
func (l *Limiter) CheckIPRateLimit(ctx context.Context, ip string) (bool, error) {
	return l.CheckIPRateLimitWithPurpose(ctx, ip, "default")
}

// RecordIPRequest counts a request against the default window
func (l *Limiter) RecordIPRequest(ctx context.Context, ip string) error {
	return l.RecordIPRequestWithPurpose(ctx, ip, "default")
}

// CheckIPRateLimitWithPurpose reports whether an IP has exhausted the
// window for a named purpose. Purposes have independent counters so a
// burst of logins does not lock out registration.
func (l *Limiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	count, err := l.client.Get(ctx, ipKey(ip, purpose)).Int()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get rate limit counter: %w", err)
	}
	return count >= ipLimit, nil
}

// RecordIPRequestWithPurpose counts a request against the purpose's
// window. The window starts at the first request and is fixed: the key
// expires ipWindow after the first INCR, not the last.
func (l *Limiter) RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error {
	key := ipKey(ip, purpose)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, ipWindow).Err(); err != nil {
			return fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return nil
}

// CheckEmailCooldown reports whether an email was sent to recently
func (l *Limiter) CheckEmailCooldown(ctx context.Context, email string) (bool, error) {
	exists, err := l.client.Exists(ctx, emailKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check email cooldown: %w", err)
	}
	return exists > 0, nil
}

// SetEmailCooldown starts the cooldown for an email address
func (l *Limiter) SetEmailCooldown(ctx context.Context, email string) error {
	if err := l.client.Set(ctx, emailKey(email), "1", emailCooldown).Err(); err != nil {
		return fmt.Errorf("failed to set email cooldown: %w", err)
	}
	return nil
}
