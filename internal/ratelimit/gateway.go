package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/metergate/metergate/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyGatewayConsumer = "gateway:call:consumer:%s"
	keyGatewaySweep    = "gateway:sweep:lock"
)

// GatewayLimiter throttles metered calls per consumer before any
// signature work or ledger writes happen. Disabled configuration yields
// a nil limiter, and every method on a nil limiter allows.
type GatewayLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	consumerRate  float64
	consumerBurst int
}

func NewGatewayLimiter(cfg config.Config) (*GatewayLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.ConsumerRate <= 0 || limitCfg.ConsumerBurst <= 0 {
		return nil, errors.New("consumer rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &GatewayLimiter{
		enabled:       true,
		bucket:        NewTokenBucket(client),
		locker:        NewLocker(client),
		consumerRate:  limitCfg.ConsumerRate,
		consumerBurst: limitCfg.ConsumerBurst,
	}, nil
}

func (l *GatewayLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *GatewayLimiter) AllowConsumer(ctx context.Context, consumer string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyGatewayConsumer, strings.TrimSpace(consumer)), l.consumerRate, l.consumerBurst)
}

// TryLockSweep takes the cross-instance settlement sweep lock so only
// one instance retries stale records per interval.
func (l *GatewayLimiter) TryLockSweep(ctx context.Context, ttl time.Duration) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, keyGatewaySweep, ttl)
}

func (l *GatewayLimiter) ReleaseSweep(ctx context.Context, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.Release(ctx, keyGatewaySweep, token)
}
