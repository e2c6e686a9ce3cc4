package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"seatbook/internal/shared/constants"

	"github.com/redis/go-redis/v9"
)

type RateLimitType string

const (
	RateLimitTypeDefault   RateLimitType = "default"
	RateLimitTypePublic    RateLimitType = "public"
	RateLimitTypeHold      RateLimitType = "hold"
	RateLimitTypeBooking   RateLimitType = "booking"
	RateLimitTypeAdmin     RateLimitType = "admin"
	RateLimitTypeAnalytics RateLimitType = "analytics"
	RateLimitTypeHealth    RateLimitType = "health"
)

type Config struct {
	Enabled           bool          `json:"enabled"`
	WindowDuration    time.Duration `json:"window_duration"`
	DefaultRequests   int           `json:"default_requests"`
	PublicRequests    int           `json:"public_requests"`
	HoldRequests      int           `json:"hold_requests"`
	BookingRequests   int           `json:"booking_requests"`
	AdminRequests     int           `json:"admin_requests"`
	AnalyticsRequests int           `json:"analytics_requests"`
	HealthRequests    int           `json:"health_requests"`
	WhitelistedIPs    []string      `json:"whitelisted_ips"`
}

// Result represents rate limit check result
type Result struct {
	Allowed   bool  `json:"allowed"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"reset_time"`
}

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	client *redis.Client
	config *Config
	now    func() time.Time
	seq    atomic.Uint64
}

func NewRateLimiter(client *redis.Client, config *Config) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
		now:    time.Now,
	}
}

// checks if request is allowed
func (r *RateLimiter) IsAllowed(ctx context.Context, clientIP string, limitType RateLimitType) (*Result, error) {
	if !r.config.Enabled {
		limit := r.getLimit(limitType)
		return &Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit,
			ResetTime: r.now().Add(r.config.WindowDuration).Unix(),
		}, nil
	}

	// Check if IP is whitelisted
	if r.isWhitelisted(clientIP) {
		limit := r.getLimit(limitType)
		return &Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit,
			ResetTime: r.now().Add(r.config.WindowDuration).Unix(),
		}, nil
	}

	key := constants.BuildRateLimitKey(clientIP, string(limitType))
	limit := r.getLimit(limitType)

	return r.checkLimit(ctx, key, limit)
}

// Sliding window over a sorted set of request timestamps. Members carry
// a per-request suffix so requests in the same millisecond count apart.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local window_start = tonumber(ARGV[1])
	local now = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local current_count = redis.call('ZCARD', key)
	if current_count >= limit then
		redis.call('PEXPIRE', key, window_ms)
		return {current_count + 1, 0}
	end

	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window_ms)

	return {current_count + 1, limit - current_count - 1}
`)

// performs the actual rate limit check using sliding window
func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int) (*Result, error) {
	now := r.now()
	windowStart := now.Add(-r.config.WindowDuration)
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.FormatUint(r.seq.Add(1), 10)

	values, err := slidingWindowScript.Run(ctx, r.client, []string{key},
		windowStart.UnixMilli(),
		now.UnixMilli(),
		limit,
		r.config.WindowDuration.Milliseconds(),
		member).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis eval failed: %w", err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	return &Result{
		Allowed:   int(values[0]) <= limit,
		Limit:     limit,
		Remaining: int(values[1]),
		ResetTime: now.Add(r.config.WindowDuration).Unix(),
	}, nil
}

func (r *RateLimiter) getLimit(limitType RateLimitType) int {
	switch limitType {
	case RateLimitTypePublic:
		return r.config.PublicRequests
	case RateLimitTypeHold:
		return r.config.HoldRequests
	case RateLimitTypeBooking:
		return r.config.BookingRequests
	case RateLimitTypeAdmin:
		return r.config.AdminRequests
	case RateLimitTypeAnalytics:
		return r.config.AnalyticsRequests
	case RateLimitTypeHealth:
		return r.config.HealthRequests
	default:
		return r.config.DefaultRequests
	}
}

func (r *RateLimiter) isWhitelisted(ip string) bool {
	for _, whitelistedIP := range r.config.WhitelistedIPs {
		if ip == whitelistedIP {
			return true
		}
	}
	return false
}
