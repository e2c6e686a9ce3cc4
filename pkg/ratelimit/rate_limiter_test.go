package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg *Config) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRateLimiter(client, cfg), mr
}

func testConfig() *Config {
	return &Config{
		Enabled:         true,
		WindowDuration:  time.Minute,
		DefaultRequests: 5,
		PublicRequests:  5,
		HoldRequests:    2,
		BookingRequests: 3,
		HealthRequests:  100,
	}
}

func TestIsAllowed_SlidingWindow(t *testing.T) {
	rl, _ := newTestLimiter(t, testConfig())
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := rl.IsAllowed(ctx, "10.0.0.1", RateLimitTypeHold)
		if err != nil || !res.Allowed {
			t.Fatalf("request %d should pass: %+v %v", i, res, err)
		}
	}
	res, err := rl.IsAllowed(ctx, "10.0.0.1", RateLimitTypeHold)
	if err != nil || res.Allowed || res.Remaining != 0 {
		t.Fatalf("third hold request should be limited: %+v %v", res, err)
	}

	if res, _ := rl.IsAllowed(ctx, "10.0.0.2", RateLimitTypeHold); !res.Allowed {
		t.Fatal("limits are per client")
	}
	if res, _ := rl.IsAllowed(ctx, "10.0.0.1", RateLimitTypeBooking); !res.Allowed {
		t.Fatal("limits are per route class")
	}

	now = now.Add(61 * time.Second)
	if res, _ := rl.IsAllowed(ctx, "10.0.0.1", RateLimitTypeHold); !res.Allowed {
		t.Fatal("window should have slid past earlier requests")
	}
}

func TestIsAllowed_DisabledAndWhitelisted(t *testing.T) {
	cfg := testConfig()
	cfg.HoldRequests = 1
	cfg.WhitelistedIPs = []string{"127.0.0.1"}
	rl, mr := newTestLimiter(t, cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if res, _ := rl.IsAllowed(ctx, "127.0.0.1", RateLimitTypeHold); !res.Allowed {
			t.Fatal("whitelisted client should never be limited")
		}
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("whitelisted client should not touch redis, got keys %v", mr.Keys())
	}

	cfg.Enabled = false
	for i := 0; i < 3; i++ {
		if res, _ := rl.IsAllowed(ctx, "10.0.0.1", RateLimitTypeHold); !res.Allowed {
			t.Fatal("disabled limiter should allow everything")
		}
	}
}

func TestGetRateLimitType(t *testing.T) {
	tests := []struct {
		path string
		want RateLimitType
	}{
		{"/health", RateLimitTypeHealth},
		{"/api/v1/admin/events/:eventId/seats", RateLimitTypeAdmin},
		{"/api/v1/analytics/events/:eventId", RateLimitTypeAnalytics},
		{"/api/v1/seats/hold", RateLimitTypeHold},
		{"/api/v1/seats/hold/:holdId", RateLimitTypeHold},
		{"/api/v1/bookings/confirm", RateLimitTypeBooking},
		{"/api/v1/bookings/:bookingId/cancel", RateLimitTypeBooking},
		{"/api/v1/events/:eventId/seats", RateLimitTypePublic},
		{"", RateLimitTypeDefault},
	}
	for _, tt := range tests {
		if got := getRateLimitType(tt.path); got != tt.want {
			t.Fatalf("%q: expected %s, got %s", tt.path, tt.want, got)
		}
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.HoldRequests = 1
	rl, mr := newTestLimiter(t, cfg)

	r := gin.New()
	r.Use(Middleware(rl))
	r.POST("/api/v1/seats/hold", func(c *gin.Context) { c.Status(http.StatusCreated) })

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/seats/hold", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	if rec := do(); rec.Code != http.StatusCreated || rec.Header().Get("X-RateLimit-Limit") != "1" {
		t.Fatalf("first request should pass, got %d", rec.Code)
	}
	if rec := do(); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", rec.Code)
	}

	other := httptest.NewRequest(http.MethodPost, "/api/v1/seats/hold", nil)
	other.Header.Set("X-Forwarded-For", "198.51.100.20")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, other)
	if rec.Code != http.StatusCreated || rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("another client should have its own window, got %d remaining=%q", rec.Code, rec.Header().Get("X-RateLimit-Remaining"))
	}

	mr.Close()
	if rec := do(); rec.Code != http.StatusCreated {
		t.Fatalf("limiter should fail open when redis is down, got %d", rec.Code)
	}
}
