package ratelimit

import (
	"net/http"
	"strconv"
	"strings"

	"seatbook/internal/shared/utils/response"
	"seatbook/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Middleware limits each client IP per route class. A limiter that cannot
// reach Redis lets the request through.
func Middleware(rateLimiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		clientIP := c.ClientIP()
		route := c.FullPath()

		result, err := rateLimiter.IsAllowed(ctx, clientIP, getRateLimitType(route))
		if err != nil {
			logger.GetDefault().WithError(err).WarnContext(ctx, "Rate limit check failed", "ip", clientIP, "route", route)
			c.Next()
			return
		}
		writeHeaders(c, result)

		if !result.Allowed {
			logger.GetDefault().LogRateLimitExceeded(ctx, clientIP, route)
			response.RespondJSON(c, "error", http.StatusTooManyRequests, "Rate limit exceeded", nil, gin.H{
				"limit":      result.Limit,
				"reset_time": result.ResetTime,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func writeHeaders(c *gin.Context, result *Result) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime, 10))
}

// routeClasses is checked in order; the first match wins.
var routeClasses = []struct {
	match     func(path string) bool
	limitType RateLimitType
}{
	{isHealthRoute, RateLimitTypeHealth},
	{contains("/admin/"), RateLimitTypeAdmin},
	{contains("/analytics"), RateLimitTypeAnalytics},
	{contains("/seats/hold"), RateLimitTypeHold},
	{contains("/bookings"), RateLimitTypeBooking},
	{contains("/events"), RateLimitTypePublic},
}

// getRateLimitType classifies a route by its registered path
func getRateLimitType(path string) RateLimitType {
	for _, rc := range routeClasses {
		if rc.match(path) {
			return rc.limitType
		}
	}
	return RateLimitTypeDefault
}

func isHealthRoute(path string) bool {
	return path == "/health" || path == "/ping" || path == "/status"
}

func contains(fragment string) func(string) bool {
	return func(path string) bool { return strings.Contains(path, fragment) }
}
