package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with seat ledger helpers
type Logger struct {
	*slog.Logger
}

// New creates a logger configured from LOG_LEVEL and the gin mode
func New() *Logger {
	level := getLogLevel(os.Getenv("LOG_LEVEL"))

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Text output while developing, JSON everywhere else
	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// NewWithHandler wraps an arbitrary handler, mostly for tests
func NewWithHandler(h slog.Handler) *Logger {
	return &Logger{Logger: slog.New(h)}
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return NewWithHandler(slog.NewTextHandler(io.Discard, nil))
}

func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID adds request ID to logger context
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("request_id", requestID))}
}

// WithEventID scopes the logger to one event's ledger
func (l *Logger) WithEventID(eventID string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("event_id", eventID))}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("error", err.Error()))}
}

// HTTP logging methods

// LogHTTPRequest logs an HTTP request
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	l.Logger.InfoContext(c.Request.Context(),
		"HTTP Request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
		slog.Int("size", c.Writer.Size()),
	)
}

// LogHTTPError logs an HTTP error
func (l *Logger) LogHTTPError(c *gin.Context, err error, statusCode int) {
	l.Logger.ErrorContext(c.Request.Context(),
		"HTTP Error",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int("status", statusCode),
		slog.String("error", err.Error()),
		slog.String("ip", c.ClientIP()),
	)
}

// Ledger logging methods

// LogHoldCreated logs a successful hold
func (l *Logger) LogHoldCreated(ctx context.Context, holdID, eventID, userID string, seats int, expiresAt time.Time) {
	l.Logger.InfoContext(ctx,
		"Hold Created",
		slog.String("hold_id", holdID),
		slog.String("event_id", eventID),
		slog.String("user_id", userID),
		slog.Int("seats", seats),
		slog.Time("expires_at", expiresAt),
	)
}

// LogHoldRejected logs a hold that lost to a competing claim
func (l *Logger) LogHoldRejected(ctx context.Context, eventID, userID string, unavailable []string, attempts int) {
	l.Logger.InfoContext(ctx,
		"Hold Rejected",
		slog.String("event_id", eventID),
		slog.String("user_id", userID),
		slog.Any("unavailable", unavailable),
		slog.Int("attempts", attempts),
	)
}

// LogHoldReleased logs an explicit release
func (l *Logger) LogHoldReleased(ctx context.Context, holdID, eventID string, released int) {
	l.Logger.InfoContext(ctx,
		"Hold Released",
		slog.String("hold_id", holdID),
		slog.String("event_id", eventID),
		slog.Int("released", released),
	)
}

// LogBookingCreated logs when a booking is confirmed
func (l *Logger) LogBookingCreated(ctx context.Context, bookingID, eventID, userID string) {
	l.Logger.InfoContext(ctx,
		"Booking Created",
		slog.String("booking_id", bookingID),
		slog.String("event_id", eventID),
		slog.String("user_id", userID),
	)
}

// LogBookingCancelled logs when a booking is cancelled
func (l *Logger) LogBookingCancelled(ctx context.Context, bookingID, eventID, userID string) {
	l.Logger.InfoContext(ctx,
		"Booking Cancelled",
		slog.String("booking_id", bookingID),
		slog.String("event_id", eventID),
		slog.String("user_id", userID),
	)
}

// LogContention logs a retried conditional write
func (l *Logger) LogContention(ctx context.Context, op, eventID string, attempt int, err error) {
	l.Logger.DebugContext(ctx,
		"Ledger Contention",
		slog.String("op", op),
		slog.String("event_id", eventID),
		slog.Int("attempt", attempt),
		slog.String("error", err.Error()),
	)
}

// LogRateLimitExceeded logs rate limit exceeded
func (l *Logger) LogRateLimitExceeded(ctx context.Context, ip, endpoint string) {
	l.Logger.WarnContext(ctx,
		"Rate Limit Exceeded",
		slog.String("ip", ip),
		slog.String("endpoint", endpoint),
	)
}

// Global logger instance (can be replaced with dependency injection)
var defaultLogger = New()

// GetDefault returns the default logger instance
func GetDefault() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger instance
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
