package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seatbook/api/routes"
	"seatbook/internal/holds"
	"seatbook/internal/ledger"
	"seatbook/internal/notifications"
	"seatbook/internal/shared/config"
	"seatbook/internal/shared/database"
	"seatbook/internal/shared/middleware"
	"seatbook/pkg/logger"
	"seatbook/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	appLogger := logger.GetDefault()

	// Smart environment loading
	if err := godotenv.Load(); err != nil {
		// Check if we're in production/container mode
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	// Load config
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		appLogger.Error("Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Set Gin mode (debug/release)
	gin.SetMode(cfg.GinMode)

	// Rebuild the default logger now that LOG_LEVEL and the gin mode are known
	logger.SetDefault(logger.New())
	appLogger = logger.GetDefault()

	// Initialize DB
	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("Failed to connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connections", slog.Any("error", err))
		}
	}()

	// Seat ledger
	store, err := db.NewLedgerStore(cfg)
	if err != nil {
		appLogger.Error("Failed to initialize seat ledger", slog.Any("error", err))
		os.Exit(1)
	}
	appLogger.Info("Seat ledger ready", slog.String("backend", cfg.Ledger.Backend))

	// Lapsed hold records; the Redis store expires its own
	if purger, ok := store.(ledger.HoldPurger); ok {
		janitor := holds.NewJanitor(purger, holds.JanitorConfig{
			Interval:  cfg.Ledger.HoldPurgeInterval,
			Retention: cfg.Ledger.HoldRecordRetention,
		}, nil, appLogger)
		janitorCtx, stopJanitor := context.WithCancel(context.Background())
		janitor.Start(janitorCtx)
		defer func() {
			janitor.Stop()
			stopJanitor()
		}()
	}

	// Lifecycle message publishers
	publisher := newPublisher(cfg, appLogger)
	defer func() {
		if err := publisher.Close(); err != nil {
			appLogger.Error("Error closing lifecycle publishers", slog.Any("error", err))
		}
	}()

	// Initialize Rate Limiter
	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiterConfig := &ratelimit.Config{
			Enabled:           cfg.RateLimit.Enabled,
			WindowDuration:    cfg.RateLimit.WindowDuration,
			DefaultRequests:   cfg.RateLimit.DefaultRequests,
			PublicRequests:    cfg.RateLimit.PublicRequests,
			HoldRequests:      cfg.RateLimit.HoldRequests,
			BookingRequests:   cfg.RateLimit.BookingRequests,
			AdminRequests:     cfg.RateLimit.AdminRequests,
			AnalyticsRequests: cfg.RateLimit.AnalyticsRequests,
			HealthRequests:    cfg.RateLimit.HealthRequests,
			WhitelistedIPs:    cfg.RateLimit.WhitelistedIPs,
		}

		rateLimiter = ratelimit.NewRateLimiter(db.GetRedis(), rateLimiterConfig)
		appLogger.Info("Rate limiter initialized",
			slog.Bool("enabled", cfg.RateLimit.Enabled),
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("hold_requests", cfg.RateLimit.HoldRequests),
			slog.Int("booking_requests", cfg.RateLimit.BookingRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	// Setup router with rate limiter
	router := setupRouter(cfg, db, store, publisher, rateLimiter)

	// HTTP server
	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		appLogger.Info("🚀 Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("api_base", fmt.Sprintf("http://localhost:%s%s", cfg.Port, cfg.GetAPIBasePath())),
			slog.String("version", Version),
			slog.String("commit", GitCommit),
			slog.String("built", BuildTime),
			slog.String("ledger", cfg.Ledger.Backend),
			slog.Bool("rate_limiting", cfg.RateLimit.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

// newPublisher connects every enabled broker. A broker that cannot be
// reached is skipped; lifecycle messages are best-effort.
func newPublisher(cfg *config.Config, appLogger *logger.Logger) notifications.Publisher {
	var publishers []notifications.Publisher

	if cfg.Kafka.Enabled {
		kafkaConfig := notifications.DefaultKafkaProducerConfig()
		kafkaConfig.Brokers = cfg.Kafka.Brokers
		kafkaConfig.Topic = cfg.Kafka.Topic

		producer, err := notifications.NewKafkaProducer(kafkaConfig, appLogger)
		if err != nil {
			appLogger.Error("Failed to initialize Kafka producer", slog.Any("error", err))
		} else {
			publishers = append(publishers, producer)
			appLogger.Info("Kafka lifecycle producer initialized", slog.String("topic", cfg.Kafka.Topic))
		}
	}

	if cfg.AMQP.Enabled {
		amqpPublisher, err := notifications.NewAMQPPublisher(notifications.AMQPConfig{
			URL:        cfg.AMQP.URL,
			Exchange:   cfg.AMQP.Exchange,
			RoutingKey: cfg.AMQP.RoutingKey,
		})
		if err != nil {
			appLogger.Error("Failed to initialize RabbitMQ publisher", slog.Any("error", err))
		} else {
			publishers = append(publishers, amqpPublisher)
			appLogger.Info("RabbitMQ lifecycle publisher initialized", slog.String("exchange", cfg.AMQP.Exchange))
		}
	}

	if len(publishers) == 0 {
		appLogger.Info("No lifecycle publishers enabled")
		return notifications.Nop()
	}
	return notifications.NewFanout(publishers...)
}

func setupRouter(cfg *config.Config, db *database.DB, store ledger.Store, publisher notifications.Publisher, rateLimiter *ratelimit.RateLimiter) *gin.Engine {
	engine := gin.New()
	appLogger := logger.GetDefault()

	// Request ids, request logs, panic recovery
	engine.Use(middleware.RequestID(), middleware.RequestLogger(appLogger), gin.Recovery())

	// CORS configuration
	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true // allow every origin dynamically
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Idempotency-Key", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Global rate limiting middleware (applied to all routes)
	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter))
		appLogger.Info("Rate limiting middleware applied to all routes")
	}

	// Initialize and setup routes
	appRouter := routes.NewRouter(cfg, db, store, publisher)
	appRouter.SetupRoutes(engine)

	return engine
}
