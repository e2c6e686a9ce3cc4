// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"seatbook/internal/analytics"
	"seatbook/internal/bookings"
	"seatbook/internal/holds"
	"seatbook/internal/ledger"
	"seatbook/internal/notifications"
	"seatbook/internal/seats"
	"seatbook/internal/shared/config"
	"seatbook/internal/shared/database"
	"seatbook/pkg/cache"
	"seatbook/pkg/clock"

	"github.com/gin-gonic/gin"
)

// Router holds all route dependencies
type Router struct {
	config    *config.Config
	db        *database.DB
	store     ledger.Store
	publisher notifications.Publisher
	clock     clock.Clock
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, store ledger.Store, publisher notifications.Publisher) *Router {
	if publisher == nil {
		publisher = notifications.Nop()
	}
	return &Router{
		config:    cfg,
		db:        db,
		store:     store,
		publisher: publisher,
		clock:     clock.NewSystem(),
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check and basic info endpoints
	r.setupHealthRoutes(engine)

	// API routes
	api := engine.Group(r.config.GetAPIBasePath())
	{
		r.setupSeatRoutes(api)
		r.setupHoldRoutes(api)
		r.setupBookingRoutes(api)
		r.setupAnalyticsRoutes(api)
	}
}

// cacheService is nil when Redis is not connected
func (r *Router) cacheService() cache.Service {
	if r.db == nil || r.db.GetRedis() == nil {
		return nil
	}
	return cache.NewService(r.db.GetRedis())
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		ctx := c.Request.Context()

		checks := gin.H{"ledger": "ok", "backend": r.config.Ledger.Backend}
		healthy := true
		if err := r.store.Ping(ctx); err != nil {
			checks["ledger"] = err.Error()
			healthy = false
		}
		if r.db != nil {
			if err := r.db.HealthCheck(ctx); err != nil {
				checks["database"] = err.Error()
				healthy = false
			}
		}

		status, code := "healthy", http.StatusOK
		if !healthy {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"checks":    checks,
			"timestamp": time.Now(),
			"service":   "seatbook",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"ledger":      r.config.Ledger.Backend,
			"timestamp":   time.Now(),
		})
	})
}

// setupSeatRoutes configures seat inventory and seat map routes
func (r *Router) setupSeatRoutes(rg *gin.RouterGroup) {
	seatService := seats.NewService(r.store, r.clock)
	seats.SetupSeatRoutes(rg, seats.NewController(seatService))
}

// setupHoldRoutes configures the hold manager routes
func (r *Router) setupHoldRoutes(rg *gin.RouterGroup) {
	opts := []holds.Option{
		holds.WithClock(r.clock),
		holds.WithPublisher(r.publisher),
		holds.WithDefaultTTL(r.config.Hold.DefaultTTL),
		holds.WithMaxTTL(r.config.Hold.MaxTTL),
		holds.WithMaxAttempts(r.config.Hold.MaxAttempts),
		holds.WithMaxSeats(r.config.Hold.MaxSeats),
	}

	// Idempotency keys need Redis
	if cacheService := r.cacheService(); cacheService != nil && r.config.Hold.IdempotencyEnabled {
		opts = append(opts, holds.WithIdempotency(cacheService))
	}

	holdService := holds.NewService(r.store, opts...)
	holds.SetupHoldRoutes(rg, holds.NewController(holdService, r.clock))
}

// setupBookingRoutes configures booking confirmation and cancellation routes
func (r *Router) setupBookingRoutes(rg *gin.RouterGroup) {
	bookingService := bookings.NewService(r.store,
		bookings.WithClock(r.clock),
		bookings.WithPublisher(r.publisher),
	)
	bookings.SetupBookingRoutes(rg, bookings.NewController(bookingService))
}

// setupAnalyticsRoutes configures analytics routes
func (r *Router) setupAnalyticsRoutes(rg *gin.RouterGroup) {
	analyticsService := analytics.NewService(r.store, r.clock)

	// Inject cache service dependency
	if cacheService := r.cacheService(); cacheService != nil {
		analyticsService.SetCacheService(cacheService)
	}

	analytics.SetupAnalyticsRoutes(rg, analytics.NewController(analyticsService))
}
