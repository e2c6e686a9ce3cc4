package database

import (
	"context"
	"fmt"
	"time"

	"seatbook/internal/ledger"
	"seatbook/internal/shared/config"
	applog "seatbook/pkg/logger"

	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds database connections. PostgreSQL is nil unless the ledger
// lives there.
type DB struct {
	PostgreSQL *gorm.DB
	Redis      *redis.Client
}

// InitDB initializes the database connections the configured ledger
// backend needs. Redis is always connected: the rate limiter, the
// idempotency cache and the occupancy cache use it.
func InitDB(cfg *config.Config) (*DB, error) {
	db := &DB{}

	if cfg.Ledger.Backend == config.LedgerBackendPostgres {
		pg, err := initPostgreSQL(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		if err := Migrate(pg); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		db.PostgreSQL = pg
	}

	rdb, err := initRedis(cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}
	db.Redis = rdb

	return db, nil
}

// NewLedgerStore builds the seat ledger for the configured backend
func (db *DB) NewLedgerStore(cfg *config.Config) (ledger.Store, error) {
	switch cfg.Ledger.Backend {
	case config.LedgerBackendPostgres:
		if db.PostgreSQL == nil {
			return nil, fmt.Errorf("postgres ledger requested without a PostgreSQL connection")
		}
		return ledger.NewPostgresStore(db.PostgreSQL), nil
	case config.LedgerBackendRedis:
		if db.Redis == nil {
			return nil, fmt.Errorf("redis ledger requested without a Redis connection")
		}
		store := ledger.NewRedisStore(db.Redis, ledger.WithHoldRetention(cfg.Ledger.HoldRecordRetention))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.PreloadScripts(ctx); err != nil {
			// Scripts load on first use otherwise
			applog.GetDefault().Warn("Failed to preload ledger scripts", "error", err)
		}
		return store, nil
	case config.LedgerBackendMemory:
		return ledger.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
}

// initPostgreSQL initializes PostgreSQL connection with GORM
func initPostgreSQL(cfg *config.Config) (*gorm.DB, error) {
	// Configure GORM logger
	var gormLogger logger.Interface
	if cfg.IsDevelopment() {
		gormLogger = logger.Default.LogMode(logger.Warn)
	} else {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	// GORM configuration
	gormConfig := &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		PrepareStmt:                              true,
		DisableForeignKeyConstraintWhenMigrating: true,
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	applog.GetDefault().Info("✅ PostgreSQL connected successfully")
	return db, nil
}

// initRedis initializes Redis connection
func initRedis(cfg *config.Config) (*redis.Client, error) {
	// Redis client options
	opts := &redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,

		// Connection pool settings
		PoolSize:     10,
		MinIdleConns: 5,

		// Timeouts
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	// Create Redis client
	rdb := redis.NewClient(opts)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	applog.GetDefault().Info("✅ Redis connected successfully")
	return rdb, nil
}

// Close closes all database connections
func (db *DB) Close() error {
	var result *multierror.Error

	if db.PostgreSQL != nil {
		if sqlDB, err := db.PostgreSQL.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("failed to close PostgreSQL: %w", err))
			}
		}
	}

	if db.Redis != nil {
		if err := db.Redis.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	return result.ErrorOrNil()
}

// HealthCheck performs health checks on all database connections
func (db *DB) HealthCheck(ctx context.Context) error {
	// Check PostgreSQL
	if db.PostgreSQL != nil {
		sqlDB, err := db.PostgreSQL.DB()
		if err != nil {
			return fmt.Errorf("PostgreSQL health check failed: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("PostgreSQL ping failed: %w", err)
		}
	}

	// Check Redis
	if db.Redis != nil {
		if err := db.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
	}

	return nil
}

// GetRedis returns the Redis client
func (db *DB) GetRedis() *redis.Client {
	return db.Redis
}

// GetPostgreSQL returns the PostgreSQL GORM instance
func (db *DB) GetPostgreSQL() *gorm.DB {
	return db.PostgreSQL
}
