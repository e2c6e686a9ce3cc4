package holds

import (
	"context"
	"time"

	"seatbook/internal/ledger"
	"seatbook/pkg/clock"
	"seatbook/pkg/logger"
)

// JanitorConfig controls the purge of lapsed hold records
type JanitorConfig struct {
	Interval  time.Duration
	Retention time.Duration
	BatchSize int
}

// DefaultJanitorConfig returns default purge settings
func DefaultJanitorConfig() JanitorConfig {
	return JanitorConfig{
		Interval:  5 * time.Minute,
		Retention: time.Hour,
		BatchSize: 500,
	}
}

// Janitor deletes hold records once their lease plus the retention window
// has passed. Until then a late confirm still sees HoldExpired.
type Janitor struct {
	purger ledger.HoldPurger
	config JanitorConfig
	clock  clock.Clock
	log    *logger.Logger
	done   chan struct{}
}

func NewJanitor(purger ledger.HoldPurger, config JanitorConfig, c clock.Clock, l *logger.Logger) *Janitor {
	defaults := DefaultJanitorConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Retention < 0 {
		config.Retention = 0
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if c == nil {
		c = clock.NewSystem()
	}
	if l == nil {
		l = logger.GetDefault()
	}
	return &Janitor{
		purger: purger,
		config: config,
		clock:  c,
		log:    l,
		done:   make(chan struct{}),
	}
}

// Start runs the purge loop until Stop is called or ctx ends
func (j *Janitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(j.config.Interval)
		defer ticker.Stop()

		j.log.Info("Hold janitor started", "interval", j.config.Interval, "retention", j.config.Retention)
		for {
			select {
			case <-ticker.C:
				if _, err := j.RunOnce(ctx); err != nil {
					j.log.WithError(err).WarnContext(ctx, "Hold purge failed")
				}
			case <-j.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (j *Janitor) Stop() {
	close(j.done)
	j.log.Info("Hold janitor stopped")
}

// RunOnce purges in batches until a batch comes back short
func (j *Janitor) RunOnce(ctx context.Context) (int, error) {
	cutoff := j.clock.Now().Add(-j.config.Retention)
	total := 0
	for {
		n, err := j.purger.PurgeHolds(ctx, cutoff, j.config.BatchSize)
		total += n
		if err != nil {
			return total, err
		}
		if n < j.config.BatchSize {
			break
		}
	}
	if total > 0 {
		j.log.InfoContext(ctx, "Purged lapsed hold records", "count", total, "expired_before", cutoff)
	}
	return total, nil
}
