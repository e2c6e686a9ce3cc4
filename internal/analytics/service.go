package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"seatbook/internal/ledger"
	"seatbook/internal/shared/constants"
	"seatbook/internal/shared/errs"
	"seatbook/pkg/cache"
	"seatbook/pkg/clock"
	"seatbook/pkg/logger"
)

// Service defines the analytics service interface
type Service interface {
	// GetEventStats reads the counters maintained alongside each transition
	GetEventStats(ctx context.Context, eventID string) (*EventStats, error)
	// GetOccupancy scans every seat of the event
	GetOccupancy(ctx context.Context, eventID string) (*Occupancy, error)

	SetCacheService(cacheService cache.Service)
}

// service implements the Service interface
type service struct {
	store        ledger.Store
	clock        clock.Clock
	cacheService cache.Service
	log          *logger.Logger
}

// NewService creates a new analytics service instance
func NewService(store ledger.Store, c clock.Clock) Service {
	if c == nil {
		c = clock.NewSystem()
	}
	return &service{store: store, clock: c, log: logger.GetDefault()}
}

// SetCacheService injects the cache used for occupancy reports
func (s *service) SetCacheService(cacheService cache.Service) {
	s.cacheService = cacheService
}

func (s *service) GetEventStats(ctx context.Context, eventID string) (*EventStats, error) {
	c, err := s.store.GetCounters(ctx, eventID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, errs.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event counters: %w", err)
	}

	return &EventStats{
		EventID:           eventID,
		HoldAttempts:      c.HoldAttempts,
		HoldSuccesses:     c.HoldSuccesses,
		FailedHolds:       c.HoldAttempts - c.HoldSuccesses,
		HoldSuccessRate:   percent(c.HoldSuccesses, c.HoldAttempts),
		BookingsConfirmed: c.BookingsConfirmed,
		BookingsCancelled: c.BookingsCancelled,
		CancellationRate:  percent(c.BookingsCancelled, c.BookingsConfirmed),
		SeatsSold:         c.SeatsSold,
		SeatsCancelled:    c.SeatsCancelled,
		NetSeatsSold:      c.SeatsSold - c.SeatsCancelled,
		UpdatedAt:         c.UpdatedAt,
	}, nil
}

func (s *service) GetOccupancy(ctx context.Context, eventID string) (*Occupancy, error) {
	cacheKey := constants.BuildAnalyticsOccupancyKey(eventID)

	// Try to get from cache first
	if s.cacheService != nil {
		var cached Occupancy
		if err := s.cacheService.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	seats, err := s.store.ListSeats(ctx, eventID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, errs.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}

	now := s.clock.Now()
	report := &Occupancy{EventID: eventID, TotalSeats: len(seats), GeneratedAt: now}
	byType := map[string]*SeatTypeOccupancy{}
	for i := range seats {
		seat := &seats[i]
		st, ok := byType[seat.SeatType]
		if !ok {
			st = &SeatTypeOccupancy{SeatType: seat.SeatType}
			byType[seat.SeatType] = st
		}
		st.Total++

		switch seat.EffectiveState(now) {
		case ledger.SeatAvailable:
			report.Available++
		case ledger.SeatHeld:
			report.Held++
		case ledger.SeatBooked:
			report.Booked++
			report.Revenue += seat.Price
			st.Booked++
			st.Revenue += seat.Price
		}
	}
	report.CapacityUtilization = percent(int64(report.Booked), int64(report.TotalSeats))
	report.Revenue = round2(report.Revenue)

	for _, st := range byType {
		st.Revenue = round2(st.Revenue)
		report.BySeatType = append(report.BySeatType, *st)
	}
	sort.Slice(report.BySeatType, func(i, j int) bool {
		return report.BySeatType[i].SeatType < report.BySeatType[j].SeatType
	})

	// Cache the result briefly; the report is a scan
	if s.cacheService != nil {
		if err := s.cacheService.Set(ctx, cacheKey, report, constants.TTL_ANALYTICS_OCCUPANCY); err != nil {
			s.log.WarnContext(ctx, "Failed to cache occupancy report", "event_id", eventID, "error", err)
		}
	}

	return report, nil
}

// percent returns part/whole as a percentage rounded to two decimals
func percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
