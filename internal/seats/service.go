package seats

import (
	"context"
	"errors"
	"fmt"

	"seatbook/internal/ledger"
	"seatbook/internal/shared/errs"
	"seatbook/internal/shared/validation"
	"seatbook/pkg/clock"
	"seatbook/pkg/logger"

	"github.com/go-playground/validator/v10"
)

// MaxSeatsPerEvent bounds a single CreateEventSeats call.
const MaxSeatsPerEvent = 20000

type Service interface {
	// Inventory
	CreateEventSeats(ctx context.Context, eventID string, rows []RowLayout, seatTypePrices map[string]float64) (*CreateEventSeatsResponse, error)

	// Reads
	GetSeatMap(ctx context.Context, eventID string) (*SeatMap, error)
	CheckAvailability(ctx context.Context, eventID string, seatKeys []string) (*Availability, error)
}

type service struct {
	store    ledger.Store
	clock    clock.Clock
	log      *logger.Logger
	validate *validator.Validate
}

func NewService(store ledger.Store, c clock.Clock) Service {
	if c == nil {
		c = clock.NewSystem()
	}
	return &service{
		store:    store,
		clock:    c,
		log:      logger.GetDefault(),
		validate: validation.New(),
	}
}

//  INVENTORY

func (s *service) CreateEventSeats(ctx context.Context, eventID string, rows []RowLayout, seatTypePrices map[string]float64) (*CreateEventSeatsResponse, error) {
	if eventID == "" || len(eventID) > 64 {
		return nil, errs.Invalid("event id must be 1-64 characters")
	}
	if len(rows) == 0 {
		return nil, errs.Invalid("at least one row is required")
	}
	for seatType, price := range seatTypePrices {
		if price < 0 {
			return nil, errs.Invalid("seat type %s has a negative price", seatType)
		}
	}

	total := 0
	seenRows := make(map[string]struct{}, len(rows))
	for i := range rows {
		row := &rows[i]
		if err := s.validate.Struct(row); err != nil {
			return nil, errs.Invalid("row %d: %s", i, validation.Describe(err))
		}
		if _, dup := seenRows[row.Row]; dup {
			return nil, errs.Invalid("row %s appears more than once", row.Row)
		}
		seenRows[row.Row] = struct{}{}
		if _, ok := seatTypePrices[row.SeatType]; !ok {
			return nil, errs.Invalid("seat type %s of row %s has no price", row.SeatType, row.Row)
		}
		total += row.Seats
	}
	if total > MaxSeatsPerEvent {
		return nil, errs.Invalid("layout has %d seats, at most %d are allowed", total, MaxSeatsPerEvent)
	}

	now := s.clock.Now()
	seats := make([]ledger.Seat, 0, total)
	bySeatType := make(map[string]int)
	for _, row := range rows {
		for n := 1; n <= row.Seats; n++ {
			seats = append(seats, ledger.Seat{
				EventID:   eventID,
				SeatKey:   fmt.Sprintf("%s%d", row.Row, n),
				Row:       row.Row,
				Number:    n,
				SeatType:  row.SeatType,
				Price:     seatTypePrices[row.SeatType],
				State:     ledger.SeatAvailable,
				UpdatedAt: now,
			})
		}
		bySeatType[row.SeatType] += row.Seats
	}

	if err := s.store.CreateEvent(ctx, eventID, seats); err != nil {
		if errors.Is(err, ledger.ErrAlreadyExists) {
			return nil, errs.ErrEventExists
		}
		return nil, fmt.Errorf("failed to create event seats: %w", err)
	}

	s.log.InfoContext(ctx, "Event seats created", "event_id", eventID, "seats", total, "rows", len(rows))
	return &CreateEventSeatsResponse{EventID: eventID, TotalSeats: total, BySeatType: bySeatType}, nil
}

//  READS

func (s *service) GetSeatMap(ctx context.Context, eventID string) (*SeatMap, error) {
	seats, err := s.store.ListSeats(ctx, eventID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, errs.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}
	ledger.SortSeats(seats)

	now := s.clock.Now()
	m := &SeatMap{EventID: eventID, Seats: make([]SeatView, 0, len(seats)), AsOf: now}
	for i := range seats {
		v := newSeatView(&seats[i], now)
		m.Totals.add(v.State)
		m.Seats = append(m.Seats, v)
	}
	return m, nil
}

func (s *service) CheckAvailability(ctx context.Context, eventID string, seatKeys []string) (*Availability, error) {
	seatKeys = dedupe(seatKeys)
	if eventID == "" {
		return nil, errs.Invalid("event id is required")
	}
	if len(seatKeys) == 0 {
		return nil, errs.Invalid("at least one seat key is required")
	}
	if err := s.validate.Var(seatKeys, "dive,seatkey"); err != nil {
		return nil, errs.Invalid("%s", validation.Describe(err))
	}

	seats, err := s.store.BatchRead(ctx, eventID, seatKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to read seats: %w", err)
	}

	byKey := make(map[string]*ledger.Seat, len(seats))
	for i := range seats {
		byKey[seats[i].SeatKey] = &seats[i]
	}
	var unknown []string
	for _, k := range seatKeys {
		if _, ok := byKey[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == len(seatKeys) {
		if _, err := s.store.GetCounters(ctx, eventID); errors.Is(err, ledger.ErrNotFound) {
			return nil, errs.ErrEventNotFound
		}
	}
	if len(unknown) > 0 {
		return nil, &errs.UnknownSeatsError{SeatKeys: unknown}
	}

	now := s.clock.Now()
	out := &Availability{EventID: eventID, AllAvailable: true, Seats: make([]SeatView, 0, len(seatKeys)), AsOf: now}
	for _, k := range seatKeys {
		v := newSeatView(byKey[k], now)
		if v.State != ledger.SeatAvailable {
			out.AllAvailable = false
		}
		out.Seats = append(out.Seats, v)
	}
	return out, nil
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
