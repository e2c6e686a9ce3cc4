package bookings

import (
	"context"
	"errors"
	"fmt"

	"seatbook/internal/ledger"
	"seatbook/internal/notifications"
	"seatbook/internal/shared/errs"
	"seatbook/pkg/clock"
	"seatbook/pkg/logger"

	"github.com/google/uuid"
)

const bookingIDPrefix = "booking-"

// Service turns live holds into bookings and reverses them
type Service interface {
	Confirm(ctx context.Context, holdID string, payment ledger.PaymentStatus) (*ledger.Booking, error)
	Cancel(ctx context.Context, bookingID string) error
	GetBooking(ctx context.Context, bookingID string) (*ledger.Booking, error)
}

type service struct {
	store     ledger.Store
	clock     clock.Clock
	log       *logger.Logger
	publisher notifications.Publisher
}

type Option func(*service)

func WithClock(c clock.Clock) Option {
	return func(s *service) { s.clock = c }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *service) { s.log = l }
}

func WithPublisher(p notifications.Publisher) Option {
	return func(s *service) { s.publisher = p }
}

func NewService(store ledger.Store, opts ...Option) Service {
	s := &service{
		store:     store,
		clock:     clock.NewSystem(),
		log:       logger.GetDefault(),
		publisher: notifications.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Confirm converts every seat of a live hold into one booking. Any seat
// whose lease lapsed or was taken over fails the whole confirmation; a
// lost write is reported as an expired hold and never retried.
func (s *service) Confirm(ctx context.Context, holdID string, payment ledger.PaymentStatus) (*ledger.Booking, error) {
	if holdID == "" {
		return nil, errs.Invalid("hold id is required")
	}
	if !payment.IsValid() {
		return nil, errs.Invalid("unknown payment status %q", payment)
	}

	// Step 1: the hold must exist and the payment must have gone through
	hold, err := s.store.GetHold(ctx, holdID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, errs.ErrHoldNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get hold: %w", err)
	}
	if !payment.Succeeded() {
		return nil, errs.ErrPaymentFailed
	}

	// Step 2: every seat must still carry this hold's live lease
	now := s.clock.Now()
	if !hold.Active(now) {
		return nil, fmt.Errorf("%w: %s lapsed at %s", errs.ErrHoldExpired, hold.ID, hold.ExpiresAt.Format("15:04:05"))
	}
	seats, err := s.store.BatchRead(ctx, hold.EventID, hold.SeatKeys)
	if err != nil {
		return nil, fmt.Errorf("read seats: %w", err)
	}
	live := ledger.LiveHoldBy(hold.ID, now)
	valid := 0
	for i := range seats {
		if live.Matches(&seats[i]) {
			valid++
		}
	}
	if valid != len(hold.SeatKeys) {
		return nil, fmt.Errorf("%w: %d of %d seats no longer held by %s", errs.ErrHoldExpired, len(hold.SeatKeys)-valid, len(hold.SeatKeys), hold.ID)
	}

	// Step 3: one batch books the seats, consumes the hold and counts the sale
	booking := &ledger.Booking{
		ID:            bookingIDPrefix + uuid.NewString(),
		EventID:       hold.EventID,
		UserID:        hold.UserID,
		HoldID:        hold.ID,
		SeatKeys:      append([]string(nil), hold.SeatKeys...),
		Status:        ledger.BookingConfirmed,
		PaymentStatus: payment,
		BookedAt:      now,
	}
	batch := ledger.Batch{
		EventID:      hold.EventID,
		At:           now,
		DeleteHoldID: hold.ID,
		PutBooking:   booking,
		Counters: ledger.CounterDelta{
			BookingsConfirmed: 1,
			SeatsSold:         int64(len(hold.SeatKeys)),
		},
	}
	for _, key := range hold.SeatKeys {
		batch.Seats = append(batch.Seats, ledger.SeatWrite{
			SeatKey: key,
			Expect:  live,
			Next:    ledger.ToBooked(booking.ID),
		})
	}

	// Step 4: a lost race means some seat left this hold after step 2
	if err := s.store.ConditionalBatchWrite(ctx, batch); err != nil {
		if errors.Is(err, ledger.ErrConditionFailed) {
			return nil, fmt.Errorf("%w: %v", errs.ErrHoldExpired, err)
		}
		return nil, fmt.Errorf("confirm booking: %w", err)
	}

	s.log.LogBookingCreated(ctx, booking.ID, booking.EventID, booking.UserID)
	s.publish(ctx, notifications.NewLifecycleEvent(notifications.LifecycleBookingConfirmed, booking.EventID, booking.SeatKeys, now).
		WithBooking(booking.ID).
		WithHold(hold.ID, nil).
		WithUser(booking.UserID))
	return booking, nil
}

// Cancel returns a confirmed booking's seats to sale. Cancelling twice is
// not an error.
func (s *service) Cancel(ctx context.Context, bookingID string) error {
	booking, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.Status == ledger.BookingCancelled {
		return nil
	}

	now := s.clock.Now()
	batch := ledger.Batch{
		EventID:       booking.EventID,
		At:            now,
		CancelBooking: &ledger.BookingCancel{BookingID: booking.ID, At: now},
		Counters: ledger.CounterDelta{
			BookingsCancelled: 1,
			SeatsCancelled:    int64(len(booking.SeatKeys)),
		},
	}
	for _, key := range booking.SeatKeys {
		batch.Seats = append(batch.Seats, ledger.SeatWrite{
			SeatKey: key,
			Expect:  ledger.BookedBy(booking.ID),
			Next:    ledger.ToAvailable(),
		})
	}

	if err := s.store.ConditionalBatchWrite(ctx, batch); err != nil {
		if !errors.Is(err, ledger.ErrConditionFailed) {
			return fmt.Errorf("cancel booking: %w", err)
		}
		// A concurrent cancel of the same booking won; that is our outcome too.
		current, rerr := s.store.GetBooking(ctx, booking.ID)
		if rerr == nil && current.Status == ledger.BookingCancelled {
			return nil
		}
		return fmt.Errorf("%w: %v", errs.ErrConflict, err)
	}

	s.log.LogBookingCancelled(ctx, booking.ID, booking.EventID, booking.UserID)
	s.publish(ctx, notifications.NewLifecycleEvent(notifications.LifecycleBookingCancelled, booking.EventID, booking.SeatKeys, now).
		WithBooking(booking.ID).
		WithUser(booking.UserID))
	return nil
}

func (s *service) GetBooking(ctx context.Context, bookingID string) (*ledger.Booking, error) {
	if bookingID == "" {
		return nil, errs.Invalid("booking id is required")
	}
	booking, err := s.store.GetBooking(ctx, bookingID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, errs.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return booking, nil
}

func (s *service) publish(ctx context.Context, event *notifications.LifecycleEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WithEventID(event.EventID).WithError(err).WarnContext(ctx, "Lifecycle publish failed", "type", event.Type)
	}
}
