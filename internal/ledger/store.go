package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound        = errors.New("ledger: record not found")
	ErrAlreadyExists   = errors.New("ledger: record already exists")
	ErrConditionFailed = errors.New("ledger: condition failed")
)

// ConditionFailedError reports every key whose predicate did not hold.
// Seat writes are reported by seat key, other items by HoldRef, BookingRef
// or CountersRef.
type ConditionFailedError struct {
	Keys []string
}

func (e *ConditionFailedError) Error() string {
	return fmt.Sprintf("ledger: condition failed for %s", strings.Join(e.Keys, ", "))
}

func (e *ConditionFailedError) Is(target error) bool {
	return target == ErrConditionFailed
}

func HoldRef(holdID string) string {
	return "hold:" + holdID
}

func BookingRef(bookingID string) string {
	return "booking:" + bookingID
}

func CountersRef(eventID string) string {
	return "counters:" + eventID
}

// Store is the transactional, conditionally writable seat ledger.
type Store interface {
	// ConditionalBatchWrite applies every item of the batch if and only if
	// every predicate holds at the instant of write. Otherwise it applies
	// nothing and returns a *ConditionFailedError.
	ConditionalBatchWrite(ctx context.Context, batch Batch) error
	// BatchRead returns the current records of the given seats. Unknown
	// seats are omitted.
	BatchRead(ctx context.Context, eventID string, seatKeys []string) ([]Seat, error)
	ListSeats(ctx context.Context, eventID string) ([]Seat, error)
	GetHold(ctx context.Context, holdID string) (*Hold, error)
	GetBooking(ctx context.Context, bookingID string) (*Booking, error)
	GetCounters(ctx context.Context, eventID string) (*EventCounters, error)
	// CreateEvent writes every seat and zeroed counters for an event that
	// has no ledger yet, or returns ErrAlreadyExists.
	CreateEvent(ctx context.Context, eventID string, seats []Seat) error
	Ping(ctx context.Context) error
}

// HoldPurger is implemented by stores that keep hold records until they
// are deleted. The Redis store expires them itself.
type HoldPurger interface {
	// PurgeHolds deletes up to limit hold records that expired before the
	// given instant and reports how many it removed.
	PurgeHolds(ctx context.Context, expiredBefore time.Time, limit int) (int, error)
}

// SeatWrite moves one seat to Next if Expect holds.
type SeatWrite struct {
	SeatKey string
	Expect  Predicate
	Next    Transition
}

// CounterDelta holds increments for the event counters.
type CounterDelta struct {
	HoldAttempts      int64
	HoldSuccesses     int64
	BookingsConfirmed int64
	BookingsCancelled int64
	SeatsSold         int64
	SeatsCancelled    int64
}

func (d CounterDelta) IsZero() bool {
	return d == CounterDelta{}
}

// BookingCancel moves a booking from CONFIRMED to CANCELLED.
type BookingCancel struct {
	BookingID string
	At        time.Time
}

// Batch is one all-or-nothing unit of work against a single event.
type Batch struct {
	EventID string
	// At stamps updated_at on every touched record.
	At    time.Time
	Seats []SeatWrite
	// PutHold is inserted only if no hold with its id exists.
	PutHold *Hold
	// DeleteHoldID is removed unconditionally.
	DeleteHoldID string
	// PutBooking is inserted only if no booking with its id exists.
	PutBooking    *Booking
	CancelBooking *BookingCancel
	// Counters require the event's counters to exist.
	Counters CounterDelta
}

func (b *Batch) validate() error {
	if b.EventID == "" {
		return fmt.Errorf("ledger: batch has no event id")
	}
	seen := make(map[string]struct{}, len(b.Seats))
	for _, w := range b.Seats {
		if w.SeatKey == "" {
			return fmt.Errorf("ledger: seat write without seat key")
		}
		if _, dup := seen[w.SeatKey]; dup {
			return fmt.Errorf("ledger: duplicate seat write for %s", w.SeatKey)
		}
		seen[w.SeatKey] = struct{}{}
		if !w.Next.State.IsValid() {
			return fmt.Errorf("ledger: invalid next state %q for %s", w.Next.State, w.SeatKey)
		}
	}
	if b.PutHold != nil && b.PutHold.EventID != b.EventID {
		return fmt.Errorf("ledger: hold %s belongs to event %s, batch is for %s", b.PutHold.ID, b.PutHold.EventID, b.EventID)
	}
	if b.PutBooking != nil {
		if b.CancelBooking != nil {
			return fmt.Errorf("ledger: batch cannot both create and cancel a booking")
		}
		if !b.PutBooking.Status.IsValid() {
			return fmt.Errorf("ledger: invalid booking status %q", b.PutBooking.Status)
		}
	}
	if b.PutHold != nil && b.DeleteHoldID != "" {
		return fmt.Errorf("ledger: batch cannot both create and delete a hold")
	}
	if b.At.IsZero() {
		b.At = time.Now().UTC()
	}
	return nil
}

// holdID and bookingID name the single hold and booking a batch touches.
func (b *Batch) holdID() string {
	if b.PutHold != nil {
		return b.PutHold.ID
	}
	return b.DeleteHoldID
}

func (b *Batch) bookingID() string {
	if b.PutBooking != nil {
		return b.PutBooking.ID
	}
	if b.CancelBooking != nil {
		return b.CancelBooking.BookingID
	}
	return ""
}
