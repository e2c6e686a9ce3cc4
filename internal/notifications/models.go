package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LifecycleType names a ledger transition worth telling other systems about
type LifecycleType string

const (
	LifecycleSeatsHeld        LifecycleType = "SEATS_HELD"
	LifecycleHoldReleased     LifecycleType = "HOLD_RELEASED"
	LifecycleBookingConfirmed LifecycleType = "BOOKING_CONFIRMED"
	LifecycleBookingCancelled LifecycleType = "BOOKING_CANCELLED"
)

// LifecycleEvent is published after a ledger batch commits. Consumers must
// treat it as a hint: the ledger stays the source of truth.
type LifecycleEvent struct {
	ID         uuid.UUID     `json:"id"`
	Type       LifecycleType `json:"type"`
	EventID    string        `json:"event_id"`
	UserID     string        `json:"user_id,omitempty"`
	HoldID     string        `json:"hold_id,omitempty"`
	BookingID  string        `json:"booking_id,omitempty"`
	SeatKeys   []string      `json:"seat_keys"`
	ExpiresAt  *time.Time    `json:"expires_at,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func NewLifecycleEvent(typ LifecycleType, eventID string, seatKeys []string, at time.Time) *LifecycleEvent {
	return &LifecycleEvent{
		ID:         uuid.New(),
		Type:       typ,
		EventID:    eventID,
		SeatKeys:   append([]string(nil), seatKeys...),
		OccurredAt: at,
	}
}

func (e *LifecycleEvent) WithHold(holdID string, expiresAt *time.Time) *LifecycleEvent {
	e.HoldID = holdID
	e.ExpiresAt = expiresAt
	return e
}

func (e *LifecycleEvent) WithBooking(bookingID string) *LifecycleEvent {
	e.BookingID = bookingID
	return e
}

func (e *LifecycleEvent) WithUser(userID string) *LifecycleEvent {
	e.UserID = userID
	return e
}

// PartitionKey keeps every message for one event on one partition so
// consumers see them in commit order.
func (e *LifecycleEvent) PartitionKey() string {
	return e.EventID
}

func (e *LifecycleEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
