package ledger

import (
	"sort"
	"time"
)

// Seat is the per-event record of one seat's lifecycle.
//
// HoldID and HoldExpiresAt are set only while State is HELD, BookingID only
// while State is BOOKED.
type Seat struct {
	EventID       string     `json:"event_id" gorm:"primaryKey;size:64;index:idx_ledger_seats_event_state,priority:1"`
	SeatKey       string     `json:"seat_key" gorm:"primaryKey;size:32"`
	Row           string     `json:"row" gorm:"column:seat_row;size:16;not null"`
	Number        int        `json:"number" gorm:"column:seat_number;not null"`
	SeatType      string     `json:"seat_type" gorm:"size:32;not null"`
	Price         float64    `json:"price" gorm:"type:decimal(10,2);not null;check:price >= 0"`
	State         SeatState  `json:"state" gorm:"size:16;not null;index:idx_ledger_seats_event_state,priority:2"`
	HoldID        string     `json:"hold_id,omitempty" gorm:"size:64;not null"`
	BookingID     string     `json:"booking_id,omitempty" gorm:"size:64;not null"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Seat) TableName() string {
	return "ledger_seats"
}

// LeaseLapsed reports whether a held seat's lease ended before now.
// A held seat without an expiry is treated as lapsed.
func (s *Seat) LeaseLapsed(now time.Time) bool {
	if s.State != SeatHeld {
		return false
	}
	return s.HoldExpiresAt == nil || s.HoldExpiresAt.Before(now)
}

// Claimable reports whether a new hold may take this seat at now.
func (s *Seat) Claimable(now time.Time) bool {
	return s.State == SeatAvailable || s.LeaseLapsed(now)
}

// EffectiveState is the state a reader should see at now: a held seat
// whose lease lapsed reads as available even though the stored record
// still says HELD until the next hold reclaims it.
func (s *Seat) EffectiveState(now time.Time) SeatState {
	if s.LeaseLapsed(now) {
		return SeatAvailable
	}
	return s.State
}

// Hold is an immutable, time-bounded claim on a set of seats.
type Hold struct {
	ID        string    `json:"hold_id" gorm:"primaryKey;size:64"`
	EventID   string    `json:"event_id" gorm:"size:64;not null;index"`
	UserID    string    `json:"user_id" gorm:"size:64;not null;index"`
	SeatKeys  []string  `json:"seat_keys" gorm:"serializer:json;type:jsonb;not null"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
}

func (Hold) TableName() string {
	return "ledger_holds"
}

// Active reports whether the hold's lease still covers now.
func (h *Hold) Active(now time.Time) bool {
	return !h.ExpiresAt.Before(now)
}

type Booking struct {
	ID            string        `json:"booking_id" gorm:"primaryKey;size:64"`
	EventID       string        `json:"event_id" gorm:"size:64;not null;index"`
	UserID        string        `json:"user_id" gorm:"size:64;not null;index"`
	HoldID        string        `json:"hold_id" gorm:"size:64;not null"`
	SeatKeys      []string      `json:"seat_keys" gorm:"serializer:json;type:jsonb;not null"`
	Status        BookingStatus `json:"status" gorm:"size:16;not null"`
	PaymentStatus PaymentStatus `json:"payment_status" gorm:"size:16;not null"`
	BookedAt      time.Time     `json:"booked_at" gorm:"not null"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty"`
}

func (Booking) TableName() string {
	return "ledger_bookings"
}

// EventCounters are the per-event analytics tallies. They only move
// inside the same batch as the transition they count.
type EventCounters struct {
	EventID           string    `json:"event_id" gorm:"primaryKey;size:64"`
	HoldAttempts      int64     `json:"hold_attempts" gorm:"not null;default:0"`
	HoldSuccesses     int64     `json:"hold_successes" gorm:"not null;default:0"`
	BookingsConfirmed int64     `json:"bookings_confirmed" gorm:"not null;default:0"`
	BookingsCancelled int64     `json:"bookings_cancelled" gorm:"not null;default:0"`
	SeatsSold         int64     `json:"seats_sold" gorm:"not null;default:0"`
	SeatsCancelled    int64     `json:"seats_cancelled" gorm:"not null;default:0"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (EventCounters) TableName() string {
	return "ledger_event_counters"
}

// SortSeats orders seats by row, then number, then key.
func SortSeats(seats []Seat) {
	sort.Slice(seats, func(i, j int) bool {
		if seats[i].Row != seats[j].Row {
			return seats[i].Row < seats[j].Row
		}
		if seats[i].Number != seats[j].Number {
			return seats[i].Number < seats[j].Number
		}
		return seats[i].SeatKey < seats[j].SeatKey
	})
}
