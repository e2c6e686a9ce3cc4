package ledger

import "time"

// Condition names the expected-current-state check guarding a seat write.
type Condition string

const (
	// CondClaimable: available, or held with a lapsed lease.
	CondClaimable Condition = "CLAIMABLE"
	// CondHeldBy: held by the given hold, expired or not.
	CondHeldBy Condition = "HELD_BY"
	// CondLiveHold: held by the given hold with holdExpiresAt >= At.
	CondLiveHold Condition = "LIVE_HOLD"
	// CondBookedBy: booked by the given booking.
	CondBookedBy Condition = "BOOKED_BY"
)

// Predicate is evaluated against the stored seat at the instant of write.
type Predicate struct {
	Condition Condition
	HoldID    string
	BookingID string
	At        time.Time
}

func Claimable(at time.Time) Predicate {
	return Predicate{Condition: CondClaimable, At: at}
}

func HeldBy(holdID string) Predicate {
	return Predicate{Condition: CondHeldBy, HoldID: holdID}
}

func LiveHoldBy(holdID string, at time.Time) Predicate {
	return Predicate{Condition: CondLiveHold, HoldID: holdID, At: at}
}

func BookedBy(bookingID string) Predicate {
	return Predicate{Condition: CondBookedBy, BookingID: bookingID}
}

// Matches evaluates the predicate against a stored seat. The SQL and Lua
// renditions in the Postgres and Redis stores must agree with it.
func (p Predicate) Matches(s *Seat) bool {
	if s == nil {
		return false
	}
	switch p.Condition {
	case CondClaimable:
		return s.Claimable(p.At)
	case CondHeldBy:
		return s.State == SeatHeld && s.HoldID == p.HoldID
	case CondLiveHold:
		return s.State == SeatHeld && s.HoldID == p.HoldID &&
			s.HoldExpiresAt != nil && !s.HoldExpiresAt.Before(p.At)
	case CondBookedBy:
		return s.State == SeatBooked && s.BookingID == p.BookingID
	}
	return false
}

// Transition is the state a seat write leaves behind. Constructors keep
// the owner fields consistent with the state.
type Transition struct {
	State         SeatState
	HoldID        string
	BookingID     string
	HoldExpiresAt *time.Time
}

func ToHeld(holdID string, expiresAt time.Time) Transition {
	exp := expiresAt.UTC()
	return Transition{State: SeatHeld, HoldID: holdID, HoldExpiresAt: &exp}
}

func ToBooked(bookingID string) Transition {
	return Transition{State: SeatBooked, BookingID: bookingID}
}

func ToAvailable() Transition {
	return Transition{State: SeatAvailable}
}

func (t Transition) apply(s *Seat, at time.Time) {
	s.State = t.State
	s.HoldID = t.HoldID
	s.BookingID = t.BookingID
	s.HoldExpiresAt = nil
	if t.HoldExpiresAt != nil {
		exp := *t.HoldExpiresAt
		s.HoldExpiresAt = &exp
	}
	s.UpdatedAt = at
}
