package seats

import (
	"time"

	"seatbook/internal/ledger"
)

// RowLayout describes one row of an event's seating plan. Seats are
// numbered 1..Seats and keyed row+number.
type RowLayout struct {
	Row      string `json:"row" validate:"required,seatrow"`
	Seats    int    `json:"seats" validate:"required,min=1,max=9999"`
	SeatType string `json:"seat_type" validate:"required,max=32"`
}

// SeatView is one seat as seen by a reader at a point in time.
// RawState is what the ledger stores; State applies lazy expiry.
type SeatView struct {
	SeatKey       string           `json:"seat_key"`
	Row           string           `json:"row"`
	Number        int              `json:"number"`
	SeatType      string           `json:"seat_type"`
	Price         float64          `json:"price"`
	RawState      ledger.SeatState `json:"raw_state"`
	State         ledger.SeatState `json:"state"`
	HoldExpiresAt *time.Time       `json:"hold_expires_at,omitempty"`
}

type Totals struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Held      int `json:"held"`
	Booked    int `json:"booked"`
}

type SeatMap struct {
	EventID string     `json:"event_id"`
	Seats   []SeatView `json:"seats"`
	Totals  Totals     `json:"totals"`
	AsOf    time.Time  `json:"as_of"`
}

type Availability struct {
	EventID      string     `json:"event_id"`
	AllAvailable bool       `json:"all_available"`
	Seats        []SeatView `json:"seats"`
	AsOf         time.Time  `json:"as_of"`
}

func newSeatView(s *ledger.Seat, now time.Time) SeatView {
	v := SeatView{
		SeatKey:  s.SeatKey,
		Row:      s.Row,
		Number:   s.Number,
		SeatType: s.SeatType,
		Price:    s.Price,
		RawState: s.State,
		State:    s.EffectiveState(now),
	}
	if v.State == ledger.SeatHeld && s.HoldExpiresAt != nil {
		exp := *s.HoldExpiresAt
		v.HoldExpiresAt = &exp
	}
	return v
}

func (t *Totals) add(state ledger.SeatState) {
	t.Total++
	switch state {
	case ledger.SeatAvailable:
		t.Available++
	case ledger.SeatHeld:
		t.Held++
	case ledger.SeatBooked:
		t.Booked++
	}
}
