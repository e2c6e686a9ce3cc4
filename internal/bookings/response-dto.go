package bookings

import (
	"time"

	"seatbook/internal/ledger"
)

type BookingResponse struct {
	BookingID     string     `json:"booking_id"`
	EventID       string     `json:"event_id"`
	UserID        string     `json:"user_id"`
	HoldID        string     `json:"hold_id"`
	SeatKeys      []string   `json:"seat_keys"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"payment_status"`
	BookedAt      time.Time  `json:"booked_at"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
}

func newBookingResponse(b *ledger.Booking) BookingResponse {
	return BookingResponse{
		BookingID:     b.ID,
		EventID:       b.EventID,
		UserID:        b.UserID,
		HoldID:        b.HoldID,
		SeatKeys:      b.SeatKeys,
		Status:        b.Status.String(),
		PaymentStatus: string(b.PaymentStatus),
		BookedAt:      b.BookedAt,
		CancelledAt:   b.CancelledAt,
	}
}
