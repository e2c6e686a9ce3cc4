package holds

import (
	"time"

	"seatbook/internal/ledger"
)

type HoldResponse struct {
	HoldID           string    `json:"hold_id"`
	EventID          string    `json:"event_id"`
	UserID           string    `json:"user_id"`
	SeatKeys         []string  `json:"seat_keys"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	Active           bool      `json:"active"`
	ExpiresInSeconds int64     `json:"expires_in_seconds"`
}

func newHoldResponse(hold *ledger.Hold, now time.Time) HoldResponse {
	resp := HoldResponse{
		HoldID:    hold.ID,
		EventID:   hold.EventID,
		UserID:    hold.UserID,
		SeatKeys:  hold.SeatKeys,
		CreatedAt: hold.CreatedAt,
		ExpiresAt: hold.ExpiresAt,
		Active:    hold.Active(now),
	}
	if resp.Active {
		resp.ExpiresInSeconds = int64(hold.ExpiresAt.Sub(now).Seconds())
	}
	return resp
}

func newHoldViewResponse(view *HoldView) HoldResponse {
	return HoldResponse{
		HoldID:           view.Hold.ID,
		EventID:          view.Hold.EventID,
		UserID:           view.Hold.UserID,
		SeatKeys:         view.Hold.SeatKeys,
		CreatedAt:        view.Hold.CreatedAt,
		ExpiresAt:        view.Hold.ExpiresAt,
		Active:           view.Active,
		ExpiresInSeconds: int64(view.ExpiresIn.Seconds()),
	}
}
