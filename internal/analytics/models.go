package analytics

import "time"

// EventStats is the counter snapshot plus figures derived from it alone
type EventStats struct {
	EventID           string    `json:"event_id"`
	HoldAttempts      int64     `json:"hold_attempts"`
	HoldSuccesses     int64     `json:"hold_successes"`
	FailedHolds       int64     `json:"failed_holds"`
	HoldSuccessRate   float64   `json:"hold_success_rate"`
	BookingsConfirmed int64     `json:"bookings_confirmed"`
	BookingsCancelled int64     `json:"bookings_cancelled"`
	CancellationRate  float64   `json:"cancellation_rate"`
	SeatsSold         int64     `json:"seats_sold"`
	SeatsCancelled    int64     `json:"seats_cancelled"`
	NetSeatsSold      int64     `json:"net_seats_sold"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Occupancy is built by scanning the event's seats. Held seats whose
// lease lapsed count as available.
type Occupancy struct {
	EventID             string              `json:"event_id"`
	TotalSeats          int                 `json:"total_seats"`
	Available           int                 `json:"available"`
	Held                int                 `json:"held"`
	Booked              int                 `json:"booked"`
	CapacityUtilization float64             `json:"capacity_utilization"`
	Revenue             float64             `json:"revenue"`
	BySeatType          []SeatTypeOccupancy `json:"by_seat_type"`
	GeneratedAt         time.Time           `json:"generated_at"`
}

type SeatTypeOccupancy struct {
	SeatType string  `json:"seat_type"`
	Total    int     `json:"total"`
	Booked   int     `json:"booked"`
	Revenue  float64 `json:"revenue"`
}
