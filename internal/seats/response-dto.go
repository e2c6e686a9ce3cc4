package seats

type CreateEventSeatsResponse struct {
	EventID    string         `json:"event_id"`
	TotalSeats int            `json:"total_seats"`
	BySeatType map[string]int `json:"by_seat_type"`
}
