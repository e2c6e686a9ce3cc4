package holds

type HoldSeatsRequest struct {
	EventID    string   `json:"event_id" binding:"required,max=64"`
	UserID     string   `json:"user_id" binding:"required,max=64"`
	SeatKeys   []string `json:"seat_keys" binding:"required,min=1"`
	TTLSeconds int      `json:"ttl_seconds" binding:"omitempty,min=1,max=86400"`
}
