package seats

type CreateEventSeatsRequest struct {
	Rows           []RowLayout        `json:"rows" binding:"required,min=1"`
	SeatTypePrices map[string]float64 `json:"seat_type_prices" binding:"required,min=1"`
}

type CheckAvailabilityRequest struct {
	SeatKeys []string `json:"seat_keys" binding:"required,min=1"`
}
