package bookings

type ConfirmBookingRequest struct {
	HoldID        string `json:"hold_id" binding:"required"`
	PaymentStatus string `json:"payment_status" binding:"required,oneof=successful failed"`
}
