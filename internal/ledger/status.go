package ledger

type SeatState string

const (
	SeatAvailable SeatState = "AVAILABLE"
	SeatHeld      SeatState = "HELD"
	SeatBooked    SeatState = "BOOKED"
)

func (s SeatState) IsValid() bool {
	switch s {
	case SeatAvailable, SeatHeld, SeatBooked:
		return true
	}
	return false
}

func (s SeatState) String() string {
	return string(s)
}

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// IsValid checks if the booking status is valid
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingConfirmed, BookingCancelled:
		return true
	}
	return false
}

func (s BookingStatus) String() string {
	return string(s)
}

// CanBeCancelled checks if a booking with this status can be cancelled
func (s BookingStatus) CanBeCancelled() bool {
	return s == BookingConfirmed
}

// PaymentStatus is the payment-result signal handed to Confirm.
type PaymentStatus string

const (
	PaymentSuccessful PaymentStatus = "successful"
	PaymentFailed     PaymentStatus = "failed"
)

func (p PaymentStatus) IsValid() bool {
	return p == PaymentSuccessful || p == PaymentFailed
}

func (p PaymentStatus) Succeeded() bool {
	return p == PaymentSuccessful
}
