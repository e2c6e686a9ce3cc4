package response

import (
	"errors"
	"net/http"

	"seatbook/internal/shared/errs"

	"github.com/gin-gonic/gin"
)

func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}

// RespondError answers with the status code the error maps to. Seat-level
// failures carry the offending seat keys so the client can adjust its
// selection.
func RespondError(c *gin.Context, message string, err error) {
	code := StatusCode(err)

	var details interface{} = err.Error()
	var unavailable *errs.SeatUnavailableError
	var unknown *errs.UnknownSeatsError
	switch {
	case errors.As(err, &unavailable):
		details = gin.H{"reason": err.Error(), "unavailable_seats": unavailable.SeatKeys}
	case errors.As(err, &unknown):
		details = gin.H{"reason": err.Error(), "unknown_seats": unknown.SeatKeys}
	case code == http.StatusInternalServerError:
		// Kept for the request logger, never sent to the client
		_ = c.Error(err)
		details = "internal error"
	}

	RespondJSON(c, "error", code, message, nil, details)
}

// StatusCode maps the error taxonomy onto HTTP
func StatusCode(err error) int {
	switch {
	case errors.Is(err, errs.ErrInvalidInput), errors.Is(err, errs.ErrUnknownSeats):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrPaymentFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, errs.ErrHoldNotFound), errors.Is(err, errs.ErrBookingNotFound), errors.Is(err, errs.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrSeatUnavailable), errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrEventExists):
		return http.StatusConflict
	case errors.Is(err, errs.ErrHoldExpired):
		return http.StatusGone
	}
	return http.StatusInternalServerError
}
