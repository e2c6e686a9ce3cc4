package bookings

import (
	"net/http"

	"seatbook/internal/ledger"
	"seatbook/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// ConfirmBooking handles POST /api/v1/bookings/confirm
func (c *Controller) ConfirmBooking(ctx *gin.Context) {
	var req ConfirmBookingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	booking, err := c.service.Confirm(ctx.Request.Context(), req.HoldID, ledger.PaymentStatus(req.PaymentStatus))
	if err != nil {
		response.RespondError(ctx, "Failed to confirm booking", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Booking confirmed successfully", newBookingResponse(booking), nil)
}

// GetBooking handles GET /api/v1/bookings/:bookingId
func (c *Controller) GetBooking(ctx *gin.Context) {
	booking, err := c.service.GetBooking(ctx.Request.Context(), ctx.Param("bookingId"))
	if err != nil {
		response.RespondError(ctx, "Failed to get booking", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking retrieved successfully", newBookingResponse(booking), nil)
}

// CancelBooking handles POST /api/v1/bookings/:bookingId/cancel
func (c *Controller) CancelBooking(ctx *gin.Context) {
	bookingID := ctx.Param("bookingId")
	if err := c.service.Cancel(ctx.Request.Context(), bookingID); err != nil {
		response.RespondError(ctx, "Failed to cancel booking", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking cancelled successfully", gin.H{"booking_id": bookingID}, nil)
}
