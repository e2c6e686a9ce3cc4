package bookings

import "github.com/gin-gonic/gin"

// SetupBookingRoutes configures all booking-related routes
func SetupBookingRoutes(rg *gin.RouterGroup, controller *Controller) {
	bookings := rg.Group("/bookings")
	{
		bookings.POST("/confirm", controller.ConfirmBooking)          // POST /api/v1/bookings/confirm
		bookings.GET("/:bookingId", controller.GetBooking)            // GET /api/v1/bookings/:bookingId
		bookings.POST("/:bookingId/cancel", controller.CancelBooking) // POST /api/v1/bookings/:bookingId/cancel
	}
}
