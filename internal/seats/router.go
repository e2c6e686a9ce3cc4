package seats

import "github.com/gin-gonic/gin"

func SetupSeatRoutes(rg *gin.RouterGroup, controller *Controller) {

	// EVENT SEAT READS

	events := rg.Group("/events")
	{
		events.GET("/:eventId/seats", controller.GetSeatMap)                      // GET /api/v1/events/:eventId/seats
		events.POST("/:eventId/seats/availability", controller.CheckAvailability) // POST /api/v1/events/:eventId/seats/availability
	}

	// ADMIN INVENTORY

	admin := rg.Group("/admin/events")
	{
		admin.POST("/:eventId/seats", controller.CreateEventSeats) // POST /api/v1/admin/events/:eventId/seats
	}
}
