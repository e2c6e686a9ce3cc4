package analytics

import "github.com/gin-gonic/gin"

func SetupAnalyticsRoutes(rg *gin.RouterGroup, controller Controller) {
	analytics := rg.Group("/analytics")

	events := analytics.Group("/events")
	{
		events.GET("/:eventId", controller.GetEventStats)          // GET /api/v1/analytics/events/:eventId
		events.GET("/:eventId/occupancy", controller.GetOccupancy) // GET /api/v1/analytics/events/:eventId/occupancy
	}
}
