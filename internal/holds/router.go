package holds

import "github.com/gin-gonic/gin"

func SetupHoldRoutes(rg *gin.RouterGroup, controller *Controller) {
	seats := rg.Group("/seats")
	{
		seats.POST("/hold", controller.HoldSeats)             // POST /api/v1/seats/hold
		seats.GET("/hold/:holdId", controller.GetHold)        // GET /api/v1/seats/hold/:holdId
		seats.DELETE("/hold/:holdId", controller.ReleaseHold) // DELETE /api/v1/seats/hold/:holdId
	}
}
