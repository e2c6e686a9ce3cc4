package analytics

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seatbook/internal/shared/utils/response"
)

// Controller defines the analytics controller interface
type Controller interface {
	GetEventStats(c *gin.Context)
	GetOccupancy(c *gin.Context)
}

// controller implements the Controller interface
type controller struct {
	service Service
}

// NewController creates a new analytics controller instance
func NewController(service Service) Controller {
	return &controller{service: service}
}

func (ctrl *controller) GetEventStats(c *gin.Context) {
	stats, err := ctrl.service.GetEventStats(c.Request.Context(), c.Param("eventId"))
	if err != nil {
		response.RespondError(c, "Failed to get event analytics", err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Event analytics retrieved successfully", stats, nil)
}

func (ctrl *controller) GetOccupancy(c *gin.Context) {
	report, err := ctrl.service.GetOccupancy(c.Request.Context(), c.Param("eventId"))
	if err != nil {
		response.RespondError(c, "Failed to get occupancy report", err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Occupancy report retrieved successfully", report, nil)
}
