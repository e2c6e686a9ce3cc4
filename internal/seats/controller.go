package seats

import (
	"net/http"

	"seatbook/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// ADMIN

func (c *Controller) CreateEventSeats(ctx *gin.Context) {
	eventID := ctx.Param("eventId")
	if eventID == "" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Event ID is required", nil, "missing event ID")
		return
	}

	var req CreateEventSeatsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	created, err := c.service.CreateEventSeats(ctx.Request.Context(), eventID, req.Rows, req.SeatTypePrices)
	if err != nil {
		response.RespondError(ctx, "Failed to create event seats", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Event seats created successfully", created, nil)
}

// READS

func (c *Controller) GetSeatMap(ctx *gin.Context) {
	seatMap, err := c.service.GetSeatMap(ctx.Request.Context(), ctx.Param("eventId"))
	if err != nil {
		response.RespondError(ctx, "Failed to get seat map", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seat map retrieved successfully", seatMap, nil)
}

func (c *Controller) CheckAvailability(ctx *gin.Context) {
	var req CheckAvailabilityRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	availability, err := c.service.CheckAvailability(ctx.Request.Context(), ctx.Param("eventId"), req.SeatKeys)
	if err != nil {
		response.RespondError(ctx, "Failed to check seat availability", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seat availability checked successfully", availability, nil)
}
