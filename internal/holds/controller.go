package holds

import (
	"net/http"
	"time"

	"seatbook/internal/shared/utils/response"
	"seatbook/pkg/clock"

	"github.com/gin-gonic/gin"
)

const IdempotencyHeader = "Idempotency-Key"

type Controller struct {
	service Service
	clock   clock.Clock
}

func NewController(service Service, c clock.Clock) *Controller {
	if c == nil {
		c = clock.NewSystem()
	}
	return &Controller{service: service, clock: c}
}

func (c *Controller) HoldSeats(ctx *gin.Context) {
	var req HoldSeatsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	hold, err := c.service.RequestHold(ctx.Request.Context(), RequestHoldInput{
		EventID:        req.EventID,
		UserID:         req.UserID,
		SeatKeys:       req.SeatKeys,
		TTL:            time.Duration(req.TTLSeconds) * time.Second,
		IdempotencyKey: ctx.GetHeader(IdempotencyHeader),
	})
	if err != nil {
		response.RespondError(ctx, "Failed to hold seats", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Seats held successfully", newHoldResponse(hold, c.clock.Now()), nil)
}

func (c *Controller) GetHold(ctx *gin.Context) {
	holdID := ctx.Param("holdId")
	if holdID == "" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Hold ID is required", nil, "missing hold ID")
		return
	}

	view, err := c.service.GetHold(ctx.Request.Context(), holdID)
	if err != nil {
		response.RespondError(ctx, "Failed to get hold", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Hold retrieved successfully", newHoldViewResponse(view), nil)
}

func (c *Controller) ReleaseHold(ctx *gin.Context) {
	holdID := ctx.Param("holdId")
	if holdID == "" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Hold ID is required", nil, "missing hold ID")
		return
	}

	if err := c.service.Release(ctx.Request.Context(), holdID); err != nil {
		response.RespondError(ctx, "Failed to release hold", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Hold released successfully", gin.H{"hold_id": holdID}, nil)
}
