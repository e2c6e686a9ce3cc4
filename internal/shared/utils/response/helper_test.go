package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"seatbook/internal/shared/errs"

	"github.com/gin-gonic/gin"
)

func TestStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{errs.Invalid("bad ttl"), http.StatusBadRequest},
		{&errs.UnknownSeatsError{SeatKeys: []string{"Z9"}}, http.StatusBadRequest},
		{errs.ErrPaymentFailed, http.StatusPaymentRequired},
		{errs.ErrHoldNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", errs.ErrBookingNotFound), http.StatusNotFound},
		{&errs.SeatUnavailableError{SeatKeys: []string{"A2"}}, http.StatusConflict},
		{fmt.Errorf("%w: lost races", errs.ErrConflict), http.StatusConflict},
		{errs.ErrHoldExpired, http.StatusGone},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.want {
			t.Fatalf("StatusCode(%v): expected %d, got %d", tt.err, tt.want, got)
		}
	}
}

func TestRespondError_SeatUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	RespondError(c, "Failed to hold seats", &errs.SeatUnavailableError{SeatKeys: []string{"A2", "A3"}})

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
		Errors struct {
			UnavailableSeats []string `json:"unavailable_seats"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "error" || len(body.Errors.UnavailableSeats) != 2 || body.Errors.UnavailableSeats[1] != "A3" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestRespondError_HidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	RespondError(c, "Failed", errors.New("dial tcp 10.0.0.5:5432: refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body StandardApiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Errors != "internal error" {
		t.Fatalf("expected masked error, got %v", body.Errors)
	}
}
