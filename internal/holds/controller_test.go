package holds

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"seatbook/internal/ledger"
	"seatbook/internal/shared/errs"
	"seatbook/pkg/clock"

	"github.com/gin-gonic/gin"
)

type fakeService struct {
	requestHold func(ctx context.Context, in RequestHoldInput) (*ledger.Hold, error)
	release     func(ctx context.Context, holdID string) error
	getHold     func(ctx context.Context, holdID string) (*HoldView, error)
}

func (f *fakeService) RequestHold(ctx context.Context, in RequestHoldInput) (*ledger.Hold, error) {
	return f.requestHold(ctx, in)
}

func (f *fakeService) Release(ctx context.Context, holdID string) error {
	return f.release(ctx, holdID)
}

func (f *fakeService) GetHold(ctx context.Context, holdID string) (*HoldView, error) {
	return f.getHold(ctx, holdID)
}

func newTestRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupHoldRoutes(r.Group("/api/v1"), NewController(svc, clock.NewFixed(t0)))
	return r
}

func doJSON(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestController_HoldSeats(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		var got RequestHoldInput
		svc := &fakeService{requestHold: func(_ context.Context, in RequestHoldInput) (*ledger.Hold, error) {
			got = in
			return &ledger.Hold{ID: "holding-1", EventID: in.EventID, UserID: in.UserID, SeatKeys: in.SeatKeys, CreatedAt: t0, ExpiresAt: t0.Add(90 * time.Second)}, nil
		}}

		rec := doJSON(newTestRouter(svc), http.MethodPost, "/api/v1/seats/hold",
			HoldSeatsRequest{EventID: "evt-1", UserID: "user-1", SeatKeys: []string{"A1"}, TTLSeconds: 90},
			map[string]string{IdempotencyHeader: "key-1"})

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.TTL != 90*time.Second || got.IdempotencyKey != "key-1" {
			t.Fatalf("unexpected service input %+v", got)
		}
		var body struct {
			Data HoldResponse `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Data.HoldID != "holding-1" || !body.Data.Active || body.Data.ExpiresInSeconds != 90 {
			t.Fatalf("unexpected response %+v", body.Data)
		}
	})

	t.Run("seat unavailable maps to conflict", func(t *testing.T) {
		svc := &fakeService{requestHold: func(context.Context, RequestHoldInput) (*ledger.Hold, error) {
			return nil, &errs.SeatUnavailableError{SeatKeys: []string{"A2"}}
		}}
		rec := doJSON(newTestRouter(svc), http.MethodPost, "/api/v1/seats/hold",
			HoldSeatsRequest{EventID: "evt-1", UserID: "user-1", SeatKeys: []string{"A1", "A2"}}, nil)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		if !bytes.Contains(rec.Body.Bytes(), []byte(`"unavailable_seats":["A2"]`)) {
			t.Fatalf("expected unavailable seats in body, got %s", rec.Body.String())
		}
	})

	t.Run("ttl beyond a day is rejected before the service", func(t *testing.T) {
		called := false
		svc := &fakeService{requestHold: func(context.Context, RequestHoldInput) (*ledger.Hold, error) {
			called = true
			return nil, errors.New("unexpected call")
		}}
		// 2^55 + 60 seconds wraps to 60s if multiplied into a Duration.
		rec := doJSON(newTestRouter(svc), http.MethodPost, "/api/v1/seats/hold",
			map[string]interface{}{"event_id": "evt-1", "user_id": "user-1", "seat_keys": []string{"A1"}, "ttl_seconds": int64(36028797018964028)}, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
		if called {
			t.Fatalf("expected service not to be called")
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := doJSON(newTestRouter(&fakeService{}), http.MethodPost, "/api/v1/seats/hold",
			map[string]interface{}{"event_id": "evt-1"}, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestController_GetAndRelease(t *testing.T) {
	released := ""
	svc := &fakeService{
		getHold: func(_ context.Context, id string) (*HoldView, error) {
			if id != "holding-1" {
				return nil, errs.ErrHoldNotFound
			}
			return &HoldView{Hold: &ledger.Hold{ID: id, EventID: "evt-1", ExpiresAt: t0}, Active: false}, nil
		},
		release: func(_ context.Context, id string) error {
			released = id
			return nil
		},
	}
	r := newTestRouter(svc)

	if rec := doJSON(r, http.MethodGet, "/api/v1/seats/hold/holding-1", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := doJSON(r, http.MethodGet, "/api/v1/seats/hold/holding-2", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := doJSON(r, http.MethodDelete, "/api/v1/seats/hold/holding-1", nil, nil); rec.Code != http.StatusOK || released != "holding-1" {
		t.Fatalf("expected release of holding-1, got %d %q", rec.Code, released)
	}
}
