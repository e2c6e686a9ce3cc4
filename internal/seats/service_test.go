package seats

import (
	"context"
	"errors"
	"testing"
	"time"

	"seatbook/internal/ledger"
	"seatbook/internal/shared/errs"
	"seatbook/pkg/clock"
)

var t0 = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

var layout = []RowLayout{
	{Row: "A", Seats: 3, SeatType: "standard"},
	{Row: "B", Seats: 2, SeatType: "vip"},
}

var prices = map[string]float64{"standard": 40, "vip": 95}

func newFixture(t *testing.T) (*ledger.MemoryStore, *clock.Fake, Service) {
	t.Helper()
	store := ledger.NewMemoryStore()
	clk := clock.NewFake(t0)
	svc := NewService(store, clk)
	if _, err := svc.CreateEventSeats(context.Background(), "evt-1", layout, prices); err != nil {
		t.Fatalf("create seats: %v", err)
	}
	return store, clk, svc
}

func TestCreateEventSeats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("materialises every seat available", func(t *testing.T) {
		t.Parallel()
		store := ledger.NewMemoryStore()
		svc := NewService(store, clock.NewFixed(t0))

		created, err := svc.CreateEventSeats(ctx, "evt-1", layout, prices)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if created.TotalSeats != 5 || created.BySeatType["standard"] != 3 || created.BySeatType["vip"] != 2 {
			t.Fatalf("unexpected summary %+v", created)
		}

		seats, err := store.BatchRead(ctx, "evt-1", []string{"A1", "A3", "B2"})
		if err != nil || len(seats) != 3 {
			t.Fatalf("expected 3 seats, got %d (%v)", len(seats), err)
		}
		for _, s := range seats {
			if s.State != ledger.SeatAvailable {
				t.Fatalf("seat %s not available: %s", s.SeatKey, s.State)
			}
			if s.SeatKey == "B2" && (s.Row != "B" || s.Number != 2 || s.Price != 95) {
				t.Fatalf("unexpected seat attributes %+v", s)
			}
		}

		counters, err := store.GetCounters(ctx, "evt-1")
		if err != nil || counters.HoldAttempts != 0 || counters.SeatsSold != 0 {
			t.Fatalf("expected zeroed counters, got %+v (%v)", counters, err)
		}
	})

	t.Run("existing event", func(t *testing.T) {
		t.Parallel()
		_, _, svc := newFixture(t)
		if _, err := svc.CreateEventSeats(ctx, "evt-1", layout, prices); !errors.Is(err, errs.ErrEventExists) {
			t.Fatalf("expected ErrEventExists, got %v", err)
		}
	})

	invalid := []struct {
		name   string
		rows   []RowLayout
		prices map[string]float64
	}{
		{"missing price", []RowLayout{{Row: "A", Seats: 2, SeatType: "box"}}, prices},
		{"negative price", layout, map[string]float64{"standard": -1, "vip": 10}},
		{"no rows", nil, prices},
		{"bad row label", []RowLayout{{Row: "A1", Seats: 2, SeatType: "standard"}}, prices},
		{"zero seats", []RowLayout{{Row: "A", Seats: 0, SeatType: "standard"}}, prices},
		{"duplicate row", []RowLayout{{Row: "A", Seats: 1, SeatType: "standard"}, {Row: "A", Seats: 1, SeatType: "vip"}}, prices},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := ledger.NewMemoryStore()
			svc := NewService(store, clock.NewFixed(t0))
			if _, err := svc.CreateEventSeats(ctx, "evt-1", tt.rows, tt.prices); !errors.Is(err, errs.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if _, err := store.GetCounters(ctx, "evt-1"); !errors.Is(err, ledger.ErrNotFound) {
				t.Fatalf("expected nothing written, got %v", err)
			}
		})
	}
}

func TestGetSeatMap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, clk, svc := newFixture(t)

	err := store.ConditionalBatchWrite(ctx, ledger.Batch{EventID: "evt-1", At: t0, Seats: []ledger.SeatWrite{
		{SeatKey: "A1", Expect: ledger.Claimable(t0), Next: ledger.ToHeld("holding-1", t0.Add(30*time.Second))},
		{SeatKey: "A2", Expect: ledger.Claimable(t0), Next: ledger.ToHeld("holding-2", t0.Add(10*time.Minute))},
		{SeatKey: "B1", Expect: ledger.Claimable(t0), Next: ledger.ToBooked("booking-1")},
	}})
	if err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	clk.Advance(time.Minute)

	m, err := svc.GetSeatMap(ctx, "evt-1")
	if err != nil {
		t.Fatalf("seat map: %v", err)
	}
	if m.Totals != (Totals{Total: 5, Available: 3, Held: 1, Booked: 1}) {
		t.Fatalf("unexpected totals %+v", m.Totals)
	}
	if m.Seats[0].SeatKey != "A1" || m.Seats[4].SeatKey != "B2" {
		t.Fatalf("expected seats ordered by row and number, got %s..%s", m.Seats[0].SeatKey, m.Seats[4].SeatKey)
	}

	lapsed := m.Seats[0]
	if lapsed.RawState != ledger.SeatHeld || lapsed.State != ledger.SeatAvailable || lapsed.HoldExpiresAt != nil {
		t.Fatalf("expected lapsed hold to read available, got %+v", lapsed)
	}
	live := m.Seats[1]
	if live.State != ledger.SeatHeld || live.HoldExpiresAt == nil {
		t.Fatalf("expected live hold, got %+v", live)
	}

	if _, err := svc.GetSeatMap(ctx, "evt-missing"); !errors.Is(err, errs.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestCheckAvailability(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _, svc := newFixture(t)

	err := store.ConditionalBatchWrite(ctx, ledger.Batch{EventID: "evt-1", At: t0, Seats: []ledger.SeatWrite{
		{SeatKey: "B1", Expect: ledger.Claimable(t0), Next: ledger.ToBooked("booking-1")},
	}})
	if err != nil {
		t.Fatalf("seed batch: %v", err)
	}

	got, err := svc.CheckAvailability(ctx, "evt-1", []string{"A1", "A2", "A1"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !got.AllAvailable || len(got.Seats) != 2 {
		t.Fatalf("expected two free seats, got %+v", got)
	}

	got, err = svc.CheckAvailability(ctx, "evt-1", []string{"A1", "B1"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if got.AllAvailable || got.Seats[1].State != ledger.SeatBooked {
		t.Fatalf("expected B1 reported booked, got %+v", got)
	}

	var unknown *errs.UnknownSeatsError
	if _, err := svc.CheckAvailability(ctx, "evt-1", []string{"A1", "Z9"}); !errors.As(err, &unknown) || unknown.SeatKeys[0] != "Z9" {
		t.Fatalf("expected unknown Z9, got %v", err)
	}
	if _, err := svc.CheckAvailability(ctx, "evt-missing", []string{"A1"}); !errors.Is(err, errs.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
	if _, err := svc.CheckAvailability(ctx, "evt-1", []string{"not a seat"}); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
