package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// runStoreSuite checks the conditional batch contract against any Store.
// newStore must return an empty store; eventID should be unique per call
// when the backend is shared between subtests.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	ctx := context.Background()

	seed := func(t *testing.T, s Store, eventID string) {
		t.Helper()
		seats := []Seat{
			{SeatKey: "A1", Row: "A", Number: 1, SeatType: "standard", Price: 50, State: SeatAvailable},
			{SeatKey: "A2", Row: "A", Number: 2, SeatType: "standard", Price: 50, State: SeatAvailable},
			{SeatKey: "A3", Row: "A", Number: 3, SeatType: "premium", Price: 80, State: SeatAvailable},
		}
		if err := s.CreateEvent(ctx, eventID, seats); err != nil {
			t.Fatalf("create event: %v", err)
		}
	}

	holdBatch := func(eventID, holdID string, at time.Time, ttl time.Duration, keys ...string) Batch {
		hold := &Hold{
			ID:        holdID,
			EventID:   eventID,
			UserID:    "user-1",
			SeatKeys:  keys,
			CreatedAt: at,
			ExpiresAt: at.Add(ttl),
		}
		b := Batch{EventID: eventID, At: at, PutHold: hold, Counters: CounterDelta{HoldAttempts: 1, HoldSuccesses: 1}}
		for _, k := range keys {
			b.Seats = append(b.Seats, SeatWrite{SeatKey: k, Expect: Claimable(at), Next: ToHeld(holdID, hold.ExpiresAt)})
		}
		return b
	}

	seatByKey := func(t *testing.T, s Store, eventID, key string) Seat {
		t.Helper()
		seats, err := s.BatchRead(ctx, eventID, []string{key})
		if err != nil {
			t.Fatalf("batch read: %v", err)
		}
		if len(seats) != 1 {
			t.Fatalf("expected seat %s, got %d records", key, len(seats))
		}
		return seats[0]
	}

	t.Run("create event initialises seats and counters once", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "evt-create")

		seats, err := s.ListSeats(ctx, "evt-create")
		if err != nil {
			t.Fatalf("list seats: %v", err)
		}
		if len(seats) != 3 || seats[0].SeatKey != "A1" || seats[2].SeatKey != "A3" {
			t.Fatalf("unexpected seats: %+v", seats)
		}
		for _, seat := range seats {
			if seat.State != SeatAvailable || seat.EventID != "evt-create" {
				t.Fatalf("unexpected seat record %+v", seat)
			}
		}

		counters, err := s.GetCounters(ctx, "evt-create")
		if err != nil {
			t.Fatalf("get counters: %v", err)
		}
		if counters.HoldAttempts != 0 || counters.SeatsSold != 0 {
			t.Fatalf("expected zeroed counters, got %+v", counters)
		}

		if err := s.CreateEvent(ctx, "evt-create", nil); !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
		if _, err := s.ListSeats(ctx, "evt-missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for unknown event, got %v", err)
		}
	})

	t.Run("batch read omits unknown seats", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "evt-read")

		seats, err := s.BatchRead(ctx, "evt-read", []string{"A1", "Z9"})
		if err != nil {
			t.Fatalf("batch read: %v", err)
		}
		if len(seats) != 1 || seats[0].SeatKey != "A1" {
			t.Fatalf("expected only A1, got %+v", seats)
		}
		if seats[0].Price != 50 || seats[0].SeatType != "standard" || seats[0].Row != "A" || seats[0].Number != 1 {
			t.Fatalf("seat attributes not preserved: %+v", seats[0])
		}
	})

	t.Run("hold batch applies every item", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "evt-hold")

		if err := s.ConditionalBatchWrite(ctx, holdBatch("evt-hold", "holding-1", now, time.Minute, "A1", "A2")); err != nil {
			t.Fatalf("expected success, got %v", err)
		}

		a1 := seatByKey(t, s, "evt-hold", "A1")
		if a1.State != SeatHeld || a1.HoldID != "holding-1" || a1.HoldExpiresAt == nil {
			t.Fatalf("expected A1 held by holding-1, got %+v", a1)
		}
		if !a1.HoldExpiresAt.Equal(now.Add(time.Minute)) {
			t.Fatalf("expected expiry %v, got %v", now.Add(time.Minute), a1.HoldExpiresAt)
		}

		hold, err := s.GetHold(ctx, "holding-1")
		if err != nil {
			t.Fatalf("get hold: %v", err)
		}
		if len(hold.SeatKeys) != 2 || hold.UserID != "user-1" {
			t.Fatalf("unexpected hold %+v", hold)
		}

		counters, _ := s.GetCounters(ctx, "evt-hold")
		if counters.HoldAttempts != 1 || counters.HoldSuccesses != 1 {
			t.Fatalf("expected counters 1/1, got %+v", counters)
		}
	})

	t.Run("failed predicate applies nothing and reports keys", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "evt-atomic")

		if err := s.ConditionalBatchWrite(ctx, holdBatch("evt-atomic", "holding-1", now, time.Minute, "A2")); err != nil {
			t.Fatalf("seed hold: %v", err)
		}

		err := s.ConditionalBatchWrite(ctx, holdBatch("evt-atomic", "holding-2", now, time.Minute, "A1", "A2"))
		var cfe *ConditionFailedError
		if !errors.As(err, &cfe) {
			t.Fatalf("expected ConditionFailedError, got %v", err)
		}
		if !errors.Is(err, ErrConditionFailed) {
			t.Fatalf("expected error to match ErrConditionFailed")
		}
		if len(cfe.Keys) != 1 || cfe.Keys[0] != "A2" {
			t.Fatalf("expected failed keys [A2], got %v", cfe.Keys)
		}

		if a1 := seatByKey(t, s, "evt-atomic", "A1"); a1.State != SeatAvailable || a1.HoldID != "" {
			t.Fatalf("expected A1 untouched, got %+v", a1)
		}
		if _, err := s.GetHold(ctx, "holding-2"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected losing hold not persisted, got %v", err)
		}
		counters, _ := s.GetCounters(ctx, "evt-atomic")
		if counters.HoldAttempts != 1 {
			t.Fatalf("expected counters untouched by failed batch, got %+v", counters)
		}
	})

	t.Run("lapsed hold is claimable but not confirmable", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "evt-lapse")

		if err := s.ConditionalBatchWrite(ctx, holdBatch("evt-lapse", "holding-old", now, time.Second, "A1")); err != nil {
			t.Fatalf("seed hold: %v", err)
		}
		later := now.Add(2 * time.Second)

		confirm := Batch{
			EventID: "evt-lapse",
			At:      later,
			Seats:   []SeatWrite{{SeatKey: "A1", Expect: LiveHoldBy("holding-old", later), Next: ToBooked("booking-x")}},
		}
		if err := s.ConditionalBatchWrite(ctx, confirm); !errors.Is(err, ErrConditionFailed) {
			t.Fatalf("expected live-hold predicate to fail after expiry, got %v", err)
		}

		if err := s.ConditionalBatchWrite(ctx, holdBatch("evt-lapse", "holding-new", later, time.Minute, "A1")); err != nil {
			t.Fatalf("expected lapsed seat to be reclaimed, got %v", err)
		}
		if a1 := seatByKey(t, s, "evt-lapse", "A1"); a1.HoldID != "holding-new" {
			t.Fatalf("expected A1 owned by holding-new, got %+v", a1)
		}
	})

	t.Run("confirm then cancel round trip", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "evt-trip")

		if err := s.ConditionalBatchWrite(ctx, holdBatch("evt-trip", "holding-1", now, time.Minute, "A1", "A3")); err != nil {
			t.Fatalf("seed hold: %v", err)
		}

		at := now.Add(10 * time.Second)
		booking := &Booking{
			ID:            "booking-1",
			EventID:       "evt-trip",
			UserID:        "user-1",
			HoldID:        "holding-1",
			SeatKeys:      []string{"A1", "A3"},
			Status:        BookingConfirmed,
			PaymentStatus: PaymentSuccessful,
			BookedAt:      at,
		}
		confirm := Batch{
			EventID:      "evt-trip",
			At:           at,
			DeleteHoldID: "holding-1",
			PutBooking:   booking,
			Counters:     CounterDelta{BookingsConfirmed: 1, SeatsSold: 2},
		}
		for _, k := range booking.SeatKeys {
			confirm.Seats = append(confirm.Seats, SeatWrite{SeatKey: k, Expect: LiveHoldBy("holding-1", at), Next: ToBooked("booking-1")})
		}
		if err := s.ConditionalBatchWrite(ctx, confirm); err != nil {
			t.Fatalf("confirm: %v", err)
		}

		if a3 := seatByKey(t, s, "evt-trip", "A3"); a3.State != SeatBooked || a3.BookingID != "booking-1" || a3.HoldID != "" || a3.HoldExpiresAt != nil {
			t.Fatalf("expected A3 booked without hold fields, got %+v", a3)
		}
		if _, err := s.GetHold(ctx, "holding-1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected hold consumed, got %v", err)
		}
		stored, err := s.GetBooking(ctx, "booking-1")
		if err != nil {
			t.Fatalf("get booking: %v", err)
		}
		if stored.Status != BookingConfirmed || stored.PaymentStatus != PaymentSuccessful || len(stored.SeatKeys) != 2 {
			t.Fatalf("unexpected booking %+v", stored)
		}

		cancelAt := at.Add(time.Minute)
		cancel := Batch{
			EventID:       "evt-trip",
			At:            cancelAt,
			CancelBooking: &BookingCancel{BookingID: "booking-1", At: cancelAt},
			Counters:      CounterDelta{BookingsCancelled: 1, SeatsCancelled: 2},
		}
		for _, k := range booking.SeatKeys {
			cancel.Seats = append(cancel.Seats, SeatWrite{SeatKey: k, Expect: BookedBy("booking-1"), Next: ToAvailable()})
		}
		if err := s.ConditionalBatchWrite(ctx, cancel); err != nil {
			t.Fatalf("cancel: %v", err)
		}

		stored, _ = s.GetBooking(ctx, "booking-1")
		if stored.Status != BookingCancelled || stored.CancelledAt == nil || !stored.CancelledAt.Equal(cancelAt) {
			t.Fatalf("expected cancelled booking stamped %v, got %+v", cancelAt, stored)
		}
		if a1 := seatByKey(t, s, "evt-trip", "A1"); a1.State != SeatAvailable || a1.BookingID != "" {
			t.Fatalf("expected A1 available again, got %+v", a1)
		}

		err = s.ConditionalBatchWrite(ctx, cancel)
		var cfe *ConditionFailedError
		if !errors.As(err, &cfe) {
			t.Fatalf("expected second cancel to fail its predicates, got %v", err)
		}
		if !containsKey(cfe.Keys, BookingRef("booking-1")) {
			t.Fatalf("expected booking ref among failed keys, got %v", cfe.Keys)
		}

		counters, _ := s.GetCounters(ctx, "evt-trip")
		want := EventCounters{HoldAttempts: 1, HoldSuccesses: 1, BookingsConfirmed: 1, BookingsCancelled: 1, SeatsSold: 2, SeatsCancelled: 2}
		if counters.HoldAttempts != want.HoldAttempts || counters.HoldSuccesses != want.HoldSuccesses ||
			counters.BookingsConfirmed != want.BookingsConfirmed || counters.BookingsCancelled != want.BookingsCancelled ||
			counters.SeatsSold != want.SeatsSold || counters.SeatsCancelled != want.SeatsCancelled {
			t.Fatalf("expected counters %+v, got %+v", want, counters)
		}
	})

	t.Run("release reverts only seats still held by the hold", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "evt-release")

		if err := s.ConditionalBatchWrite(ctx, holdBatch("evt-release", "holding-1", now, time.Minute, "A1")); err != nil {
			t.Fatalf("seed hold: %v", err)
		}
		release := Batch{
			EventID:      "evt-release",
			At:           now,
			DeleteHoldID: "holding-1",
			Seats:        []SeatWrite{{SeatKey: "A1", Expect: HeldBy("holding-1"), Next: ToAvailable()}},
		}
		if err := s.ConditionalBatchWrite(ctx, release); err != nil {
			t.Fatalf("release: %v", err)
		}
		if a1 := seatByKey(t, s, "evt-release", "A1"); a1.State != SeatAvailable || a1.HoldExpiresAt != nil {
			t.Fatalf("expected A1 available, got %+v", a1)
		}
		if err := s.ConditionalBatchWrite(ctx, release); !errors.Is(err, ErrConditionFailed) {
			t.Fatalf("expected replayed release to fail its predicate, got %v", err)
		}
	})

	t.Run("counters require an initialised event", func(t *testing.T) {
		s := newStore(t)

		err := s.ConditionalBatchWrite(ctx, Batch{EventID: "evt-none", At: now, Counters: CounterDelta{HoldAttempts: 1}})
		var cfe *ConditionFailedError
		if !errors.As(err, &cfe) || len(cfe.Keys) != 1 || cfe.Keys[0] != CountersRef("evt-none") {
			t.Fatalf("expected counters ref failure, got %v", err)
		}
	})

	t.Run("concurrent overlapping holds never share a seat", func(t *testing.T) {
		s := newStore(t)
		keys := []string{"A1", "A2", "A3", "A4", "A5"}
		seats := make([]Seat, 0, len(keys))
		for i, k := range keys {
			seats = append(seats, Seat{SeatKey: k, Row: "A", Number: i + 1, SeatType: "standard", Price: 50, State: SeatAvailable})
		}
		if err := s.CreateEvent(ctx, "evt-race", seats); err != nil {
			t.Fatalf("create event: %v", err)
		}

		const racers = 40
		var (
			mu   sync.Mutex
			wins = map[string][]string{}
			g    errgroup.Group
		)
		for i := 0; i < racers; i++ {
			pair := []string{keys[i%4], keys[i%4+1]}
			g.Go(func() error {
				holdID := fmt.Sprintf("holding-race-%d", i)
				err := s.ConditionalBatchWrite(ctx, holdBatch("evt-race", holdID, now, time.Minute, pair...))
				if errors.Is(err, ErrConditionFailed) {
					return nil
				}
				if err != nil {
					return fmt.Errorf("racer %d: %w", i, err)
				}
				mu.Lock()
				wins[holdID] = pair
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("unexpected store error: %v", err)
		}
		if len(wins) == 0 {
			t.Fatalf("expected at least one racer to win")
		}

		claimed := map[string]string{}
		for holdID, pair := range wins {
			for _, k := range pair {
				if other, ok := claimed[k]; ok {
					t.Fatalf("seat %s granted to both %s and %s", k, other, holdID)
				}
				claimed[k] = holdID
				if seat := seatByKey(t, s, "evt-race", k); seat.State != SeatHeld || seat.HoldID != holdID {
					t.Fatalf("expected %s held by %s, got %+v", k, holdID, seat)
				}
			}
		}
		for _, k := range keys {
			if _, ok := claimed[k]; ok {
				continue
			}
			if seat := seatByKey(t, s, "evt-race", k); seat.State != SeatAvailable {
				t.Fatalf("expected unclaimed %s available, got %+v", k, seat)
			}
		}

		counters, err := s.GetCounters(ctx, "evt-race")
		if err != nil {
			t.Fatalf("get counters: %v", err)
		}
		if counters.HoldSuccesses != int64(len(wins)) || counters.HoldAttempts != int64(len(wins)) {
			t.Fatalf("expected counters to reflect %d winning batches, got %+v", len(wins), counters)
		}
	})

	t.Run("purge removes only holds that lapsed before the cutoff", func(t *testing.T) {
		s := newStore(t)
		purger, ok := s.(HoldPurger)
		if !ok {
			t.Skip("store expires hold records itself")
		}
		seed(t, s, "evt-purge")

		if err := s.ConditionalBatchWrite(ctx, holdBatch("evt-purge", "holding-old", now, time.Minute, "A1")); err != nil {
			t.Fatalf("old hold: %v", err)
		}
		if err := s.ConditionalBatchWrite(ctx, holdBatch("evt-purge", "holding-new", now.Add(time.Hour), time.Minute, "A2")); err != nil {
			t.Fatalf("new hold: %v", err)
		}

		n, err := purger.PurgeHolds(ctx, now.Add(30*time.Minute), 10)
		if err != nil {
			t.Fatalf("purge: %v", err)
		}
		if n != 1 {
			t.Fatalf("expected one purged record, got %d", n)
		}
		if _, err := s.GetHold(ctx, "holding-old"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected old hold purged, got %v", err)
		}
		if _, err := s.GetHold(ctx, "holding-new"); err != nil {
			t.Fatalf("expected new hold kept, got %v", err)
		}
	})

	t.Run("duplicate seat writes are rejected before touching the store", func(t *testing.T) {
		s := newStore(t)
		seed(t, s, "evt-dup")

		b := holdBatch("evt-dup", "holding-1", now, time.Minute, "A1")
		b.Seats = append(b.Seats, b.Seats[0])
		if err := s.ConditionalBatchWrite(ctx, b); err == nil || errors.Is(err, ErrConditionFailed) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func containsKey(keys []string, want string) bool {
	for _, k := range keys {
		if k == want {
			return true
		}
	}
	return false
}
