package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the ledger in process. One mutex serialises every
// batch, which gives it the same all-or-nothing semantics as the durable
// stores. Used by tests and LEDGER_BACKEND=memory.
type MemoryStore struct {
	mu       sync.Mutex
	seats    map[string]map[string]*Seat
	holds    map[string]*Hold
	bookings map[string]*Booking
	counters map[string]*EventCounters
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seats:    make(map[string]map[string]*Seat),
		holds:    make(map[string]*Hold),
		bookings: make(map[string]*Booking),
		counters: make(map[string]*EventCounters),
	}
}

func (m *MemoryStore) ConditionalBatchWrite(ctx context.Context, batch Batch) error {
	if err := batch.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	event := m.seats[batch.EventID]
	var failed []string
	for _, w := range batch.Seats {
		if !w.Expect.Matches(event[w.SeatKey]) {
			failed = append(failed, w.SeatKey)
		}
	}
	if batch.PutHold != nil {
		if _, exists := m.holds[batch.PutHold.ID]; exists {
			failed = append(failed, HoldRef(batch.PutHold.ID))
		}
	}
	if batch.PutBooking != nil {
		if _, exists := m.bookings[batch.PutBooking.ID]; exists {
			failed = append(failed, BookingRef(batch.PutBooking.ID))
		}
	}
	if c := batch.CancelBooking; c != nil {
		if b, ok := m.bookings[c.BookingID]; !ok || b.Status != BookingConfirmed {
			failed = append(failed, BookingRef(c.BookingID))
		}
	}
	if !batch.Counters.IsZero() {
		if _, ok := m.counters[batch.EventID]; !ok {
			failed = append(failed, CountersRef(batch.EventID))
		}
	}
	if len(failed) > 0 {
		return &ConditionFailedError{Keys: failed}
	}

	for _, w := range batch.Seats {
		w.Next.apply(event[w.SeatKey], batch.At)
	}
	if batch.PutHold != nil {
		m.holds[batch.PutHold.ID] = copyHold(batch.PutHold)
	}
	if batch.DeleteHoldID != "" {
		delete(m.holds, batch.DeleteHoldID)
	}
	if batch.PutBooking != nil {
		m.bookings[batch.PutBooking.ID] = copyBooking(batch.PutBooking)
	}
	if c := batch.CancelBooking; c != nil {
		b := m.bookings[c.BookingID]
		at := c.At
		b.Status = BookingCancelled
		b.CancelledAt = &at
	}
	if !batch.Counters.IsZero() {
		ec := m.counters[batch.EventID]
		d := batch.Counters
		ec.HoldAttempts += d.HoldAttempts
		ec.HoldSuccesses += d.HoldSuccesses
		ec.BookingsConfirmed += d.BookingsConfirmed
		ec.BookingsCancelled += d.BookingsCancelled
		ec.SeatsSold += d.SeatsSold
		ec.SeatsCancelled += d.SeatsCancelled
		ec.UpdatedAt = batch.At
	}
	return nil
}

func (m *MemoryStore) BatchRead(ctx context.Context, eventID string, seatKeys []string) ([]Seat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	event := m.seats[eventID]
	out := make([]Seat, 0, len(seatKeys))
	for _, key := range seatKeys {
		if s, ok := event[key]; ok {
			out = append(out, copySeat(s))
		}
	}
	return out, nil
}

func (m *MemoryStore) ListSeats(ctx context.Context, eventID string) ([]Seat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	event, ok := m.seats[eventID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	out := make([]Seat, 0, len(event))
	for _, s := range event {
		out = append(out, copySeat(s))
	}
	m.mu.Unlock()

	SortSeats(out)
	return out, nil
}

func (m *MemoryStore) GetHold(ctx context.Context, holdID string) (*Hold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[holdID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyHold(h), nil
}

func (m *MemoryStore) GetBooking(ctx context.Context, bookingID string) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBooking(b), nil
}

func (m *MemoryStore) GetCounters(ctx context.Context, eventID string) (*EventCounters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counters[eventID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) CreateEvent(ctx context.Context, eventID string, seats []Seat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.counters[eventID]; exists {
		return ErrAlreadyExists
	}
	event := make(map[string]*Seat, len(seats))
	for i := range seats {
		s := copySeat(&seats[i])
		s.EventID = eventID
		event[s.SeatKey] = &s
	}
	m.seats[eventID] = event
	m.counters[eventID] = &EventCounters{EventID: eventID}
	return nil
}

func (m *MemoryStore) PurgeHolds(ctx context.Context, expiredBefore time.Time, limit int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for id, h := range m.holds {
		if purged >= limit {
			break
		}
		if h.ExpiresAt.Before(expiredBefore) {
			delete(m.holds, id)
			purged++
		}
	}
	return purged, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func copySeat(s *Seat) Seat {
	cp := *s
	if s.HoldExpiresAt != nil {
		exp := *s.HoldExpiresAt
		cp.HoldExpiresAt = &exp
	}
	return cp
}

func copyHold(h *Hold) *Hold {
	cp := *h
	cp.SeatKeys = append([]string(nil), h.SeatKeys...)
	return &cp
}

func copyBooking(b *Booking) *Booking {
	cp := *b
	cp.SeatKeys = append([]string(nil), b.SeatKeys...)
	if b.CancelledAt != nil {
		at := *b.CancelledAt
		cp.CancelledAt = &at
	}
	return &cp
}
