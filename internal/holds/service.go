package holds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seatbook/internal/ledger"
	"seatbook/internal/notifications"
	"seatbook/internal/shared/constants"
	"seatbook/internal/shared/errs"
	"seatbook/internal/shared/validation"
	"seatbook/pkg/cache"
	"seatbook/pkg/clock"
	"seatbook/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	DefaultTTL         = 180 * time.Second
	DefaultMaxTTL      = 15 * time.Minute
	DefaultMaxAttempts = 4
	DefaultMaxSeats    = 10

	minAttempts = 3
	maxAttempts = 5

	holdIDPrefix = "holding-"
)

type Service interface {
	// RequestHold claims every requested seat or none of them
	RequestHold(ctx context.Context, in RequestHoldInput) (*ledger.Hold, error)
	// Release reverts the seats still owned by the hold; unknown holds are a no-op
	Release(ctx context.Context, holdID string) error
	GetHold(ctx context.Context, holdID string) (*HoldView, error)
}

type RequestHoldInput struct {
	EventID  string        `validate:"required,max=64"`
	UserID   string        `validate:"required,max=64"`
	SeatKeys []string      `validate:"required,min=1,dive,seatkey"`
	TTL      time.Duration `validate:"gte=0"`
	// IdempotencyKey makes a retried request return the hold it created first
	IdempotencyKey string `validate:"omitempty,max=128"`
}

// HoldView is a hold as seen at read time.
type HoldView struct {
	Hold      *ledger.Hold
	Active    bool
	ExpiresIn time.Duration
}

type service struct {
	store       ledger.Store
	clock       clock.Clock
	log         *logger.Logger
	publisher   notifications.Publisher
	idempotency cache.Service
	validate    *validator.Validate

	maxAttempts int
	defaultTTL  time.Duration
	maxTTL      time.Duration
	maxSeats    int
}

type Option func(*service)

// WithMaxAttempts bounds the optimistic retry loop, clamped to 3..5
func WithMaxAttempts(n int) Option {
	return func(s *service) {
		switch {
		case n < minAttempts:
			n = minAttempts
		case n > maxAttempts:
			n = maxAttempts
		}
		s.maxAttempts = n
	}
}

func WithDefaultTTL(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.defaultTTL = d
		}
	}
}

func WithMaxTTL(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.maxTTL = d
		}
	}
}

func WithMaxSeats(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.maxSeats = n
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *service) { s.clock = c }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *service) { s.log = l }
}

func WithPublisher(p notifications.Publisher) Option {
	return func(s *service) { s.publisher = p }
}

// WithIdempotency enables Idempotency-Key replay backed by the cache
func WithIdempotency(c cache.Service) Option {
	return func(s *service) { s.idempotency = c }
}

func NewService(store ledger.Store, opts ...Option) Service {
	s := &service{
		store:       store,
		clock:       clock.NewSystem(),
		log:         logger.GetDefault(),
		publisher:   notifications.Nop(),
		validate:    validation.New(),
		maxAttempts: DefaultMaxAttempts,
		defaultTTL:  DefaultTTL,
		maxTTL:      DefaultMaxTTL,
		maxSeats:    DefaultMaxSeats,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HOLD REQUESTS

func (s *service) RequestHold(ctx context.Context, in RequestHoldInput) (*ledger.Hold, error) {
	in.SeatKeys = dedupe(in.SeatKeys)
	if err := s.validate.Struct(in); err != nil {
		return nil, errs.Invalid("%s", validation.Describe(err))
	}
	if len(in.SeatKeys) > s.maxSeats {
		return nil, errs.Invalid("at most %d seats may be held at once", s.maxSeats)
	}
	ttl := in.TTL
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	if ttl > s.maxTTL {
		return nil, errs.Invalid("hold ttl %s exceeds maximum %s", ttl, s.maxTTL)
	}

	if hold := s.replay(ctx, in); hold != nil {
		return hold, nil
	}

	hold, err := s.claim(ctx, in, ttl)
	if err != nil {
		return nil, err
	}

	if winner := s.remember(ctx, in, hold, ttl); winner != hold {
		return winner, nil
	}

	s.log.LogHoldCreated(ctx, hold.ID, hold.EventID, hold.UserID, len(hold.SeatKeys), hold.ExpiresAt)
	expiresAt := hold.ExpiresAt
	s.publish(ctx, notifications.NewLifecycleEvent(notifications.LifecycleSeatsHeld, hold.EventID, hold.SeatKeys, hold.CreatedAt).
		WithHold(hold.ID, &expiresAt).
		WithUser(hold.UserID))
	return hold, nil
}

// claim runs the read, check, conditional-write cycle until it wins, finds
// a seat it cannot take, or runs out of attempts.
func (s *service) claim(ctx context.Context, in RequestHoldInput, ttl time.Duration) (*ledger.Hold, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		now := s.clock.Now()

		seats, err := s.store.BatchRead(ctx, in.EventID, in.SeatKeys)
		if err != nil {
			return nil, fmt.Errorf("read seats: %w", err)
		}
		if err := s.checkKnown(ctx, in, seats); err != nil {
			return nil, err
		}
		if unavailable := unclaimable(in.SeatKeys, seats, now); len(unavailable) > 0 {
			s.recordRejected(ctx, in.EventID, now)
			s.log.LogHoldRejected(ctx, in.EventID, in.UserID, unavailable, attempt)
			return nil, &errs.SeatUnavailableError{SeatKeys: unavailable}
		}

		hold := &ledger.Hold{
			ID:        holdIDPrefix + uuid.NewString(),
			EventID:   in.EventID,
			UserID:    in.UserID,
			SeatKeys:  append([]string(nil), in.SeatKeys...),
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		}
		batch := ledger.Batch{
			EventID:  in.EventID,
			At:       now,
			PutHold:  hold,
			Counters: ledger.CounterDelta{HoldAttempts: 1, HoldSuccesses: 1},
		}
		for _, key := range in.SeatKeys {
			batch.Seats = append(batch.Seats, ledger.SeatWrite{
				SeatKey: key,
				Expect:  ledger.Claimable(now),
				Next:    ledger.ToHeld(hold.ID, hold.ExpiresAt),
			})
		}

		err = s.store.ConditionalBatchWrite(ctx, batch)
		if err == nil {
			return hold, nil
		}
		if !errors.Is(err, ledger.ErrConditionFailed) {
			return nil, fmt.Errorf("hold seats: %w", err)
		}
		s.log.LogContention(ctx, "request_hold", in.EventID, attempt, err)
	}

	s.recordRejected(ctx, in.EventID, s.clock.Now())
	s.log.LogHoldRejected(ctx, in.EventID, in.UserID, nil, s.maxAttempts)
	return nil, fmt.Errorf("%w: hold lost %d consecutive races", errs.ErrConflict, s.maxAttempts)
}

func (s *service) checkKnown(ctx context.Context, in RequestHoldInput, seats []ledger.Seat) error {
	if len(seats) == len(in.SeatKeys) {
		return nil
	}
	if len(seats) == 0 {
		if _, err := s.store.GetCounters(ctx, in.EventID); errors.Is(err, ledger.ErrNotFound) {
			return fmt.Errorf("%w: %s", errs.ErrEventNotFound, in.EventID)
		}
	}
	found := make(map[string]struct{}, len(seats))
	for _, seat := range seats {
		found[seat.SeatKey] = struct{}{}
	}
	var missing []string
	for _, key := range in.SeatKeys {
		if _, ok := found[key]; !ok {
			missing = append(missing, key)
		}
	}
	return &errs.UnknownSeatsError{SeatKeys: missing}
}

// recordRejected counts an attempt that ended without a hold. The batch
// carries no seat writes.
func (s *service) recordRejected(ctx context.Context, eventID string, at time.Time) {
	err := s.store.ConditionalBatchWrite(ctx, ledger.Batch{
		EventID:  eventID,
		At:       at,
		Counters: ledger.CounterDelta{HoldAttempts: 1},
	})
	if err != nil {
		s.log.WarnContext(ctx, "Failed to record rejected hold attempt", "event_id", eventID, "error", err)
	}
}

// IDEMPOTENCY

func (s *service) replay(ctx context.Context, in RequestHoldInput) *ledger.Hold {
	if s.idempotency == nil || in.IdempotencyKey == "" {
		return nil
	}
	var holdID string
	if err := s.idempotency.Get(ctx, constants.BuildHoldIdempotencyKey(in.UserID, in.IdempotencyKey), &holdID); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WarnContext(ctx, "Idempotency lookup failed", "error", err)
		}
		return nil
	}
	hold, err := s.store.GetHold(ctx, holdID)
	if err != nil || hold.EventID != in.EventID || !hold.Active(s.clock.Now()) {
		return nil
	}
	return hold
}

// remember records hold under the request's idempotency key. When a
// concurrent request with the same key recorded its hold first, ours is
// released and theirs returned.
func (s *service) remember(ctx context.Context, in RequestHoldInput, hold *ledger.Hold, ttl time.Duration) *ledger.Hold {
	if s.idempotency == nil || in.IdempotencyKey == "" {
		return hold
	}
	key := constants.BuildHoldIdempotencyKey(in.UserID, in.IdempotencyKey)
	stored, err := s.idempotency.SetNX(ctx, key, hold.ID, ttl)
	if err != nil {
		s.log.WarnContext(ctx, "Idempotency record failed", "hold_id", hold.ID, "error", err)
		return hold
	}
	if stored {
		return hold
	}

	winner := s.replay(ctx, in)
	if winner == nil || winner.ID == hold.ID {
		if err := s.idempotency.Set(ctx, key, hold.ID, ttl); err != nil {
			s.log.WarnContext(ctx, "Idempotency record failed", "hold_id", hold.ID, "error", err)
		}
		return hold
	}
	if err := s.Release(ctx, hold.ID); err != nil {
		s.log.WarnContext(ctx, "Failed to release duplicate hold", "hold_id", hold.ID, "error", err)
	}
	return winner
}

// RELEASE

func (s *service) Release(ctx context.Context, holdID string) error {
	if holdID == "" {
		return errs.Invalid("hold id is required")
	}
	hold, err := s.store.GetHold(ctx, holdID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get hold: %w", err)
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		now := s.clock.Now()
		seats, err := s.store.BatchRead(ctx, hold.EventID, hold.SeatKeys)
		if err != nil {
			return fmt.Errorf("read seats: %w", err)
		}

		// Seats already confirmed or reclaimed by another hold stay as they are.
		batch := ledger.Batch{EventID: hold.EventID, At: now, DeleteHoldID: hold.ID}
		var released []string
		for _, seat := range seats {
			if seat.State == ledger.SeatHeld && seat.HoldID == hold.ID {
				batch.Seats = append(batch.Seats, ledger.SeatWrite{
					SeatKey: seat.SeatKey,
					Expect:  ledger.HeldBy(hold.ID),
					Next:    ledger.ToAvailable(),
				})
				released = append(released, seat.SeatKey)
			}
		}

		err = s.store.ConditionalBatchWrite(ctx, batch)
		if err == nil {
			s.log.LogHoldReleased(ctx, hold.ID, hold.EventID, len(released))
			if len(released) > 0 {
				s.publish(ctx, notifications.NewLifecycleEvent(notifications.LifecycleHoldReleased, hold.EventID, released, now).
					WithHold(hold.ID, nil).
					WithUser(hold.UserID))
			}
			return nil
		}
		if !errors.Is(err, ledger.ErrConditionFailed) {
			return fmt.Errorf("release hold: %w", err)
		}
		s.log.LogContention(ctx, "release_hold", hold.EventID, attempt, err)
	}
	return fmt.Errorf("%w: release of %s lost %d consecutive races", errs.ErrConflict, holdID, s.maxAttempts)
}

// READS

func (s *service) GetHold(ctx context.Context, holdID string) (*HoldView, error) {
	hold, err := s.store.GetHold(ctx, holdID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, errs.ErrHoldNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get hold: %w", err)
	}

	now := s.clock.Now()
	view := &HoldView{Hold: hold, Active: hold.Active(now)}
	if view.Active {
		view.ExpiresIn = hold.ExpiresAt.Sub(now)
	}
	return view, nil
}

func (s *service) publish(ctx context.Context, event *notifications.LifecycleEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WithEventID(event.EventID).WithError(err).WarnContext(ctx, "Lifecycle publish failed", "type", event.Type)
	}
}

// unclaimable returns, in request order, the requested seats a new hold
// cannot take at now.
func unclaimable(keys []string, seats []ledger.Seat, now time.Time) []string {
	byKey := make(map[string]*ledger.Seat, len(seats))
	for i := range seats {
		byKey[seats[i].SeatKey] = &seats[i]
	}
	var out []string
	for _, key := range keys {
		if seat, ok := byKey[key]; ok && !seat.Claimable(now) {
			out = append(out, key)
		}
	}
	return out
}

func dedupe(keys []string) []string {
	if len(keys) == 0 {
		return keys
	}
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
