package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"seatbook/internal/shared/constants"

	"github.com/redis/go-redis/v9"
)

// Lua script for the conditional batch write. Redis runs a script without
// interleaving other commands, so checking every predicate first and only
// then writing gives all-or-nothing semantics.
const luaConditionalBatchWrite = `
-- KEYS[1] = counters key, KEYS[2] = hold key, KEYS[3] = booking key, KEYS[4..] = seat keys
-- ARGV[1] = now (unix ms), ARGV[2] = seat write count
-- 9 args per seat write: seat_key, condition, hold_id, booking_id, at (unix ms),
--   next_state, next_hold_id, next_booking_id, next_hold_expires_at (unix ms or "")
-- then: put_hold, hold_json, hold_ttl (ms), delete_hold,
--   put_booking, booking_json, booking_status, cancel_booking, cancelled_at (unix ms),
--   6 counter deltas

local now = ARGV[1]
local n = tonumber(ARGV[2])
local failed = {}

for i = 1, n do
    local o = 2 + (i - 1) * 9
    local seat = redis.call("HMGET", KEYS[3 + i], "state", "hold_id", "booking_id", "hold_expires_at")
    local state = seat[1]
    local ok = false
    if state then
        local cond = ARGV[o + 2]
        local at = tonumber(ARGV[o + 5])
        local expires = tonumber(seat[4]) or 0
        if cond == "CLAIMABLE" then
            ok = state == "AVAILABLE" or (state == "HELD" and expires < at)
        elseif cond == "HELD_BY" then
            ok = state == "HELD" and seat[2] == ARGV[o + 3]
        elseif cond == "LIVE_HOLD" then
            ok = state == "HELD" and seat[2] == ARGV[o + 3] and expires >= at
        elseif cond == "BOOKED_BY" then
            ok = state == "BOOKED" and seat[3] == ARGV[o + 4]
        end
    end
    if not ok then
        failed[#failed + 1] = ARGV[o + 1]
    end
end

local r = 2 + n * 9
local put_hold = ARGV[r + 1] == "1"
local hold_ttl = tonumber(ARGV[r + 3]) or 0
local delete_hold = ARGV[r + 4] == "1"
local put_booking = ARGV[r + 5] == "1"
local cancel_booking = ARGV[r + 8] == "1"

local fields = {"hold_attempts", "hold_successes", "bookings_confirmed", "bookings_cancelled", "seats_sold", "seats_cancelled"}
local touch_counters = false
for j = 1, 6 do
    if tonumber(ARGV[r + 9 + j]) ~= 0 then
        touch_counters = true
    end
end

if put_hold and redis.call("EXISTS", KEYS[2]) == 1 then
    failed[#failed + 1] = "@hold"
end
if put_booking and redis.call("EXISTS", KEYS[3]) == 1 then
    failed[#failed + 1] = "@booking"
end
if cancel_booking and redis.call("HGET", KEYS[3], "status") ~= "CONFIRMED" then
    failed[#failed + 1] = "@booking"
end
if touch_counters and redis.call("EXISTS", KEYS[1]) == 0 then
    failed[#failed + 1] = "@counters"
end

if #failed > 0 then
    local res = {0}
    for k = 1, #failed do
        res[#res + 1] = failed[k]
    end
    return res
end

for i = 1, n do
    local o = 2 + (i - 1) * 9
    redis.call("HSET", KEYS[3 + i],
        "state", ARGV[o + 6],
        "hold_id", ARGV[o + 7],
        "booking_id", ARGV[o + 8],
        "hold_expires_at", ARGV[o + 9],
        "updated_at", now)
end

if put_hold then
    if hold_ttl > 0 then
        redis.call("SET", KEYS[2], ARGV[r + 2], "PX", hold_ttl)
    else
        redis.call("SET", KEYS[2], ARGV[r + 2])
    end
end
if delete_hold then
    redis.call("DEL", KEYS[2])
end
if put_booking then
    redis.call("HSET", KEYS[3], "data", ARGV[r + 6], "status", ARGV[r + 7], "cancelled_at", "")
end
if cancel_booking then
    redis.call("HSET", KEYS[3], "status", "CANCELLED", "cancelled_at", ARGV[r + 9])
end
if touch_counters then
    for j = 1, 6 do
        local d = tonumber(ARGV[r + 9 + j])
        if d ~= 0 then
            redis.call("HINCRBY", KEYS[1], fields[j], d)
        end
    end
    redis.call("HSET", KEYS[1], "updated_at", now)
end

return {1}
`

var conditionalBatchScript = redis.NewScript(luaConditionalBatchWrite)

// RedisStore keeps the ledger in Redis hashes and applies batches through
// a single Lua script.
type RedisStore struct {
	redis     *redis.Client
	retention time.Duration
}

type RedisOption func(*RedisStore)

// WithHoldRetention sets how long a hold record survives past its expiry.
func WithHoldRetention(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.retention = d
	}
}

func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		redis:     client,
		retention: constants.TTL_HOLD_RECORD_RETENTION,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PreloadScripts loads the batch script so the first write skips the
// NOSCRIPT round trip.
func (s *RedisStore) PreloadScripts(ctx context.Context) error {
	if err := conditionalBatchScript.Load(ctx, s.redis).Err(); err != nil {
		return fmt.Errorf("failed to load conditional batch script: %w", err)
	}
	return nil
}

func (s *RedisStore) ConditionalBatchWrite(ctx context.Context, batch Batch) error {
	if err := batch.validate(); err != nil {
		return err
	}

	holdID := batch.holdID()
	bookingID := batch.bookingID()

	keys := make([]string, 0, 3+len(batch.Seats))
	keys = append(keys,
		constants.BuildLedgerCountersKey(batch.EventID),
		constants.BuildLedgerHoldKey(holdID),
		constants.BuildLedgerBookingKey(bookingID),
	)

	args := make([]interface{}, 0, 2+9*len(batch.Seats)+15)
	args = append(args, unixMillis(batch.At), len(batch.Seats))
	for _, w := range batch.Seats {
		keys = append(keys, constants.BuildLedgerSeatKey(batch.EventID, w.SeatKey))
		args = append(args,
			w.SeatKey,
			string(w.Expect.Condition),
			w.Expect.HoldID,
			w.Expect.BookingID,
			unixMillis(w.Expect.At),
			string(w.Next.State),
			w.Next.HoldID,
			w.Next.BookingID,
			optionalMillis(w.Next.HoldExpiresAt),
		)
	}

	var holdJSON []byte
	var holdTTL int64
	if batch.PutHold != nil {
		data, err := json.Marshal(batch.PutHold)
		if err != nil {
			return fmt.Errorf("marshal hold: %w", err)
		}
		holdJSON = data
		// Relative to the batch time, not Redis's clock.
		holdTTL = (batch.PutHold.ExpiresAt.Sub(batch.At) + s.retention).Milliseconds()
	}

	var bookingJSON []byte
	var bookingStatus string
	if batch.PutBooking != nil {
		data, err := json.Marshal(batch.PutBooking)
		if err != nil {
			return fmt.Errorf("marshal booking: %w", err)
		}
		bookingJSON = data
		bookingStatus = string(batch.PutBooking.Status)
	}

	var cancelledAt string
	if batch.CancelBooking != nil {
		cancelledAt = unixMillis(batch.CancelBooking.At)
	}

	d := batch.Counters
	args = append(args,
		flag(batch.PutHold != nil), string(holdJSON), holdTTL, flag(batch.DeleteHoldID != ""),
		flag(batch.PutBooking != nil), string(bookingJSON), bookingStatus,
		flag(batch.CancelBooking != nil), cancelledAt,
		d.HoldAttempts, d.HoldSuccesses, d.BookingsConfirmed, d.BookingsCancelled, d.SeatsSold, d.SeatsCancelled,
	)

	result, err := conditionalBatchScript.Run(ctx, s.redis, keys, args...).Result()
	if err != nil {
		return fmt.Errorf("failed to execute conditional batch write: %w", err)
	}

	resultArray, ok := result.([]interface{})
	if !ok || len(resultArray) == 0 {
		return fmt.Errorf("unexpected result format from Lua script")
	}
	success, ok := resultArray[0].(int64)
	if !ok {
		return fmt.Errorf("invalid success flag in Lua script result")
	}
	if success == 1 {
		return nil
	}

	failed := make([]string, 0, len(resultArray)-1)
	for _, v := range resultArray[1:] {
		key, _ := v.(string)
		switch key {
		case "@hold":
			key = HoldRef(holdID)
		case "@booking":
			key = BookingRef(bookingID)
		case "@counters":
			key = CountersRef(batch.EventID)
		}
		failed = append(failed, key)
	}
	return &ConditionFailedError{Keys: failed}
}

func (s *RedisStore) BatchRead(ctx context.Context, eventID string, seatKeys []string) ([]Seat, error) {
	if len(seatKeys) == 0 {
		return []Seat{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(seatKeys))
	for i, key := range seatKeys {
		cmds[i] = pipe.HGetAll(ctx, constants.BuildLedgerSeatKey(eventID, key))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("read seats: %w", err)
	}

	seats := make([]Seat, 0, len(seatKeys))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		seat, err := seatFromHash(fields)
		if err != nil {
			return nil, err
		}
		seats = append(seats, seat)
	}
	return seats, nil
}

func (s *RedisStore) ListSeats(ctx context.Context, eventID string) ([]Seat, error) {
	keys, err := s.redis.SMembers(ctx, constants.BuildLedgerEventSeatsKey(eventID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list seat keys: %w", err)
	}
	if len(keys) == 0 {
		return nil, ErrNotFound
	}
	seats, err := s.BatchRead(ctx, eventID, keys)
	if err != nil {
		return nil, err
	}
	SortSeats(seats)
	return seats, nil
}

func (s *RedisStore) GetHold(ctx context.Context, holdID string) (*Hold, error) {
	data, err := s.redis.Get(ctx, constants.BuildLedgerHoldKey(holdID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get hold: %w", err)
	}
	var hold Hold
	if err := json.Unmarshal(data, &hold); err != nil {
		return nil, fmt.Errorf("decode hold: %w", err)
	}
	return &hold, nil
}

func (s *RedisStore) GetBooking(ctx context.Context, bookingID string) (*Booking, error) {
	fields, err := s.redis.HGetAll(ctx, constants.BuildLedgerBookingKey(bookingID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	var booking Booking
	if err := json.Unmarshal([]byte(fields["data"]), &booking); err != nil {
		return nil, fmt.Errorf("decode booking: %w", err)
	}
	booking.Status = BookingStatus(fields["status"])
	booking.CancelledAt = nil
	if at, err := parseOptionalMillis(fields["cancelled_at"]); err != nil {
		return nil, fmt.Errorf("decode booking cancelled_at: %w", err)
	} else if at != nil {
		booking.CancelledAt = at
	}
	return &booking, nil
}

func (s *RedisStore) GetCounters(ctx context.Context, eventID string) (*EventCounters, error) {
	fields, err := s.redis.HGetAll(ctx, constants.BuildLedgerCountersKey(eventID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get counters: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	c := &EventCounters{EventID: eventID}
	targets := map[string]*int64{
		"hold_attempts":      &c.HoldAttempts,
		"hold_successes":     &c.HoldSuccesses,
		"bookings_confirmed": &c.BookingsConfirmed,
		"bookings_cancelled": &c.BookingsCancelled,
		"seats_sold":         &c.SeatsSold,
		"seats_cancelled":    &c.SeatsCancelled,
	}
	for field, dst := range targets {
		raw := fields[field]
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode counter %s: %w", field, err)
		}
		*dst = v
	}
	if at, err := parseOptionalMillis(fields["updated_at"]); err == nil && at != nil {
		c.UpdatedAt = *at
	}
	return c, nil
}

// CreateEvent watches the counters key so two concurrent creations of the
// same event cannot both succeed.
func (s *RedisStore) CreateEvent(ctx context.Context, eventID string, seats []Seat) error {
	countersKey := constants.BuildLedgerCountersKey(eventID)
	indexKey := constants.BuildLedgerEventSeatsKey(eventID)
	now := unixMillis(time.Now().UTC())

	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, countersKey).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return ErrAlreadyExists
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			members := make([]interface{}, 0, len(seats))
			for i := range seats {
				seat := seats[i]
				seat.EventID = eventID
				pipe.HSet(ctx, constants.BuildLedgerSeatKey(eventID, seat.SeatKey), seatToHash(&seat, now))
				members = append(members, seat.SeatKey)
			}
			if len(members) > 0 {
				pipe.SAdd(ctx, indexKey, members...)
			}
			pipe.HSet(ctx, countersKey, map[string]interface{}{
				"hold_attempts":      0,
				"hold_successes":     0,
				"bookings_confirmed": 0,
				"bookings_cancelled": 0,
				"seats_sold":         0,
				"seats_cancelled":    0,
				"updated_at":         now,
			})
			return nil
		})
		return err
	}, countersKey)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrAlreadyExists
	}
	return err
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

func seatToHash(seat *Seat, now string) map[string]interface{} {
	return map[string]interface{}{
		"event_id":        seat.EventID,
		"seat_key":        seat.SeatKey,
		"row":             seat.Row,
		"number":          seat.Number,
		"seat_type":       seat.SeatType,
		"price":           strconv.FormatFloat(seat.Price, 'f', 2, 64),
		"state":           string(seat.State),
		"hold_id":         seat.HoldID,
		"booking_id":      seat.BookingID,
		"hold_expires_at": optionalMillis(seat.HoldExpiresAt),
		"updated_at":      now,
	}
}

func seatFromHash(fields map[string]string) (Seat, error) {
	seat := Seat{
		EventID:   fields["event_id"],
		SeatKey:   fields["seat_key"],
		Row:       fields["row"],
		SeatType:  fields["seat_type"],
		State:     SeatState(fields["state"]),
		HoldID:    fields["hold_id"],
		BookingID: fields["booking_id"],
	}
	var err error
	if seat.Number, err = strconv.Atoi(fields["number"]); err != nil {
		return Seat{}, fmt.Errorf("decode seat %s number: %w", seat.SeatKey, err)
	}
	if seat.Price, err = strconv.ParseFloat(fields["price"], 64); err != nil {
		return Seat{}, fmt.Errorf("decode seat %s price: %w", seat.SeatKey, err)
	}
	if seat.HoldExpiresAt, err = parseOptionalMillis(fields["hold_expires_at"]); err != nil {
		return Seat{}, fmt.Errorf("decode seat %s hold expiry: %w", seat.SeatKey, err)
	}
	if at, err := parseOptionalMillis(fields["updated_at"]); err == nil && at != nil {
		seat.UpdatedAt = *at
	}
	return seat, nil
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func unixMillis(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func optionalMillis(t *time.Time) string {
	if t == nil {
		return ""
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseOptionalMillis(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	t := time.UnixMilli(ms).UTC()
	return &t, nil
}
