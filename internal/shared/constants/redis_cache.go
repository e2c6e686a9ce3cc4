package constants

import "time"

// Redis key layout
// Pattern: seatbook:{module}:{record}:{identifier}

const (
	CACHE_PREFIX = "seatbook"
)

// ================== LEDGER MODULE ==================

// Ledger Keys (Redis backend of the seat ledger)
const (
	LEDGER_KEY_SEAT        = CACHE_PREFIX + ":ledger:seat:"        // + event-id:seat-key (hash)
	LEDGER_KEY_EVENT_SEATS = CACHE_PREFIX + ":ledger:event_seats:" // + event-id (set of seat keys)
	LEDGER_KEY_HOLD        = CACHE_PREFIX + ":ledger:hold:"        // + hold-id (json string)
	LEDGER_KEY_BOOKING     = CACHE_PREFIX + ":ledger:booking:"     // + booking-id (hash)
	LEDGER_KEY_COUNTERS    = CACHE_PREFIX + ":ledger:counters:"    // + event-id (hash)
)

// Hold records outlive their lease so a late confirm can still be told
// the hold expired rather than that it never existed.
const (
	TTL_HOLD_RECORD_RETENTION = 1 * time.Hour
)

// ================== HOLDS MODULE ==================

const (
	CACHE_KEY_HOLD_IDEMPOTENCY = CACHE_PREFIX + ":holds:idempotency:" // + idempotency-key
)

// ================== ANALYTICS MODULE ==================

const (
	CACHE_KEY_ANALYTICS_OCCUPANCY = CACHE_PREFIX + ":analytics:occupancy:" // + event-id
)

const (
	TTL_ANALYTICS_OCCUPANCY = 5 * time.Second
)

// ================== RATE LIMIT ==================

const (
	RATE_LIMIT_PREFIX = CACHE_PREFIX + ":ratelimit:" // + client-ip:limit-type
)

// ================== HELPER FUNCTIONS ==================

func BuildLedgerSeatKey(eventID, seatKey string) string {
	return LEDGER_KEY_SEAT + eventID + ":" + seatKey
}

func BuildLedgerEventSeatsKey(eventID string) string {
	return LEDGER_KEY_EVENT_SEATS + eventID
}

func BuildLedgerHoldKey(holdID string) string {
	return LEDGER_KEY_HOLD + holdID
}

func BuildLedgerBookingKey(bookingID string) string {
	return LEDGER_KEY_BOOKING + bookingID
}

func BuildLedgerCountersKey(eventID string) string {
	return LEDGER_KEY_COUNTERS + eventID
}

func BuildHoldIdempotencyKey(userID, key string) string {
	return CACHE_KEY_HOLD_IDEMPOTENCY + userID + ":" + key
}

func BuildAnalyticsOccupancyKey(eventID string) string {
	return CACHE_KEY_ANALYTICS_OCCUPANCY + eventID
}

func BuildRateLimitKey(clientIP, limitType string) string {
	return RATE_LIMIT_PREFIX + clientIP + ":" + limitType
}
