package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStore runs each batch as one transaction of predicate-guarded
// statements. A statement whose predicate does not hold affects zero rows;
// any such miss rolls the whole transaction back.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ConditionalBatchWrite(ctx context.Context, batch Batch) error {
	if err := batch.validate(); err != nil {
		return err
	}

	// Sorted keys keep concurrent batches from acquiring row locks in
	// opposite orders.
	writes := append([]SeatWrite(nil), batch.Seats...)
	sort.Slice(writes, func(i, j int) bool { return writes[i].SeatKey < writes[j].SeatKey })

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var failed []string

		for _, w := range writes {
			q := tx.Model(&Seat{}).Where("event_id = ? AND seat_key = ?", batch.EventID, w.SeatKey)
			res := wherePredicate(q, w.Expect).Updates(transitionColumns(w.Next, batch))
			if res.Error != nil {
				return fmt.Errorf("update seat %s: %w", w.SeatKey, res.Error)
			}
			if res.RowsAffected == 0 {
				failed = append(failed, w.SeatKey)
			}
		}

		if batch.PutHold != nil {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(batch.PutHold)
			if res.Error != nil {
				return fmt.Errorf("insert hold: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				failed = append(failed, HoldRef(batch.PutHold.ID))
			}
		}
		if batch.DeleteHoldID != "" {
			if err := tx.Where("id = ?", batch.DeleteHoldID).Delete(&Hold{}).Error; err != nil {
				return fmt.Errorf("delete hold: %w", err)
			}
		}

		if batch.PutBooking != nil {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(batch.PutBooking)
			if res.Error != nil {
				return fmt.Errorf("insert booking: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				failed = append(failed, BookingRef(batch.PutBooking.ID))
			}
		}
		if c := batch.CancelBooking; c != nil {
			res := tx.Model(&Booking{}).
				Where("id = ? AND status = ?", c.BookingID, BookingConfirmed).
				Updates(map[string]interface{}{
					"status":       BookingCancelled,
					"cancelled_at": c.At,
				})
			if res.Error != nil {
				return fmt.Errorf("cancel booking: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				failed = append(failed, BookingRef(c.BookingID))
			}
		}

		if !batch.Counters.IsZero() {
			res := tx.Model(&EventCounters{}).
				Where("event_id = ?", batch.EventID).
				Updates(counterColumns(batch.Counters, batch))
			if res.Error != nil {
				return fmt.Errorf("update counters: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				failed = append(failed, CountersRef(batch.EventID))
			}
		}

		if len(failed) > 0 {
			return &ConditionFailedError{Keys: failed}
		}
		return nil
	})
	return classifyPostgresError(err)
}

func (s *PostgresStore) BatchRead(ctx context.Context, eventID string, seatKeys []string) ([]Seat, error) {
	if len(seatKeys) == 0 {
		return []Seat{}, nil
	}
	var seats []Seat
	err := s.db.WithContext(ctx).
		Where("event_id = ? AND seat_key IN ?", eventID, seatKeys).
		Find(&seats).Error
	if err != nil {
		return nil, fmt.Errorf("read seats: %w", err)
	}
	return seats, nil
}

func (s *PostgresStore) ListSeats(ctx context.Context, eventID string) ([]Seat, error) {
	var seats []Seat
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("seat_row, seat_number, seat_key").
		Find(&seats).Error
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	if len(seats) == 0 {
		return nil, ErrNotFound
	}
	return seats, nil
}

func (s *PostgresStore) GetHold(ctx context.Context, holdID string) (*Hold, error) {
	var hold Hold
	if err := s.db.WithContext(ctx).First(&hold, "id = ?", holdID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get hold: %w", err)
	}
	return &hold, nil
}

func (s *PostgresStore) GetBooking(ctx context.Context, bookingID string) (*Booking, error) {
	var booking Booking
	if err := s.db.WithContext(ctx).First(&booking, "id = ?", bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &booking, nil
}

func (s *PostgresStore) GetCounters(ctx context.Context, eventID string) (*EventCounters, error) {
	var counters EventCounters
	if err := s.db.WithContext(ctx).First(&counters, "event_id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get counters: %w", err)
	}
	return &counters, nil
}

func (s *PostgresStore) CreateEvent(ctx context.Context, eventID string, seats []Seat) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&EventCounters{EventID: eventID})
		if res.Error != nil {
			return fmt.Errorf("insert counters: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyExists
		}
		if len(seats) == 0 {
			return nil
		}
		rows := make([]Seat, len(seats))
		for i := range seats {
			rows[i] = seats[i]
			rows[i].EventID = eventID
		}
		if err := tx.CreateInBatches(rows, 500).Error; err != nil {
			return fmt.Errorf("insert seats: %w", err)
		}
		return nil
	})
	return classifyPostgresError(err)
}

func (s *PostgresStore) PurgeHolds(ctx context.Context, expiredBefore time.Time, limit int) (int, error) {
	db := s.db.WithContext(ctx)
	lapsed := db.Model(&Hold{}).Select("id").Where("expires_at < ?", expiredBefore).Order("expires_at").Limit(limit)
	res := db.Where("id IN (?)", lapsed).Delete(&Hold{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge holds: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func wherePredicate(q *gorm.DB, p Predicate) *gorm.DB {
	switch p.Condition {
	case CondClaimable:
		return q.Where("(state = ? OR (state = ? AND (hold_expires_at IS NULL OR hold_expires_at < ?)))",
			SeatAvailable, SeatHeld, p.At)
	case CondHeldBy:
		return q.Where("state = ? AND hold_id = ?", SeatHeld, p.HoldID)
	case CondLiveHold:
		return q.Where("state = ? AND hold_id = ? AND hold_expires_at >= ?", SeatHeld, p.HoldID, p.At)
	case CondBookedBy:
		return q.Where("state = ? AND booking_id = ?", SeatBooked, p.BookingID)
	}
	return q.Where("1 = 0")
}

func transitionColumns(t Transition, batch Batch) map[string]interface{} {
	var expiresAt interface{}
	if t.HoldExpiresAt != nil {
		expiresAt = *t.HoldExpiresAt
	}
	return map[string]interface{}{
		"state":           t.State,
		"hold_id":         t.HoldID,
		"booking_id":      t.BookingID,
		"hold_expires_at": expiresAt,
		"updated_at":      batch.At,
	}
}

func counterColumns(d CounterDelta, batch Batch) map[string]interface{} {
	cols := map[string]interface{}{"updated_at": batch.At}
	add := func(col string, delta int64) {
		if delta != 0 {
			cols[col] = gorm.Expr(col+" + ?", delta)
		}
	}
	add("hold_attempts", d.HoldAttempts)
	add("hold_successes", d.HoldSuccesses)
	add("bookings_confirmed", d.BookingsConfirmed)
	add("bookings_cancelled", d.BookingsCancelled)
	add("seats_sold", d.SeatsSold)
	add("seats_cancelled", d.SeatsCancelled)
	return cols
}

// classifyPostgresError folds serialization failures and deadlocks into
// ErrConditionFailed so callers retry them like any lost race.
func classifyPostgresError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", ErrConditionFailed, pgErr.Message)
		case "23505":
			return fmt.Errorf("%w: %s", ErrAlreadyExists, pgErr.Message)
		}
	}
	return err
}
