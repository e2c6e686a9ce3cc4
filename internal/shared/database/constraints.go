package database

import (
	"fmt"

	"gorm.io/gorm"
)

type tableConstraint struct {
	table string
	name  string
	check string
}

// Seat rows must agree with their state: a held seat names its hold and
// lease, a booked seat names its booking, an available seat names neither.
var ledgerConstraints = []tableConstraint{
	{
		table: "ledger_seats",
		name:  "chk_ledger_seats_state",
		check: "state IN ('AVAILABLE', 'HELD', 'BOOKED')",
	},
	{
		table: "ledger_seats",
		name:  "chk_ledger_seats_held",
		check: "state <> 'HELD' OR (hold_id <> '' AND hold_expires_at IS NOT NULL AND booking_id = '')",
	},
	{
		table: "ledger_seats",
		name:  "chk_ledger_seats_booked",
		check: "state <> 'BOOKED' OR (booking_id <> '' AND hold_id = '' AND hold_expires_at IS NULL)",
	},
	{
		table: "ledger_seats",
		name:  "chk_ledger_seats_available",
		check: "state <> 'AVAILABLE' OR (hold_id = '' AND booking_id = '')",
	},
	{
		table: "ledger_bookings",
		name:  "chk_ledger_bookings_cancelled",
		check: "status <> 'CANCELLED' OR cancelled_at IS NOT NULL",
	},
}

// MigrateConstraints adds the seat state consistency checks
func MigrateConstraints(db *gorm.DB) error {
	for _, c := range ledgerConstraints {
		var exists int64
		err := db.Raw(`SELECT COUNT(*) FROM pg_constraint WHERE conname = ?`, c.name).Scan(&exists).Error
		if err != nil {
			return fmt.Errorf("failed to look up constraint %s: %w", c.name, err)
		}
		if exists > 0 {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s)", c.table, c.name, c.check)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to add constraint %s: %w", c.name, err)
		}
	}

	// Seats by owning hold
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_ledger_seats_hold_id
		ON ledger_seats (hold_id) WHERE hold_id <> '';
	`).Error
}
