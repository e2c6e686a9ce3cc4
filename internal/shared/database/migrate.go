package database

import (
	"seatbook/internal/ledger"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&ledger.Seat{},
		&ledger.Hold{},
		&ledger.Booking{},
		&ledger.EventCounters{},
	); err != nil {
		return err
	}
	return MigrateConstraints(db)
}
