package repository

import "gorm.io/gorm"

// AutoMigrate creates or updates the ledger tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&bookingModel{},
		&transitionModel{},
		&captureModel{},
		&refundModel{},
		&idempotencyModel{},
	)
}
