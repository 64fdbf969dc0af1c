package models

import "gorm.io/gorm"

// Migrate keeps the schema in sync with the model structs.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Contact{},
		&ContentRecord{},
		&ReferralLead{},
	)
}
