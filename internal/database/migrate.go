package database

import (
	"gorm.io/gorm"

	"go-verification-gateway/internal/domain"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.StoreRecord{},
	)
}
