package database

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/autohaul/autohaul-api/internal/audit"
	"github.com/autohaul/autohaul-api/internal/types"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&types.User{},
		&types.Lead{},
		&types.Order{},
		&audit.Entry{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
