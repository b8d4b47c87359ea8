package db

import (
	"currency_ledger/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus"

	"gorm.io/gorm" // GORM ORM library
)

// Models lists every table owned by the ledger
var Models = []interface{}{
	&domain.Account{},
	&domain.TransactionRecord{},
	&domain.DailyRewardClaim{},
	&domain.MobLimitFlag{},
}

// Migrate performs automatic migration for the database schema
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing constraints, columns and indexes
	if err := db.AutoMigrate(Models...); err != nil {
		return err
	}
	logrus.Info("Migration completed.") // Log successful migration
	return nil
}
