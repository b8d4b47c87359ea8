package db

import (
	"time"

	"github.com/sirupsen/logrus"

	"gorm.io/driver/mysql" // MySQL driver for GORM
	"gorm.io/gorm"         // GORM ORM library
	"gorm.io/gorm/logger"  // GORM query logger
)

// PoolConfig sizes the connection pool
type PoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Open connects to MySQL, routes slow query warnings through logrus and sizes the pool
func Open(dsn string, pool PoolConfig) (*gorm.DB, error) {
	gormLogger := logger.New(logrus.StandardLogger(), logger.Config{
		SlowThreshold:             200 * time.Millisecond, // Queries slower than this are logged
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true, // Missing rows are a normal outcome
	})
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true, // Mutations open their own transactions
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB() // Underlying *sql.DB for pool settings
	if err != nil {
		return nil, err
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}
