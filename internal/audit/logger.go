// Package audit persists transaction records. A record whose insert fails is parked
// in a Redis list and written later by the Replayer.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"currency_ledger/internal/domain"
	"currency_ledger/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	PendingKey = "ledger:audit:pending" // records waiting for replay
	DeadKey    = "ledger:audit:dead"    // records the replayer gave up on
)

// pendingRecord is the queued form of a record.
type pendingRecord struct {
	Attempts int                      `json:"attempts"`
	Record   domain.TransactionRecord `json:"record"`
}

// Logger writes transaction records to the currency_transactions table.
type Logger struct {
	db  *gorm.DB
	rdb redis.Cmdable
}

func NewLogger(db *gorm.DB, rdb redis.Cmdable) *Logger {
	return &Logger{db: db, rdb: rdb}
}

// Append inserts rec, falling back to the replay queue. It only fails when the record
// could be neither inserted nor queued.
func (l *Logger) Append(ctx context.Context, rec *domain.TransactionRecord) error {
	err := insert(ctx, l.db, rec)
	if err == nil {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"record_id": rec.ID,
		"uuid":      rec.UUID,
		"action":    rec.Action,
		"error":     err.Error(),
	}).Error("Transaction record insert failed, queueing for replay")

	if qerr := enqueue(ctx, l.rdb, rec); qerr != nil {
		return fmt.Errorf("insert record: %v; queue record: %w", err, qerr)
	}
	metrics.ObserveAuditQueued()
	return nil
}

// insert is idempotent on the record id, so a replayed record is written at most once.
func insert(ctx context.Context, db *gorm.DB, rec *domain.TransactionRecord) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec).Error
}

func enqueue(ctx context.Context, rdb redis.Cmdable, rec *domain.TransactionRecord) error {
	return push(ctx, rdb, PendingKey, pendingRecord{Record: *rec})
}

func push(ctx context.Context, rdb redis.Cmdable, key string, p pendingRecord) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return rdb.RPush(ctx, key, b).Err()
}
