// Package store is the MySQL implementation of the ledger storage contracts.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"currency_ledger/internal/domain"
	"currency_ledger/internal/ledger"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store reads and writes ledger rows through gorm.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx runs fn in a database transaction; gorm commits on nil and rolls back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

// UpsertAccount inserts the player with a zero balance or refreshes the name.
func (s *Store) UpsertAccount(ctx context.Context, uuid, name string) (*domain.Account, error) {
	acc := domain.Account{UUID: uuid, Name: name}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uuid"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).
		Create(&acc).Error
	if err != nil {
		return nil, err
	}
	return s.GetAccount(ctx, uuid)
}

func (s *Store) GetAccount(ctx context.Context, uuid string) (*domain.Account, error) {
	var acc domain.Account
	err := s.db.WithContext(ctx).Where("uuid = ?", uuid).Take(&acc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return &acc, nil
}

func (s *Store) TopAccounts(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	var entries []domain.LeaderboardEntry
	err := s.db.WithContext(ctx).
		Model(&domain.Account{}).
		Select("name", "balance").
		Order("balance DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (s *Store) MarkMobLimit(ctx context.Context, uuid, day string) error {
	date, err := time.Parse(time.DateOnly, day)
	if err != nil {
		return fmt.Errorf("parse day %q: %w", day, err)
	}
	flag := domain.MobLimitFlag{UUID: uuid, DateReached: date}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uuid"}},
			DoUpdates: clause.AssignmentColumns([]string{"date_reached"}),
		}).
		Create(&flag).Error
}

func (s *Store) MobLimitReached(ctx context.Context, uuid, day string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&domain.MobLimitFlag{}).
		Where("uuid = ? AND date_reached = ?", uuid, day).
		Count(&n).Error
	return n > 0, err
}

// gormTx implements ledger.Tx on an open transaction.
type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) LockAccount(ctx context.Context, uuid string) (*domain.Account, error) {
	var acc domain.Account
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("uuid = ?", uuid).
		Take(&acc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return &acc, nil
}

func (t *gormTx) AddBalance(ctx context.Context, uuid string, delta int64) error {
	result := t.db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("uuid = ?", uuid).
		UpdateColumn("balance", gorm.Expr("balance + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (t *gormTx) LockDailyClaim(ctx context.Context, uuid string) (*domain.DailyRewardClaim, error) {
	var claims []domain.DailyRewardClaim
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("uuid = ?", uuid).
		Limit(1).
		Find(&claims).Error
	if err != nil {
		return nil, err
	}
	if len(claims) == 0 {
		return nil, nil
	}
	return &claims[0], nil
}

func (t *gormTx) UpsertDailyClaim(ctx context.Context, uuid string, at time.Time) error {
	claim := domain.DailyRewardClaim{UUID: uuid, LastClaimAt: at}
	return t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uuid"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_claim_at"}),
		}).
		Create(&claim).Error
}
