package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"currency_ledger/internal/ledger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return New(db), mock
}

func TestLockAccountUsesForUpdate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `user_funds` WHERE uuid = \\?.* FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"uuid", "name", "balance"}).AddRow("u1", "Alice", 250))
	mock.ExpectCommit()

	err := s.WithTx(context.Background(), func(tx ledger.Tx) error {
		acc, err := tx.LockAccount(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, "Alice", acc.Name)
		assert.Equal(t, int64(250), acc.Balance)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockAccountMissingRowIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `user_funds` WHERE uuid = \\?.* FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"uuid", "name", "balance"}))
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(tx ledger.Tx) error {
		_, err := tx.LockAccount(context.Background(), "ghost")
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddBalanceIsRelativeUpdate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `user_funds` SET `balance`=balance \\+ \\? WHERE uuid = \\?").
		WithArgs(int64(-40), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WithTx(context.Background(), func(tx ledger.Tx) error {
		return tx.AddBalance(context.Background(), "u1", -40)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddBalanceNoRowsRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `user_funds` SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(tx ledger.Tx) error {
		return tx.AddBalance(context.Background(), "ghost", 10)
	})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnDriverError(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("deadlock found")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `user_funds` SET").WillReturnError(boom)
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(tx ledger.Tx) error {
		return tx.AddBalance(context.Background(), "u1", 10)
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockDailyClaimAbsent(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `daily_rewards` WHERE uuid = \\? LIMIT .* FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"uuid", "last_claim_at"}))
	mock.ExpectExec("INSERT INTO `daily_rewards`.*ON DUPLICATE KEY UPDATE `last_claim_at`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WithTx(context.Background(), func(tx ledger.Tx) error {
		claim, err := tx.LockDailyClaim(context.Background(), "u1")
		require.NoError(t, err)
		assert.Nil(t, claim)
		return tx.UpsertDailyClaim(context.Background(), "u1", time.Now().UTC())
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAccountRefreshesName(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO `user_funds`.*ON DUPLICATE KEY UPDATE `name`").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("SELECT \\* FROM `user_funds` WHERE uuid = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"uuid", "name", "balance"}).AddRow("u1", "Renamed", 70))

	acc, err := s.UpsertAccount(context.Background(), "u1", "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", acc.Name)
	assert.Equal(t, int64(70), acc.Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAccountNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT \\* FROM `user_funds` WHERE uuid = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"uuid", "name", "balance"}))

	_, err := s.GetAccount(context.Background(), "ghost")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestTopAccountsOrdersByBalance(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT `name`,`balance` FROM `user_funds` ORDER BY balance DESC LIMIT").
		WillReturnRows(sqlmock.NewRows([]string{"name", "balance"}).
			AddRow("Alice", 900).
			AddRow("Bob", 300))

	entries, err := s.TopAccounts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Alice", entries[0].Name)
	assert.Equal(t, int64(300), entries[1].Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMobLimit(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO `mob_limit_reached`.*ON DUPLICATE KEY UPDATE `date_reached`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `mob_limit_reached` WHERE uuid = \\? AND date_reached = \\?").
		WithArgs("u1", "2026-10-15").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	require.NoError(t, s.MarkMobLimit(context.Background(), "u1", "2026-10-15"))
	reached, err := s.MobLimitReached(context.Background(), "u1", "2026-10-15")
	require.NoError(t, err)
	assert.True(t, reached)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkMobLimitRejectsBadDay(t *testing.T) {
	s, _ := newMockStore(t)
	assert.Error(t, s.MarkMobLimit(context.Background(), "u1", "15/10/2026"))
}
