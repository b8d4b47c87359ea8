package ledger

import (
	"context"
	"time"

	"currency_ledger/internal/domain"
)

// Store is the relational state behind the engine.
type Store interface {
	// WithTx runs fn inside one transaction. A non-nil error from fn rolls back.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	UpsertAccount(ctx context.Context, uuid, name string) (*domain.Account, error)
	GetAccount(ctx context.Context, uuid string) (*domain.Account, error)
	TopAccounts(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)

	// MarkMobLimit and MobLimitReached take a calendar day formatted as 2006-01-02.
	MarkMobLimit(ctx context.Context, uuid, day string) error
	MobLimitReached(ctx context.Context, uuid, day string) (bool, error)
}

// Tx is the set of row operations available inside WithTx.
type Tx interface {
	// LockAccount reads the row with an exclusive lock held until the transaction ends.
	// Returns ErrNotFound when the row is absent.
	LockAccount(ctx context.Context, uuid string) (*domain.Account, error)
	// AddBalance applies delta to the row. Returns ErrNotFound when no row was updated.
	AddBalance(ctx context.Context, uuid string, delta int64) error
	// LockDailyClaim returns nil without error when the player never claimed.
	LockDailyClaim(ctx context.Context, uuid string) (*domain.DailyRewardClaim, error)
	UpsertDailyClaim(ctx context.Context, uuid string, at time.Time) error
}

// TransactionLogger receives one record per committed mutation.
type TransactionLogger interface {
	Append(ctx context.Context, rec *domain.TransactionRecord) error
}
