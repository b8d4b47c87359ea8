// Package ledger implements the balance mutations of the currency service. Every
// mutation locks the affected rows, re-checks its invariant against the locked
// values, applies the change and commits, then appends one audit record.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"currency_ledger/internal/domain"
	"currency_ledger/internal/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TopLimit caps the leaderboard.
const TopLimit = 10

// Column widths of user_funds.
const (
	maxUUIDLength = 36
	maxNameLength = 64
)

// Observer receives mutation outcomes ("ok", "rejected" or "error") and audit append failures.
type Observer interface {
	ObserveMutation(action, outcome string)
	ObserveAuditFailure()
}

// Options configures an Engine.
type Options struct {
	DailyReward         int64
	DefaultDenomination int64
	Reset               ResetSchedule
	Now                 func() time.Time // defaults to time.Now
	Observer            Observer         // defaults to the Prometheus collectors
}

// Engine executes balance mutations against a Store.
type Engine struct {
	store               Store
	log                 TransactionLogger
	dailyReward         int64
	defaultDenomination int64
	reset               ResetSchedule
	now                 func() time.Time
	observer            Observer
}

// NewEngine wires the engine. store and log must not be nil.
func NewEngine(store Store, log TransactionLogger, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Reset.Location == nil {
		opts.Reset.Location = time.UTC
	}
	if opts.Observer == nil {
		opts.Observer = metrics.LedgerObserver{}
	}
	return &Engine{
		store:               store,
		log:                 log,
		dailyReward:         opts.DailyReward,
		defaultDenomination: opts.DefaultDenomination,
		reset:               opts.Reset,
		now:                 opts.Now,
		observer:            opts.Observer,
	}
}

// WithdrawResult describes a completed withdrawal.
type WithdrawResult struct {
	Withdrawn    int64
	NewBalance   int64
	Denomination int64
	Count        int64
}

// DailyResult describes a completed daily claim.
type DailyResult struct {
	Message    string
	NewBalance int64
}

// Login creates the player's account on first sight and refreshes the display name after.
func (e *Engine) Login(ctx context.Context, playerUUID, name string) (*domain.Account, error) {
	playerUUID = strings.TrimSpace(playerUUID)
	name = strings.TrimSpace(name)
	if playerUUID == "" || name == "" {
		return nil, invalid("uuid and name are required")
	}
	if len(playerUUID) > maxUUIDLength {
		return nil, invalid("uuid longer than %d characters", maxUUIDLength)
	}
	if len(name) > maxNameLength {
		return nil, invalid("name longer than %d characters", maxNameLength)
	}
	acc, err := e.store.UpsertAccount(ctx, playerUUID, name)
	if err != nil {
		return nil, fmt.Errorf("upsert account: %w", err)
	}
	return acc, nil
}

// Balance returns the current balance of the player.
func (e *Engine) Balance(ctx context.Context, playerUUID string) (int64, error) {
	if playerUUID == "" {
		return 0, invalid("uuid is required")
	}
	acc, err := e.store.GetAccount(ctx, playerUUID)
	if err != nil {
		return 0, wrap("get balance", err)
	}
	return acc.Balance, nil
}

// Top returns at most TopLimit accounts ordered by balance, richest first.
func (e *Engine) Top(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	entries, err := e.store.TopAccounts(ctx, TopLimit)
	if err != nil {
		return nil, fmt.Errorf("top accounts: %w", err)
	}
	if len(entries) > TopLimit {
		entries = entries[:TopLimit]
	}
	return entries, nil
}

// Pay moves amount from the sender to the recipient and returns the sender's new balance.
func (e *Engine) Pay(ctx context.Context, from, to string, amount int64) (int64, error) {
	to = strings.TrimSpace(to)
	switch {
	case from == "" || to == "":
		return 0, invalid("to_uuid is required")
	case amount <= 0:
		return 0, invalid("amount must be positive")
	case from == to:
		return 0, invalid("cannot pay yourself")
	}

	// Lock order is by uuid so opposite transfers between two players cannot deadlock.
	order := []string{from, to}
	if to < from {
		order = []string{to, from}
	}

	var newBalance int64
	ctx = context.WithoutCancel(ctx)
	err := e.store.WithTx(ctx, func(tx Tx) error {
		locked := make(map[string]*domain.Account, 2)
		for _, id := range order {
			acc, err := tx.LockAccount(ctx, id)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			locked[id] = acc
		}
		sender, recipient := locked[from], locked[to]
		if sender == nil {
			return ErrNotFound
		}
		if sender.Balance < amount {
			return ErrInsufficientFunds
		}
		if recipient == nil {
			return ErrRecipientNotFound
		}
		if err := tx.AddBalance(ctx, from, -amount); err != nil {
			return err
		}
		if err := tx.AddBalance(ctx, to, amount); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrRecipientNotFound
			}
			return err
		}
		newBalance = sender.Balance - amount
		return nil
	})
	e.observer.ObserveMutation(string(domain.ActionPay), outcome(err))
	if err != nil {
		return 0, wrap("pay", err)
	}

	e.appendRecord(ctx, &domain.TransactionRecord{
		UUID:         from,
		Action:       domain.ActionPay,
		Amount:       amount,
		FromUUID:     &from,
		ToUUID:       &to,
		BalanceAfter: newBalance,
	})
	return newBalance, nil
}

// Deposit credits amount to the player and returns the new balance.
func (e *Engine) Deposit(ctx context.Context, playerUUID string, amount int64) (int64, error) {
	if playerUUID == "" {
		return 0, invalid("uuid is required")
	}
	if amount <= 0 {
		return 0, invalid("amount must be positive")
	}

	var newBalance int64
	ctx = context.WithoutCancel(ctx)
	err := e.store.WithTx(ctx, func(tx Tx) error {
		acc, err := tx.LockAccount(ctx, playerUUID)
		if err != nil {
			return err
		}
		if acc.Balance > math.MaxInt64-amount {
			return invalid("amount would overflow the balance")
		}
		if err := tx.AddBalance(ctx, playerUUID, amount); err != nil {
			return err
		}
		newBalance = acc.Balance + amount
		return nil
	})
	e.observer.ObserveMutation(string(domain.ActionDeposit), outcome(err))
	if err != nil {
		return 0, wrap("deposit", err)
	}

	e.appendRecord(ctx, &domain.TransactionRecord{
		UUID:         playerUUID,
		Action:       domain.ActionDeposit,
		Amount:       amount,
		BalanceAfter: newBalance,
	})
	return newBalance, nil
}

// Withdraw debits count banknotes of the given denomination. A zero denomination
// selects the configured default.
func (e *Engine) Withdraw(ctx context.Context, playerUUID string, count, denomination int64) (*WithdrawResult, error) {
	if playerUUID == "" {
		return nil, invalid("uuid is required")
	}
	if count <= 0 {
		return nil, invalid("count must be positive")
	}
	if denomination == 0 {
		denomination = e.defaultDenomination
	}
	if denomination <= 0 {
		return nil, invalid("denomination must be positive")
	}
	if count > math.MaxInt64/denomination {
		return nil, invalid("count times denomination overflows")
	}
	amount := count * denomination

	var newBalance int64
	ctx = context.WithoutCancel(ctx)
	err := e.store.WithTx(ctx, func(tx Tx) error {
		acc, err := tx.LockAccount(ctx, playerUUID)
		if err != nil {
			return err
		}
		if acc.Balance < amount {
			return ErrInsufficientFunds
		}
		if err := tx.AddBalance(ctx, playerUUID, -amount); err != nil {
			return err
		}
		newBalance = acc.Balance - amount
		return nil
	})
	e.observer.ObserveMutation(string(domain.ActionWithdraw), outcome(err))
	if err != nil {
		return nil, wrap("withdraw", err)
	}

	e.appendRecord(ctx, &domain.TransactionRecord{
		UUID:         playerUUID,
		Action:       domain.ActionWithdraw,
		Amount:       amount,
		Denomination: &denomination,
		Count:        &count,
		BalanceAfter: newBalance,
	})
	return &WithdrawResult{
		Withdrawn:    amount,
		NewBalance:   newBalance,
		Denomination: denomination,
		Count:        count,
	}, nil
}

// ClaimDaily grants the daily reward once per reset window.
func (e *Engine) ClaimDaily(ctx context.Context, playerUUID string) (*DailyResult, error) {
	if playerUUID == "" {
		return nil, invalid("uuid is required")
	}

	now := e.now()
	boundary := e.reset.CurrentBoundary(now)

	var newBalance int64
	ctx = context.WithoutCancel(ctx)
	err := e.store.WithTx(ctx, func(tx Tx) error {
		acc, err := tx.LockAccount(ctx, playerUUID)
		if err != nil {
			return err
		}
		claim, err := tx.LockDailyClaim(ctx, playerUUID)
		if err != nil {
			return err
		}
		if claim != nil && !claim.LastClaimAt.Before(boundary) {
			return &RateLimitedError{RetryAfter: e.reset.NextBoundary(now).Sub(now)}
		}
		if err := tx.AddBalance(ctx, playerUUID, e.dailyReward); err != nil {
			return err
		}
		if err := tx.UpsertDailyClaim(ctx, playerUUID, now.UTC()); err != nil {
			return err
		}
		newBalance = acc.Balance + e.dailyReward
		return nil
	})
	e.observer.ObserveMutation(string(domain.ActionDaily), outcome(err))
	if err != nil {
		return nil, wrap("claim daily", err)
	}

	e.appendRecord(ctx, &domain.TransactionRecord{
		UUID:         playerUUID,
		Action:       domain.ActionDaily,
		Amount:       e.dailyReward,
		BalanceAfter: newBalance,
	})
	return &DailyResult{
		Message:    fmt.Sprintf("You received your daily reward of %d coins!", e.dailyReward),
		NewBalance: newBalance,
	}, nil
}

// MarkMobLimit flags that the player reached today's mob drop cap. Repeated calls on
// the same day leave the same state.
func (e *Engine) MarkMobLimit(ctx context.Context, playerUUID string) error {
	if playerUUID == "" {
		return invalid("uuid is required")
	}
	if err := e.store.MarkMobLimit(ctx, playerUUID, e.reset.Day(e.now())); err != nil {
		return fmt.Errorf("mark mob limit: %w", err)
	}
	return nil
}

// MobLimitReached reports whether the player was flagged today.
func (e *Engine) MobLimitReached(ctx context.Context, playerUUID string) (bool, error) {
	if playerUUID == "" {
		return false, invalid("uuid is required")
	}
	reached, err := e.store.MobLimitReached(ctx, playerUUID, e.reset.Day(e.now()))
	if err != nil {
		return false, fmt.Errorf("check mob limit: %w", err)
	}
	return reached, nil
}

// appendRecord writes the audit row for an already committed mutation. The balance
// change stays authoritative, so a failure here is only logged.
func (e *Engine) appendRecord(ctx context.Context, rec *domain.TransactionRecord) {
	rec.ID = uuid.NewString()
	rec.CreatedAt = e.now().UTC()
	fields := logrus.Fields{
		"record_id":     rec.ID,
		"uuid":          rec.UUID,
		"action":        rec.Action,
		"amount":        rec.Amount,
		"balance_after": rec.BalanceAfter,
	}
	if err := e.log.Append(ctx, rec); err != nil {
		fields["error"] = err.Error()
		logrus.WithFields(fields).Error("Transaction log append failed")
		e.observer.ObserveAuditFailure()
		return
	}
	logrus.WithFields(fields).Info("Ledger transaction")
}

// IsBusiness reports whether err is a rule violation rather than an internal failure.
func IsBusiness(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrRecipientNotFound) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrRateLimited)
}

func wrap(op string, err error) error {
	if IsBusiness(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsBusiness(err):
		return "rejected"
	default:
		return "error"
	}
}
