// Package ledgertest provides in-memory implementations of the ledger storage
// contracts. Row locks are real mutexes held until the transaction ends and a
// failed transaction undoes its writes, so engine behaviour under concurrency can
// be tested without a database.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"currency_ledger/internal/domain"
	"currency_ledger/internal/ledger"
)

// Store is an in-memory ledger.Store.
type Store struct {
	mu       sync.Mutex
	rows     map[string]*sync.Mutex
	accounts map[string]domain.Account
	claims   map[string]time.Time
	mobs     map[string]string

	// BeforeAddBalance, when set, runs before every balance update and can fail it.
	BeforeAddBalance func(uuid string, delta int64) error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		rows:     make(map[string]*sync.Mutex),
		accounts: make(map[string]domain.Account),
		claims:   make(map[string]time.Time),
		mobs:     make(map[string]string),
	}
}

// Seed inserts or replaces an account.
func (s *Store) Seed(uuid, name string, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[uuid] = domain.Account{UUID: uuid, Name: name, Balance: balance}
}

// Account returns a copy of the stored row.
func (s *Store) Account(uuid string) (domain.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[uuid]
	return acc, ok
}

// LastClaim returns the stored daily claim time.
func (s *Store) LastClaim(uuid string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.claims[uuid]
	return at, ok
}

func (s *Store) row(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[key]
	if !ok {
		m = &sync.Mutex{}
		s.rows[key] = m
	}
	return m
}

func (s *Store) WithTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	tx := &memTx{store: s, held: make(map[string]*sync.Mutex)}
	defer tx.release()
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *Store) UpsertAccount(ctx context.Context, uuid, name string) (*domain.Account, error) {
	m := s.row("acct:" + uuid)
	m.Lock()
	defer m.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[uuid]
	if !ok {
		acc = domain.Account{UUID: uuid}
	}
	acc.Name = name
	s.accounts[uuid] = acc
	return &acc, nil
}

func (s *Store) GetAccount(ctx context.Context, uuid string) (*domain.Account, error) {
	acc, ok := s.Account(uuid)
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &acc, nil
}

func (s *Store) TopAccounts(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	entries := make([]domain.LeaderboardEntry, 0, len(s.accounts))
	for _, acc := range s.accounts {
		entries = append(entries, domain.LeaderboardEntry{Name: acc.Name, Balance: acc.Balance})
	}
	s.mu.Unlock()

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Balance != entries[j].Balance {
			return entries[i].Balance > entries[j].Balance
		}
		return entries[i].Name < entries[j].Name
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) MarkMobLimit(ctx context.Context, uuid, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mobs[uuid] = day
	return nil
}

func (s *Store) MobLimitReached(ctx context.Context, uuid, day string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mobs[uuid] == day, nil
}

type memTx struct {
	store *Store
	held  map[string]*sync.Mutex
	undo  []func()
}

func (tx *memTx) lock(key string) {
	if _, ok := tx.held[key]; ok {
		return
	}
	m := tx.store.row(key)
	m.Lock()
	tx.held[key] = m
}

func (tx *memTx) release() {
	for key, m := range tx.held {
		m.Unlock()
		delete(tx.held, key)
	}
}

func (tx *memTx) rollback() {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *memTx) LockAccount(ctx context.Context, uuid string) (*domain.Account, error) {
	tx.lock("acct:" + uuid)
	acc, ok := tx.store.Account(uuid)
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &acc, nil
}

func (tx *memTx) AddBalance(ctx context.Context, uuid string, delta int64) error {
	tx.lock("acct:" + uuid)
	if hook := tx.store.BeforeAddBalance; hook != nil {
		if err := hook(uuid, delta); err != nil {
			return err
		}
	}

	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[uuid]
	if !ok {
		return ledger.ErrNotFound
	}
	if acc.Balance+delta < 0 {
		return fmt.Errorf("ledgertest: balance of %s would become %d", uuid, acc.Balance+delta)
	}
	prev := acc.Balance
	acc.Balance += delta
	s.accounts[uuid] = acc
	tx.undo = append(tx.undo, func() {
		a := s.accounts[uuid]
		a.Balance = prev
		s.accounts[uuid] = a
	})
	return nil
}

func (tx *memTx) LockDailyClaim(ctx context.Context, uuid string) (*domain.DailyRewardClaim, error) {
	tx.lock("daily:" + uuid)
	at, ok := tx.store.LastClaim(uuid)
	if !ok {
		return nil, nil
	}
	return &domain.DailyRewardClaim{UUID: uuid, LastClaimAt: at}, nil
}

func (tx *memTx) UpsertDailyClaim(ctx context.Context, uuid string, at time.Time) error {
	tx.lock("daily:" + uuid)
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.claims[uuid]
	s.claims[uuid] = at
	tx.undo = append(tx.undo, func() {
		if had {
			s.claims[uuid] = prev
		} else {
			delete(s.claims, uuid)
		}
	})
	return nil
}

// ErrAppend is the default failure of a failing Recorder.
var ErrAppend = errors.New("ledgertest: append failed")

// Recorder is an in-memory ledger.TransactionLogger.
type Recorder struct {
	mu      sync.Mutex
	records []domain.TransactionRecord

	// Fail makes every Append return this error without storing the record.
	Fail error
}

func (r *Recorder) Append(ctx context.Context, rec *domain.TransactionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	r.records = append(r.records, *rec)
	return nil
}

// Records returns a copy of everything appended so far.
func (r *Recorder) Records() []domain.TransactionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.TransactionRecord(nil), r.records...)
}

// Observer is an in-memory ledger.Observer.
type Observer struct {
	mu            sync.Mutex
	mutations     []string
	auditFailures int
}

func (o *Observer) ObserveMutation(action, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mutations = append(o.mutations, action+":"+outcome)
}

func (o *Observer) ObserveAuditFailure() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.auditFailures++
}

// Mutations returns every observed mutation as "action:outcome".
func (o *Observer) Mutations() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.mutations...)
}

func (o *Observer) AuditFailures() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.auditFailures
}
