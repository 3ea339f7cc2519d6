// Package memory is an in-process storage driver. It implements the same
// repository ports as the postgres package and is selected with
// storage.driver=memory for local runs and scenario tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var (
	errTxDone    = errors.New("transaction already closed")
	errForeignTx = errors.New("transaction was not started by the memory store")
)

// Store holds all tables. Units of work run one at a time: Begin takes the
// store-wide write slot and Commit or Rollback gives it back.
type Store struct {
	slot chan struct{}

	mu       sync.RWMutex
	users    map[uuid.UUID]domain.User
	roles    map[uuid.UUID]map[domain.Role]bool
	accounts map[uuid.UUID]domain.Account
	history  []domain.HistoryEntry
	products map[uuid.UUID]domain.Product
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		slot:     make(chan struct{}, 1),
		users:    make(map[uuid.UUID]domain.User),
		roles:    make(map[uuid.UUID]map[domain.Role]bool),
		accounts: make(map[uuid.UUID]domain.Account),
		products: make(map[uuid.UUID]domain.Product),
	}
}

// AddUser registers an identity with its roles. Identities are managed
// outside the ledger; this is the memory driver's stand-in for that system.
func (s *Store) AddUser(u domain.User, roles ...domain.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	if s.roles[u.ID] == nil {
		s.roles[u.ID] = make(map[domain.Role]bool)
	}
	for _, r := range roles {
		s.roles[u.ID][r] = true
	}
}

// Tx is a unit of work against the store. Balance writes and history
// appends are staged and only become visible on Commit.
// Only Commit and Rollback of the embedded pgx.Tx are implemented.
type Tx struct {
	pgx.Tx

	store    *Store
	balances map[uuid.UUID]decimal.Decimal
	entries  []domain.HistoryEntry
	done     bool
}

// Commit applies the staged writes and releases the write slot.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true
	defer func() { <-t.store.slot }()

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for id, bal := range t.balances {
		a, ok := t.store.accounts[id]
		if !ok {
			return fmt.Errorf("account not found: %s", id)
		}
		a.Balance = bal
		a.UpdatedAt = nowUTC()
		t.store.accounts[id] = a
	}
	t.store.history = append(t.store.history, t.entries...)
	return nil
}

// Rollback discards staged writes. Calling it after Commit is a no-op.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	<-t.store.slot
	return nil
}

func asTx(tx pgx.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok {
		return nil, errForeignTx
	}
	if t.done {
		return nil, errTxDone
	}
	return t, nil
}

// Transactor implements ports.DBTransactor.
type Transactor struct {
	store *Store
}

func NewTransactor(s *Store) *Transactor {
	return &Transactor{store: s}
}

// Begin waits for the write slot or for ctx to end.
func (tr *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	select {
	case tr.store.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("begin: %w", ctx.Err())
	}
	return &Tx{
		store:    tr.store,
		balances: make(map[uuid.UUID]decimal.Decimal),
	}, nil
}

// HealthCheck implements ports.HealthChecker; the store is always reachable.
type HealthCheck struct{}

func (HealthCheck) Ping(ctx context.Context) error { return nil }
func (HealthCheck) Name() string                   { return "memory" }
