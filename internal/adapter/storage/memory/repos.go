package memory

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

func nowUTC() time.Time { return time.Now().UTC() }

// --- Accounts ---

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	store *Store
}

func NewAccountRepo(s *Store) *AccountRepo {
	return &AccountRepo{store: s}
}

func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.Owner == a.Owner && existing.Kind == a.Kind {
			return fmt.Errorf("insert account: %w", ports.ErrDuplicate)
		}
	}
	s.accounts[a.ID] = *a
	return nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *AccountRepo) GetByOwner(ctx context.Context, owner uuid.UUID, kind domain.Kind) (*domain.Account, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.Owner == owner && a.Kind == kind {
			return &a, nil
		}
	}
	return nil, nil
}

// LockByIDs returns the accounts in ascending id order. Holding the write
// slot is the lock; staged balances of this unit are reflected.
func (r *AccountRepo) LockByIDs(ctx context.Context, tx pgx.Tx, ids ...uuid.UUID) ([]*domain.Account, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	sorted := slices.Clone(ids)
	slices.SortFunc(sorted, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	sorted = slices.Compact(sorted)

	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Account
	for _, id := range sorted {
		a, ok := s.accounts[id]
		if !ok {
			continue
		}
		if bal, staged := t.balances[id]; staged {
			a.Balance = bal
		}
		out = append(out, &a)
	}
	return out, nil
}

func (r *AccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance decimal.Decimal) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if balance.IsNegative() {
		return fmt.Errorf("update account balance: negative balance for %s", id)
	}
	r.store.mu.RLock()
	_, ok := r.store.accounts[id]
	r.store.mu.RUnlock()
	if !ok {
		return fmt.Errorf("account not found: %s", id)
	}
	t.balances[id] = balance
	return nil
}

// --- History ---

// HistoryRepo implements ports.HistoryRepository.
type HistoryRepo struct {
	store *Store
}

func NewHistoryRepo(s *Store) *HistoryRepo {
	return &HistoryRepo{store: s}
}

func (r *HistoryRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.HistoryEntry) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	t.entries = append(t.entries, *e)
	return nil
}

// ListByAccount pages newest first; entries committed later sort first on equal timestamps.
func (r *HistoryRepo) ListByAccount(ctx context.Context, params ports.HistoryListParams) ([]domain.HistoryEntry, int64, error) {
	s := r.store
	s.mu.RLock()
	var matched []domain.HistoryEntry
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].AccountID == params.AccountID {
			matched = append(matched, s.history[i])
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(matched, func(a, b domain.HistoryEntry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	total := int64(len(matched))
	return paginate(matched, params.Page, params.PageSize), total, nil
}

// --- Products ---

// ProductRepo implements ports.ProductRepository.
type ProductRepo struct {
	store *Store
}

func NewProductRepo(s *Store) *ProductRepo {
	return &ProductRepo{store: s}
}

func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.products[p.ID] = *p
	return nil
}

func (r *ProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	p, ok := r.store.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *ProductRepo) List(ctx context.Context, page, pageSize int) ([]domain.Product, int64, error) {
	all := r.filter(func(domain.Product) bool { return true })
	return paginate(all, page, pageSize), int64(len(all)), nil
}

func (r *ProductRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Product, error) {
	return r.filter(func(p domain.Product) bool { return p.OwnerID == ownerID }), nil
}

func (r *ProductRepo) Update(ctx context.Context, p *domain.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cur, ok := r.store.products[p.ID]
	if !ok {
		return ports.ErrNotFound
	}
	cur.Name, cur.Description, cur.Price, cur.UpdatedAt = p.Name, p.Description, p.Price, p.UpdatedAt
	r.store.products[p.ID] = cur
	return nil
}

func (r *ProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.products[id]; !ok {
		return ports.ErrNotFound
	}
	delete(r.store.products, id)
	return nil
}

func (r *ProductRepo) filter(keep func(domain.Product) bool) []domain.Product {
	r.store.mu.RLock()
	var out []domain.Product
	for _, p := range r.store.products {
		if keep(p) {
			out = append(out, p)
		}
	}
	r.store.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Product) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	return out
}

// --- Identities ---

// IdentityRepo implements ports.IdentityRepository over users added with Store.AddUser.
type IdentityRepo struct {
	store *Store
}

func NewIdentityRepo(s *Store) *IdentityRepo {
	return &IdentityRepo{store: s}
}

func (r *IdentityRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	u, ok := r.store.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *IdentityRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, u := range r.store.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *IdentityRepo) HasRole(ctx context.Context, id uuid.UUID, role domain.Role) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.roles[id][role], nil
}

func paginate[T any](items []T, page, pageSize int) []T {
	if page < 1 || pageSize < 1 {
		return nil
	}
	// compare before multiplying so a huge page cannot overflow start
	if page-1 > len(items)/pageSize {
		return nil
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return nil
	}
	end := min(start+pageSize, len(items))
	return items[start:end]
}
