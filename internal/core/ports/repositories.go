package ports

import (
	"context"
	"errors"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=repositories.go -destination=mocks/repositories_mock.go -package=mocks

var (
	// ErrConflict marks a transient failure (lock timeout, deadlock,
	// serialization failure) after which the whole unit may be retried.
	ErrConflict = errors.New("transient conflict")
	// ErrDuplicate marks a unique-constraint violation.
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotFound marks a write that matched no row.
	ErrNotFound = errors.New("record not found")
)

// AccountRepository defines persistence operations for balance accounts.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByOwner(ctx context.Context, owner uuid.UUID, kind domain.Kind) (*domain.Account, error)
	// LockByIDs locks the given rows in ascending id order and returns them in that order.
	// Missing ids are simply absent from the result.
	LockByIDs(ctx context.Context, tx pgx.Tx, ids ...uuid.UUID) ([]*domain.Account, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance decimal.Decimal) error
}

// HistoryRepository defines persistence for the append-only transaction history.
type HistoryRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.HistoryEntry) error
	ListByAccount(ctx context.Context, params HistoryListParams) ([]domain.HistoryEntry, int64, error)
}

// HistoryListParams holds pagination for listing one account's history.
type HistoryListParams struct {
	AccountID uuid.UUID
	Page      int
	PageSize  int
}

// ProductRepository defines read/write access to the merchant catalog.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, page, pageSize int) ([]domain.Product, int64, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Product, error)
	// Update rewrites name, description, price and updated_at.
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// IdentityRepository reads the identities and roles managed outside the ledger.
type IdentityRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	HasRole(ctx context.Context, id uuid.UUID, role domain.Role) (bool, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
