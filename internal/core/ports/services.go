package ports

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=services.go -destination=mocks/services_mock.go -package=mocks

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
}

// IdempotencyStore guards operations submitted with a client idempotency key.
type IdempotencyStore interface {
	// Claim marks key as in flight. Returns false if it is already claimed or completed.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Get returns the stored result JSON, or nil if none has been stored.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Release drops the claim so a failed operation can be resubmitted.
	Release(ctx context.Context, key string) error
}

// --- Ledger core ---

// AccountResolver maps identities to their balance accounts.
type AccountResolver interface {
	Resolve(ctx context.Context, identity uuid.UUID, kind domain.Kind) (*domain.Account, error)
	ResolveCounterparty(ctx context.Context, email string, kind domain.Kind) (*domain.Account, *domain.User, error)
}

// TransactionRecorder appends history entries inside an open unit.
type TransactionRecorder interface {
	Record(ctx context.Context, tx pgx.Tx, leg LedgerLeg) (*domain.HistoryEntry, error)
}

// LedgerLeg is one side of a transfer as seen by the recorder.
type LedgerLeg struct {
	OperationID uuid.UUID
	Operation   domain.OperationKind
	AccountID   uuid.UUID
	Amount      decimal.Decimal
	Description string
}

// TransferEngine executes atomic balance mutations.
type TransferEngine interface {
	Transfer(ctx context.Context, spec TransferSpec) (*TransferResult, error)
}

// TransferSpec describes one transfer. A nil Destination debits the source
// toward a party outside the ledger.
type TransferSpec struct {
	OperationID            uuid.UUID
	Operation              domain.OperationKind
	Source                 uuid.UUID
	Destination            *uuid.UUID
	Amount                 decimal.Decimal
	SourceDescription      string
	DestinationDescription string
}

// TransferResult holds the post-transfer balances.
type TransferResult struct {
	OperationID        uuid.UUID
	SourceBalance      decimal.Decimal
	DestinationBalance *decimal.Decimal
	Entries            []domain.HistoryEntry
}

// OperationDispatcher maps operation requests onto transfers.
type OperationDispatcher interface {
	Execute(ctx context.Context, req OperationRequest) (*domain.OperationResult, error)
}

// OperationRequest is a shape-checked request from an authenticated identity.
type OperationRequest struct {
	Kind  domain.OperationKind
	Actor uuid.UUID
	// ActorKind selects the paying account for utility payments (agent or consumer).
	// Other operations have a fixed source kind.
	ActorKind         domain.Kind
	Amount            decimal.Decimal
	CounterpartyEmail string
	Utility           domain.UtilityBill
	ProductID         uuid.UUID
	IdempotencyKey    string // optional
}

// --- Supporting services ---

// AccountService covers account opening and read-side queries.
type AccountService interface {
	OpenAccount(ctx context.Context, identity uuid.UUID, kind domain.Kind) (*domain.Account, error)
	GetBalance(ctx context.Context, identity uuid.UUID, kind domain.Kind) (*domain.Account, error)
	ListHistory(ctx context.Context, identity uuid.UUID, kind domain.Kind, page, pageSize int) ([]domain.HistoryEntry, int64, error)
}

// CatalogService manages merchant products.
type CatalogService interface {
	CreateProduct(ctx context.Context, req CreateProductRequest) (*domain.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListProducts(ctx context.Context, page, pageSize int) ([]domain.Product, int64, error)
	ListOwnedProducts(ctx context.Context, identity uuid.UUID) ([]domain.Product, error)
	// UpdateProduct and DeleteProduct are limited to the owning merchant.
	UpdateProduct(ctx context.Context, req UpdateProductRequest) (*domain.Product, error)
	DeleteProduct(ctx context.Context, merchant, id uuid.UUID) error
}

// CreateProductRequest holds validated input for adding a product.
type CreateProductRequest struct {
	Merchant    uuid.UUID
	Name        string
	Description string
	Price       decimal.Decimal
}

// UpdateProductRequest replaces a product's editable fields.
type UpdateProductRequest struct {
	Merchant    uuid.UUID
	ProductID   uuid.UUID
	Name        string
	Description string
	Price       decimal.Decimal
}
