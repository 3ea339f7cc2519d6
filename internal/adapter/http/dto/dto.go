package dto

import (
	"time"

	"wallet-ledger/internal/core/domain"
)

// OperationRequest is the request body for POST /api/v1/operations.
// Which optional fields are required depends on Kind.
type OperationRequest struct {
	Kind   string `json:"kind" binding:"required,oneof=cash_in utility_payment cash_out purchase"`
	Amount string `json:"amount" binding:"omitempty,money"`

	// cash_in: consumer email; cash_out: agent email
	CounterpartyEmail string `json:"counterparty_email" binding:"omitempty,email,max=254"`

	// utility_payment
	PayerKind   string `json:"payer_kind" binding:"omitempty,oneof=agent consumer"`
	UtilityType string `json:"utility_type" binding:"omitempty,oneof=electricity water mobile_topup"`
	MeterNumber string `json:"meter_number" binding:"omitempty,max=64,safe_id"`
	PhoneNumber string `json:"phone_number" binding:"omitempty,max=32,phone"`

	// purchase
	ProductID string `json:"product_id" binding:"omitempty,uuid"`
}

// OpenAccountRequest is the request body for POST /api/v1/accounts.
type OpenAccountRequest struct {
	Kind string `json:"kind" binding:"required,oneof=consumer agent merchant"`
}

// ProductRequest is the request body for POST /api/v1/products and
// PUT /api/v1/products/:id. Text is stored as sent, trimmed.
type ProductRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=200"`
	Description string `json:"description" binding:"max=2000"`
	Price       string `json:"price" binding:"required,money"`
}

// PageQuery binds ?page=&page_size=.
type PageQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1,max=100000"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// AccountResponse is the response body for an account.
type AccountResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// HistoryEntryResponse is one history row.
type HistoryEntryResponse struct {
	ID          string `json:"id"`
	OperationID string `json:"operation_id"`
	Operation   string `json:"operation"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

// HistoryListResponse wraps a page of history.
type HistoryListResponse struct {
	Items      []HistoryEntryResponse `json:"items"`
	Total      int64                  `json:"total"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"page_size"`
	TotalPages int                    `json:"total_pages"`
}

// ProductResponse is the response body for a product.
type ProductResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Price          string `json:"price"`
	OwnerAccountID string `json:"owner_account_id"`
	CreatedAt      string `json:"created_at"`
}

// ProductListResponse wraps a page of products.
type ProductListResponse struct {
	Items      []ProductResponse `json:"items"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// TotalPages is ceil(total/pageSize).
func TotalPages(total int64, pageSize int) int {
	if pageSize < 1 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

func NewAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID.String(),
		Kind:      string(a.Kind),
		Balance:   a.Balance.StringFixed(domain.MoneyScale),
		CreatedAt: formatTime(a.CreatedAt),
		UpdatedAt: formatTime(a.UpdatedAt),
	}
}

func NewHistoryListResponse(entries []domain.HistoryEntry, total int64, page, pageSize int) HistoryListResponse {
	items := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, HistoryEntryResponse{
			ID:          e.ID.String(),
			OperationID: e.OperationID.String(),
			Operation:   string(e.Operation),
			Amount:      e.Amount.StringFixed(domain.MoneyScale),
			Description: e.Description,
			CreatedAt:   formatTime(e.CreatedAt),
		})
	}
	return HistoryListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: TotalPages(total, pageSize),
	}
}

func NewProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:             p.ID.String(),
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price.StringFixed(domain.MoneyScale),
		OwnerAccountID: p.OwnerID.String(),
		CreatedAt:      formatTime(p.CreatedAt),
	}
}

func NewProductListResponse(products []domain.Product, total int64, page, pageSize int) ProductListResponse {
	items := make([]ProductResponse, 0, len(products))
	for i := range products {
		items = append(items, NewProductResponse(&products[i]))
	}
	return ProductListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: TotalPages(total, pageSize),
	}
}
