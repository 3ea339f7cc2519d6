package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OperationKind names a value-transferring operation.
type OperationKind string

const (
	OperationCashIn         OperationKind = "cash_in"
	OperationUtilityPayment OperationKind = "utility_payment"
	OperationCashOut        OperationKind = "cash_out"
	OperationPurchase       OperationKind = "purchase"
)

// ParseOperationKind validates a raw operation kind.
func ParseOperationKind(s string) (OperationKind, bool) {
	switch k := OperationKind(s); k {
	case OperationCashIn, OperationUtilityPayment, OperationCashOut, OperationPurchase:
		return k, true
	}
	return "", false
}

// HistoryEntry is one immutable leg of an operation against one account.
// Amount is always positive; the direction lives in Description.
type HistoryEntry struct {
	ID          uuid.UUID       `json:"id"`
	AccountID   uuid.UUID       `json:"account_id"`
	OperationID uuid.UUID       `json:"operation_id"`
	Operation   OperationKind   `json:"operation"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}
