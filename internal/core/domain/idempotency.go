package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OperationResult is the outcome of a committed operation. It is also the
// value cached under an idempotency key and replayed on a repeat request.
type OperationResult struct {
	Success               bool             `json:"success"`
	OperationID           uuid.UUID        `json:"operation_id"`
	Operation             OperationKind    `json:"operation"`
	Amount                decimal.Decimal  `json:"amount"`
	NewSourceBalance      decimal.Decimal  `json:"new_source_balance"`
	NewDestinationBalance *decimal.Decimal `json:"new_destination_balance,omitempty"`
	Message               string           `json:"message"`
}

// BuildIdempotencyKey scopes a client key to the acting identity.
func BuildIdempotencyKey(actor uuid.UUID, clientKey string) string {
	return actor.String() + ":" + clientKey
}
