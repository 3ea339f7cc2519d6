package domain

import (
	"github.com/google/uuid"
)

// Role is a permission granted to an identity.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleMerchant Role = "merchant"
	RoleConsumer Role = "consumer"
	RoleAgent    Role = "agent"
)

// User is the identity record the ledger reads to resolve counterparties.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}
