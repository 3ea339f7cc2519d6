package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind is the role a balance account is held under.
type Kind string

const (
	KindConsumer Kind = "consumer"
	KindAgent    Kind = "agent"
	KindMerchant Kind = "merchant"
)

// ParseKind validates a raw kind string.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindConsumer, KindAgent, KindMerchant:
		return k, true
	}
	return "", false
}

// Role returns the identity role that entitles its holder to an account of this kind.
func (k Kind) Role() Role {
	return Role(k)
}

// Title is the capitalised kind name used in messages.
func (k Kind) Title() string {
	switch k {
	case KindConsumer:
		return "Consumer"
	case KindAgent:
		return "Agent"
	case KindMerchant:
		return "Merchant"
	}
	return string(k)
}

// MoneyScale is the number of fractional digits kept for every amount.
const MoneyScale = 2

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive with at most two decimal places")
)

// ValidAmount reports whether d is strictly positive and has no more than two fractional digits.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Round(MoneyScale))
}

// Account is a role-tagged balance owned by one identity. There is at most
// one account per (owner, kind).
type Account struct {
	ID        uuid.UUID       `json:"id"`
	Owner     uuid.UUID       `json:"owner"`
	Kind      Kind            `json:"kind"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewAccount returns a zero-balance account for owner.
func NewAccount(owner uuid.UUID, kind Kind) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:        uuid.New(),
		Owner:     owner,
		Kind:      kind,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanDebit reports whether the balance covers amount.
func (a *Account) CanDebit(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}

// Debit subtracts amount, refusing to go negative.
func (a *Account) Debit(amount decimal.Decimal) error {
	if !ValidAmount(amount) {
		return ErrInvalidAmount
	}
	if !a.CanDebit(amount) {
		return ErrInsufficientBalance
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

// Credit adds amount.
func (a *Account) Credit(amount decimal.Decimal) error {
	if !ValidAmount(amount) {
		return ErrInvalidAmount
	}
	a.Balance = a.Balance.Add(amount)
	return nil
}
