package service

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AccountResolverImpl implements ports.AccountResolver.
type AccountResolverImpl struct {
	accounts   ports.AccountRepository
	identities ports.IdentityRepository
	log        zerolog.Logger
}

// NewAccountResolver creates a new AccountResolverImpl.
func NewAccountResolver(accounts ports.AccountRepository, identities ports.IdentityRepository, log zerolog.Logger) *AccountResolverImpl {
	return &AccountResolverImpl{
		accounts:   accounts,
		identities: identities,
		log:        log,
	}
}

// Resolve returns identity's account of the given kind.
func (r *AccountResolverImpl) Resolve(ctx context.Context, identity uuid.UUID, kind domain.Kind) (*domain.Account, error) {
	account, err := r.accounts.GetByOwner(ctx, identity, kind)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve %s account: %w", kind, err))
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound(kind.Title())
	}
	return account, nil
}

// ResolveCounterparty finds the account of kind held by the user registered
// under email. An unknown email and a user without such an account are
// reported the same way to the caller but logged apart.
func (r *AccountResolverImpl) ResolveCounterparty(ctx context.Context, email string, kind domain.Kind) (*domain.Account, *domain.User, error) {
	user, err := r.identities.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("lookup counterparty: %w", err))
	}
	if user == nil {
		r.log.Info().Str("email", email).Str("kind", string(kind)).Msg("counterparty email not registered")
		return nil, nil, apperror.ErrCounterpartyNotFound(kind.Title())
	}

	account, err := r.accounts.GetByOwner(ctx, user.ID, kind)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("resolve counterparty account: %w", err))
	}
	if account == nil {
		r.log.Info().
			Str("email", email).
			Str("user_id", user.ID.String()).
			Str("kind", string(kind)).
			Msg("counterparty has no account of this kind")
		return nil, nil, apperror.ErrCounterpartyNotFound(kind.Title())
	}
	return account, user, nil
}
