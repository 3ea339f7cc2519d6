package service

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// maxPage keeps (page-1)*pageSize far from int overflow.
	maxPage = 100_000
)

// pageBounds fills in paging defaults and rejects pages past maxPage.
func pageBounds(page, pageSize int) (int, int, error) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		return 0, 0, apperror.Validation(fmt.Sprintf("page must be at most %d", maxPage))
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize, nil
}

// accountService implements ports.AccountService.
type accountService struct {
	accounts   ports.AccountRepository
	history    ports.HistoryRepository
	identities ports.IdentityRepository
	resolver   ports.AccountResolver
	log        zerolog.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(
	accounts ports.AccountRepository,
	history ports.HistoryRepository,
	identities ports.IdentityRepository,
	resolver ports.AccountResolver,
	log zerolog.Logger,
) ports.AccountService {
	return &accountService{
		accounts:   accounts,
		history:    history,
		identities: identities,
		resolver:   resolver,
		log:        log,
	}
}

// OpenAccount creates the zero-balance account that goes with a granted role.
func (s *accountService) OpenAccount(ctx context.Context, identity uuid.UUID, kind domain.Kind) (*domain.Account, error) {
	if _, ok := domain.ParseKind(string(kind)); !ok {
		return nil, apperror.Validation(fmt.Sprintf("Unknown account kind %q", kind))
	}

	allowed, err := s.identities.HasRole(ctx, identity, kind.Role())
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if !allowed {
		return nil, apperror.ErrForbidden(fmt.Sprintf("%s role required", kind))
	}

	account := domain.NewAccount(identity, kind)
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, apperror.ErrAccountExists(kind.Title())
		}
		return nil, apperror.InternalError(err)
	}

	s.log.Info().
		Str("account_id", account.ID.String()).
		Str("owner", identity.String()).
		Str("kind", string(kind)).
		Msg("account opened")

	return account, nil
}

// GetBalance returns the identity's account of kind.
func (s *accountService) GetBalance(ctx context.Context, identity uuid.UUID, kind domain.Kind) (*domain.Account, error) {
	if _, ok := domain.ParseKind(string(kind)); !ok {
		return nil, apperror.Validation(fmt.Sprintf("Unknown account kind %q", kind))
	}
	return s.resolver.Resolve(ctx, identity, kind)
}

// ListHistory returns a page of the account's history, newest first.
func (s *accountService) ListHistory(ctx context.Context, identity uuid.UUID, kind domain.Kind, page, pageSize int) ([]domain.HistoryEntry, int64, error) {
	page, pageSize, err := pageBounds(page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	account, err := s.GetBalance(ctx, identity, kind)
	if err != nil {
		return nil, 0, err
	}

	entries, total, err := s.history.ListByAccount(ctx, ports.HistoryListParams{
		AccountID: account.ID,
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return entries, total, nil
}
