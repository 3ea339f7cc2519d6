package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/metrics"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RetryPolicy bounds how often a unit is re-run after a transient conflict.
type RetryPolicy struct {
	MaxAttempts     uint64 // total attempts, including the first
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy mirrors the config defaults.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     5,
	InitialInterval: 20 * time.Millisecond,
	MaxInterval:     500 * time.Millisecond,
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0

	retries := uint64(0)
	if p.MaxAttempts > 1 {
		retries = p.MaxAttempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)
}

// TransferEngineImpl implements ports.TransferEngine.
type TransferEngineImpl struct {
	accounts   ports.AccountRepository
	recorder   ports.TransactionRecorder
	transactor ports.DBTransactor
	policy     RetryPolicy
	log        zerolog.Logger
}

// NewTransferEngine creates a new TransferEngineImpl.
func NewTransferEngine(
	accounts ports.AccountRepository,
	recorder ports.TransactionRecorder,
	transactor ports.DBTransactor,
	policy RetryPolicy,
	log zerolog.Logger,
) *TransferEngineImpl {
	return &TransferEngineImpl{
		accounts:   accounts,
		recorder:   recorder,
		transactor: transactor,
		policy:     policy,
		log:        log,
	}
}

// Transfer debits spec.Source and, when set, credits spec.Destination as one
// unit, recording one history entry per touched account. Units that fail
// with ports.ErrConflict are re-run under the retry policy.
func (e *TransferEngineImpl) Transfer(ctx context.Context, spec ports.TransferSpec) (*ports.TransferResult, error) {
	if !domain.ValidAmount(spec.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	if spec.Destination != nil && *spec.Destination == spec.Source {
		return nil, apperror.Validation("Source and destination accounts must differ")
	}
	if spec.OperationID == uuid.Nil {
		spec.OperationID = uuid.New()
	}

	var result *ports.TransferResult
	attempt := 0
	op := func() error {
		attempt++
		r, err := e.transferOnce(ctx, spec)
		if err != nil {
			if errors.Is(err, ports.ErrConflict) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		metrics.TransferRetriesTotal.Inc()
		e.log.Warn().Err(err).
			Str("operation_id", spec.OperationID.String()).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("transfer conflict, retrying")
	}

	if err := backoff.RetryNotify(op, e.policy.backOff(ctx), notify); err != nil {
		var appErr *apperror.AppError
		switch {
		case errors.As(err, &appErr):
			return nil, appErr
		case errors.Is(err, ports.ErrConflict):
			e.log.Warn().Err(err).
				Str("operation_id", spec.OperationID.String()).
				Int("attempts", attempt).
				Msg("transfer abandoned after repeated conflicts")
			return nil, apperror.ErrConcurrencyConflict(err)
		default:
			e.log.Error().Err(err).
				Str("operation_id", spec.OperationID.String()).
				Str("operation", string(spec.Operation)).
				Msg("transfer failed")
			return nil, apperror.InternalError(err)
		}
	}

	e.log.Info().
		Str("operation_id", result.OperationID.String()).
		Str("operation", string(spec.Operation)).
		Str("amount", spec.Amount.StringFixed(domain.MoneyScale)).
		Int("attempts", attempt).
		Msg("transfer committed")

	return result, nil
}

// transferOnce runs a single unit. Returned errors are either AppErrors for
// domain failures or wrapped infrastructure errors.
func (e *TransferEngineImpl) transferOnce(ctx context.Context, spec ports.TransferSpec) (*ports.TransferResult, error) {
	dbTx, err := e.transactor.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin unit: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	ids := []uuid.UUID{spec.Source}
	if spec.Destination != nil {
		ids = append(ids, *spec.Destination)
	}

	locked, err := e.accounts.LockByIDs(ctx, dbTx, ids...)
	if err != nil {
		return nil, fmt.Errorf("lock accounts: %w", err)
	}
	source := findAccount(locked, spec.Source)
	if source == nil {
		return nil, apperror.ErrAccountNotFound("Source")
	}
	var dest *domain.Account
	if spec.Destination != nil {
		if dest = findAccount(locked, *spec.Destination); dest == nil {
			return nil, apperror.ErrAccountNotFound("Destination")
		}
	}

	if err := source.Debit(spec.Amount); err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			return nil, apperror.ErrInsufficientFunds()
		}
		return nil, apperror.ErrInvalidAmount()
	}
	if err := e.accounts.UpdateBalance(ctx, dbTx, source.ID, source.Balance); err != nil {
		return nil, fmt.Errorf("debit source: %w", err)
	}
	if dest != nil {
		if err := dest.Credit(spec.Amount); err != nil {
			return nil, apperror.ErrInvalidAmount()
		}
		if err := e.accounts.UpdateBalance(ctx, dbTx, dest.ID, dest.Balance); err != nil {
			return nil, fmt.Errorf("credit destination: %w", err)
		}
	}

	result := &ports.TransferResult{
		OperationID:   spec.OperationID,
		SourceBalance: source.Balance,
	}

	entry, err := e.recorder.Record(ctx, dbTx, ports.LedgerLeg{
		OperationID: spec.OperationID,
		Operation:   spec.Operation,
		AccountID:   source.ID,
		Amount:      spec.Amount,
		Description: spec.SourceDescription,
	})
	if err != nil {
		return nil, err
	}
	result.Entries = append(result.Entries, *entry)

	if dest != nil {
		entry, err := e.recorder.Record(ctx, dbTx, ports.LedgerLeg{
			OperationID: spec.OperationID,
			Operation:   spec.Operation,
			AccountID:   dest.ID,
			Amount:      spec.Amount,
			Description: spec.DestinationDescription,
		})
		if err != nil {
			return nil, err
		}
		result.Entries = append(result.Entries, *entry)
		balance := dest.Balance
		result.DestinationBalance = &balance
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit unit: %w", err)
	}
	return result, nil
}

func findAccount(accounts []*domain.Account, id uuid.UUID) *domain.Account {
	for _, a := range accounts {
		if a.ID == id {
			return a
		}
	}
	return nil
}
