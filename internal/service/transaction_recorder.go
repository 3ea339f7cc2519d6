package service

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRecorderImpl implements ports.TransactionRecorder.
type TransactionRecorderImpl struct {
	history ports.HistoryRepository
	now     func() time.Time
}

func NewTransactionRecorder(history ports.HistoryRepository) *TransactionRecorderImpl {
	return &TransactionRecorderImpl{history: history, now: time.Now}
}

// Record appends one history entry inside tx. Repository errors are
// returned wrapped but unclassified so the caller can still see conflicts.
func (r *TransactionRecorderImpl) Record(ctx context.Context, tx pgx.Tx, leg ports.LedgerLeg) (*domain.HistoryEntry, error) {
	if !domain.ValidAmount(leg.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}

	entry := &domain.HistoryEntry{
		ID:          uuid.New(),
		AccountID:   leg.AccountID,
		OperationID: leg.OperationID,
		Operation:   leg.Operation,
		Amount:      leg.Amount,
		Description: leg.Description,
		CreatedAt:   r.now().UTC(),
	}
	if err := r.history.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("record history entry: %w", err)
	}
	return entry, nil
}
