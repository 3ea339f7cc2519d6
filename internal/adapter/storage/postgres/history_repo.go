package postgres

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// HistoryRepo implements ports.HistoryRepository.
type HistoryRepo struct {
	pool Pool
}

// NewHistoryRepo creates a new HistoryRepo.
func NewHistoryRepo(pool Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

// Create appends a history entry within a database transaction.
func (r *HistoryRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.HistoryEntry) error {
	query := `INSERT INTO history_entries (id, account_id, operation_id, operation, amount, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.AccountID, e.OperationID, e.Operation, e.Amount, e.Description, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", classify(err))
	}
	return nil
}

// ListByAccount returns one page of an account's history, newest first.
func (r *HistoryRepo) ListByAccount(ctx context.Context, params ports.HistoryListParams) ([]domain.HistoryEntry, int64, error) {
	offset, err := pageOffset(params.Page, params.PageSize)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM history_entries WHERE account_id = $1`, params.AccountID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count history entries: %w", err)
	}

	query := `SELECT id, account_id, operation_id, operation, amount, description, created_at
		FROM history_entries WHERE account_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, params.AccountID, params.PageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list history entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		e := domain.HistoryEntry{}
		err := rows.Scan(
			&e.ID, &e.AccountID, &e.OperationID, &e.Operation,
			&e.Amount, &e.Description, &e.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate history rows: %w", err)
	}
	return entries, total, nil
}
