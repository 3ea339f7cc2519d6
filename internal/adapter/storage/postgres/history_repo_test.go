package postgres

import (
	"context"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEntry(accountID uuid.UUID, amount, desc string) domain.HistoryEntry {
	return domain.HistoryEntry{
		ID:          uuid.New(),
		AccountID:   accountID,
		OperationID: uuid.New(),
		Operation:   domain.OperationCashIn,
		Amount:      dec(amount),
		Description: desc,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

func historyCols() []string {
	return []string{"id", "account_id", "operation_id", "operation", "amount", "description", "created_at"}
}

func TestHistoryRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewHistoryRepo(mock)
	e := newTestEntry(uuid.New(), "50.00", "Cash-in to Consumer: c@example.com")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO history_entries").
		WithArgs(e.ID, e.AccountID, e.OperationID, e.Operation, decimalArg{e.Amount}, e.Description, e.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, &e)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepo_ListByAccount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewHistoryRepo(mock)
	accountID := uuid.New()
	newer := newTestEntry(accountID, "10.00", "Cash-out to Agent: a@example.com")
	older := newTestEntry(accountID, "50.00", "Cash-in from Agent: a@example.com")

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(accountID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(12)))
	mock.ExpectQuery("SELECT .+ FROM history_entries WHERE account_id .+ ORDER BY created_at DESC").
		WithArgs(accountID, 2, 2).
		WillReturnRows(pgxmock.NewRows(historyCols()).
			AddRow(newer.ID, newer.AccountID, newer.OperationID, newer.Operation, newer.Amount, newer.Description, newer.CreatedAt).
			AddRow(older.ID, older.AccountID, older.OperationID, older.Operation, older.Amount, older.Description, older.CreatedAt))

	entries, total, err := repo.ListByAccount(context.Background(), ports.HistoryListParams{
		AccountID: accountID,
		Page:      2,
		PageSize:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	require.Len(t, entries, 2)
	assert.Equal(t, newer.ID, entries[0].ID)
	assert.Equal(t, "50.00", entries[1].Amount.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepo_ListByAccount_PageOutOfRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewHistoryRepo(mock)

	_, _, err = repo.ListByAccount(context.Background(), ports.HistoryListParams{
		AccountID: uuid.New(),
		Page:      100000000000000001,
		PageSize:  100,
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "no query may reach the database")
}

func TestPageOffset(t *testing.T) {
	off, err := pageOffset(3, 20)
	require.NoError(t, err)
	assert.Equal(t, 40, off)

	_, err = pageOffset(0, 20)
	assert.Error(t, err)
	_, err = pageOffset(100000000000000001, 100)
	assert.Error(t, err)
}
