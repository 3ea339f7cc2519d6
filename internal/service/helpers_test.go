package service

import (
	"context"
	"fmt"
	"testing"

	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

// conflictTx fails to commit with a serialization conflict.
type conflictTx struct{ mockTx }

func (c *conflictTx) Commit(_ context.Context) error {
	return fmt.Errorf("commit: %w", ports.ErrConflict)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// decEq matches a decimal.Decimal by value.
type decEq string

func (d decEq) Matches(x any) bool {
	got, ok := x.(decimal.Decimal)
	return ok && got.Equal(dec(string(d)))
}

func (d decEq) String() string { return "decimal equal to " + string(d) }

var _ gomock.Matcher = decEq("0")

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}
