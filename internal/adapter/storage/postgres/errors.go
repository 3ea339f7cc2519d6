package postgres

import (
	"errors"
	"fmt"
	"math"

	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes after which the unit of work can be retried as a whole.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
)

// classify tags driver errors with the ports sentinels so services can
// match them with errors.Is. The original error stays in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return fmt.Errorf("%w: %w", ports.ErrConflict, err)
	case codeUniqueViolation:
		return fmt.Errorf("%w: %w", ports.ErrDuplicate, err)
	}
	return err
}

// pageOffset turns a 1-based page into an OFFSET, refusing values that
// would overflow int.
func pageOffset(page, pageSize int) (int, error) {
	if page < 1 || pageSize < 1 {
		return 0, fmt.Errorf("invalid page %d size %d", page, pageSize)
	}
	if page-1 > math.MaxInt32/pageSize {
		return 0, fmt.Errorf("page %d out of range", page)
	}
	return (page - 1) * pageSize, nil
}
