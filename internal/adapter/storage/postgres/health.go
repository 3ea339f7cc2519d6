package postgres

import (
	"context"
	"fmt"
)

// HealthCheck reports the ledger store on /health. A reachable server
// without the ledger tables counts as unhealthy.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping reads from the accounts table.
func (h *HealthCheck) Ping(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, "SELECT 1 FROM accounts LIMIT 1"); err != nil {
		return fmt.Errorf("ledger store: %w", err)
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}
