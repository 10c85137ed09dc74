package repo

import (
	"context"
	"fmt"

	"faceswap/internal/infra"
	"faceswap/internal/sqlinline"
)

// Migrate applies the idempotent ledger schema.
func Migrate(ctx context.Context, sql infra.SQLExecutor) error {
	for i, stmt := range sqlinline.Schema {
		if _, err := sql.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
