package postgres

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaDDL string

// Migrate applies the catalog schema. Every statement is IF NOT
// EXISTS, so running it on start is idempotent.
func Migrate(ctx context.Context, pool dbPool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
