package db

import (
	"context"
	_ "embed"

	"courier/internal/types"
)

// Schema is the idempotent DDL for every table the pipeline uses.
//
//go:embed schema.sql
var Schema string

// Migrate applies Schema. Statements use IF NOT EXISTS, so running it
// against an initialized database is a no-op.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to apply schema", err)
	}
	return nil
}
