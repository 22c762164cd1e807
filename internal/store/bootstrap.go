package store

import (
	"context"
	"fmt"

	"credentialing-backend/internal/metadata"
)

// Bootstrap creates the system tables and migrates the draft schema.
func (s *Store) Bootstrap(ctx context.Context, reg *metadata.Registry) error {
	if _, err := s.DB.ExecContext(ctx, s.Dialect.SystemTablesSQL()); err != nil {
		return fmt.Errorf("bootstrap system tables: %w", err)
	}
	if err := NewMigrator(s).MigrateAll(ctx, reg); err != nil {
		return fmt.Errorf("migrate draft tables: %w", err)
	}
	return nil
}
