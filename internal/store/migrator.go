package store

import (
	"context"
	"fmt"
	"strings"

	"credentialing-backend/internal/metadata"
)

type Migrator struct {
	store *Store
}

func NewMigrator(store *Store) *Migrator {
	return &Migrator{store: store}
}

// MigrateAll brings the primary table and every dependent table in line with
// the schema. The primary table goes first so dependent foreign keys resolve.
func (m *Migrator) MigrateAll(ctx context.Context, reg *metadata.Registry) error {
	for _, entity := range reg.AllEntities() {
		if err := m.Migrate(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

// Migrate creates the table if it doesn't exist, or adds missing columns.
func (m *Migrator) Migrate(ctx context.Context, entity *metadata.Entity) error {
	exists, err := m.store.Dialect.TableExists(ctx, m.store.DB, entity.Table)
	if err != nil {
		return fmt.Errorf("check table exists: %w", err)
	}

	if !exists {
		return m.createTable(ctx, entity)
	}
	return m.alterTable(ctx, entity)
}

func (m *Migrator) createTable(ctx context.Context, entity *metadata.Entity) error {
	d := m.store.Dialect
	cols := []string{"id " + d.SerialPrimaryKey()}

	if entity.Primary {
		cols = append(cols,
			entity.OwnerColumn+" TEXT NOT NULL UNIQUE",
			fmt.Sprintf("status TEXT NOT NULL DEFAULT '%s'", metadata.StatusProspectiveDraft),
		)
	} else {
		cols = append(cols, fmt.Sprintf("%s %s NOT NULL REFERENCES %s(id) ON DELETE CASCADE",
			entity.OwnerColumn, d.ColumnType("bigint"), metadata.Employee.Table))
	}

	for _, f := range entity.Fields {
		cols = append(cols, f.Column()+" "+d.ColumnType(f.Type))
	}
	cols = append(cols,
		"created_at "+d.ColumnType("timestamp")+" NOT NULL",
		"updated_at "+d.ColumnType("timestamp")+" NOT NULL",
	)

	sql := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", entity.Table, strings.Join(cols, ",\n  "))
	if _, err := m.store.DB.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("create table %s: %w", entity.Table, err)
	}

	return m.createIndexes(ctx, entity)
}

func (m *Migrator) alterTable(ctx context.Context, entity *metadata.Entity) error {
	existing, err := m.store.Dialect.GetColumns(ctx, m.store.DB, entity.Table)
	if err != nil {
		return fmt.Errorf("get columns for %s: %w", entity.Table, err)
	}

	// every schema field is nullable, so columns can be added without defaults
	for _, f := range entity.Fields {
		if existing[f.Column()] {
			continue
		}
		sql := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
			entity.Table, f.Column(), m.store.Dialect.ColumnType(f.Type))
		if _, err := m.store.DB.ExecContext(ctx, sql); err != nil {
			return fmt.Errorf("add column %s.%s: %w", entity.Table, f.Column(), err)
		}
	}

	return m.createIndexes(ctx, entity)
}

func (m *Migrator) createIndexes(ctx context.Context, entity *metadata.Entity) error {
	if entity.Primary {
		return nil
	}
	sql := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)",
		entity.Table, entity.OwnerColumn, entity.Table, entity.OwnerColumn)
	if _, err := m.store.DB.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("create owner index on %s: %w", entity.Table, err)
	}
	return nil
}
