package store

import (
	"context"
	"fmt"
	"time"
)

// Dialect abstracts database-specific SQL generation and behavior.
type Dialect interface {
	// Name returns "postgres" or "sqlite".
	Name() string

	// DriverName returns the database/sql driver name ("pgx" or "sqlite").
	DriverName() string

	// Placeholder returns the parameter placeholder for the given 1-based index.
	Placeholder(index int) string

	// NewParamBuilder creates a dialect-aware parameter builder.
	NewParamBuilder() ParamBuilder

	// ColumnType maps a metadata field type to the database DDL type.
	ColumnType(fieldType string) string

	// SerialPrimaryKey returns the DDL for an auto-incrementing integer id column.
	SerialPrimaryKey() string

	// LockForUpdate returns the row-lock suffix for a SELECT, or empty string
	// where the engine serializes writers itself.
	LockForUpdate() string

	// TimeParam encodes a timestamp for storage.
	TimeParam(t time.Time) any

	// SystemTablesSQL returns the DDL for accounts and the audit outbox.
	SystemTablesSQL() string

	// TableExists checks whether a table exists.
	TableExists(ctx context.Context, q Querier, tableName string) (bool, error)

	// GetColumns returns existing column names for a table.
	GetColumns(ctx context.Context, q Querier, tableName string) (map[string]bool, error)

	// MapError inspects a driver error and returns a well-known sentinel error if applicable.
	MapError(err error) error

	// NeedsBoolFix returns true if boolean columns come back as integers (SQLite).
	NeedsBoolFix() bool
}

// ParamBuilder accumulates query parameters and generates dialect-specific placeholders.
type ParamBuilder interface {
	// Add appends a value and returns the placeholder string.
	Add(v any) string

	// Params returns all accumulated parameter values.
	Params() []any

	// Count returns the number of parameters added so far.
	Count() int
}

// NewDialect creates a Dialect for the given driver name ("postgres" or "sqlite").
func NewDialect(driver string) Dialect {
	switch driver {
	case "sqlite":
		return &SQLiteDialect{}
	default:
		return &PostgresDialect{}
	}
}

type paramBuilder struct {
	params []any
	n      int
	prefix string
}

func (p *paramBuilder) Add(v any) string {
	p.n++
	p.params = append(p.params, v)
	return fmt.Sprintf("%s%d", p.prefix, p.n)
}

func (p *paramBuilder) Params() []any { return p.params }
func (p *paramBuilder) Count() int    { return p.n }
