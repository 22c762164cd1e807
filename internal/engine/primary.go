package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credentialing-backend/internal/metadata"
	"credentialing-backend/internal/store"
)

// AddressMode selects how a save finds its primary record.
type AddressMode int

const (
	// ByOwner finds or creates the caller's single draft by owner key.
	ByOwner AddressMode = iota
	// ByID updates an existing draft; it never creates one.
	ByID
)

func (m AddressMode) String() string {
	if m == ByID {
		return "by_id"
	}
	return "by_owner"
}

const primaryInsertSavepoint = "draft_primary_insert"

type primaryRow struct {
	ID       int64
	OwnerKey string
	Status   string
}

// primaryUpserter writes the employee row inside the caller's transaction.
type primaryUpserter struct {
	dialect store.Dialect
	entity  *metadata.Entity
	logger  *slog.Logger
}

// Upsert resolves the primary record for mode and writes fields to it.
// Returns the primary id and whether the row was created.
func (p *primaryUpserter) Upsert(ctx context.Context, q store.Querier, ident *metadata.Identity, mode AddressMode, id int64, fields map[string]any, now time.Time) (int64, bool, error) {
	if mode == ByID {
		row, err := p.find(ctx, q, "id", id)
		if errors.Is(err, store.ErrNotFound) {
			return 0, false, NotFoundError(p.entity.Label, id)
		}
		if err != nil {
			return 0, false, err
		}
		if err := checkOwnership(ident, accessWrite, p.entity, id, row.OwnerKey); err != nil {
			return 0, false, err
		}
		return row.ID, false, p.update(ctx, q, row, fields, now)
	}

	row, err := p.find(ctx, q, p.entity.OwnerColumn, ident.OwnerKey)
	if err == nil {
		return row.ID, false, p.update(ctx, q, row, fields, now)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, false, err
	}

	newID, err := p.insert(ctx, q, ident.OwnerKey, fields, now)
	if err == nil {
		return newID, true, nil
	}
	if !errors.Is(err, store.ErrUniqueViolation) {
		return 0, false, err
	}

	// A concurrent first save for the same owner won the insert. Its row is
	// committed by now; retry exactly once as an update.
	p.logger.WarnContext(ctx, "concurrent draft creation, retrying as update", "owner_key", ident.OwnerKey)
	row, err = p.find(ctx, q, p.entity.OwnerColumn, ident.OwnerKey)
	if errors.Is(err, store.ErrNotFound) {
		return 0, false, ConflictError("Draft was modified concurrently, please retry", err)
	}
	if err != nil {
		return 0, false, err
	}
	return row.ID, false, p.update(ctx, q, row, fields, now)
}

func (p *primaryUpserter) find(ctx context.Context, q store.Querier, column string, value any) (*primaryRow, error) {
	qr := BuildSelectSQL(p.dialect, p.entity, column, value, true)
	row, err := store.QueryRow(ctx, q, qr.SQL, qr.Params...)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("select %s: %w", p.entity.Table, err)
	}
	id, _ := store.ToInt64(row["id"])
	owner, _ := row[p.entity.OwnerColumn].(string)
	status, _ := row["status"].(string)
	return &primaryRow{ID: id, OwnerKey: owner, Status: status}, nil
}

func (p *primaryUpserter) insert(ctx context.Context, q store.Querier, ownerKey string, fields map[string]any, now time.Time) (int64, error) {
	cols := []assignment{
		{Column: p.entity.OwnerColumn, Value: ownerKey},
		{Column: "status", Value: metadata.StatusInProgress},
	}
	cols = append(cols, fieldAssignments(p.entity, fields)...)
	cols = append(cols,
		assignment{Column: "created_at", Value: now},
		assignment{Column: "updated_at", Value: now},
	)
	qr := BuildInsertSQL(p.dialect, p.entity.Table, cols)

	var id int64
	err := store.Savepoint(ctx, q, primaryInsertSavepoint, func() error {
		row, err := store.QueryRow(ctx, q, qr.SQL, qr.Params...)
		if err != nil {
			return store.MapError(p.dialect, err)
		}
		id, _ = store.ToInt64(row["id"])
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrUniqueViolation) {
			return 0, err
		}
		return 0, fmt.Errorf("insert %s: %w", p.entity.Table, err)
	}
	return id, nil
}

// update writes the supplied fields. The owner key is re-bound to the stored
// value and the status follows nextStatus.
func (p *primaryUpserter) update(ctx context.Context, q store.Querier, row *primaryRow, fields map[string]any, now time.Time) error {
	set := fieldAssignments(p.entity, fields)
	set = append(set,
		assignment{Column: p.entity.OwnerColumn, Value: row.OwnerKey},
		assignment{Column: "status", Value: nextStatus(row.Status)},
		assignment{Column: "updated_at", Value: now},
	)
	qr := BuildUpdateSQL(p.dialect, p.entity.Table, set, []assignment{{Column: "id", Value: row.ID}})
	if _, err := store.Exec(ctx, q, qr.SQL, qr.Params...); err != nil {
		return fmt.Errorf("update %s: %w", p.entity.Table, err)
	}
	return nil
}

// nextStatus moves early drafts to in_progress and leaves any later
// lifecycle status untouched.
func nextStatus(current string) string {
	switch current {
	case "", metadata.StatusProspectiveDraft, metadata.StatusInProgress:
		return metadata.StatusInProgress
	default:
		return current
	}
}
