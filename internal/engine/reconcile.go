package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"credentialing-backend/internal/metadata"
	"credentialing-backend/internal/store"
)

// DefaultTempIDThreshold separates client-generated placeholder ids from
// real ones. Browsers mint them from Date.now(), which is far above it.
const DefaultTempIDThreshold int64 = 1_000_000_000

// ItemOp is what the reconciler did with one incoming item.
type ItemOp string

const (
	OpInsert   ItemOp = "insert"
	OpUpdate   ItemOp = "update"
	OpSkip     ItemOp = "skip"
	OpFallback ItemOp = "fallback_insert"
)

// Warning describes an item that was not written the way the client asked.
type Warning struct {
	Kind    string `json:"kind"`
	Index   int    `json:"index"`
	Op      ItemOp `json:"op"`
	Message string `json:"message"`
}

// ReconcileStats counts per-kind outcomes.
type ReconcileStats struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Fallbacks int `json:"fallbacks"`
}

type reconciler struct {
	dialect       store.Dialect
	tempThreshold int64
	logger        *slog.Logger
	metrics       *Metrics
}

// FetchOwnedIDs returns the ids of kind rows that belong to employeeID.
func (r *reconciler) FetchOwnedIDs(ctx context.Context, q store.Querier, kind *metadata.Entity, employeeID int64) (map[int64]bool, error) {
	qr := BuildOwnedIDsSQL(r.dialect, kind, employeeID)
	rows, err := store.QueryRows(ctx, q, qr.SQL, qr.Params...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s ids: %w", kind.Table, err)
	}
	owned := make(map[int64]bool, len(rows))
	for _, row := range rows {
		if id, ok := store.ToInt64(row["id"]); ok {
			owned[id] = true
		}
	}
	return owned, nil
}

// Reconcile writes items for one kind. Items without their required field
// are skipped. Ids at or above the temp threshold, and ids the draft does not
// own, are inserted fresh. Nothing is ever deleted.
func (r *reconciler) Reconcile(ctx context.Context, q store.Querier, kind *metadata.Entity, employeeID int64, items []map[string]any, owned map[int64]bool, now time.Time) (ReconcileStats, []Warning, error) {
	var stats ReconcileStats
	var warnings []Warning

	for i, item := range items {
		if missing := missingRequired(kind, item); missing != "" {
			stats.Skipped++
			warnings = append(warnings, Warning{
				Kind: kind.Name, Index: i, Op: OpSkip,
				Message: fmt.Sprintf("%s is required; item was not saved", missing),
			})
			r.logger.WarnContext(ctx, "skipping item without required field",
				"kind", kind.Name, "index", i, "field", missing, "employee_id", employeeID)
			r.metrics.ObserveItem(kind.Name, OpSkip)
			continue
		}

		op := r.classify(item, owned)
		switch op {
		case OpUpdate:
			id := item["id"].(int64)
			if err := r.update(ctx, q, kind, employeeID, id, item, now); err != nil {
				return stats, warnings, err
			}
			stats.Updated++
		case OpFallback:
			warnings = append(warnings, Warning{
				Kind: kind.Name, Index: i, Op: OpFallback,
				Message: fmt.Sprintf("id %v is not part of this draft; saved as a new item", item["id"]),
			})
			r.logger.WarnContext(ctx, "item id not owned by draft, inserting as new",
				"kind", kind.Name, "index", i, "id", item["id"], "employee_id", employeeID)
			fallthrough
		default:
			if err := r.insert(ctx, q, kind, employeeID, item, now); err != nil {
				return stats, warnings, err
			}
			if op == OpFallback {
				stats.Fallbacks++
			} else {
				stats.Inserted++
			}
		}
		r.metrics.ObserveItem(kind.Name, op)
	}
	return stats, warnings, nil
}

// classify decides insert, update or fallback from the item's id.
func (r *reconciler) classify(item map[string]any, owned map[int64]bool) ItemOp {
	id, ok := item["id"].(int64)
	if !ok || id <= 0 || id >= r.tempThreshold {
		return OpInsert
	}
	if owned[id] {
		return OpUpdate
	}
	return OpFallback
}

func (r *reconciler) insert(ctx context.Context, q store.Querier, kind *metadata.Entity, employeeID int64, item map[string]any, now time.Time) error {
	cols := []assignment{{Column: kind.OwnerColumn, Value: employeeID}}
	cols = append(cols, fieldAssignments(kind, item)...)
	cols = append(cols,
		assignment{Column: "created_at", Value: now},
		assignment{Column: "updated_at", Value: now},
	)
	qr := BuildInsertSQL(r.dialect, kind.Table, cols)
	if _, err := store.QueryRows(ctx, q, qr.SQL, qr.Params...); err != nil {
		return fmt.Errorf("insert %s: %w", kind.Table, err)
	}
	return nil
}

// update is scoped by both id and owner so a row can never move between
// drafts, and re-binds the owner column to the same value.
func (r *reconciler) update(ctx context.Context, q store.Querier, kind *metadata.Entity, employeeID, id int64, item map[string]any, now time.Time) error {
	set := fieldAssignments(kind, item)
	set = append(set,
		assignment{Column: kind.OwnerColumn, Value: employeeID},
		assignment{Column: "updated_at", Value: now},
	)
	where := []assignment{
		{Column: "id", Value: id},
		{Column: kind.OwnerColumn, Value: employeeID},
	}
	qr := BuildUpdateSQL(r.dialect, kind.Table, set, where)
	n, err := store.Exec(ctx, q, qr.SQL, qr.Params...)
	if err != nil {
		return fmt.Errorf("update %s: %w", kind.Table, err)
	}
	if n == 0 {
		return fmt.Errorf("update %s: row %d vanished mid-transaction", kind.Table, id)
	}
	return nil
}

// missingRequired returns the first required field that is absent or blank,
// or "".
func missingRequired(kind *metadata.Entity, item map[string]any) string {
	for _, f := range kind.RequiredFields() {
		if isBlank(item[f.Name]) {
			return f.Name
		}
	}
	return ""
}
