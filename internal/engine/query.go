package engine

import (
	"fmt"
	"strings"
	"time"

	"credentialing-backend/internal/metadata"
	"credentialing-backend/internal/store"
)

type QueryResult struct {
	SQL    string
	Params []any
}

// assignment is one column = value pair in schema order.
type assignment struct {
	Column string
	Value  any
}

// fieldAssignments returns the columns for every field the item supplies, in
// the entity's declared order so generated SQL is stable.
func fieldAssignments(entity *metadata.Entity, item map[string]any) []assignment {
	var out []assignment
	for _, f := range entity.Fields {
		if v, ok := item[f.Name]; ok {
			out = append(out, assignment{Column: f.Column(), Value: v})
		}
	}
	return out
}

// sqlParam encodes a coerced value for the driver.
func sqlParam(d store.Dialect, v any) any {
	switch x := v.(type) {
	case time.Time:
		return d.TimeParam(x)
	case bool:
		if d.NeedsBoolFix() {
			if x {
				return int64(1)
			}
			return int64(0)
		}
	}
	return v
}

// BuildInsertSQL builds an INSERT ... RETURNING id.
func BuildInsertSQL(d store.Dialect, table string, cols []assignment) QueryResult {
	pb := d.NewParamBuilder()
	names := make([]string, len(cols))
	holders := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Column
		holders[i] = pb.Add(sqlParam(d, c.Value))
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		table, strings.Join(names, ", "), strings.Join(holders, ", "))
	return QueryResult{SQL: sql, Params: pb.Params()}
}

// BuildUpdateSQL builds an UPDATE scoped by every where pair. Returns an
// empty SQL string when there is nothing to set.
func BuildUpdateSQL(d store.Dialect, table string, set []assignment, where []assignment) QueryResult {
	if len(set) == 0 {
		return QueryResult{}
	}
	pb := d.NewParamBuilder()
	setParts := make([]string, len(set))
	for i, c := range set {
		setParts[i] = fmt.Sprintf("%s = %s", c.Column, pb.Add(sqlParam(d, c.Value)))
	}
	whereParts := make([]string, len(where))
	for i, c := range where {
		whereParts[i] = fmt.Sprintf("%s = %s", c.Column, pb.Add(c.Value))
	}
	sql := fmt.Sprintf("UPDATE %s SET %s", table, strings.Join(setParts, ", "))
	if len(whereParts) > 0 {
		sql += " WHERE " + strings.Join(whereParts, " AND ")
	}
	return QueryResult{SQL: sql, Params: pb.Params()}
}

// BuildSelectSQL selects every column of entity filtered by a single column,
// ordered by id, with an optional row lock.
func BuildSelectSQL(d store.Dialect, entity *metadata.Entity, column string, value any, lock bool) QueryResult {
	pb := d.NewParamBuilder()
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s ORDER BY id",
		strings.Join(entity.Columns(), ", "), entity.Table, column, pb.Add(value))
	if lock {
		sql += d.LockForUpdate()
	}
	return QueryResult{SQL: sql, Params: pb.Params()}
}

// BuildOwnedIDsSQL selects and locks the ids of a dependent kind owned by
// employeeID. The lock holds those rows until the save commits.
func BuildOwnedIDsSQL(d store.Dialect, entity *metadata.Entity, employeeID int64) QueryResult {
	pb := d.NewParamBuilder()
	sql := fmt.Sprintf("SELECT id FROM %s WHERE %s = %s ORDER BY id",
		entity.Table, entity.OwnerColumn, pb.Add(employeeID))
	sql += d.LockForUpdate()
	return QueryResult{SQL: sql, Params: pb.Params()}
}
