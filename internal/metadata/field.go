package metadata

import (
	"strings"
	"unicode"
)

// DateKind tells the normalizer how to shape a date-bearing field.
type DateKind string

const (
	DateNone      DateKind = ""
	DateOnly      DateKind = "date"
	DateTimestamp DateKind = "timestamp"
)

// Field is one row of a kind's schema table. The normalizer, aliaser and
// validator all read from it.
type Field struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"` // string, text, int, boolean, date, timestamp
	Aliases   []string `json:"aliases,omitempty"`
	Required  bool     `json:"required,omitempty"`
	Enum      []string `json:"enum,omitempty"`
	MaxLength int      `json:"max_length,omitempty"`
	Rule      string   `json:"rule,omitempty"` // expr-lang boolean over `value`
	Message   string   `json:"message,omitempty"`
}

// DateKind derives the date handling from the field type.
func (f Field) DateKind() DateKind {
	switch f.Type {
	case "date":
		return DateOnly
	case "timestamp":
		return DateTimestamp
	default:
		return DateNone
	}
}

// Column returns the storage column for the field.
func (f Field) Column() string {
	return ColumnName(f.Name)
}

// ColumnName converts a camelCase payload name to its snake_case column.
func ColumnName(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if unicode.IsDigit(r) && i > 0 && !unicode.IsDigit(rune(name[i-1])) {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return b.String()
}
