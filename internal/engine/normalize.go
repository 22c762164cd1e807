package engine

import (
	"log/slog"
	"strings"
	"time"

	"credentialing-backend/internal/metadata"
)

const defaultNormalizeMaxDepth = 10

var (
	dateLayouts      = []string{"2006-01-02", "01/02/2006", "1/2/2006"}
	timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}
)

// Normalizer shapes date fields before validation. It never fails: values it
// cannot interpret are passed through for the validator to reject.
type Normalizer struct {
	reg      *metadata.Registry
	maxDepth int
	logger   *slog.Logger
}

func NewNormalizer(reg *metadata.Registry, maxDepth int, logger *slog.Logger) *Normalizer {
	if maxDepth <= 0 {
		maxDepth = defaultNormalizeMaxDepth
	}
	return &Normalizer{reg: reg, maxDepth: maxDepth, logger: logger}
}

// NormalizePayload normalizes a draft body: top-level keys against the
// primary entity, collection arrays against their dependent kind.
func (n *Normalizer) NormalizePayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	return n.normalizeObject(payload, n.reg.Primary(), 0)
}

// Normalize walks value recursively. entity may be nil for subtrees with no
// declared schema; their date-like values are left alone.
func (n *Normalizer) Normalize(value any, entity *metadata.Entity, depth int) any {
	if depth > n.maxDepth {
		n.logger.Warn("normalize depth limit reached, value left unchanged", "max_depth", n.maxDepth)
		return value
	}

	switch v := value.(type) {
	case map[string]any:
		return n.normalizeObject(v, entity, depth)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = n.Normalize(item, entity, depth+1)
		}
		return out
	default:
		return value
	}
}

func (n *Normalizer) normalizeObject(obj map[string]any, entity *metadata.Entity, depth int) map[string]any {
	out := make(map[string]any, len(obj))
	for key, value := range obj {
		var field *metadata.Field
		if entity != nil {
			field = entity.LookupField(key)
		}
		if field != nil && field.DateKind() != metadata.DateNone {
			out[key] = normalizeDate(value, field.DateKind())
			continue
		}

		var child *metadata.Entity
		if entity != nil && entity.Primary {
			child = n.reg.GetDependent(key)
		}
		out[key] = n.Normalize(value, child, depth+1)
	}
	return out
}

// normalizeDate converts blanks to nil, dates to YYYY-MM-DD and timestamps to
// RFC 3339 UTC.
func normalizeDate(value any, kind metadata.DateKind) any {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		if kind == metadata.DateOnly {
			return v.Format("2006-01-02")
		}
		return v.UTC().Format(time.RFC3339Nano)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		if kind == metadata.DateOnly {
			return normalizeDateOnly(s)
		}
		return normalizeTimestamp(s)
	default:
		return value
	}
}

// normalizeDateOnly keeps the calendar date as written. An instant such as
// 2024-03-01T23:30:00-05:00 stays on March 1st.
func normalizeDateOnly(s string) any {
	if len(s) > 10 && (s[10] == 'T' || s[10] == ' ') {
		if _, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return s[:10]
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

func normalizeTimestamp(s string) any {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339Nano)
		}
	}
	return s
}
