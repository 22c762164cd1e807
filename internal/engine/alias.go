package engine

import (
	"strings"

	"credentialing-backend/internal/metadata"
)

// resolveAliases maps legacy field names onto the entity's canonical names and
// drops every key the schema does not declare. A non-blank canonical value
// wins; otherwise the first non-blank alias fills it. The second map reports
// which key of item supplied each value. Resolving a canonical item returns
// an equal item.
func resolveAliases(entity *metadata.Entity, item map[string]any) (map[string]any, map[string]string) {
	out := make(map[string]any, len(item))
	from := make(map[string]string, len(item))
	for _, f := range entity.Fields {
		if key, ok := pickKey(item, f); ok {
			out[f.Name] = item[key]
			from[f.Name] = key
		}
	}
	return out, from
}

func pickKey(item map[string]any, f metadata.Field) (string, bool) {
	canonical, hasCanonical := item[f.Name]
	if hasCanonical && !isBlank(canonical) {
		return f.Name, true
	}
	for _, alias := range f.Aliases {
		if v, ok := item[alias]; ok && !isBlank(v) {
			return alias, true
		}
	}
	if hasCanonical {
		return f.Name, true
	}
	// an explicit blank under an alias still clears the column
	for _, alias := range f.Aliases {
		if _, ok := item[alias]; ok {
			return alias, true
		}
	}
	return "", false
}

func isBlank(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	default:
		return false
	}
}
