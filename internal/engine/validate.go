package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"credentialing-backend/internal/metadata"
)

const defaultMaxItems = 50

// DraftInput is a validated, aliased draft body. Collections only holds the
// kinds the payload mentioned; an absent kind is never touched.
type DraftInput struct {
	Fields      map[string]any
	Collections map[string][]map[string]any
}

// Validator enforces the schema tables. It is strict: keys that are neither
// canonical, alias nor server-owned are rejected.
type Validator struct {
	reg      *metadata.Registry
	rules    *ruleSet
	maxItems int
}

func NewValidator(reg *metadata.Registry, maxItems int) (*Validator, error) {
	rules, err := compileRules(reg)
	if err != nil {
		return nil, err
	}
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	return &Validator{reg: reg, rules: rules, maxItems: maxItems}, nil
}

// ValidatePayload checks the whole draft body and returns it aliased. All
// problems are collected; the caller gets every error, not just the first.
func (v *Validator) ValidatePayload(payload map[string]any) (*DraftInput, []ErrorDetail) {
	primary := v.reg.Primary()
	top := make(map[string]any, len(payload))
	input := &DraftInput{Collections: make(map[string][]map[string]any)}
	var errs []ErrorDetail

	for _, key := range sortedKeys(payload) {
		kind := v.reg.GetDependent(key)
		if kind == nil {
			top[key] = payload[key]
			continue
		}
		items, itemErrs := v.validateCollection(kind, payload[key])
		errs = append(errs, itemErrs...)
		if items != nil {
			input.Collections[kind.Name] = items
		}
	}

	fields, fieldErrs := v.Validate(primary, top, "")
	errs = append(errs, fieldErrs...)
	if len(errs) > 0 {
		return nil, errs
	}
	input.Fields = fields
	return input, nil
}

func (v *Validator) validateCollection(kind *metadata.Entity, raw any) ([]map[string]any, []ErrorDetail) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, []ErrorDetail{{Field: kind.Name, Rule: "type", Message: "must be an array"}}
	}
	if len(list) > v.maxItems {
		return nil, []ErrorDetail{{
			Field:   kind.Name,
			Rule:    "max_items",
			Message: fmt.Sprintf("must contain at most %d items", v.maxItems),
		}}
	}

	items := make([]map[string]any, 0, len(list))
	var errs []ErrorDetail
	for i, raw := range list {
		path := fmt.Sprintf("%s[%d].", kind.Name, i)
		obj, ok := raw.(map[string]any)
		if !ok {
			errs = append(errs, ErrorDetail{Field: strings.TrimSuffix(path, "."), Rule: "type", Message: "must be an object"})
			continue
		}
		clean, itemErrs := v.Validate(kind, obj, path)
		if len(itemErrs) > 0 {
			errs = append(errs, itemErrs...)
			continue
		}
		items = append(items, clean)
	}
	return items, errs
}

// Validate checks a single object against entity. prefix is prepended to
// field names in error paths, e.g. "education[2].". Keys are first checked
// against the allow-list, then aliased, and only the value each canonical
// field keeps is coerced and rule-checked. Errors name the key the client
// sent. The result holds canonical names; server-owned keys other than a
// dependent's id are dropped.
func (v *Validator) Validate(entity *metadata.Entity, item map[string]any, prefix string) (map[string]any, []ErrorDetail) {
	known := make(map[string]any, len(item))
	var errs []ErrorDetail
	var id any
	hasID := false

	for _, key := range sortedKeys(item) {
		value := item[key]
		path := prefix + key

		if entity.IsServerOwned(key) {
			if key == "id" && !entity.Primary {
				coerced, err := coerceID(value)
				if err != nil {
					errs = append(errs, ErrorDetail{Field: path, Rule: "type", Message: err.Error()})
					continue
				}
				id, hasID = coerced, true
			}
			continue
		}
		if entity.LookupField(key) == nil {
			errs = append(errs, ErrorDetail{Field: path, Rule: "unknown", Message: "is not a recognized field"})
			continue
		}
		known[key] = value
	}

	picked, from := resolveAliases(entity, known)
	out := make(map[string]any, len(picked)+1)
	for _, f := range entity.Fields {
		value, ok := picked[f.Name]
		if !ok {
			continue
		}
		field := f
		path := prefix + from[f.Name]

		coerced, err := coerceValue(&field, value)
		if err != nil {
			errs = append(errs, ErrorDetail{Field: path, Rule: "type", Message: err.Error()})
			continue
		}
		if detail := v.rules.checkField(entity.Name, &field, path, coerced); detail != nil {
			errs = append(errs, *detail)
			continue
		}
		out[f.Name] = coerced
	}
	if hasID {
		out["id"] = id
	}
	return out, errs
}

// coerceValue converts a decoded JSON value to the field's storage type.
// Blank strings become nil on non-string fields and on enum fields, where a
// blank means nothing was picked.
func coerceValue(f *metadata.Field, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		if len(f.Enum) > 0 || (f.Type != "string" && f.Type != "text") {
			return nil, nil
		}
	}

	switch f.Type {
	case "string", "text":
		switch x := value.(type) {
		case string:
			return x, nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		case int64:
			return strconv.FormatInt(x, 10), nil
		case int:
			return strconv.Itoa(x), nil
		case json.Number:
			return x.String(), nil
		}
		return nil, fmt.Errorf("must be a string")

	case "int":
		n, ok := toInt64(value)
		if !ok {
			return nil, fmt.Errorf("must be a whole number")
		}
		return n, nil

	case "boolean":
		switch x := value.(type) {
		case bool:
			return x, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(x)) {
			case "true", "1", "yes":
				return true, nil
			case "false", "0", "no":
				return false, nil
			}
		default:
			if n, ok := toInt64(value); ok && (n == 0 || n == 1) {
				return n == 1, nil
			}
		}
		return nil, fmt.Errorf("must be true or false")

	case "date":
		switch x := value.(type) {
		case string:
			if _, err := time.Parse("2006-01-02", x); err == nil {
				return x, nil
			}
		case time.Time:
			return x.Format("2006-01-02"), nil
		}
		return nil, fmt.Errorf("must be a date (YYYY-MM-DD)")

	case "timestamp":
		switch x := value.(type) {
		case string:
			if t, err := time.Parse(time.RFC3339Nano, x); err == nil {
				return t.UTC(), nil
			}
		case time.Time:
			return x.UTC(), nil
		}
		return nil, fmt.Errorf("must be an ISO-8601 timestamp")
	}

	return value, nil
}

// coerceID reads a client-supplied item id. Absent, blank and non-positive
// ids all mean "no id".
func coerceID(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	n, ok := toInt64(value)
	if !ok {
		return nil, fmt.Errorf("must be a numeric id")
	}
	if n <= 0 {
		return nil, nil
	}
	return n, nil
}

func toInt64(value any) (int64, bool) {
	switch x := value.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || x > math.MaxInt64 || x < math.MinInt64 {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
