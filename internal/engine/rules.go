package engine

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"credentialing-backend/internal/metadata"
)

// ruleSet holds compiled field rules keyed by entity and field name.
type ruleSet struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

func newRuleSet() *ruleSet {
	return &ruleSet{programs: make(map[string]*vm.Program)}
}

func ruleKey(entity, field string) string { return entity + "." + field }

// compileRules compiles every field rule in the registry up front so a bad
// rule fails at startup rather than on the first request that reaches it.
func compileRules(reg *metadata.Registry) (*ruleSet, error) {
	rs := newRuleSet()
	for _, e := range reg.AllEntities() {
		for _, f := range e.Fields {
			if f.Rule == "" {
				continue
			}
			prog, err := CompileRule(f.Rule)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", e.Name, f.Name, err)
			}
			rs.programs[ruleKey(e.Name, f.Name)] = prog
		}
	}
	return rs, nil
}

// CompileRule compiles a boolean expression over `value`.
func CompileRule(expression string) (*vm.Program, error) {
	prog, err := expr.Compile(expression, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile rule: %w", err)
	}
	return prog, nil
}

func (rs *ruleSet) program(entity string, f *metadata.Field) (*vm.Program, error) {
	key := ruleKey(entity, f.Name)
	rs.mu.RLock()
	prog, ok := rs.programs[key]
	rs.mu.RUnlock()
	if ok {
		return prog, nil
	}

	// registry reloaded after startup
	prog, err := CompileRule(f.Rule)
	if err != nil {
		return nil, err
	}
	rs.mu.Lock()
	rs.programs[key] = prog
	rs.mu.Unlock()
	return prog, nil
}

// checkField runs the declarative constraints on an already coerced value.
// Returns nil when the value passes.
func (rs *ruleSet) checkField(entity string, f *metadata.Field, path string, value any) *ErrorDetail {
	if value == nil {
		return nil
	}

	if len(f.Enum) > 0 {
		s, _ := value.(string)
		if !containsString(f.Enum, s) {
			return &ErrorDetail{Field: path, Rule: "enum", Message: fmt.Sprintf("must be one of %v", f.Enum)}
		}
	}

	if f.MaxLength > 0 {
		if s, ok := value.(string); ok && utf8.RuneCountInString(s) > f.MaxLength {
			return &ErrorDetail{Field: path, Rule: "max_length", Message: fmt.Sprintf("must be at most %d characters", f.MaxLength)}
		}
	}

	if f.Rule == "" {
		return nil
	}
	if s, ok := value.(string); ok && s == "" {
		// an empty string clears the field; patterns apply to content only
		return nil
	}
	prog, err := rs.program(entity, f)
	if err != nil {
		return &ErrorDetail{Field: path, Rule: "expression", Message: fmt.Sprintf("compile error: %v", err)}
	}
	result, err := expr.Run(prog, map[string]any{"value": value})
	if err != nil {
		return &ErrorDetail{Field: path, Rule: "expression", Message: fmt.Sprintf("rule evaluation error: %v", err)}
	}
	if ok, _ := result.(bool); !ok {
		msg := f.Message
		if msg == "" {
			msg = "is invalid"
		}
		return &ErrorDetail{Field: path, Rule: "expression", Message: msg}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
