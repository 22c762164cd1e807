package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credentialing-backend/internal/metadata"
)

func TestCompileRule(t *testing.T) {
	_, err := CompileRule(`value matches "^[0-9]{4}$"`)
	require.NoError(t, err)

	_, err = CompileRule(`value >=`)
	assert.Error(t, err)
}

func TestCompileRules_AllSchemaRulesCompile(t *testing.T) {
	rs, err := compileRules(metadata.NewRegistry())
	require.NoError(t, err)
	assert.NotEmpty(t, rs.programs)
}

func TestCompileRules_BadRuleFailsStartup(t *testing.T) {
	reg := metadata.NewRegistry()
	reg.Load(&metadata.Entity{
		Name: "employee", Table: "employees", Primary: true, OwnerColumn: "owner_key",
		Fields: []metadata.Field{{Name: "code", Type: "string", Rule: "value matches"}},
	}, nil)

	_, err := compileRules(reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "employee.code")
}

func TestCheckField_Enum(t *testing.T) {
	rs := newRuleSet()
	f := &metadata.Field{Name: "formType", Type: "string", Enum: []string{"W-4", "W-9"}}

	assert.Nil(t, rs.checkField("taxForms", f, "taxForms[0].formType", "W-9"))
	detail := rs.checkField("taxForms", f, "taxForms[0].formType", "W-2")
	require.NotNil(t, detail)
	assert.Equal(t, "enum", detail.Rule)
	assert.Equal(t, "taxForms[0].formType", detail.Field)
}

func TestCheckField_MaxLengthCountsRunes(t *testing.T) {
	rs := newRuleSet()
	f := &metadata.Field{Name: "suffix", Type: "string", MaxLength: 3}

	assert.Nil(t, rs.checkField("employee", f, "suffix", "Jré"))
	detail := rs.checkField("employee", f, "suffix", "Jr.x")
	require.NotNil(t, detail)
	assert.Equal(t, "max_length", detail.Rule)
}

func TestCheckField_Expression(t *testing.T) {
	rs := newRuleSet()
	f := &metadata.Field{Name: "graduationYear", Type: "int", Rule: `value >= 1900 && value <= 2100`, Message: "must be a plausible year"}

	assert.Nil(t, rs.checkField("education", f, "year", int64(2012)))
	detail := rs.checkField("education", f, "year", int64(1776))
	require.NotNil(t, detail)
	assert.Equal(t, "expression", detail.Rule)
	assert.Equal(t, "must be a plausible year", detail.Message)

	// lazily compiled and cached
	assert.Contains(t, rs.programs, "education.graduationYear")
}

func TestCheckField_EmptyStringSkipsPattern(t *testing.T) {
	rs := newRuleSet()
	f := &metadata.Field{Name: "npiNumber", Type: "string", Rule: `value matches "^[0-9]{10}$"`}

	assert.Nil(t, rs.checkField("employee", f, "npiNumber", ""))
	assert.Nil(t, rs.checkField("employee", f, "npiNumber", nil))
	assert.NotNil(t, rs.checkField("employee", f, "npiNumber", "123"))
}
