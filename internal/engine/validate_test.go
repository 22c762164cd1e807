package engine

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credentialing-backend/internal/logging"
	"credentialing-backend/internal/metadata"
)

func TestNormalizeDates(t *testing.T) {
	cases := []struct {
		name string
		kind metadata.DateKind
		in   any
		want any
	}{
		{"date as written", metadata.DateOnly, "2024-03-01", "2024-03-01"},
		{"instant keeps calendar date", metadata.DateOnly, "2024-03-01T23:30:00-05:00", "2024-03-01"},
		{"instant at utc midnight", metadata.DateOnly, "1990-04-01T00:00:00.000Z", "1990-04-01"},
		{"us format", metadata.DateOnly, "03/01/2024", "2024-03-01"},
		{"blank", metadata.DateOnly, "  ", nil},
		{"nil", metadata.DateOnly, nil, nil},
		{"garbage passes through", metadata.DateOnly, "soon", "soon"},
		{"time value", metadata.DateOnly, time.Date(2020, 2, 29, 22, 0, 0, 0, time.FixedZone("x", -5*3600)), "2020-02-29"},
		{"timestamp to utc", metadata.DateTimestamp, "2025-01-02T03:04:05-05:00", "2025-01-02T08:04:05Z"},
		{"bare timestamp assumed utc", metadata.DateTimestamp, "2025-01-02 03:04:05", "2025-01-02T03:04:05Z"},
		{"timestamp blank", metadata.DateTimestamp, "", nil},
		{"number untouched", metadata.DateTimestamp, float64(12), float64(12)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeDate(tc.in, tc.kind))
		})
	}
}

func TestNormalizePayload_WalksCollections(t *testing.T) {
	n := NewNormalizer(metadata.NewRegistry(), 10, logging.Discard())
	out := n.NormalizePayload(map[string]any{
		"firstName":   "Ada",
		"dob":         "1990-04-01T00:00:00Z",
		"hireDate":    "",
		"unknownDate": "2024-01-01T10:00:00Z",
		"education": []any{
			map[string]any{"graduationDate": "2012-05-20T12:00:00Z", "endDate": ""},
		},
	})

	assert.Equal(t, "Ada", out["firstName"])
	assert.Equal(t, "1990-04-01", out["dob"], "aliases resolve to their field's date kind")
	assert.Nil(t, out["hireDate"])
	assert.Contains(t, out, "hireDate", "an explicit blank stays present as null")
	assert.Equal(t, "2024-01-01T10:00:00Z", out["unknownDate"], "undeclared keys are left for the validator")
	assert.NotContains(t, out, "middleName", "absent keys are not invented")

	edu := out["education"].([]any)[0].(map[string]any)
	assert.Equal(t, "2012-05-20", edu["graduationDate"])
	assert.Nil(t, edu["endDate"])
}

func TestNormalize_DepthLimit(t *testing.T) {
	n := NewNormalizer(metadata.NewRegistry(), 2, logging.Discard())
	deep := map[string]any{"a": map[string]any{"b": map[string]any{"c": map[string]any{"d": "x"}}}}

	out := n.Normalize(deep, nil, 0)
	a := out.(map[string]any)["a"].(map[string]any)
	b := a["b"].(map[string]any)
	assert.Equal(t, deep["a"].(map[string]any)["b"].(map[string]any)["c"], b["c"], "subtree past the limit is returned unchanged")
}

func aliased(e *metadata.Entity, item map[string]any) map[string]any {
	out, _ := resolveAliases(e, item)
	return out
}

func TestResolveAliases(t *testing.T) {
	contacts := metadata.EmergencyContacts

	t.Run("legacy names map to canonical", func(t *testing.T) {
		out, from := resolveAliases(contacts, map[string]any{"name": "Jane", "phone": "555-0100"})
		assert.Equal(t, map[string]any{"contactName": "Jane", "phoneNumber": "555-0100"}, out)
		assert.Equal(t, map[string]string{"contactName": "name", "phoneNumber": "phone"}, from)
	})

	t.Run("canonical is a no-op", func(t *testing.T) {
		in := map[string]any{"contactName": "Jane", "phoneNumber": "555-0100", "isPrimary": true}
		once := aliased(contacts, in)
		assert.Equal(t, in, once)
		assert.Equal(t, once, aliased(contacts, once))
	})

	t.Run("non-blank canonical wins", func(t *testing.T) {
		out, from := resolveAliases(contacts, map[string]any{"contactName": "Jane", "name": "Other"})
		assert.Equal(t, "Jane", out["contactName"])
		assert.Equal(t, "contactName", from["contactName"])
	})

	t.Run("alias fills blank canonical", func(t *testing.T) {
		out := aliased(contacts, map[string]any{"contactName": " ", "fullName": "Jane Doe"})
		assert.Equal(t, "Jane Doe", out["contactName"])
	})

	t.Run("explicit blank alias clears", func(t *testing.T) {
		out := aliased(contacts, map[string]any{"phone": ""})
		assert.Equal(t, map[string]any{"phoneNumber": ""}, out)
	})

	t.Run("dea number from generic license number", func(t *testing.T) {
		out := aliased(metadata.DEALicenses, map[string]any{"licenseNumber": "AB1234563"})
		assert.Equal(t, map[string]any{"deaNumber": "AB1234563"}, out)
	})

	t.Run("unknown and server keys stripped", func(t *testing.T) {
		out := aliased(metadata.Employee, map[string]any{"firstName": "A", "status": "approved", "id": int64(3), "bogus": 1})
		assert.Equal(t, map[string]any{"firstName": "A"}, out)
	})
}

func newValidator(t *testing.T, maxItems int) *Validator {
	t.Helper()
	v, err := NewValidator(metadata.NewRegistry(), maxItems)
	require.NoError(t, err)
	return v
}

func TestValidate_Coercion(t *testing.T) {
	v := newValidator(t, 50)

	out, errs := v.Validate(metadata.Education, map[string]any{
		"institutionName": "State U",
		"graduationYear":  "2012",
		"id":              "17",
	}, "education[0].")
	require.Empty(t, errs)
	assert.Equal(t, int64(2012), out["graduationYear"])
	assert.Equal(t, int64(17), out["id"])

	out, errs = v.Validate(metadata.EmergencyContacts, map[string]any{
		"contactName": "Jane",
		"phoneNumber": float64(5550100),
		"isPrimary":   float64(1),
	}, "")
	require.Empty(t, errs)
	assert.Equal(t, "5550100", out["phoneNumber"])
	assert.Equal(t, true, out["isPrimary"])

	out, errs = v.Validate(metadata.Employee, map[string]any{
		"consentAcceptedAt":      "2025-01-02T08:04:05Z",
		"backgroundCheckConsent": "false",
		"lastCompletedStep":      json.Number("3"),
	}, "")
	require.Empty(t, errs)
	assert.Equal(t, time.Date(2025, 1, 2, 8, 4, 5, 0, time.UTC), out["consentAcceptedAt"])
	assert.Equal(t, false, out["backgroundCheckConsent"])
	assert.Equal(t, int64(3), out["lastCompletedStep"])
}

func TestValidate_IDs(t *testing.T) {
	v := newValidator(t, 50)
	for _, raw := range []any{nil, "", float64(0), float64(-4)} {
		out, errs := v.Validate(metadata.Trainings, map[string]any{"id": raw}, "")
		require.Empty(t, errs)
		assert.Nil(t, out["id"], "id %v counts as absent", raw)
	}

	_, errs := v.Validate(metadata.Trainings, map[string]any{"id": "abc"}, "trainings[3].")
	require.Len(t, errs, 1)
	assert.Equal(t, "trainings[3].id", errs[0].Field)

	_, errs = v.Validate(metadata.Trainings, map[string]any{"id": float64(1.5)}, "")
	assert.Len(t, errs, 1)
}

func TestValidate_RejectsStructurallyInvalid(t *testing.T) {
	v := newValidator(t, 50)
	_, errs := v.Validate(metadata.Employee, map[string]any{
		"lastCompletedStep":      "three",
		"backgroundCheckConsent": "maybe",
		"dateOfBirth":            "1990-13-45",
		"firstName":              map[string]any{"nested": true},
		"npiNumber":              "12345",
		"state":                  "ZZ",
		"injected":               "x",
	}, "")

	got := map[string]string{}
	for _, e := range errs {
		got[e.Field] = e.Rule
	}
	assert.Equal(t, map[string]string{
		"lastCompletedStep":      "type",
		"backgroundCheckConsent": "type",
		"dateOfBirth":            "type",
		"firstName":              "type",
		"npiNumber":              "expression",
		"state":                  "enum",
		"injected":               "unknown",
	}, got)
}

func TestValidate_ServerOwnedKeysAcceptedAndDropped(t *testing.T) {
	v := newValidator(t, 50)
	out, errs := v.Validate(metadata.Employee, map[string]any{
		"id": float64(1), "ownerKey": "x", "status": "approved", "employeeId": float64(2),
		"createdAt": "2020-01-01", "updatedAt": "2020-01-01", "firstName": "A",
	}, "")
	require.Empty(t, errs)
	assert.Equal(t, map[string]any{"firstName": "A"}, out)

	out, errs = v.Validate(metadata.Trainings, map[string]any{"employeeId": float64(99), "trainingName": "BLS"}, "")
	require.Empty(t, errs)
	assert.NotContains(t, out, "employeeId")
}

func TestValidatePayload(t *testing.T) {
	v := newValidator(t, 3)

	in, errs := v.ValidatePayload(map[string]any{
		"firstName":         "Ada",
		"phone":             "555-0100",
		"emergencyContacts": []any{map[string]any{"name": "Jane", "phone": "555-0199"}},
		"trainings":         nil,
	})
	require.Empty(t, errs)
	assert.Equal(t, map[string]any{"firstName": "Ada", "phoneNumber": "555-0100"}, in.Fields)
	assert.Equal(t, []map[string]any{{"contactName": "Jane", "phoneNumber": "555-0199"}}, in.Collections["emergencyContacts"])
	assert.NotContains(t, in.Collections, "trainings")
	assert.NotContains(t, in.Collections, "education")

	tooMany := make([]any, 4)
	for i := range tooMany {
		tooMany[i] = map[string]any{"trainingName": fmt.Sprint(i)}
	}
	_, errs = v.ValidatePayload(map[string]any{
		"trainings":  tooMany,
		"education":  "not a list",
		"employment": []any{"not an object"},
	})
	got := map[string]string{}
	for _, e := range errs {
		got[e.Field] = e.Rule
	}
	assert.Equal(t, map[string]string{
		"trainings":     "max_items",
		"education":     "type",
		"employment[0]": "type",
	}, got)
}

func TestValidate_DiscardedAliasIsNotChecked(t *testing.T) {
	v := newValidator(t, 50)

	out, errs := v.Validate(metadata.DEALicenses, map[string]any{
		"deaNumber":     "AB1234563",
		"licenseNumber": "RN-77",
	}, "deaLicenses[0].")
	require.Empty(t, errs)
	assert.Equal(t, map[string]any{"deaNumber": "AB1234563"}, out)

	// the alias that is kept is checked, and the error names the key sent
	_, errs = v.Validate(metadata.DEALicenses, map[string]any{"licenseNumber": "RN-77"}, "deaLicenses[0].")
	require.Len(t, errs, 1)
	assert.Equal(t, "deaLicenses[0].licenseNumber", errs[0].Field)
	assert.Equal(t, "expression", errs[0].Rule)
}

func TestValidate_BlankEnumMeansUnset(t *testing.T) {
	v := newValidator(t, 50)

	out, errs := v.Validate(metadata.Employee, map[string]any{
		"state":             "",
		"employmentType":    "  ",
		"citizenshipStatus": "",
	}, "")
	require.Empty(t, errs)
	assert.Equal(t, map[string]any{"state": nil, "employmentType": nil, "citizenshipStatus": nil}, out)

	out, errs = v.Validate(metadata.TaxForms, map[string]any{"formType": "", "taxYear": float64(2024)}, "taxForms[0].")
	require.Empty(t, errs)
	assert.Nil(t, out["formType"])
	assert.Equal(t, "formType", missingRequired(metadata.TaxForms, out))
}
