package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"credentialing-backend/internal/metadata"
	"credentialing-backend/internal/store"
)

func TestBuildOwnedIDsSQL_LocksOnPostgres(t *testing.T) {
	qr := BuildOwnedIDsSQL(store.NewDialect("postgres"), metadata.EmergencyContacts, 42)
	assert.Equal(t, "SELECT id FROM employee_emergency_contacts WHERE employee_id = $1 ORDER BY id FOR UPDATE", qr.SQL)
	assert.Equal(t, []any{int64(42)}, qr.Params)

	qr = BuildOwnedIDsSQL(store.NewDialect("sqlite"), metadata.EmergencyContacts, 42)
	assert.Equal(t, "SELECT id FROM employee_emergency_contacts WHERE employee_id = ?1 ORDER BY id", qr.SQL)
}
