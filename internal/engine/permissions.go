package engine

import (
	"credentialing-backend/internal/metadata"
)

type access int

const (
	accessRead access = iota
	accessWrite
)

// checkOwnership decides whether ident may touch a draft owned by recordOwner.
// Owners may do anything with their draft. Admins may read any draft but
// writes always require ownership.
func checkOwnership(ident *metadata.Identity, a access, entity *metadata.Entity, id any, recordOwner string) error {
	if ident == nil || ident.OwnerKey == "" {
		return UnauthorizedError("Authentication required")
	}
	if recordOwner == ident.OwnerKey {
		return nil
	}
	if a == accessRead && ident.IsAdmin() {
		return nil
	}
	return OwnershipMismatchError(entity.Label, id)
}
