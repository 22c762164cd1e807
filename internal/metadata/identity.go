package metadata

// Identity is the authenticated caller, set by auth middleware. OwnerKey is
// the only source of draft ownership.
type Identity struct {
	OwnerKey string   `json:"owner_key"`
	Roles    []string `json:"roles"`
}

// HasRole checks whether the caller has a specific role.
func (i *Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IdentityKey is the request-local slot auth middleware stores the caller in.
const IdentityKey = "identity"

// IsAdmin reports whether the caller holds the admin role.
func (i *Identity) IsAdmin() bool {
	return i.HasRole("admin")
}
