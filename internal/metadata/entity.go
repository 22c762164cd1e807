package metadata

// Entity is a stored record kind: the primary employee draft or one of its
// dependent collections.
type Entity struct {
	Name    string  `json:"name"` // payload key for dependents
	Table   string  `json:"table"`
	Label   string  `json:"label"`
	Primary bool    `json:"primary,omitempty"`
	Fields  []Field `json:"fields"`

	// OwnerColumn is the foreign key to employees.id on dependents, and the
	// owner key column on the primary entity.
	OwnerColumn string `json:"owner_column"`

	// ServerOwned lists payload keys the client may send but never writes.
	ServerOwned []string `json:"server_owned,omitempty"`
}

// GetField returns a pointer to the field with the given canonical name, or nil.
func (e *Entity) GetField(name string) *Field {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i]
		}
	}
	return nil
}

// LookupField resolves a canonical or alias name to its field.
func (e *Entity) LookupField(name string) *Field {
	if f := e.GetField(name); f != nil {
		return f
	}
	for i := range e.Fields {
		for _, a := range e.Fields[i].Aliases {
			if a == name {
				return &e.Fields[i]
			}
		}
	}
	return nil
}

// IsServerOwned reports whether key is accepted on input but ignored.
func (e *Entity) IsServerOwned(key string) bool {
	for _, k := range e.ServerOwned {
		if k == key {
			return true
		}
	}
	return false
}

// Columns returns the full column list including system columns.
func (e *Entity) Columns() []string {
	cols := make([]string, 0, len(e.Fields)+4)
	cols = append(cols, "id", e.OwnerColumn)
	if e.Primary {
		cols = append(cols, "status")
	}
	for _, f := range e.Fields {
		cols = append(cols, f.Column())
	}
	return append(cols, "created_at", "updated_at")
}

// RequiredFields returns the fields an item cannot be stored without.
func (e *Entity) RequiredFields() []Field {
	var fields []Field
	for _, f := range e.Fields {
		if f.Required {
			fields = append(fields, f)
		}
	}
	return fields
}
