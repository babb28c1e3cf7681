// Package entity implements the table accessor at the heart of the data
// layer: generic CRUD over one runtime-configured table, condition building
// for its WHERE clauses, and slug bookkeeping in the shared slug table.
package entity

import (
	"errors"
	"fmt"
)

// Reserved column names. They are managed by the accessor itself and are
// silently dropped when supplied in insert/update payloads.
const (
	FieldActive  = "is_active"
	FieldArchive = "is_archived"
	FieldSort    = "sort_order"
	FieldUploads = "has_uploads"
)

// Locked column names. Maintained internally on write, never settable.
const (
	FieldSlug      = "slug"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

var reservedFields = map[string]struct{}{
	FieldActive:  {},
	FieldArchive: {},
	FieldSort:    {},
	FieldUploads: {},
}

var lockedFields = map[string]struct{}{
	FieldSlug:      {},
	FieldCreatedAt: {},
	FieldUpdatedAt: {},
}

// IsReserved reports whether name is one of the accessor-managed columns.
func IsReserved(name string) bool {
	_, ok := reservedFields[name]
	return ok
}

// IsLocked reports whether name is maintained internally and never settable.
func IsLocked(name string) bool {
	_, ok := lockedFields[name]
	return ok
}

// Field is one configured column of an entity. ID is a stable numeric
// identifier assigned by configuration; it survives renames and is what the
// schema diff uses to match old and new definitions.
type Field struct {
	ID      int
	Name    string
	Default interface{}
}

// Definition describes one logical entity: its table, primary key and field
// set. It is immutable for the lifetime of the accessor built from it.
type Definition struct {
	Name       string
	PKField    string
	TitleField string
	SlugSource string // field whose text drives slug generation
	Fields     []Field

	UseActive  bool
	UseArchive bool
	UseSort    bool
	UseSlug    bool
	UseUploads bool
}

// Validate checks the construction-time requirements. A definition missing
// its name or primary key is a configuration error, not a recoverable one.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return errors.New("entity definition: name is required")
	}
	if d.PKField == "" {
		return fmt.Errorf("entity %q: primary key field is required", d.Name)
	}
	if d.UseSlug && d.SlugSource == "" {
		return fmt.Errorf("entity %q: slug enabled without a source field", d.Name)
	}
	seen := make(map[string]struct{}, len(d.Fields))
	for _, f := range d.Fields {
		if f.Name == "" {
			return fmt.Errorf("entity %q: field with empty name", d.Name)
		}
		if IsReserved(f.Name) || IsLocked(f.Name) {
			return fmt.Errorf("entity %q: field %q collides with a reserved column", d.Name, f.Name)
		}
		if f.Name == d.PKField {
			return fmt.Errorf("entity %q: field %q collides with the primary key", d.Name, f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("entity %q: duplicate field %q", d.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// HasField reports whether name is a configured (non-reserved) field.
func (d *Definition) HasField(name string) bool {
	for _, f := range d.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Defaults returns the field default values in definition order.
func (d *Definition) Defaults() map[string]interface{} {
	out := make(map[string]interface{}, len(d.Fields))
	for _, f := range d.Fields {
		out[f.Name] = f.Default
	}
	return out
}

// usesReserved reports whether the definition enables the given reserved
// column.
func (d *Definition) usesReserved(name string) bool {
	switch name {
	case FieldActive:
		return d.UseActive
	case FieldArchive:
		return d.UseArchive
	case FieldSort:
		return d.UseSort
	case FieldUploads:
		return d.UseUploads
	}
	return false
}

// allowedColumn reports whether name may appear in a WHERE clause or an
// ORDER BY for this entity: the primary key, a configured field, or an
// enabled reserved column.
func (d *Definition) allowedColumn(name string) bool {
	if name == d.PKField || d.HasField(name) {
		return true
	}
	if IsReserved(name) {
		return d.usesReserved(name)
	}
	return false
}
