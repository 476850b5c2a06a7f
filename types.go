package formgen

import (
	"strings"
)

// PropertyKind classifies an entity property.
type PropertyKind string

const (
	PropertyKindColumn        PropertyKind = "column"
	PropertyKindReferenceOne  PropertyKind = "reference_one"
	PropertyKindReferenceMany PropertyKind = "reference_many"
	PropertyKindOther         PropertyKind = "other"
)

// IsReference reports whether the kind points at another entity type.
func (k PropertyKind) IsReference() bool {
	return k == PropertyKindReferenceOne || k == PropertyKindReferenceMany
}

// Declared column types that map onto dedicated field kinds.
const (
	DeclaredTypeDateTime = "datetime"
	DeclaredTypeDate     = "date"
	DeclaredTypeTime     = "time"
	DeclaredTypeText     = "text"
	DeclaredTypeBoolean  = "boolean"
)

// PropertyDescriptor describes one declared property of an entity type.
type PropertyDescriptor struct {
	Name             string       `json:"name"`
	Kind             PropertyKind `json:"kind"`
	DeclaredType     string       `json:"declared_type,omitempty"` // "" when the column has no declared type
	IsIdentifier     bool         `json:"is_identifier,omitempty"`
	TargetEntityType string       `json:"target_entity_type,omitempty"` // set only for reference kinds
}

// FieldKind is the input kind chosen for a form field.
type FieldKind string

const (
	FieldKindDateTime      FieldKind = "datetime"
	FieldKindDate          FieldKind = "date"
	FieldKindTime          FieldKind = "time"
	FieldKindTextarea      FieldKind = "textarea"
	FieldKindCheckbox      FieldKind = "checkbox"
	FieldKindEmail         FieldKind = "email"
	FieldKindPassword      FieldKind = "password"
	FieldKindText          FieldKind = "text"
	FieldKindSelect        FieldKind = "select"
	FieldKindRadio         FieldKind = "radio"
	FieldKindMultiSelect   FieldKind = "multiselect"
	FieldKindMultiCheckbox FieldKind = "multicheckbox"
	FieldKindSubmit        FieldKind = "submit"
)

// IsChoice reports whether the field kind carries an option list.
func (k FieldKind) IsChoice() bool {
	switch k {
	case FieldKindSelect, FieldKindRadio, FieldKindMultiSelect, FieldKindMultiCheckbox:
		return true
	default:
		return false
	}
}

// ToOneChoice selects the field kind used for single references.
type ToOneChoice string

const (
	ToOneSelect ToOneChoice = "select"
	ToOneRadio  ToOneChoice = "radio"
)

// ToManyChoice selects the field kind used for collection references.
type ToManyChoice string

const (
	ToManyMultiSelect   ToManyChoice = "multiselect"
	ToManyMultiCheckbox ToManyChoice = "multicheckbox"
)

// ParseToOneChoice parses a case-insensitive to-one choice name.
func ParseToOneChoice(s string) (ToOneChoice, bool) {
	switch ToOneChoice(strings.ToLower(strings.TrimSpace(s))) {
	case ToOneSelect:
		return ToOneSelect, true
	case ToOneRadio:
		return ToOneRadio, true
	default:
		return "", false
	}
}

// ParseToManyChoice parses a case-insensitive to-many choice name.
func ParseToManyChoice(s string) (ToManyChoice, bool) {
	switch ToManyChoice(strings.ToLower(strings.TrimSpace(s))) {
	case ToManyMultiSelect:
		return ToManyMultiSelect, true
	case ToManyMultiCheckbox:
		return ToManyMultiCheckbox, true
	default:
		return "", false
	}
}

// Option is one entry of a choice field. Value is the row identifier.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldSpec is a single form field.
type FieldSpec struct {
	Name       string         `json:"name"`
	Kind       FieldKind      `json:"kind"`
	Label      string         `json:"label,omitempty"`
	Value      string         `json:"value,omitempty"`
	Options    []Option       `json:"options,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// FormDefinition is the ordered list of fields produced for an entity.
// The submit field, when present, is always the last entry.
type FormDefinition struct {
	EntityType string      `json:"entity_type,omitempty"`
	Fields     []FieldSpec `json:"fields"`
}

// Field returns the field with the given name.
func (f *FormDefinition) Field(name string) (FieldSpec, bool) {
	for _, field := range f.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return FieldSpec{}, false
}

// FieldNames returns field names in form order.
func (f *FormDefinition) FieldNames() []string {
	names := make([]string, 0, len(f.Fields))
	for _, field := range f.Fields {
		names = append(names, field.Name)
	}
	return names
}

// Row is a stored entity instance offered as a reference option.
type Row interface {
	ID() string
	DisplayLabel() string
}

// Record is a plain Row implementation returned by the bundled stores.
type Record struct {
	RowID string `json:"id"`
	Label string `json:"label"`
}

func (r Record) ID() string           { return r.RowID }
func (r Record) DisplayLabel() string { return r.Label }

// EntityTable locates the rows of an entity type in a relational store.
type EntityTable struct {
	EntityType    string
	Table         string
	IDColumn      string
	DisplayColumn string
}
