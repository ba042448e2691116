package propria

import (
	"encoding/json"

	"github.com/google/uuid"
)

// PropertyTemplate is a reusable field definition. Identifier is the stable
// external key; RowID is the store-assigned primary key and is never used for
// client-facing lookups.
type PropertyTemplate struct {
	RowID          uuid.UUID `json:"row_id"`
	Identifier     string    `json:"identifier"`
	Name           string    `json:"name"`
	Type           string    `json:"type"` // "string", "integer", "number", "boolean", "array", "object", ...
	Format         string    `json:"format,omitempty"`
	PossibleValues []string  `json:"possible_values,omitempty"`
	DefaultValue   any       `json:"default_value,omitempty"`
	CreatedAt      int64     `json:"created_at"`
	UpdatedAt      int64     `json:"updated_at"`
}

// Property binds a polymorphic value to a template. The value is stored as
// given; it is not coerced against the template's type tag. PreviousValue
// keeps exactly one prior revision of the value.
type Property struct {
	RowID              uuid.UUID `json:"row_id"`
	TemplateIdentifier string    `json:"template_identifier"`
	Value              any       `json:"value,omitempty"`
	PreviousValue      any       `json:"previous_value,omitempty"`
	CreatedBy          string    `json:"created_by,omitempty"`
	LastModifiedBy     string    `json:"last_modified_by,omitempty"`
	LastModifiedDate   int64     `json:"last_modified_date"`
	CreatedAt          int64     `json:"created_at"`
	UpdatedAt          int64     `json:"updated_at"`
}

// Form is a named grouping of properties. The canonical stored representation
// is a list of property row ids; embedded property objects only appear in
// create payloads and in the unified read-time projection.
type Form struct {
	RowID       uuid.UUID   `json:"row_id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	PropertyIDs []uuid.UUID `json:"property_ids"`
	CreatedAt   int64       `json:"created_at"`
	UpdatedAt   int64       `json:"updated_at"`
}

// HasProperty reports whether the form references the given property id.
func (f *Form) HasProperty(id uuid.UUID) bool {
	for _, pid := range f.PropertyIDs {
		if pid == id {
			return true
		}
	}
	return false
}

// FormPayload is the create-form input. Clients either embed full property
// objects (materialized into the property store on create) or pass existing
// property row ids. Supplying both is rejected.
type FormPayload struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Properties  []*Property `json:"properties,omitempty"`
	PropertyIDs []uuid.UUID `json:"property_ids,omitempty"`
}

// UnifiedProperty is the derived, non-persisted merge of a property's value
// with its template's descriptive metadata. It is built per request and never
// written back.
type UnifiedProperty struct {
	PropertyID         uuid.UUID `json:"property_id"`
	TemplateIdentifier string    `json:"template_identifier"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	Format             string    `json:"format,omitempty"`
	PossibleValues     []string  `json:"possible_values,omitempty"`
	DefaultValue       any       `json:"default_value,omitempty"`
	Value              any       `json:"value,omitempty"`
}

// ValueKind tags the JSON shape of a stored value.
type ValueKind string

const (
	ValueKindNull    ValueKind = "null"
	ValueKindString  ValueKind = "string"
	ValueKindNumber  ValueKind = "number"
	ValueKindBoolean ValueKind = "boolean"
	ValueKindArray   ValueKind = "array"
	ValueKindObject  ValueKind = "object"
)

// KindOf reports the JSON shape of a decoded value. Values are decoded with
// encoding/json defaults, so numbers arrive as float64.
func KindOf(v any) ValueKind {
	switch v.(type) {
	case nil:
		return ValueKindNull
	case string:
		return ValueKindString
	case bool:
		return ValueKindBoolean
	case float64, float32, int, int8, int16, int32, int64, json.Number:
		return ValueKindNumber
	case []any, []string:
		return ValueKindArray
	case map[string]any:
		return ValueKindObject
	default:
		return ValueKindObject
	}
}
