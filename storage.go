package propria

import (
	"context"

	"github.com/google/uuid"
)

// TemplateRegistry owns property template definitions. Templates are looked
// up by their stable identifier, never by row id.
type TemplateRegistry interface {
	CreateTemplate(ctx context.Context, template *PropertyTemplate) (*PropertyTemplate, error)
	ListTemplates(ctx context.Context) ([]*PropertyTemplate, error)
	GetTemplate(ctx context.Context, identifier string) (*PropertyTemplate, error)
	// UpdateTemplate applies only the fields present in updates; absent
	// fields are left untouched.
	UpdateTemplate(ctx context.Context, identifier string, updates map[string]any) (*PropertyTemplate, error)
	// DeleteTemplate removes the template and cascades: dependent properties
	// are deleted and their ids pulled from every form, in one transaction.
	DeleteTemplate(ctx context.Context, identifier string) error
}

// PropertyManager owns stored property values.
type PropertyManager interface {
	CreateProperty(ctx context.Context, property *Property) (*Property, error)
	ListProperties(ctx context.Context) ([]*Property, error)
	// ListUnifiedProperties returns every property merged with its
	// template's descriptive fields. Properties whose template no longer
	// exists are dropped from the result.
	ListUnifiedProperties(ctx context.Context) ([]*UnifiedProperty, error)
	GetProperty(ctx context.Context, id uuid.UUID) (*Property, error)
	// UpdateProperty applies only the fields present in updates. When a
	// value is supplied, the prior value is archived into previous_value.
	UpdateProperty(ctx context.Context, id uuid.UUID, updates map[string]any) (*Property, error)
	// DeleteProperty removes the property and pulls its id from every
	// form's reference list, in one transaction.
	DeleteProperty(ctx context.Context, id uuid.UUID) error
	// PublishProperty creates a property and appends its id to every
	// existing form. The fan-out is sequential and not atomic: a failure
	// partway through leaves the property attached to only some forms.
	PublishProperty(ctx context.Context, property *Property) (*Property, error)
}

// FormManager owns named property groupings.
type FormManager interface {
	CreateForm(ctx context.Context, payload *FormPayload) (*Form, error)
	// GetForm resolves either a form name or a row id string.
	GetForm(ctx context.Context, nameOrID string) (*Form, error)
	UpdateForm(ctx context.Context, id uuid.UUID, updates map[string]any) (*Form, error)
	// AddFormProperty creates the property and appends its id to the form.
	// The two steps are not atomic; a failed append can orphan the property.
	AddFormProperty(ctx context.Context, formID uuid.UUID, property *Property) (*Property, error)
	UpdateFormProperty(ctx context.Context, formID, propertyID uuid.UUID, updates map[string]any) (*Property, error)
	// UnifiedFormProperties builds the unified projection for a form looked
	// up by name.
	UnifiedFormProperties(ctx context.Context, name string) ([]*UnifiedProperty, error)
}

// Manager aggregates the three stores behind a single service surface.
type Manager interface {
	TemplateRegistry
	PropertyManager
	FormManager
}
