package internal

import (
	"context"

	"github.com/google/uuid"
	"github.com/lychee-technology/propria"
)

// TemplateStore is the persistence surface the manager needs for templates.
type TemplateStore interface {
	Insert(ctx context.Context, template *propria.PropertyTemplate) error
	GetByIdentifier(ctx context.Context, identifier string) (*propria.PropertyTemplate, error)
	List(ctx context.Context) ([]*propria.PropertyTemplate, error)
	UpdateFields(ctx context.Context, identifier string, updates map[string]any) (*propria.PropertyTemplate, error)
	Delete(ctx context.Context, q querier, identifier string) (bool, error)
	Exists(ctx context.Context, identifier string) (bool, error)
}

// PropertyStore is the persistence surface the manager needs for properties.
type PropertyStore interface {
	Insert(ctx context.Context, q querier, property *propria.Property) error
	GetByID(ctx context.Context, id uuid.UUID) (*propria.Property, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*propria.Property, error)
	List(ctx context.Context) ([]*propria.Property, error)
	Update(ctx context.Context, property *propria.Property) (bool, error)
	Delete(ctx context.Context, q querier, id uuid.UUID) (bool, error)
	DeleteByTemplate(ctx context.Context, q querier, templateIdentifier string) ([]uuid.UUID, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// FormStore is the persistence surface the manager needs for forms.
type FormStore interface {
	Insert(ctx context.Context, form *propria.Form) error
	GetByID(ctx context.Context, id uuid.UUID) (*propria.Form, error)
	GetByName(ctx context.Context, name string) (*propria.Form, error)
	List(ctx context.Context) ([]*propria.Form, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) (*propria.Form, error)
	AppendPropertyRef(ctx context.Context, formID, propertyID uuid.UUID) (bool, error)
	PullPropertyRefs(ctx context.Context, q querier, propertyIDs []uuid.UUID) error
}

type manager struct {
	pool           documentPool
	templates      TemplateStore
	properties     PropertyStore
	forms          FormStore
	cache          *TemplateCache
	validateValues bool
}

// NewManager wires the service layer over injected repositories. No global
// store handle exists; everything flows through the constructor.
func NewManager(
	pool documentPool,
	templates TemplateStore,
	properties PropertyStore,
	forms FormStore,
	cache *TemplateCache,
	validation propria.ValidationConfig,
) propria.Manager {
	if cache == nil {
		cache = NewTemplateCache(propria.CacheConfig{})
	}
	return &manager{
		pool:           pool,
		templates:      templates,
		properties:     properties,
		forms:          forms,
		cache:          cache,
		validateValues: validation.ValidateValues,
	}
}

// lookupTemplate resolves a template by identifier through the cache.
// Returns nil when no template is registered under the identifier.
func (m *manager) lookupTemplate(ctx context.Context, identifier string) (*propria.PropertyTemplate, error) {
	if template, ok := m.cache.Get(identifier); ok {
		return template, nil
	}

	template, err := m.templates.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if template != nil {
		m.cache.Put(template)
	}

	return template, nil
}

// unify merges a property's value with its template's descriptive metadata.
// The result is derived per request and never persisted.
func unify(template *propria.PropertyTemplate, property *propria.Property) *propria.UnifiedProperty {
	return &propria.UnifiedProperty{
		PropertyID:         property.RowID,
		TemplateIdentifier: template.Identifier,
		Name:               template.Name,
		Type:               template.Type,
		Format:             template.Format,
		PossibleValues:     template.PossibleValues,
		DefaultValue:       template.DefaultValue,
		Value:              property.Value,
	}
}
