package internal

import (
	"context"

	"go.uber.org/zap"

	"github.com/lychee-technology/propria"
)

func (m *manager) CreateTemplate(ctx context.Context, template *propria.PropertyTemplate) (*propria.PropertyTemplate, error) {
	if template == nil {
		return nil, propria.NewValidationError("template", "template payload is required")
	}
	if template.Identifier == "" {
		return nil, propria.NewValidationError("identifier", "identifier is required")
	}
	if template.Name == "" {
		return nil, propria.NewValidationError("name", "name is required")
	}

	if err := m.templates.Insert(ctx, template); err != nil {
		return nil, err
	}
	m.cache.Put(template)

	zap.S().Infow("template created",
		"identifier", template.Identifier,
		"row_id", template.RowID,
		"type", template.Type)

	return template, nil
}

func (m *manager) ListTemplates(ctx context.Context) ([]*propria.PropertyTemplate, error) {
	return m.templates.List(ctx)
}

func (m *manager) GetTemplate(ctx context.Context, identifier string) (*propria.PropertyTemplate, error) {
	if identifier == "" {
		return nil, propria.NewValidationError("identifier", "identifier is required")
	}

	template, err := m.lookupTemplate(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, propria.NewNotFoundError("template", identifier)
	}

	return template, nil
}

func (m *manager) UpdateTemplate(ctx context.Context, identifier string, updates map[string]any) (*propria.PropertyTemplate, error) {
	if identifier == "" {
		return nil, propria.NewValidationError("identifier", "identifier is required")
	}
	if _, ok := updates["identifier"]; ok {
		return nil, propria.NewValidationError("identifier", "identifier is immutable")
	}

	template, err := m.templates.UpdateFields(ctx, identifier, updates)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, propria.NewNotFoundError("template", identifier)
	}
	m.cache.Put(template)

	zap.S().Infow("template updated",
		"identifier", identifier,
		"fields", len(updates))

	return template, nil
}
