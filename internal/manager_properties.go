package internal

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lychee-technology/propria"
)

// validateProperty resolves the property's template and, when value
// validation is enabled, checks the value against the template's schema.
func (m *manager) validateProperty(ctx context.Context, property *propria.Property) error {
	if property.TemplateIdentifier == "" {
		return propria.NewValidationError("template_identifier", "template_identifier is required")
	}

	template, err := m.lookupTemplate(ctx, property.TemplateIdentifier)
	if err != nil {
		return err
	}
	if template == nil {
		return propria.NewInvalidTemplateReferenceError(property.TemplateIdentifier)
	}

	if m.validateValues && property.Value != nil {
		if err := propria.ValidateValue(template, property.Value); err != nil {
			return err
		}
	}

	return nil
}

func (m *manager) CreateProperty(ctx context.Context, property *propria.Property) (*propria.Property, error) {
	if property == nil {
		return nil, propria.NewValidationError("property", "property payload is required")
	}
	if err := m.validateProperty(ctx, property); err != nil {
		return nil, err
	}

	if err := m.properties.Insert(ctx, m.pool, property); err != nil {
		return nil, err
	}

	zap.S().Infow("property created",
		"row_id", property.RowID,
		"template_identifier", property.TemplateIdentifier)

	return property, nil
}

func (m *manager) ListProperties(ctx context.Context) ([]*propria.Property, error) {
	return m.properties.List(ctx)
}

func (m *manager) GetProperty(ctx context.Context, id uuid.UUID) (*propria.Property, error) {
	property, err := m.properties.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if property == nil {
		return nil, propria.NewNotFoundError("property", id.String())
	}
	return property, nil
}

func (m *manager) UpdateProperty(ctx context.Context, id uuid.UUID, updates map[string]any) (*propria.Property, error) {
	if err := ValidatePropertyUpdates(updates); err != nil {
		return nil, err
	}

	property, err := m.properties.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if property == nil {
		return nil, propria.NewNotFoundError("property", id.String())
	}

	if identifier, ok := updates["template_identifier"]; ok {
		property.TemplateIdentifier, _ = identifier.(string)
	}
	if value, ok := updates["value"]; ok {
		property.PreviousValue = property.Value
		property.Value = value
	}
	if modifier, ok := updates["last_modified_by"]; ok {
		property.LastModifiedBy, _ = modifier.(string)
	}

	if err := m.validateProperty(ctx, property); err != nil {
		return nil, err
	}

	updated, err := m.properties.Update(ctx, property)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, propria.NewNotFoundError("property", id.String())
	}

	return property, nil
}

func (m *manager) PublishProperty(ctx context.Context, property *propria.Property) (*propria.Property, error) {
	created, err := m.CreateProperty(ctx, property)
	if err != nil {
		return nil, err
	}

	forms, err := m.forms.List(ctx)
	if err != nil {
		return nil, propria.NewInternalError("listing forms for publish fan-out", err)
	}

	// Sequential fan-out. A failure partway through leaves the property
	// attached to only the forms already touched.
	for touched, form := range forms {
		if _, err := m.forms.AppendPropertyRef(ctx, form.RowID, created.RowID); err != nil {
			return nil, propria.NewPartialFanOutError(touched, len(forms), err)
		}
	}

	zap.S().Infow("property published",
		"row_id", created.RowID,
		"forms", len(forms))

	return created, nil
}
