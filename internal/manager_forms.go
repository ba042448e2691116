package internal

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lychee-technology/propria"
)

func (m *manager) CreateForm(ctx context.Context, payload *propria.FormPayload) (*propria.Form, error) {
	if payload == nil {
		return nil, propria.NewValidationError("form", "form payload is required")
	}
	if payload.Name == "" {
		return nil, propria.NewValidationError("name", "name is required")
	}
	if len(payload.Properties) > 0 && len(payload.PropertyIDs) > 0 {
		return nil, propria.NewValidationError("properties", "supply embedded properties or property ids, not both")
	}

	propertyIDs := payload.PropertyIDs

	// Embedded properties are materialized into the property store before
	// the form is written; the form keeps references only.
	if len(payload.Properties) > 0 {
		propertyIDs = make([]uuid.UUID, 0, len(payload.Properties))
		for _, property := range payload.Properties {
			if err := m.validateProperty(ctx, property); err != nil {
				return nil, err
			}
			if property.Value == nil {
				template, err := m.lookupTemplate(ctx, property.TemplateIdentifier)
				if err != nil {
					return nil, err
				}
				property.Value = template.DefaultValue
			}
			if err := m.properties.Insert(ctx, m.pool, property); err != nil {
				return nil, err
			}
			propertyIDs = append(propertyIDs, property.RowID)
		}
	} else {
		for _, id := range propertyIDs {
			exists, err := m.properties.Exists(ctx, id)
			if err != nil {
				return nil, err
			}
			if !exists {
				return nil, propria.NewInvalidPropertyReferenceError(id.String())
			}
		}
	}

	form := &propria.Form{
		Name:        payload.Name,
		Description: payload.Description,
		PropertyIDs: propertyIDs,
	}
	if err := m.forms.Insert(ctx, form); err != nil {
		return nil, err
	}

	zap.S().Infow("form created",
		"name", form.Name,
		"row_id", form.RowID,
		"properties", len(form.PropertyIDs))

	return form, nil
}

// GetForm accepts either the form's name or its row id rendered as a string.
// Row ids win when the input parses as a UUID.
func (m *manager) GetForm(ctx context.Context, nameOrID string) (*propria.Form, error) {
	if nameOrID == "" {
		return nil, propria.NewValidationError("form", "name or id is required")
	}

	var form *propria.Form
	var err error
	if id, parseErr := uuid.Parse(nameOrID); parseErr == nil {
		form, err = m.forms.GetByID(ctx, id)
	} else {
		form, err = m.forms.GetByName(ctx, nameOrID)
	}
	if err != nil {
		return nil, err
	}
	if form == nil {
		return nil, propria.NewNotFoundError("form", nameOrID)
	}

	return form, nil
}

func (m *manager) UpdateForm(ctx context.Context, id uuid.UUID, updates map[string]any) (*propria.Form, error) {
	form, err := m.forms.UpdateFields(ctx, id, updates)
	if err != nil {
		return nil, err
	}
	if form == nil {
		return nil, propria.NewNotFoundError("form", id.String())
	}
	return form, nil
}

// AddFormProperty creates the property and then appends its id to the form's
// reference list. The steps are sequential; a failed append orphans the
// freshly created property.
func (m *manager) AddFormProperty(ctx context.Context, formID uuid.UUID, property *propria.Property) (*propria.Property, error) {
	form, err := m.forms.GetByID(ctx, formID)
	if err != nil {
		return nil, err
	}
	if form == nil {
		return nil, propria.NewNotFoundError("form", formID.String())
	}

	created, err := m.CreateProperty(ctx, property)
	if err != nil {
		return nil, err
	}

	appended, err := m.forms.AppendPropertyRef(ctx, formID, created.RowID)
	if err != nil {
		return nil, err
	}
	if !appended {
		return nil, propria.NewNotFoundError("form", formID.String())
	}

	zap.S().Infow("property attached to form",
		"form_id", formID,
		"property_id", created.RowID)

	return created, nil
}

func (m *manager) UpdateFormProperty(ctx context.Context, formID, propertyID uuid.UUID, updates map[string]any) (*propria.Property, error) {
	form, err := m.forms.GetByID(ctx, formID)
	if err != nil {
		return nil, err
	}
	if form == nil {
		return nil, propria.NewNotFoundError("form", formID.String())
	}
	if !form.HasProperty(propertyID) {
		return nil, propria.NewNotFoundError("property", propertyID.String())
	}

	return m.UpdateProperty(ctx, propertyID, updates)
}
