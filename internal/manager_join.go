package internal

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lychee-technology/propria"
)

// ListUnifiedProperties joins every stored property with its template.
// Properties whose template has been deleted out from under them are
// dropped rather than failing the whole listing.
func (m *manager) ListUnifiedProperties(ctx context.Context) ([]*propria.UnifiedProperty, error) {
	properties, err := m.properties.List(ctx)
	if err != nil {
		return nil, err
	}

	unified := make([]*propria.UnifiedProperty, 0, len(properties))
	for _, property := range properties {
		template, err := m.lookupTemplate(ctx, property.TemplateIdentifier)
		if err != nil {
			return nil, err
		}
		if template == nil {
			zap.S().Debugw("skipping property with missing template",
				"row_id", property.RowID,
				"template_identifier", property.TemplateIdentifier)
			continue
		}
		unified = append(unified, unify(template, property))
	}

	return unified, nil
}

// UnifiedFormProperties builds the unified projection for one form. Unlike
// the global listing, a dangling reference here is an integrity fault and
// fails the request.
func (m *manager) UnifiedFormProperties(ctx context.Context, name string) ([]*propria.UnifiedProperty, error) {
	if name == "" {
		return nil, propria.NewValidationError("form", "name is required")
	}

	form, err := m.forms.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if form == nil {
		return nil, propria.NewNotFoundError("form", name)
	}

	if len(form.PropertyIDs) == 0 {
		return []*propria.UnifiedProperty{}, nil
	}

	properties, err := m.properties.GetByIDs(ctx, form.PropertyIDs)
	if err != nil {
		return nil, err
	}

	unified := make([]*propria.UnifiedProperty, 0, len(form.PropertyIDs))
	for _, id := range form.PropertyIDs {
		property, ok := properties[id]
		if !ok {
			return nil, propria.NewJoinMismatchError(
				fmt.Sprintf("form %q references property %s which no longer exists", form.Name, id))
		}

		template, err := m.lookupTemplate(ctx, property.TemplateIdentifier)
		if err != nil {
			return nil, err
		}
		if template == nil {
			return nil, propria.NewJoinMismatchError(
				fmt.Sprintf("property %s references template %q which no longer exists", id, property.TemplateIdentifier))
		}

		unified = append(unified, unify(template, property))
	}

	return unified, nil
}
