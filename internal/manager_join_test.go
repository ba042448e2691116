package internal

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/propria"
)

func TestManagerListUnifiedProperties(t *testing.T) {
	ctx := context.Background()
	mock, mgr := newTestManager(t)

	propID1 := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	propID2 := uuid.MustParse("66666666-6666-6666-6666-666666666666")

	mock.ExpectQuery(`SELECT .* FROM properties ORDER BY created_at, row_id`).
		WillReturnRows(propertyRows().
			AddRow(propID1.String(), "employee_name", []byte(`"Ada"`), []byte(nil),
				"", "", int64(1), int64(1), int64(1)).
			AddRow(propID2.String(), "vanished", []byte(`"Basil"`), []byte(nil),
				"", "", int64(2), int64(2), int64(2)))
	expectTemplateLookup(mock, "employee_name")
	// The second property's template is gone; the listing drops it.
	expectTemplateMiss(mock, "vanished")

	unified, err := mgr.ListUnifiedProperties(ctx)
	require.NoError(t, err)

	want := []*propria.UnifiedProperty{{
		PropertyID:         propID1,
		TemplateIdentifier: "employee_name",
		Name:               "Some Template",
		Type:               "string",
		Value:              "Ada",
	}}
	assert.Empty(t, cmp.Diff(want, unified))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManagerListUnifiedPropertiesNumericTemplate(t *testing.T) {
	ctx := context.Background()
	mock, mgr := newTestManager(t)

	propID := uuid.MustParse("77777777-7777-7777-7777-777777777777")

	mock.ExpectQuery(`SELECT .* FROM properties ORDER BY created_at, row_id`).
		WillReturnRows(propertyRows().AddRow(
			propID.String(), "age", []byte(`30`), []byte(nil),
			"", "", int64(1), int64(1), int64(1),
		))
	mock.ExpectQuery(`SELECT .* FROM property_templates WHERE identifier = \$1`).
		WithArgs("age").
		WillReturnRows(templateRows().AddRow(
			"aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa", "age", "Age", "integer", "",
			[]string(nil), []byte(`0`), int64(1), int64(1),
		))

	unified, err := mgr.ListUnifiedProperties(ctx)
	require.NoError(t, err)

	want := []*propria.UnifiedProperty{{
		PropertyID:         propID,
		TemplateIdentifier: "age",
		Name:               "Age",
		Type:               "integer",
		DefaultValue:       float64(0),
		Value:              float64(30),
	}}
	assert.Empty(t, cmp.Diff(want, unified))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManagerUnifiedFormProperties(t *testing.T) {
	ctx := context.Background()
	mock, mgr := newTestManager(t)

	formID := uuid.MustParse("33333333-3333-3333-3333-333333333333")
	propID1 := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	propID2 := uuid.MustParse("66666666-6666-6666-6666-666666666666")

	mock.ExpectQuery(`SELECT .* FROM forms WHERE name = \$1`).
		WithArgs("onboarding").
		WillReturnRows(formRows().AddRow(
			formID.String(), "onboarding", "", []uuid.UUID{propID2, propID1}, int64(1), int64(1),
		))
	// GetByIDs returns rows in storage order; the projection must follow the
	// form's reference order instead.
	mock.ExpectQuery(`SELECT .* FROM properties WHERE row_id = ANY\(\$1\)`).
		WithArgs([]uuid.UUID{propID2, propID1}).
		WillReturnRows(propertyRows().
			AddRow(propID1.String(), "employee_name", []byte(`"Ada"`), []byte(nil),
				"", "", int64(1), int64(1), int64(1)).
			AddRow(propID2.String(), "employee_name", []byte(`"Basil"`), []byte(nil),
				"", "", int64(2), int64(2), int64(2)))
	expectTemplateLookup(mock, "employee_name")
	expectTemplateLookup(mock, "employee_name")

	unified, err := mgr.UnifiedFormProperties(ctx, "onboarding")
	require.NoError(t, err)

	want := []*propria.UnifiedProperty{
		{
			PropertyID:         propID2,
			TemplateIdentifier: "employee_name",
			Name:               "Some Template",
			Type:               "string",
			Value:              "Basil",
		},
		{
			PropertyID:         propID1,
			TemplateIdentifier: "employee_name",
			Name:               "Some Template",
			Type:               "string",
			Value:              "Ada",
		},
	}
	assert.Empty(t, cmp.Diff(want, unified))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManagerUnifiedFormPropertiesEmptyForm(t *testing.T) {
	ctx := context.Background()
	mock, mgr := newTestManager(t)

	formID := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	mock.ExpectQuery(`SELECT .* FROM forms WHERE name = \$1`).
		WithArgs("onboarding").
		WillReturnRows(formRows().AddRow(
			formID.String(), "onboarding", "", []uuid.UUID{}, int64(1), int64(1),
		))

	unified, err := mgr.UnifiedFormProperties(ctx, "onboarding")
	require.NoError(t, err)
	assert.NotNil(t, unified)
	assert.Empty(t, unified)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManagerUnifiedFormPropertiesDanglingPropertyRef(t *testing.T) {
	ctx := context.Background()
	mock, mgr := newTestManager(t)

	formID := uuid.MustParse("33333333-3333-3333-3333-333333333333")
	propID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	mock.ExpectQuery(`SELECT .* FROM forms WHERE name = \$1`).
		WithArgs("onboarding").
		WillReturnRows(formRows().AddRow(
			formID.String(), "onboarding", "", []uuid.UUID{propID}, int64(1), int64(1),
		))
	mock.ExpectQuery(`SELECT .* FROM properties WHERE row_id = ANY\(\$1\)`).
		WithArgs([]uuid.UUID{propID}).
		WillReturnRows(propertyRows())

	_, err := mgr.UnifiedFormProperties(ctx, "onboarding")
	require.Error(t, err)
	assert.True(t, propria.IsJoinMismatch(err))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManagerUnifiedFormPropertiesMissingTemplate(t *testing.T) {
	ctx := context.Background()
	mock, mgr := newTestManager(t)

	formID := uuid.MustParse("33333333-3333-3333-3333-333333333333")
	propID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	mock.ExpectQuery(`SELECT .* FROM forms WHERE name = \$1`).
		WithArgs("onboarding").
		WillReturnRows(formRows().AddRow(
			formID.String(), "onboarding", "", []uuid.UUID{propID}, int64(1), int64(1),
		))
	mock.ExpectQuery(`SELECT .* FROM properties WHERE row_id = ANY\(\$1\)`).
		WithArgs([]uuid.UUID{propID}).
		WillReturnRows(propertyRows().AddRow(
			propID.String(), "vanished", []byte(`"Ada"`), []byte(nil),
			"", "", int64(1), int64(1), int64(1),
		))
	expectTemplateMiss(mock, "vanished")

	_, err := mgr.UnifiedFormProperties(ctx, "onboarding")
	require.Error(t, err)
	assert.True(t, propria.IsJoinMismatch(err))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManagerUnifiedFormPropertiesFormMissing(t *testing.T) {
	ctx := context.Background()
	mock, mgr := newTestManager(t)

	mock.ExpectQuery(`SELECT .* FROM forms WHERE name = \$1`).
		WithArgs("missing").
		WillReturnRows(formRows())

	_, err := mgr.UnifiedFormProperties(ctx, "missing")
	require.Error(t, err)
	assert.True(t, propria.IsNotFound(err))

	require.NoError(t, mock.ExpectationsWereMet())
}
