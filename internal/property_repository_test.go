package internal

import (
	"context"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/propria"
)

func propertyRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"row_id", "template_identifier", "value", "previous_value",
		"created_by", "last_modified_by", "last_modified_date", "created_at", "updated_at",
	})
}

func TestPropertyInsert(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPropertyRepository(mock, "properties")
	repo.withClock(testClock)

	query := `INSERT INTO properties (row_id, template_identifier, value, previous_value, created_by, last_modified_by, last_modified_date, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	mock.ExpectExec("^" + regexp.QuoteMeta(query) + "$").
		WithArgs(pgxmock.AnyArg(), "employee_name", []byte(`"Ada"`), []byte(nil),
			"importer", "", int64(1700000000000), int64(1700000000000), int64(1700000000000)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	property := &propria.Property{
		TemplateIdentifier: "employee_name",
		Value:              "Ada",
		CreatedBy:          "importer",
	}
	require.NoError(t, repo.Insert(ctx, mock, property))

	assert.NotZero(t, property.RowID)
	assert.Equal(t, int64(1700000000000), property.LastModifiedDate)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPropertyInsertRequiresTemplateIdentifier(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPropertyRepository(mock, "properties")

	err = repo.Insert(context.Background(), mock, &propria.Property{Value: "orphan"})
	require.Error(t, err)
	assert.True(t, propria.IsValidationError(err))
}

func TestPropertyGetByID(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPropertyRepository(mock, "properties")
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	rows := propertyRows().AddRow(
		id.String(), "employee_name", []byte(`"Ada"`), []byte(`"Grace"`),
		"importer", "editor", int64(300), int64(100), int64(300),
	)
	mock.ExpectQuery(`SELECT .* FROM properties WHERE row_id = \$1`).
		WithArgs(id).
		WillReturnRows(rows)

	property, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, property)
	assert.Equal(t, "Ada", property.Value)
	assert.Equal(t, "Grace", property.PreviousValue)
	assert.Equal(t, "editor", property.LastModifiedBy)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPropertyGetByIDNotFound(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPropertyRepository(mock, "properties")
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	mock.ExpectQuery(`SELECT .* FROM properties WHERE row_id = \$1`).
		WithArgs(id).
		WillReturnRows(propertyRows())

	property, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, property)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPropertyGetByIDs(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPropertyRepository(mock, "properties")
	id1 := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	id2 := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	rows := propertyRows().AddRow(
		id1.String(), "employee_name", []byte(`"Ada"`), []byte(nil),
		"", "", int64(1), int64(1), int64(1),
	)
	mock.ExpectQuery(`SELECT .* FROM properties WHERE row_id = ANY\(\$1\)`).
		WithArgs([]uuid.UUID{id1, id2}).
		WillReturnRows(rows)

	// id2 has no stored row; it is simply absent from the result.
	result, err := repo.GetByIDs(ctx, []uuid.UUID{id1, id2})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Ada", result[id1].Value)
	assert.NotContains(t, result, id2)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPropertyGetByIDsEmptyInput(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPropertyRepository(mock, "properties")

	result, err := repo.GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestPropertyUpdate(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPropertyRepository(mock, "properties")
	repo.withClock(testClock)
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	query := `UPDATE properties SET template_identifier = $1, value = $2, previous_value = $3, last_modified_by = $4, last_modified_date = $5, updated_at = $6 WHERE row_id = $7`
	mock.ExpectExec("^" + regexp.QuoteMeta(query) + "$").
		WithArgs("employee_name", []byte(`"Grace"`), []byte(`"Ada"`), "editor",
			int64(1700000000000), int64(1700000000000), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	updated, err := repo.Update(ctx, &propria.Property{
		RowID:              id,
		TemplateIdentifier: "employee_name",
		Value:              "Grace",
		PreviousValue:      "Ada",
		LastModifiedBy:     "editor",
	})
	require.NoError(t, err)
	assert.True(t, updated)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPropertyDeleteByTemplate(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPropertyRepository(mock, "properties")
	id1 := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	id2 := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	rows := pgxmock.NewRows([]string{"row_id"}).
		AddRow(id1.String()).
		AddRow(id2.String())
	mock.ExpectQuery(`DELETE FROM properties WHERE template_identifier = \$1 RETURNING row_id`).
		WithArgs("employee_name").
		WillReturnRows(rows)

	ids, err := repo.DeleteByTemplate(ctx, mock, "employee_name")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id1, id2}, ids)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestValidatePropertyUpdates(t *testing.T) {
	require.NoError(t, ValidatePropertyUpdates(map[string]any{
		"value":            "x",
		"last_modified_by": "editor",
	}))

	err := ValidatePropertyUpdates(map[string]any{"created_at": int64(1)})
	require.Error(t, err)
	assert.True(t, propria.IsValidationError(err))

	err = ValidatePropertyUpdates(map[string]any{})
	require.Error(t, err)
	assert.True(t, propria.IsValidationError(err))
}
