package internal

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/propria"
)

var testClock = func() time.Time { return time.UnixMilli(1700000000000) }

func templateRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"row_id", "identifier", "name", "type", "format",
		"possible_values", "default_value", "created_at", "updated_at",
	})
}

func TestTemplateInsert(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTemplateRepository(mock, "property_templates")
	repo.withClock(testClock)

	query := `INSERT INTO property_templates (row_id, identifier, name, type, format, possible_values, default_value, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	mock.ExpectExec("^" + regexp.QuoteMeta(query) + "$").
		WithArgs(pgxmock.AnyArg(), "employee_name", "Employee Name", "string", "",
			[]string(nil), []byte(`"Ada"`), int64(1700000000000), int64(1700000000000)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	template := &propria.PropertyTemplate{
		Identifier:   "employee_name",
		Name:         "Employee Name",
		Type:         "string",
		DefaultValue: "Ada",
	}
	require.NoError(t, repo.Insert(ctx, template))

	assert.NotZero(t, template.RowID)
	assert.Equal(t, int64(1700000000000), template.CreatedAt)
	assert.Equal(t, int64(1700000000000), template.UpdatedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateInsertDuplicateIdentifier(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTemplateRepository(mock, "property_templates")
	repo.withClock(testClock)

	mock.ExpectExec(`INSERT INTO property_templates`).
		WithArgs(pgxmock.AnyArg(), "employee_name", "Employee Name", "", "",
			[]string(nil), []byte(nil), int64(1700000000000), int64(1700000000000)).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err = repo.Insert(ctx, &propria.PropertyTemplate{
		Identifier: "employee_name",
		Name:       "Employee Name",
	})
	require.Error(t, err)
	assert.True(t, propria.IsDuplicateIdentifier(err))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateInsertRequiresIdentifier(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTemplateRepository(mock, "property_templates")

	err = repo.Insert(context.Background(), &propria.PropertyTemplate{Name: "No Identifier"})
	require.Error(t, err)
	assert.True(t, propria.IsValidationError(err))
}

func TestTemplateGetByIdentifier(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTemplateRepository(mock, "property_templates")

	rows := templateRows().AddRow(
		"11111111-1111-1111-1111-111111111111", "employee_name", "Employee Name", "string", "",
		[]string{"a", "b"}, []byte(`"Ada"`), int64(100), int64(200),
	)
	mock.ExpectQuery(`SELECT .* FROM property_templates WHERE identifier = \$1`).
		WithArgs("employee_name").
		WillReturnRows(rows)

	template, err := repo.GetByIdentifier(ctx, "employee_name")
	require.NoError(t, err)
	require.NotNil(t, template)
	assert.Equal(t, "employee_name", template.Identifier)
	assert.Equal(t, []string{"a", "b"}, template.PossibleValues)
	assert.Equal(t, "Ada", template.DefaultValue)
	assert.Equal(t, int64(100), template.CreatedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateGetByIdentifierNotFound(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTemplateRepository(mock, "property_templates")

	mock.ExpectQuery(`SELECT .* FROM property_templates WHERE identifier = \$1`).
		WithArgs("ghost").
		WillReturnRows(templateRows())

	template, err := repo.GetByIdentifier(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, template)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateList(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTemplateRepository(mock, "property_templates")

	rows := templateRows().
		AddRow("11111111-1111-1111-1111-111111111111", "age", "Age", "integer", "",
			[]string(nil), []byte(nil), int64(1), int64(1)).
		AddRow("22222222-2222-2222-2222-222222222222", "name", "Name", "string", "",
			[]string(nil), []byte(nil), int64(2), int64(2))
	mock.ExpectQuery(`SELECT .* FROM property_templates ORDER BY identifier`).
		WillReturnRows(rows)

	templates, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, "age", templates[0].Identifier)
	assert.Equal(t, "name", templates[1].Identifier)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateUpdateFields(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTemplateRepository(mock, "property_templates")
	repo.withClock(testClock)

	query := `UPDATE property_templates SET name = $1, type = $2, updated_at = $3 WHERE identifier = $4 RETURNING ` + templateColumns
	rows := templateRows().AddRow(
		"11111111-1111-1111-1111-111111111111", "employee_name", "Full Name", "string", "",
		[]string(nil), []byte(nil), int64(100), int64(1700000000000),
	)
	mock.ExpectQuery("^" + regexp.QuoteMeta(query) + "$").
		WithArgs("Full Name", "string", int64(1700000000000), "employee_name").
		WillReturnRows(rows)

	template, err := repo.UpdateFields(ctx, "employee_name", map[string]any{
		"type": "string",
		"name": "Full Name",
	})
	require.NoError(t, err)
	require.NotNil(t, template)
	assert.Equal(t, "Full Name", template.Name)
	assert.Equal(t, int64(1700000000000), template.UpdatedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateUpdateFieldsRejectsUnknownField(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTemplateRepository(mock, "property_templates")

	_, err = repo.UpdateFields(context.Background(), "employee_name", map[string]any{
		"identifier": "renamed",
	})
	require.Error(t, err)
	assert.True(t, propria.IsValidationError(err))
}

func TestTemplateUpdateFieldsNormalizesPossibleValues(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTemplateRepository(mock, "property_templates")
	repo.withClock(testClock)

	rows := templateRows().AddRow(
		"11111111-1111-1111-1111-111111111111", "status", "Status", "string", "",
		[]string{"open", "closed"}, []byte(nil), int64(100), int64(1700000000000),
	)
	mock.ExpectQuery(`UPDATE property_templates SET possible_values = \$1, updated_at = \$2`).
		WithArgs([]string{"open", "closed"}, int64(1700000000000), "status").
		WillReturnRows(rows)

	// Decoded JSON arrays arrive as []any.
	template, err := repo.UpdateFields(ctx, "status", map[string]any{
		"possible_values": []any{"open", "closed"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"open", "closed"}, template.PossibleValues)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateDelete(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTemplateRepository(mock, "property_templates")

	mock.ExpectExec(`DELETE FROM property_templates WHERE identifier = \$1`).
		WithArgs("employee_name").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	deleted, err := repo.Delete(ctx, mock, "employee_name")
	require.NoError(t, err)
	assert.True(t, deleted)

	mock.ExpectExec(`DELETE FROM property_templates WHERE identifier = \$1`).
		WithArgs("ghost").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	deleted, err = repo.Delete(ctx, mock, "ghost")
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateExists(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTemplateRepository(mock, "property_templates")

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM property_templates WHERE identifier = \$1\)`).
		WithArgs("employee_name").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(ctx, "employee_name")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestToStringSlice(t *testing.T) {
	out, err := toStringSlice(nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = toStringSlice([]string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, out)

	out, err = toStringSlice([]any{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)

	_, err = toStringSlice([]any{"a", 1})
	require.Error(t, err)

	_, err = toStringSlice("not a list")
	require.Error(t, err)
}
