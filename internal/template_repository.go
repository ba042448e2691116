package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/propria"
)

const templateColumns = "row_id, identifier, name, type, format, possible_values, default_value, created_at, updated_at"

// TemplateRepository persists property templates.
type TemplateRepository struct {
	pool    documentPool
	table   string
	nowFunc func() time.Time
}

func NewTemplateRepository(pool documentPool, table string) *TemplateRepository {
	return &TemplateRepository{
		pool:    pool,
		table:   table,
		nowFunc: time.Now,
	}
}

func (r *TemplateRepository) withClock(now func() time.Time) {
	if now == nil {
		return
	}
	r.nowFunc = now
}

// Insert persists a new template. The store-assigned row id is set on the
// passed template. A conflicting identifier surfaces as DuplicateIdentifier.
func (r *TemplateRepository) Insert(ctx context.Context, template *propria.PropertyTemplate) error {
	if template.Identifier == "" {
		return propria.NewValidationError("identifier", "identifier is required")
	}

	if template.RowID == (uuid.UUID{}) {
		template.RowID = uuid.Must(uuid.NewV7())
	}
	now := r.nowFunc().UnixMilli()
	template.CreatedAt = now
	template.UpdatedAt = now

	defaultValue, err := marshalJSONB(template.DefaultValue)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.table, templateColumns,
	)

	_, err = r.pool.Exec(ctx, query,
		template.RowID,
		template.Identifier,
		template.Name,
		template.Type,
		template.Format,
		template.PossibleValues,
		defaultValue,
		template.CreatedAt,
		template.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return propria.NewDuplicateIdentifierError("template", template.Identifier)
		}
		return fmt.Errorf("insert template %s: %w", template.Identifier, err)
	}

	return nil
}

// GetByIdentifier returns the template, or nil when no row matches.
func (r *TemplateRepository) GetByIdentifier(ctx context.Context, identifier string) (*propria.PropertyTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE identifier = $1`, templateColumns, r.table)

	template, err := scanTemplate(r.pool.QueryRow(ctx, query, identifier))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get template %s: %w", identifier, err)
	}

	return template, nil
}

// List returns all templates ordered by identifier.
func (r *TemplateRepository) List(ctx context.Context) ([]*propria.PropertyTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY identifier`, templateColumns, r.table)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	templates := make([]*propria.PropertyTemplate, 0)
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, template)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}

	return templates, nil
}

// templateUpdateColumns maps partial-update keys to columns. Identifier is
// immutable once a template can be referenced, so it is not listed.
var templateUpdateColumns = map[string]string{
	"name":            "name",
	"type":            "type",
	"format":          "format",
	"possible_values": "possible_values",
	"default_value":   "default_value",
}

// UpdateFields applies only the given fields and returns the updated
// template, or nil when no row matches.
func (r *TemplateRepository) UpdateFields(ctx context.Context, identifier string, updates map[string]any) (*propria.PropertyTemplate, error) {
	setClauses := make([]string, 0, len(updates)+1)
	args := make([]any, 0, len(updates)+2)
	argIndex := 1

	for _, key := range sortedKeys(updates) {
		value := updates[key]
		column, ok := templateUpdateColumns[key]
		if !ok {
			return nil, propria.NewValidationError(key, fmt.Sprintf("unknown template field '%s'", key))
		}
		if column == "default_value" {
			encoded, err := marshalJSONB(value)
			if err != nil {
				return nil, err
			}
			value = encoded
		}
		if column == "possible_values" {
			converted, err := toStringSlice(value)
			if err != nil {
				return nil, propria.NewValidationError(key, err.Error())
			}
			value = converted
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argIndex))
	args = append(args, r.nowFunc().UnixMilli())
	argIndex++

	args = append(args, identifier)
	query := fmt.Sprintf(
		`UPDATE %s SET %s WHERE identifier = $%d RETURNING %s`,
		r.table, strings.Join(setClauses, ", "), argIndex, templateColumns,
	)

	template, err := scanTemplate(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update template %s: %w", identifier, err)
	}

	return template, nil
}

// Delete removes the template row within q. Returns false when no row matched.
func (r *TemplateRepository) Delete(ctx context.Context, q querier, identifier string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE identifier = $1`, r.table)

	tag, err := q.Exec(ctx, query, identifier)
	if err != nil {
		return false, fmt.Errorf("delete template %s: %w", identifier, err)
	}

	return tag.RowsAffected() > 0, nil
}

// Exists reports whether a template with the identifier is registered.
func (r *TemplateRepository) Exists(ctx context.Context, identifier string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE identifier = $1)`, r.table)

	var exists bool
	if err := r.pool.QueryRow(ctx, query, identifier).Scan(&exists); err != nil {
		return false, fmt.Errorf("check template existence %s: %w", identifier, err)
	}

	return exists, nil
}

func scanTemplate(row pgx.Row) (*propria.PropertyTemplate, error) {
	var template propria.PropertyTemplate
	var defaultValue []byte

	err := row.Scan(
		&template.RowID,
		&template.Identifier,
		&template.Name,
		&template.Type,
		&template.Format,
		&template.PossibleValues,
		&defaultValue,
		&template.CreatedAt,
		&template.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	template.DefaultValue, err = unmarshalJSONB(defaultValue)
	if err != nil {
		return nil, err
	}

	return &template, nil
}

// toStringSlice normalizes a decoded JSON array into []string for the
// possible_values column.
func toStringSlice(v any) ([]string, error) {
	switch typed := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return typed, nil
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("possible_values must be a list of strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("possible_values must be a list of strings")
	}
}
