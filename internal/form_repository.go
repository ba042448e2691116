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

const formColumns = "row_id, name, description, property_ids, created_at, updated_at"

// FormRepository persists named property groupings. Forms store property row
// ids only; embedded property objects never reach this layer.
type FormRepository struct {
	pool    documentPool
	table   string
	nowFunc func() time.Time
}

func NewFormRepository(pool documentPool, table string) *FormRepository {
	return &FormRepository{
		pool:    pool,
		table:   table,
		nowFunc: time.Now,
	}
}

func (r *FormRepository) withClock(now func() time.Time) {
	if now == nil {
		return
	}
	r.nowFunc = now
}

// Insert persists a new form. A conflicting name surfaces as
// DuplicateIdentifier.
func (r *FormRepository) Insert(ctx context.Context, form *propria.Form) error {
	if form.Name == "" {
		return propria.NewValidationError("name", "name is required")
	}

	if form.RowID == (uuid.UUID{}) {
		form.RowID = uuid.Must(uuid.NewV7())
	}
	if form.PropertyIDs == nil {
		form.PropertyIDs = []uuid.UUID{}
	}
	now := r.nowFunc().UnixMilli()
	form.CreatedAt = now
	form.UpdatedAt = now

	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6)`,
		r.table, formColumns,
	)

	_, err := r.pool.Exec(ctx, query,
		form.RowID,
		form.Name,
		form.Description,
		form.PropertyIDs,
		form.CreatedAt,
		form.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return propria.NewDuplicateIdentifierError("form", form.Name)
		}
		return fmt.Errorf("insert form %s: %w", form.Name, err)
	}

	return nil
}

// GetByID returns the form, or nil when no row matches.
func (r *FormRepository) GetByID(ctx context.Context, id uuid.UUID) (*propria.Form, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE row_id = $1`, formColumns, r.table)
	return r.getOne(ctx, query, id)
}

// GetByName returns the form, or nil when no row matches.
func (r *FormRepository) GetByName(ctx context.Context, name string) (*propria.Form, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE name = $1`, formColumns, r.table)
	return r.getOne(ctx, query, name)
}

func (r *FormRepository) getOne(ctx context.Context, query string, arg any) (*propria.Form, error) {
	form, err := scanForm(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get form: %w", err)
	}
	return form, nil
}

// List returns all forms ordered by name.
func (r *FormRepository) List(ctx context.Context) ([]*propria.Form, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY name`, formColumns, r.table)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	defer rows.Close()

	forms := make([]*propria.Form, 0)
	for rows.Next() {
		form, err := scanForm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan form: %w", err)
		}
		forms = append(forms, form)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forms: %w", err)
	}

	return forms, nil
}

// formUpdateColumns maps partial-update keys to columns. The reference list
// is maintained through the append/pull operations, not partial updates.
var formUpdateColumns = map[string]string{
	"name":        "name",
	"description": "description",
}

// UpdateFields applies only the given fields and returns the updated form, or
// nil when no row matches.
func (r *FormRepository) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) (*propria.Form, error) {
	setClauses := make([]string, 0, len(updates)+1)
	args := make([]any, 0, len(updates)+2)
	argIndex := 1

	for _, key := range sortedKeys(updates) {
		column, ok := formUpdateColumns[key]
		if !ok {
			return nil, propria.NewValidationError(key, fmt.Sprintf("unknown form field '%s'", key))
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, updates[key])
		argIndex++
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argIndex))
	args = append(args, r.nowFunc().UnixMilli())
	argIndex++

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE %s SET %s WHERE row_id = $%d RETURNING %s`,
		r.table, strings.Join(setClauses, ", "), argIndex, formColumns,
	)

	form, err := scanForm(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update form %s: %w", id, err)
	}

	return form, nil
}

// AppendPropertyRef appends a property id to one form's reference list.
// Returns false when the form does not exist.
func (r *FormRepository) AppendPropertyRef(ctx context.Context, formID, propertyID uuid.UUID) (bool, error) {
	query := fmt.Sprintf(
		`UPDATE %s SET property_ids = array_append(property_ids, $1), updated_at = $2 WHERE row_id = $3`,
		r.table,
	)

	tag, err := r.pool.Exec(ctx, query, propertyID, r.nowFunc().UnixMilli(), formID)
	if err != nil {
		return false, fmt.Errorf("append property %s to form %s: %w", propertyID, formID, err)
	}

	return tag.RowsAffected() > 0, nil
}

// PullPropertyRefs removes every occurrence of the given property ids from
// every form's reference list within q. Forms without a matching reference
// are left untouched.
func (r *FormRepository) PullPropertyRefs(ctx context.Context, q querier, propertyIDs []uuid.UUID) error {
	if len(propertyIDs) == 0 {
		return nil
	}

	// WITH ORDINALITY keeps the surviving references in their original
	// positions; the join projection follows this order.
	query := fmt.Sprintf(
		`UPDATE %s SET property_ids = (
			SELECT COALESCE(array_agg(pid ORDER BY ord), '{}') FROM unnest(property_ids) WITH ORDINALITY AS u(pid, ord) WHERE pid <> ALL($1)
		), updated_at = $2 WHERE property_ids && $1`,
		r.table,
	)

	_, err := q.Exec(ctx, query, propertyIDs, r.nowFunc().UnixMilli())
	if err != nil {
		return fmt.Errorf("pull property refs: %w", err)
	}

	return nil
}

func scanForm(row pgx.Row) (*propria.Form, error) {
	var form propria.Form

	err := row.Scan(
		&form.RowID,
		&form.Name,
		&form.Description,
		&form.PropertyIDs,
		&form.CreatedAt,
		&form.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if form.PropertyIDs == nil {
		form.PropertyIDs = []uuid.UUID{}
	}

	return &form, nil
}
