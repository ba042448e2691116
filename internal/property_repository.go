package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/propria"
)

const propertyColumns = "row_id, template_identifier, value, previous_value, created_by, last_modified_by, last_modified_date, created_at, updated_at"

// PropertyRepository persists template-bound property values.
type PropertyRepository struct {
	pool    documentPool
	table   string
	nowFunc func() time.Time
}

func NewPropertyRepository(pool documentPool, table string) *PropertyRepository {
	return &PropertyRepository{
		pool:    pool,
		table:   table,
		nowFunc: time.Now,
	}
}

func (r *PropertyRepository) withClock(now func() time.Time) {
	if now == nil {
		return
	}
	r.nowFunc = now
}

// Insert persists a new property within q and stamps last_modified_date.
func (r *PropertyRepository) Insert(ctx context.Context, q querier, property *propria.Property) error {
	if property.TemplateIdentifier == "" {
		return propria.NewValidationError("template_identifier", "template_identifier is required")
	}

	if property.RowID == (uuid.UUID{}) {
		property.RowID = uuid.Must(uuid.NewV7())
	}
	now := r.nowFunc().UnixMilli()
	property.LastModifiedDate = now
	property.CreatedAt = now
	property.UpdatedAt = now

	value, err := marshalJSONB(property.Value)
	if err != nil {
		return err
	}
	previousValue, err := marshalJSONB(property.PreviousValue)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.table, propertyColumns,
	)

	_, err = q.Exec(ctx, query,
		property.RowID,
		property.TemplateIdentifier,
		value,
		previousValue,
		property.CreatedBy,
		property.LastModifiedBy,
		property.LastModifiedDate,
		property.CreatedAt,
		property.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert property %s: %w", property.RowID, err)
	}

	return nil
}

// GetByID returns the property, or nil when no row matches.
func (r *PropertyRepository) GetByID(ctx context.Context, id uuid.UUID) (*propria.Property, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE row_id = $1`, propertyColumns, r.table)

	property, err := scanProperty(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get property %s: %w", id, err)
	}

	return property, nil
}

// GetByIDs returns properties for the given ids, keyed by row id. Missing ids
// are simply absent from the result.
func (r *PropertyRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*propria.Property, error) {
	result := make(map[uuid.UUID]*propria.Property, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE row_id = ANY($1)`, propertyColumns, r.table)

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get properties by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		property, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		result[property.RowID] = property
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate properties: %w", err)
	}

	return result, nil
}

// List returns all properties ordered by creation time.
func (r *PropertyRepository) List(ctx context.Context) ([]*propria.Property, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at, row_id`, propertyColumns, r.table)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	properties := make([]*propria.Property, 0)
	for rows.Next() {
		property, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		properties = append(properties, property)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate properties: %w", err)
	}

	return properties, nil
}

// Update rewrites the mutable columns of an already-loaded property and
// stamps last_modified_date. Value archiving happens in the manager before
// this call. Returns false when no row matches.
func (r *PropertyRepository) Update(ctx context.Context, property *propria.Property) (bool, error) {
	now := r.nowFunc().UnixMilli()
	property.LastModifiedDate = now
	property.UpdatedAt = now

	value, err := marshalJSONB(property.Value)
	if err != nil {
		return false, err
	}
	previousValue, err := marshalJSONB(property.PreviousValue)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(
		`UPDATE %s SET template_identifier = $1, value = $2, previous_value = $3, last_modified_by = $4, last_modified_date = $5, updated_at = $6 WHERE row_id = $7`,
		r.table,
	)

	tag, err := r.pool.Exec(ctx, query,
		property.TemplateIdentifier,
		value,
		previousValue,
		property.LastModifiedBy,
		property.LastModifiedDate,
		property.UpdatedAt,
		property.RowID,
	)
	if err != nil {
		return false, fmt.Errorf("update property %s: %w", property.RowID, err)
	}

	return tag.RowsAffected() > 0, nil
}

// Delete removes the property row within q. Returns false when no row matched.
func (r *PropertyRepository) Delete(ctx context.Context, q querier, id uuid.UUID) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE row_id = $1`, r.table)

	tag, err := q.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete property %s: %w", id, err)
	}

	return tag.RowsAffected() > 0, nil
}

// DeleteByTemplate removes every property bound to the template within q and
// returns the deleted row ids for the form-reference pull.
func (r *PropertyRepository) DeleteByTemplate(ctx context.Context, q querier, templateIdentifier string) ([]uuid.UUID, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE template_identifier = $1 RETURNING row_id`, r.table)

	rows, err := q.Query(ctx, query, templateIdentifier)
	if err != nil {
		return nil, fmt.Errorf("delete properties for template %s: %w", templateIdentifier, err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deleted property id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deleted property ids: %w", err)
	}

	return ids, nil
}

// Exists reports whether a property row id exists.
func (r *PropertyRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE row_id = $1)`, r.table)

	var exists bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check property existence %s: %w", id, err)
	}

	return exists, nil
}

func scanProperty(row pgx.Row) (*propria.Property, error) {
	var property propria.Property
	var value, previousValue []byte

	err := row.Scan(
		&property.RowID,
		&property.TemplateIdentifier,
		&value,
		&previousValue,
		&property.CreatedBy,
		&property.LastModifiedBy,
		&property.LastModifiedDate,
		&property.CreatedAt,
		&property.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if property.Value, err = unmarshalJSONB(value); err != nil {
		return nil, err
	}
	if property.PreviousValue, err = unmarshalJSONB(previousValue); err != nil {
		return nil, err
	}

	return &property, nil
}

// propertyUpdateColumns lists the partial-update keys clients may send.
var propertyUpdateColumns = map[string]bool{
	"template_identifier": true,
	"value":               true,
	"last_modified_by":    true,
}

// ValidatePropertyUpdates rejects unknown partial-update keys before any row
// is touched.
func ValidatePropertyUpdates(updates map[string]any) error {
	for _, key := range sortedKeys(updates) {
		if !propertyUpdateColumns[key] {
			return propria.NewValidationError(key, fmt.Sprintf("unknown property field '%s'", key))
		}
	}
	if len(updates) == 0 {
		return propria.NewValidationError("updates", "no fields to update")
	}
	return nil
}
