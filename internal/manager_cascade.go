package internal

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lychee-technology/propria"
)

// DeleteTemplate removes a template together with every property bound to it
// and pulls those property ids out of every form. All three steps run in one
// transaction so the store never observes a half-applied cascade.
func (m *manager) DeleteTemplate(ctx context.Context, identifier string) error {
	if identifier == "" {
		return propria.NewValidationError("identifier", "identifier is required")
	}

	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return propria.NewTransactionError("beginning template cascade", err)
	}
	defer tx.Rollback(ctx)

	deleted, err := m.templates.Delete(ctx, tx, identifier)
	if err != nil {
		return err
	}
	if !deleted {
		return propria.NewNotFoundError("template", identifier)
	}

	propertyIDs, err := m.properties.DeleteByTemplate(ctx, tx, identifier)
	if err != nil {
		return err
	}

	if len(propertyIDs) > 0 {
		if err := m.forms.PullPropertyRefs(ctx, tx, propertyIDs); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return propria.NewTransactionError("committing template cascade", err)
	}
	m.cache.Invalidate(identifier)

	zap.S().Infow("template deleted",
		"identifier", identifier,
		"properties_removed", len(propertyIDs))

	return nil
}

// DeleteProperty removes the property and pulls its id from every form that
// references it, in one transaction.
func (m *manager) DeleteProperty(ctx context.Context, id uuid.UUID) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return propria.NewTransactionError("beginning property cascade", err)
	}
	defer tx.Rollback(ctx)

	deleted, err := m.properties.Delete(ctx, tx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return propria.NewNotFoundError("property", id.String())
	}

	if err := m.forms.PullPropertyRefs(ctx, tx, []uuid.UUID{id}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return propria.NewTransactionError("committing property cascade", err)
	}

	zap.S().Infow("property deleted", "row_id", id)

	return nil
}
