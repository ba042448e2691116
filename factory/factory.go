package factory

import (
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/propria"
	"github.com/lychee-technology/propria/internal"
)

// queryPool is the minimal pool surface needed to inspect the database.
type queryPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// tableCollector lists the base tables visible in the public schema. It is a
// variable so tests can substitute a fake.
var tableCollector = collectTablesFromPool

func collectTablesFromPool(pool queryPool) ([]string, error) {
	rows, err := pool.Query(context.Background(), `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE';`)
	if err != nil {
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, tableName)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return tables, nil
}

// NewManagerWithConfig creates a Manager bound to the provided configuration
// and database pool. This is the primary way for external projects to stand
// up the service layer.
//
// Usage:
//
//	import (
//	    "github.com/lychee-technology/propria"
//	    "github.com/lychee-technology/propria/factory"
//	)
//
//	config := propria.DefaultConfig()
//	mgr, err := factory.NewManagerWithConfig(config, pool)
//	if err != nil {
//	    // handle error
//	}
func NewManagerWithConfig(config *propria.Config, pool *pgxpool.Pool) (propria.Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	tables, err := tableCollector(pool)
	if err != nil {
		return nil, err
	}

	names := config.Database.TableNames
	for _, required := range []string{names.Templates, names.Properties, names.Forms} {
		if !slices.Contains(tables, required) {
			return nil, fmt.Errorf("required table %q is missing in the database", required)
		}
	}

	templates := internal.NewTemplateRepository(pool, names.Templates)
	properties := internal.NewPropertyRepository(pool, names.Properties)
	forms := internal.NewFormRepository(pool, names.Forms)
	cache := internal.NewTemplateCache(config.Cache)

	return internal.NewManager(pool, templates, properties, forms, cache, config.Validation), nil
}
