package e2e_harness

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestHarness holds lightweight runners for dependencies used by E2E tests.
type TestHarness struct {
	PGContainer testcontainers.Container
	PGDSN       string
	Pool        *pgxpool.Pool
}

// StartPostgres starts a postgres container and returns a DSN.
// It waits until Postgres is reachable. Caller is responsible for calling StopPostgres.
func (h *TestHarness) StartPostgres(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", err
	}
	h.PGContainer = container

	host, err := container.Host(ctx)
	if err != nil {
		return "", err
	}
	mapped, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", err
	}
	dsn := fmt.Sprintf("postgres://postgres:password@%s:%s/postgres?sslmode=disable", host, mapped.Port())
	h.PGDSN = dsn

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return "", err
	}
	deadline := time.Now().Add(20 * time.Second)
	for {
		if err := pool.Ping(ctx); err == nil {
			h.Pool = pool
			return dsn, nil
		}
		if time.Now().After(deadline) {
			pool.Close()
			return "", fmt.Errorf("postgres did not become ready: %w", err)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// StopPostgres stops the Postgres container and closes the pool.
func (h *TestHarness) StopPostgres(ctx context.Context) error {
	if h.Pool != nil {
		h.Pool.Close()
		h.Pool = nil
	}
	if h.PGContainer != nil {
		if err := h.PGContainer.Terminate(ctx); err != nil {
			return err
		}
		h.PGContainer = nil
	}
	return nil
}

// CreateDocumentTables creates the three document tables plus the indexes the
// cascade paths rely on. Table names match the service defaults.
func (h *TestHarness) CreateDocumentTables(ctx context.Context) error {
	ddls := []string{
		`CREATE TABLE IF NOT EXISTS property_templates (
			row_id          UUID PRIMARY KEY,
			identifier      TEXT NOT NULL UNIQUE,
			name            TEXT NOT NULL,
			type            TEXT,
			format          TEXT,
			possible_values TEXT[],
			default_value   JSONB,
			created_at      BIGINT NOT NULL,
			updated_at      BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS properties (
			row_id              UUID PRIMARY KEY,
			template_identifier TEXT NOT NULL,
			value               JSONB,
			previous_value      JSONB,
			created_by          TEXT,
			last_modified_by    TEXT,
			last_modified_date  BIGINT NOT NULL,
			created_at          BIGINT NOT NULL,
			updated_at          BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS forms (
			row_id       UUID PRIMARY KEY,
			name         TEXT NOT NULL UNIQUE,
			description  TEXT,
			property_ids UUID[] NOT NULL DEFAULT '{}',
			created_at   BIGINT NOT NULL,
			updated_at   BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS properties_template_identifier_idx ON properties (template_identifier)`,
		`CREATE INDEX IF NOT EXISTS forms_property_ids_idx ON forms USING GIN (property_ids)`,
	}

	for _, ddl := range ddls {
		if _, err := h.Pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create document tables: %w", err)
		}
	}
	return nil
}
