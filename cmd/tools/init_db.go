package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type initDBOptions struct {
	host            string
	port            int
	database        string
	user            string
	password        string
	sslMode         string
	templatesTable  string
	propertiesTable string
	formsTable      string
}

func runInitDB(args []string) error {
	flags := flag.NewFlagSet("init-db", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: propria-tools init-db [options]")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	opts := initDBOptions{}
	flags.StringVar(&opts.host, "db-host", getenvDefault("DB_HOST", "localhost"), "database host")
	flags.IntVar(&opts.port, "db-port", getenvDefaultInt("DB_PORT", 5432), "database port")
	flags.StringVar(&opts.database, "db-name", getenvDefault("DB_NAME", "propria"), "database name")
	flags.StringVar(&opts.user, "db-user", getenvDefault("DB_USER", "postgres"), "database user")
	flags.StringVar(&opts.password, "db-password", getenvDefault("DB_PASSWORD", "postgres"), "database password")
	flags.StringVar(&opts.sslMode, "db-ssl-mode", getenvDefault("DB_SSL_MODE", "disable"), "database sslmode")
	flags.StringVar(&opts.templatesTable, "templates-table", getenvDefault("TEMPLATES_TABLE", "property_templates"), "property templates table name")
	flags.StringVar(&opts.propertiesTable, "properties-table", getenvDefault("PROPERTIES_TABLE", "properties"), "properties table name")
	flags.StringVar(&opts.formsTable, "forms-table", getenvDefault("FORMS_TABLE", "forms"), "forms table name")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	return initDatabase(opts)
}

func initDatabase(opts initDBOptions) error {
	ctx := context.Background()

	connString := buildConnString(opts)
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return fmt.Errorf("create connection pool: %w", err)
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if err := withTx(ctx, conn, func(tx pgx.Tx) error {
		return ensureTables(ctx, tx, opts)
	}); err != nil {
		return err
	}

	fmt.Println("Database initialized successfully.")
	return nil
}

func buildConnString(opts initDBOptions) string {
	hostPort := fmt.Sprintf("%s:%d", opts.host, opts.port)

	var userInfo *url.Userinfo
	if opts.password != "" {
		userInfo = url.UserPassword(opts.user, opts.password)
	} else {
		userInfo = url.User(opts.user)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   hostPort,
		Path:   "/" + opts.database,
	}

	q := url.Values{}
	if opts.sslMode != "" {
		q.Set("sslmode", opts.sslMode)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

func ensureTables(ctx context.Context, tx pgx.Tx, opts initDBOptions) error {
	templatesTable := quoteIdentifier(opts.templatesTable)
	propertiesTable := quoteIdentifier(opts.propertiesTable)
	formsTable := quoteIdentifier(opts.formsTable)

	ddlTemplates := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		row_id          UUID PRIMARY KEY,
		identifier      TEXT NOT NULL UNIQUE,
		name            TEXT NOT NULL,
		type            TEXT,
		format          TEXT,
		possible_values TEXT[],
		default_value   JSONB,
		created_at      BIGINT NOT NULL,
		updated_at      BIGINT NOT NULL
	)`, templatesTable)

	if _, err := tx.Exec(ctx, ddlTemplates); err != nil {
		return fmt.Errorf("ensure templates table: %w", err)
	}
	fmt.Printf("Created templates table: %s\n", opts.templatesTable)

	ddlProperties := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		row_id              UUID PRIMARY KEY,
		template_identifier TEXT NOT NULL,
		value               JSONB,
		previous_value      JSONB,
		created_by          TEXT,
		last_modified_by    TEXT,
		last_modified_date  BIGINT NOT NULL,
		created_at          BIGINT NOT NULL,
		updated_at          BIGINT NOT NULL
	)`, propertiesTable)

	if _, err := tx.Exec(ctx, ddlProperties); err != nil {
		return fmt.Errorf("ensure properties table: %w", err)
	}
	fmt.Printf("Created properties table: %s\n", opts.propertiesTable)

	ddlForms := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		row_id       UUID PRIMARY KEY,
		name         TEXT NOT NULL UNIQUE,
		description  TEXT,
		property_ids UUID[] NOT NULL DEFAULT '{}',
		created_at   BIGINT NOT NULL,
		updated_at   BIGINT NOT NULL
	)`, formsTable)

	if _, err := tx.Exec(ctx, ddlForms); err != nil {
		return fmt.Errorf("ensure forms table: %w", err)
	}
	fmt.Printf("Created forms table: %s\n", opts.formsTable)

	// Properties are deleted by template during cascades; an index keeps
	// that path off a sequential scan.
	idxTemplate := quoteIdentifier(makeIndexName(opts.propertiesTable, "template_identifier"))
	createIdxTemplate := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (template_identifier)`, idxTemplate, propertiesTable)
	if _, err := tx.Exec(ctx, createIdxTemplate); err != nil {
		return fmt.Errorf("create template identifier index: %w", err)
	}

	// Cascades pull property ids out of forms via array overlap.
	idxRefs := quoteIdentifier(makeIndexName(opts.formsTable, "property_ids"))
	createIdxRefs := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (property_ids)`, idxRefs, formsTable)
	if _, err := tx.Exec(ctx, createIdxRefs); err != nil {
		return fmt.Errorf("create property refs index: %w", err)
	}

	return nil
}

func withTx(ctx context.Context, conn *pgxpool.Conn, fn func(pgx.Tx) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w; rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func quoteIdentifier(name string) string {
	return pgx.Identifier(splitIdentifier(name)).Sanitize()
}

func splitIdentifier(name string) []string {
	parts := strings.Split(name, ".")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return []string{name}
	}
	return result
}

func makeIndexName(table string, suffix string) string {
	base := strings.ReplaceAll(table, ".", "_")
	base = strings.ReplaceAll(base, `"`, "")
	return fmt.Sprintf("%s_%s_idx", base, suffix)
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvDefaultInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}
