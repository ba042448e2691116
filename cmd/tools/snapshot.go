package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/lychee-technology/propria"
	"github.com/lychee-technology/propria/internal/snapshot"
)

func runSnapshot(args []string) error {
	flags := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: propria-tools snapshot [options]")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	config := propria.DefaultConfig()
	dbCfg := &config.Database
	snapCfg := &config.Snapshot

	flags.StringVar(&dbCfg.Host, "db-host", getenvDefault("DB_HOST", dbCfg.Host), "database host")
	flags.IntVar(&dbCfg.Port, "db-port", getenvDefaultInt("DB_PORT", dbCfg.Port), "database port")
	flags.StringVar(&dbCfg.Database, "db-name", getenvDefault("DB_NAME", dbCfg.Database), "database name")
	flags.StringVar(&dbCfg.Username, "db-user", getenvDefault("DB_USER", dbCfg.Username), "database user")
	flags.StringVar(&dbCfg.Password, "db-password", getenvDefault("DB_PASSWORD", ""), "database password")
	flags.StringVar(&dbCfg.SSLMode, "db-ssl-mode", getenvDefault("DB_SSL_MODE", "require"), "database sslmode")
	flags.StringVar(&dbCfg.TableNames.Templates, "templates-table", getenvDefault("TEMPLATES_TABLE", dbCfg.TableNames.Templates), "property templates table name")
	flags.StringVar(&dbCfg.TableNames.Properties, "properties-table", getenvDefault("PROPERTIES_TABLE", dbCfg.TableNames.Properties), "properties table name")
	flags.StringVar(&dbCfg.TableNames.Forms, "forms-table", getenvDefault("FORMS_TABLE", dbCfg.TableNames.Forms), "forms table name")

	flags.StringVar(&snapCfg.S3Bucket, "s3-bucket", getenvDefault("SNAPSHOT_S3_BUCKET", ""), "destination S3 bucket")
	flags.StringVar(&snapCfg.S3Prefix, "s3-prefix", getenvDefault("SNAPSHOT_S3_PREFIX", "propria"), "destination S3 key prefix")
	flags.StringVar(&snapCfg.S3Region, "s3-region", getenvDefault("SNAPSHOT_S3_REGION", ""), "S3 region")
	flags.StringVar(&snapCfg.S3Endpoint, "s3-endpoint", getenvDefault("SNAPSHOT_S3_ENDPOINT", ""), "custom S3 endpoint (e.g. MinIO)")
	flags.StringVar(&snapCfg.DuckDBPath, "duckdb-path", getenvDefault("SNAPSHOT_DUCKDB_PATH", ""), "DuckDB database path (empty for in-memory)")
	flags.IntVar(&snapCfg.DuckDBMemoryMB, "duckdb-memory-mb", snapCfg.DuckDBMemoryMB, "DuckDB memory limit in MB")
	flags.IntVar(&snapCfg.DuckDBThreads, "duckdb-threads", snapCfg.DuckDBThreads, "DuckDB thread count")
	flags.BoolVar(&snapCfg.PGUseIAM, "pg-use-iam", false, "authenticate to Postgres with an IAM token")

	dryRun := flags.Bool("dry-run", false, "export but skip the manifest upload")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if snapCfg.S3Bucket == "" {
		return fmt.Errorf("s3-bucket is required")
	}

	return snapshot.RunOnce(context.Background(), *dbCfg, *snapCfg, *dryRun, zap.L())
}
