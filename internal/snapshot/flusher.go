package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	awsCreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/lychee-technology/propria"
)

// TableManifestEntry records one exported table within a snapshot run.
type TableManifestEntry struct {
	Table string `json:"table"`
	Key   string `json:"key"`
	Rows  int64  `json:"rows"`
}

// Manifest describes one complete snapshot run. It is uploaded last, so a
// reader that sees the manifest can trust every object it names.
type Manifest struct {
	SnapshotTS int64                `json:"snapshot_ts"`
	Tables     []TableManifestEntry `json:"tables"`
}

// ConnString renders a lib/pq-style connection string for the document store.
func ConnString(dbCfg propria.DatabaseConfig, password string) string {
	sslMode := dbCfg.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dbCfg.Host, dbCfg.Port, dbCfg.Username, password, dbCfg.Database, sslMode)
}

// SnapshotKeys builds the tmp and final object keys for one table export.
func SnapshotKeys(prefix, table string) (tmpKey, finalKey string) {
	base := strings.TrimSuffix(prefix, "/")
	tmpKey = base + fmt.Sprintf("/snapshot/%s/_tmp/%s.parquet", table, uuid.Must(uuid.NewV7()).String())
	finalKey = base + fmt.Sprintf("/snapshot/%s/%s.parquet", table, uuid.Must(uuid.NewV7()).String())
	return tmpKey, finalKey
}

// RunOnce performs one full snapshot pass over the three document tables.
func RunOnce(ctx context.Context, dbCfg propria.DatabaseConfig, cfg propria.SnapshotConfig, dryRun bool, logger *zap.Logger) error {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}
	if cfg.S3Region != "" {
		awsCfg.Region = cfg.S3Region
	}
	if envKey := os.Getenv("AWS_ACCESS_KEY_ID"); envKey != "" {
		awsCfg.Credentials = awsCreds.NewStaticCredentialsProvider(os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"), "")
	}
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = &cfg.S3Endpoint
			o.UsePathStyle = true
		}
	})

	pgPassword := dbCfg.Password
	if cfg.PGUseIAM {
		endpoint := fmt.Sprintf("%s:%d", dbCfg.Host, dbCfg.Port)
		if token, err := auth.GenerateDbConnectAuthToken(ctx, endpoint, awsCfg.Region, awsCfg.Credentials); err == nil && token != "" {
			pgPassword = token
			logger.Sugar().Infow("generated IAM auth token for Postgres connection (dsql)")
		} else {
			logger.Sugar().Warnw("failed to generate IAM auth token; falling back to configured password", "err", err)
		}
	}

	pgConnStr := ConnString(dbCfg, pgPassword)
	db, err := sql.Open("postgres", pgConnStr)
	if err != nil {
		return fmt.Errorf("open pg: %w", err)
	}
	defer db.Close()

	duck, err := NewDuckExporter(ctx, cfg, os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"), logger)
	if err != nil {
		return fmt.Errorf("new duck exporter: %w", err)
	}
	defer duck.DB.Close()

	snapshotTS := time.Now().UnixMilli()
	manifest := Manifest{SnapshotTS: snapshotTS}

	tables := []string{
		dbCfg.TableNames.Templates,
		dbCfg.TableNames.Properties,
		dbCfg.TableNames.Forms,
	}
	for _, table := range tables {
		logger.Sugar().Infow("processing table", "table", table)

		var rows int64
		countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE updated_at <= $1", table)
		if err := db.QueryRowContext(ctx, countSQL, snapshotTS).Scan(&rows); err != nil {
			logger.Sugar().Errorw("count rows failed", "table", table, "err", err)
			continue
		}
		if rows == 0 {
			logger.Sugar().Infow("no rows to snapshot", "table", table)
			continue
		}

		tmpKey, finalKey := SnapshotKeys(cfg.S3Prefix, table)
		s3TmpPath := fmt.Sprintf("s3://%s/%s", cfg.S3Bucket, tmpKey)
		logger.Sugar().Infow("export snapshot", "table", table, "snapshot_ts", snapshotTS, "tmp", s3TmpPath)
		if err := duck.ExportTableToTmp(ctx, pgConnStr, table, s3TmpPath, snapshotTS); err != nil {
			logger.Sugar().Errorw("duck export failed", "table", table, "err", err)
			continue
		}

		if err := CopyTmpToFinal(ctx, s3Client, cfg.S3Bucket, tmpKey, finalKey, logger); err != nil {
			logger.Sugar().Errorw("s3 copy tmp->final failed", "table", table, "err", err)
			continue
		}

		manifest.Tables = append(manifest.Tables, TableManifestEntry{
			Table: table,
			Key:   finalKey,
			Rows:  rows,
		})
	}

	if len(manifest.Tables) == 0 {
		logger.Sugar().Infow("nothing snapshotted, skipping manifest")
		return nil
	}
	if dryRun {
		logger.Sugar().Infow("dry-run: skipping manifest upload", "tables", len(manifest.Tables))
		return nil
	}

	manifestKey, err := UploadManifest(ctx, s3Client, cfg.S3Bucket, cfg.S3Prefix, &manifest)
	if err != nil {
		return fmt.Errorf("upload manifest: %w", err)
	}
	logger.Sugar().Infow("snapshot completed",
		"snapshot_ts", snapshotTS,
		"tables", len(manifest.Tables),
		"manifest_key", manifestKey)

	return nil
}
