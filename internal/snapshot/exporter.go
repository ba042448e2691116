package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"go.uber.org/zap"

	"github.com/lychee-technology/propria"
)

// DuckExporter handles DuckDB interactions for exporting table snapshots to
// an S3 temp path.
type DuckExporter struct {
	DB     *sql.DB
	Logger *zap.Logger
}

// NewDuckExporter opens a DuckDB connection and configures pragmas and extensions.
func NewDuckExporter(ctx context.Context, cfg propria.SnapshotConfig, s3AccessKey, s3Secret string, logger *zap.Logger) (*DuckExporter, error) {
	db, err := sql.Open("duckdb", cfg.DuckDBPath)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pragmas := []string{
		fmt.Sprintf("PRAGMA memory_limit='%dMB';", cfg.DuckDBMemoryMB),
		fmt.Sprintf("PRAGMA threads=%d;", cfg.DuckDBThreads),
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx2, p); err != nil {
			logger.Sugar().Warnw("duckdb pragma failed", "pragma", p, "err", err)
		}
	}

	exts := []string{"httpfs", "parquet", "postgres_scanner"}
	for _, e := range exts {
		if _, err := db.ExecContext(ctx2, "INSTALL "+e+";"); err != nil {
			logger.Sugar().Warnw("duckdb install extension failed", "ext", e, "err", err)
		} else {
			if _, err := db.ExecContext(ctx2, "LOAD "+e+";"); err != nil {
				logger.Sugar().Warnw("duckdb load extension failed", "ext", e, "err", err)
			}
		}
	}

	if s3AccessKey != "" {
		if _, err := db.ExecContext(ctx2, fmt.Sprintf("SET s3_access_key_id='%s';", s3AccessKey)); err != nil {
			logger.Sugar().Warnw("duckdb set s3_access_key_id failed", "err", err)
		}
	}
	if s3Secret != "" {
		if _, err := db.ExecContext(ctx2, fmt.Sprintf("SET s3_secret_access_key='%s';", s3Secret)); err != nil {
			logger.Sugar().Warnw("duckdb set s3_secret_access_key failed", "err", err)
		}
	}
	if cfg.S3Region != "" {
		if _, err := db.ExecContext(ctx2, fmt.Sprintf("SET s3_region='%s';", cfg.S3Region)); err != nil {
			logger.Sugar().Warnw("duckdb set s3_region failed", "err", err)
		}
	}
	if cfg.S3Endpoint != "" {
		ep := strings.TrimPrefix(cfg.S3Endpoint, "http://")
		if _, err := db.ExecContext(ctx2, fmt.Sprintf("SET s3_endpoint='%s';", ep)); err != nil {
			logger.Sugar().Warnw("duckdb set s3_endpoint failed", "err", err)
		}
		if _, err := db.ExecContext(ctx2, "SET s3_use_ssl=false;"); err != nil {
			logger.Sugar().Warnw("duckdb set s3_use_ssl failed", "err", err)
		}
		if _, err := db.ExecContext(ctx2, "SET s3_url_style='path';"); err != nil {
			logger.Sugar().Warnw("duckdb set s3_url_style failed", "err", err)
		}
	}

	return &DuckExporter{DB: db, Logger: logger}, nil
}

// BuildExportSQL renders the COPY statement that snapshots one document table
// through postgres_scan into a Parquet object. Rows written after snapshotTS
// are excluded so concurrent writers cannot smear the snapshot boundary.
func BuildExportSQL(pgConnStr, table, s3TmpPath string, snapshotTS int64) string {
	pgEsc := strings.ReplaceAll(pgConnStr, "'", "''")
	s3Esc := strings.ReplaceAll(s3TmpPath, "'", "''")

	return fmt.Sprintf(`COPY (
SELECT *
FROM postgres_scan('%s', '%s', 'updated_at <= %d')
ORDER BY row_id
) TO '%s' (FORMAT PARQUET, COMPRESSION 'ZSTD');
`, pgEsc, table, snapshotTS, s3Esc)
}

// ExportTableToTmp runs COPY for one table to the provided s3TmpPath.
// s3TmpPath is the destination like 's3://bucket/prefix/snapshot/<table>/_tmp/<tmp_uuid>.parquet'
func (e *DuckExporter) ExportTableToTmp(ctx context.Context, pgConnStr, table, s3TmpPath string, snapshotTS int64) error {
	exportSQL := BuildExportSQL(pgConnStr, table, s3TmpPath, snapshotTS)

	e.Logger.Sugar().Infow("duckdb export", "table", table, "snapshot_ts", snapshotTS)
	ctx2, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()
	if _, err := e.DB.ExecContext(ctx2, exportSQL); err != nil {
		return fmt.Errorf("duckdb copy exec: %w", err)
	}
	return nil
}
