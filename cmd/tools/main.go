package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Errorf("failed to set up logger: %w", err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init-db":
		if err := runInitDB(os.Args[2:]); err != nil {
			sugar.Fatalf("init-db: %v", err)
		}
	case "snapshot":
		if err := runSnapshot(os.Args[2:]); err != nil {
			sugar.Fatalf("snapshot: %v", err)
		}
	default:
		sugar.Errorf("unknown command %q", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	logger := zap.S()
	logger.Info("Usage: propria-tools <command> [options]")
	logger.Info("")
	logger.Info("Commands:")
	logger.Info("  init-db    Create PostgreSQL tables and indexes for Propria")
	logger.Info("  snapshot   Export the document tables to S3 as Parquet")
}
