package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lychee-technology/propria"
	"github.com/lychee-technology/propria/factory"
)

// Server represents the HTTP server with the property Manager
type Server struct {
	manager propria.Manager
	mux     *http.ServeMux
}

// NewServer creates a new Server instance
func NewServer(manager propria.Manager) *Server {
	return &Server{
		manager: manager,
		mux:     http.NewServeMux(),
	}
}

// RegisterRoutes registers all API routes
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("/api/v1/templates", s.templatesHandler)
	s.mux.HandleFunc("/api/v1/templates/", s.templatesHandler)
	s.mux.HandleFunc("/api/v1/properties", s.propertiesHandler)
	s.mux.HandleFunc("/api/v1/properties/", s.propertiesHandler)
	s.mux.HandleFunc("/api/v1/forms", s.formsHandler)
	s.mux.HandleFunc("/api/v1/forms/", s.formsHandler)
}

// Start runs the HTTP server until the context is cancelled, then drains
// in-flight requests within the shutdown timeout.
func (s *Server) Start(ctx context.Context, cfg propria.ServerConfig) error {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.S().Infow("starting server", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	config := configFromEnv()

	pool, err := createDatabasePoolFromConfig(config.Database)
	if err != nil {
		sugar.Fatalf("failed to create database pool: %v", err)
	}
	defer pool.Close()

	manager, err := factory.NewManagerWithConfig(config, pool)
	if err != nil {
		sugar.Fatalf("failed to create manager: %v", err)
	}

	server := NewServer(manager)
	server.RegisterRoutes()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx, config.Server); err != nil && err != http.ErrServerClosed {
		sugar.Fatalf("server error: %v", err)
	}
}

// configFromEnv builds the service configuration from environment variables,
// starting from the defaults.
func configFromEnv() *propria.Config {
	config := propria.DefaultConfig()

	config.Database.Host = getEnv("DB_HOST", config.Database.Host)
	config.Database.Port = getEnvInt("DB_PORT", config.Database.Port)
	config.Database.Database = getEnv("DB_NAME", config.Database.Database)
	config.Database.Username = getEnv("DB_USER", config.Database.Username)
	config.Database.Password = getEnv("DB_PASSWORD", "")
	config.Database.SSLMode = getEnv("DB_SSL_MODE", config.Database.SSLMode)
	config.Database.MaxConnections = getEnvInt("DB_MAX_CONNECTIONS", config.Database.MaxConnections)
	config.Database.Timeout = time.Duration(getEnvInt("DB_TIMEOUT_SECONDS", 30)) * time.Second

	config.Database.TableNames.Templates = getEnv("TEMPLATES_TABLE", config.Database.TableNames.Templates)
	config.Database.TableNames.Properties = getEnv("PROPERTIES_TABLE", config.Database.TableNames.Properties)
	config.Database.TableNames.Forms = getEnv("FORMS_TABLE", config.Database.TableNames.Forms)

	config.Server.Port = getEnv("PORT", config.Server.Port)
	config.Cache.Enabled = getEnvBool("TEMPLATE_CACHE_ENABLED", config.Cache.Enabled)
	config.Validation.ValidateValues = getEnvBool("VALIDATE_VALUES", config.Validation.ValidateValues)

	return config
}

// createDatabasePoolFromConfig creates a PostgreSQL connection pool from config
func createDatabasePoolFromConfig(config propria.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		config.Username,
		config.Password,
		config.Host,
		config.Port,
		config.Database,
		config.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(config.MaxConnections)
	poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = config.ConnMaxIdleTime
	poolConfig.ConnConfig.ConnectTimeout = config.Timeout

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
