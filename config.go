package propria

import (
	"time"
)

// Config consolidates settings for the property service
type Config struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Cache      CacheConfig      `json:"cache"`
	Validation ValidationConfig `json:"validation"`
	Snapshot   SnapshotConfig   `json:"snapshot"`
	Logging    LoggingConfig    `json:"logging"`
}

// TableNames holds the physical table names for the three collections.
type TableNames struct {
	Templates  string `json:"templates"`
	Properties string `json:"properties"`
	Forms      string `json:"forms"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Database        string        `json:"database"`
	Username        string        `json:"username"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"sslMode"`
	MaxConnections  int           `json:"maxConnections"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime"`
	Timeout         time.Duration `json:"timeout"`
	TableNames      TableNames    `json:"tableNames"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port            string        `json:"port"`
	ReadTimeout     time.Duration `json:"readTimeout"`
	WriteTimeout    time.Duration `json:"writeTimeout"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout"`
}

// CacheConfig contains template lookup cache settings
type CacheConfig struct {
	Enabled         bool          `json:"enabled"`
	TTL             time.Duration `json:"ttl"`
	CleanupInterval time.Duration `json:"cleanupInterval"`
}

// ValidationConfig controls the opt-in value validation enhancement. When
// ValidateValues is false (the default) values are stored exactly as given,
// with no structural check against the template's type tag.
type ValidationConfig struct {
	ValidateValues bool `json:"validateValues"`
}

// SnapshotConfig contains settings for the S3/Parquet snapshot exporter.
type SnapshotConfig struct {
	Enabled        bool   `json:"enabled"`
	S3Bucket       string `json:"s3Bucket"`
	S3Prefix       string `json:"s3Prefix"`
	S3Region       string `json:"s3Region"`
	S3Endpoint     string `json:"s3Endpoint"`
	DuckDBPath     string `json:"duckdbPath"`
	DuckDBMemoryMB int    `json:"duckdbMemoryMB"`
	DuckDBThreads  int    `json:"duckdbThreads"`
	PGUseIAM       bool   `json:"pgUseIAM"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level     string `json:"level"`
	Format    string `json:"format"`
	LogAll    bool   `json:"logAllOperations"`
	LogErrors bool   `json:"logErrors"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "propria",
			Username:        "postgres",
			SSLMode:         "disable",
			MaxConnections:  25,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			Timeout:         30 * time.Second,
			TableNames: TableNames{
				Templates:  "property_templates",
				Properties: "properties",
				Forms:      "forms",
			},
		},
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             5 * time.Minute,
			CleanupInterval: 10 * time.Minute,
		},
		Validation: ValidationConfig{
			ValidateValues: false,
		},
		Snapshot: SnapshotConfig{
			Enabled:        false,
			DuckDBMemoryMB: 2048,
			DuckDBThreads:  2,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			LogErrors: true,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return &ConfigError{Field: "database.host", Message: "must not be empty"}
	}

	if c.Database.MaxConnections <= 0 {
		return &ConfigError{Field: "database.maxConnections", Message: "must be greater than 0"}
	}

	if c.Database.TableNames.Templates == "" {
		return &ConfigError{Field: "database.tableNames.templates", Message: "must not be empty"}
	}

	if c.Database.TableNames.Properties == "" {
		return &ConfigError{Field: "database.tableNames.properties", Message: "must not be empty"}
	}

	if c.Database.TableNames.Forms == "" {
		return &ConfigError{Field: "database.tableNames.forms", Message: "must not be empty"}
	}

	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return &ConfigError{Field: "cache.ttl", Message: "must be greater than 0 when the cache is enabled"}
	}

	if c.Snapshot.Enabled && c.Snapshot.S3Bucket == "" {
		return &ConfigError{Field: "snapshot.s3Bucket", Message: "must not be empty when snapshots are enabled"}
	}

	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
