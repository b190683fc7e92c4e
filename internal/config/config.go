package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Supported record store drivers
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config holds all application configuration
type Config struct {
	// Service configuration
	ServicePort string
	ServiceName string
	LogLevel    string
	MaxUploadMB int

	// Search configuration
	FuzzyCutoff        float64
	SpellingDictionary string
	ThesaurusPath      string

	// Record store configuration
	DBDriver   string
	SQLitePath string

	// TiDB configuration
	TiDBHost     string
	TiDBPort     string
	TiDBUser     string
	TiDBPassword string
	TiDBDatabase string

	// MinIO configuration
	MinIOEndpoint   string
	MinIOAccessKey  string
	MinIOSecretKey  string
	MinIOBucketName string
	MinIOUseSSL     bool

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Jaeger configuration
	TracingEnabled bool
	JaegerEndpoint string
}

// LoadConfig loads configuration from an optional .env file and environment
// variables with sensible defaults. Malformed numeric or boolean values are
// reported instead of silently replaced.
func LoadConfig() (*Config, error) {
	// A missing .env is fine; the process environment is authoritative.
	_ = godotenv.Load()

	p := &parser{}
	config := &Config{
		// Service defaults
		ServicePort: getEnv("SERVICE_PORT", "8080"),
		ServiceName: getEnv("SERVICE_NAME", "schematic"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		MaxUploadMB: p.int("MAX_UPLOAD_MB", 10),

		// Search defaults
		FuzzyCutoff:        p.float("FUZZY_CUTOFF", 0.8),
		SpellingDictionary: getEnv("SPELLING_DICTIONARY", ""),
		ThesaurusPath:      getEnv("THESAURUS_PATH", ""),

		// Record store defaults
		DBDriver:   getEnv("DB_DRIVER", DriverMySQL),
		SQLitePath: getEnv("SQLITE_PATH", "schematic.db"),

		// TiDB defaults
		TiDBHost:     getEnv("TIDB_HOST", "localhost"),
		TiDBPort:     getEnv("TIDB_PORT", "4000"),
		TiDBUser:     getEnv("TIDB_USER", "root"),
		TiDBPassword: getEnv("TIDB_PASSWORD", ""),
		TiDBDatabase: getEnv("TIDB_DATABASE", "schematic"),

		// MinIO defaults
		MinIOEndpoint:   getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey:  getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinIOSecretKey:  getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinIOBucketName: getEnv("MINIO_BUCKET_NAME", "schemas"),
		MinIOUseSSL:     p.bool("MINIO_USE_SSL", false),

		// Redis defaults
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       p.int("REDIS_DB", 0),
		CacheTTL:      p.duration("CACHE_TTL", time.Hour),

		// Jaeger defaults
		TracingEnabled: p.bool("TRACING_ENABLED", true),
		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "localhost:4318"),
	}

	if err := p.err(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks value ranges that parsing alone cannot catch
func (c *Config) Validate() error {
	if c.DBDriver != DriverMySQL && c.DBDriver != DriverSQLite {
		return fmt.Errorf("unsupported DB_DRIVER %q (want %q or %q)", c.DBDriver, DriverMySQL, DriverSQLite)
	}
	if c.FuzzyCutoff < 0 || c.FuzzyCutoff > 1 {
		return fmt.Errorf("FUZZY_CUTOFF must be within [0, 1], got %v", c.FuzzyCutoff)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	return nil
}

// GetDSN returns the connection string for the configured record store
func (c *Config) GetDSN() string {
	if c.DBDriver == DriverSQLite {
		return c.SQLitePath
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.TiDBUser,
		c.TiDBPassword,
		c.TiDBHost,
		c.TiDBPort,
		c.TiDBDatabase,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// GetMaxUploadBytes returns the upload limit in bytes
func (c *Config) GetMaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser collects conversion errors so LoadConfig can report all of them at once.
type parser struct {
	errs []error
}

func (p *parser) int(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return value
}

func (p *parser) float(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return value
}

func (p *parser) bool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return value
}

func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return value
}

func (p *parser) err() error {
	return errors.Join(p.errs...)
}
