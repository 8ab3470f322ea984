package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store drivers accepted in STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds the server's configuration values.
// Tags like `envconfig:"APP_ENV"` specify the environment variable name.
// `default:""` provides a default value if the env var is not set.
// `required:"true"` makes an environment variable mandatory.
type Config struct {
	AppEnv      string `envconfig:"APP_ENV" default:"development"` // e.g., development, staging, production
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`      // e.g., debug, info, warn, error
	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`
	HttpServer  ServerConfig
	GrpcServer  GrpcServerConfig
	Postgres    PostgresConfig
	Auth        AuthConfig
	Uploads     UploadsConfig
	Catalog     CatalogConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port           string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead    time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite   time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle    time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
	AllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// GrpcServerConfig holds gRPC server-specific configurations.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
}

// PostgresConfig holds PostgreSQL database connection details.
// Only read when STORE_DRIVER=postgres.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	DBName   string `envconfig:"POSTGRES_DBNAME"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"JWT_TTL" default:"24h"`
}

// UploadsConfig controls where product images are written.
type UploadsConfig struct {
	Dir      string `envconfig:"UPLOADS_DIR" default:"uploads"`
	MaxBytes int64  `envconfig:"UPLOADS_MAX_BYTES" default:"5242880"`
}

// CatalogConfig holds catalog seeding settings.
type CatalogConfig struct {
	SeedCSV string `envconfig:"CATALOG_SEED_CSV"`
}

// Load initializes the configuration from environment variables.
// It should be called once during application startup.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.StoreDriver) {
	case StoreDriverPostgres:
		if c.Postgres.User == "" || c.Postgres.DBName == "" {
			return fmt.Errorf("invalid configuration: POSTGRES_USER and POSTGRES_DBNAME are required when STORE_DRIVER=%s", StoreDriverPostgres)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER: %q (allowed: %s, %s)", c.StoreDriver, StoreDriverPostgres, StoreDriverMemory)
	}
	c.StoreDriver = strings.ToLower(c.StoreDriver)
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("invalid configuration: JWT_SECRET must not be empty")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("invalid JWT_TTL: %s", c.Auth.TokenTTL)
	}
	return nil
}

// ClientConfig holds settings for the storefront terminal client.
type ClientConfig struct {
	APIURL    string `envconfig:"STOREFRONT_API_URL" default:"http://localhost:8080/api"`
	TokenFile string `envconfig:"STOREFRONT_TOKEN_FILE" default:".storefront-token"`
	WhatsApp  string `envconfig:"WHATSAPP_NUMBER"`
}

// LoadClient reads the storefront client configuration.
func LoadClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process client configuration: %w", err)
	}
	return &cfg, nil
}
