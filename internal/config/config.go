package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store backends.
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_PORT"` specify the environment variable name.
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"development"` // development, staging, production
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`      // debug, info, warn, error
	HttpServer ServerConfig
	GrpcServer GrpcServerConfig
	Store      StoreConfig
	Mongo      MongoConfig
	Postgres   PostgresConfig
	Storage    StorageConfig
	Auth       AuthConfig
	Redis      RedisConfig
	Catalog    CatalogConfig
	Contact    ContactConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port         string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"30s"`
	TimeoutIdle  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
	MaxUploadMB  int64         `envconfig:"HTTP_SERVER_MAX_UPLOAD_MB" default:"10"`
}

// GrpcServerConfig holds gRPC server-specific configurations.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
}

// StoreConfig selects the product and category store.
type StoreConfig struct {
	Backend string `envconfig:"STORE_BACKEND" default:"mongo"`
}

// MongoConfig holds the document database connection details.
type MongoConfig struct {
	URI      string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	Database string `envconfig:"MONGO_DATABASE" default:"storefront"`
}

// PostgresConfig holds PostgreSQL database connection details.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"postgres"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	DBName   string `envconfig:"POSTGRES_DBNAME" default:"storefront"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// StorageConfig holds the object storage used for product images.
type StorageConfig struct {
	Region          string `envconfig:"AWS_REGION" default:"us-east-1"`
	Endpoint        string `envconfig:"AWS_S3_ENDPOINT"`
	AccessKeyID     string `envconfig:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY"`
	Bucket          string `envconfig:"AWS_S3_BUCKET" default:"goldenthreads"`
	Prefix          string `envconfig:"AWS_S3_PREFIX" default:"products/"`
	CDNDomain       string `envconfig:"AWS_CLOUDFRONT_DOMAIN"`
}

// AuthConfig holds admin authentication settings.
type AuthConfig struct {
	JWTSecret     string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL      time.Duration `envconfig:"JWT_TOKEN_TTL" default:"12h"`
	AdminEmail    string        `envconfig:"ADMIN_EMAIL"`
	AdminPassword string        `envconfig:"ADMIN_PASSWORD"`
}

// RedisConfig holds the connection used for remembered preferences. An empty URL
// disables it.
type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	PrefTTL      time.Duration `envconfig:"REDIS_PREF_TTL" default:"8760h"`
}

// CatalogConfig holds catalog engine settings.
type CatalogConfig struct {
	RefreshInterval time.Duration `envconfig:"CATALOG_REFRESH_INTERVAL" default:"5m"`
	DefaultLocale   string        `envconfig:"CATALOG_DEFAULT_LOCALE" default:"fr"`
}

// ContactConfig holds the public contact details of the shop.
type ContactConfig struct {
	WhatsAppPhone string `envconfig:"CONTACT_WHATSAPP_PHONE" default:"22383561498"`
	Phone         string `envconfig:"CONTACT_PHONE" default:"+223 83 56 14 98"`
	Email         string `envconfig:"CONTACT_EMAIL" default:"info@goldenthreads.com"`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:5173"`
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
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch c.Store.Backend {
	case BackendMongo, BackendPostgres:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: want %s or %s", c.Store.Backend, BackendMongo, BackendPostgres)
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.Catalog.RefreshInterval < 0 {
		return fmt.Errorf("invalid CATALOG_REFRESH_INTERVAL %s", c.Catalog.RefreshInterval)
	}
	if (c.Auth.AdminEmail == "") != (c.Auth.AdminPassword == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
