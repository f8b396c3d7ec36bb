// Package config loads application configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMongo  = "mongo"
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Admin response listing scopes accepted by ADMIN_RESPONSES_SCOPE.
const (
	ScopeAll = "all"
	ScopeOwn = "own"
)

// MySQLConfig holds the relational backend connection settings.
type MySQLConfig struct {
	User string
	Pass string
	Host string
	Port string
	Name string
}

// MinIOConfig holds object storage settings.  An empty Endpoint disables
// the MinIO content store.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base that stored object URLs are built from.  It
	// defaults to the endpoint with the matching scheme.
	PublicURL string
}

// Config holds all runtime configuration values.
type Config struct {
	Env  string
	Port string

	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	BcryptCost    int
	CookieSecure  bool

	StoreDriver  string
	StoreTimeout time.Duration
	MongoURI     string
	MongoDB      string
	MySQL        MySQLConfig

	MinIO          MinIOConfig
	MaxUploadBytes int64

	AMQPURL      string
	AuditLogPath string

	AdminResponsesScope string
	StrictMessageStatus bool

	LogLevel  string
	LogFormat string
}

// Load reads a .env file when present and then the process environment.
// Missing required variables stop the process with a fatal log line.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Env:  must("APP_ENV"),
		Port: must("APP_PORT"),

		AccessSecret:  must("ACCESS_TOKEN_SECRET"),
		RefreshSecret: must("REFRESH_TOKEN_SECRET"),
		AccessTTL:     time.Duration(envInt("ACCESS_TOKEN_TTL_MIN", 15)) * time.Minute,
		RefreshTTL:    time.Duration(envInt("REFRESH_TOKEN_TTL_DAYS", 10)) * 24 * time.Hour,
		BcryptCost:    envInt("BCRYPT_COST", 10),

		StoreDriver:  envStr("STORE_DRIVER", DriverMongo),
		StoreTimeout: envDur("STORE_TIMEOUT", 5*time.Second),
		MongoURI:     envStr("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      envStr("MONGO_DB", "messagingApp"),
		MySQL: MySQLConfig{
			User: envStr("DB_USER", "root"),
			Pass: os.Getenv("DB_PASS"),
			Host: envStr("DB_HOST", "127.0.0.1"),
			Port: envStr("DB_PORT", "3306"),
			Name: envStr("DB_NAME", "peer_support"),
		},

		MinIO: MinIOConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    envStr("MINIO_BUCKET", "peer-support"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
			PublicURL: os.Getenv("MINIO_PUBLIC_URL"),
		},
		MaxUploadBytes: int64(envInt("MAX_UPLOAD_BYTES", 10<<20)),

		AMQPURL:      amqpURL(),
		AuditLogPath: envStr("AUDIT_LOG_PATH", "logs/audit.log"),

		AdminResponsesScope: envStr("ADMIN_RESPONSES_SCOPE", ScopeAll),
		StrictMessageStatus: envBool("STRICT_MESSAGE_STATUS", true),

		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "text"),
	}
	cfg.CookieSecure = envBool("COOKIE_SECURE", cfg.Env == "prod")

	switch cfg.StoreDriver {
	case DriverMongo, DriverMySQL, DriverMemory:
	default:
		log.Fatalf("invalid STORE_DRIVER: %q", cfg.StoreDriver)
	}
	switch cfg.AdminResponsesScope {
	case ScopeAll, ScopeOwn:
	default:
		log.Fatalf("invalid ADMIN_RESPONSES_SCOPE: %q", cfg.AdminResponsesScope)
	}
	if cfg.MinIO.PublicURL == "" && cfg.MinIO.Endpoint != "" {
		scheme := "http://"
		if cfg.MinIO.UseSSL {
			scheme = "https://"
		}
		cfg.MinIO.PublicURL = scheme + cfg.MinIO.Endpoint
	}
	return cfg
}

// amqpURL returns RABBITMQ_URL, falling back to AMQP_URL.  Empty disables
// event publishing.
func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
