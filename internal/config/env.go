package config

import (
	"github.com/JaimeStill/doc-gateway/internal/blob"
	"github.com/JaimeStill/doc-gateway/internal/coordinator"
	"github.com/JaimeStill/doc-gateway/internal/vector"
	"github.com/JaimeStill/doc-gateway/pkg/database"
	"github.com/JaimeStill/doc-gateway/pkg/logging"
	"github.com/JaimeStill/doc-gateway/pkg/middleware"
	"github.com/JaimeStill/doc-gateway/pkg/pagination"
)

var databaseEnv = &database.Env{
	DSN:              "DATABASE_URL",
	ApplicationName:  "DATABASE_APPLICATION_NAME",
	StatementTimeout: "DATABASE_STATEMENT_TIMEOUT",
	Host:             "DATABASE_HOST",
	Port:             "DATABASE_PORT",
	Name:             "DATABASE_NAME",
	User:             "DATABASE_USER",
	Password:         "DATABASE_PASSWORD",
	MaxOpenConns:     "DATABASE_MAX_OPEN_CONNS",
	MaxIdleConns:     "DATABASE_MAX_IDLE_CONNS",
	ConnMaxLifetime:  "DATABASE_CONN_MAX_LIFETIME",
	ConnTimeout:      "DATABASE_CONN_TIMEOUT",
	SSLMode:          "DATABASE_SSL_MODE",
}

var loggingEnv = &logging.Env{
	Level:     "LOGGING_LEVEL",
	Format:    "LOGGING_FORMAT",
	AddSource: "LOGGING_ADD_SOURCE",
}

var corsEnv = &middleware.CORSEnv{
	Enabled:          "API_CORS_ENABLED",
	Origins:          "API_CORS_ORIGINS",
	AllowedMethods:   "API_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "API_CORS_ALLOWED_HEADERS",
	AllowCredentials: "API_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "API_CORS_MAX_AGE",
}

var paginationEnv = &pagination.Env{
	DefaultPageSize: "API_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "API_PAGINATION_MAX_PAGE_SIZE",
}

var blobEnv = &blob.Env{
	Provider:     "MINIO_PROVIDER",
	Endpoint:     "MINIO_ENDPOINT",
	AccessKey:    "MINIO_ACCESS_KEY",
	SecretKey:    "MINIO_SECRET_KEY",
	UseSSL:       "MINIO_SECURE",
	Region:       "MINIO_REGION",
	Bucket:       "MINIO_BUCKET",
	BaseURL:      "MINIO_BASE_URL",
	BasePath:     "BLOB_BASE_PATH",
	MaxFileSize:  "MAX_FILE_SIZE",
	DigestLookup: "BLOB_DIGEST_LOOKUP",
}

var vectorEnv = &vector.Env{
	Host:           "QDRANT_HOST",
	Port:           "QDRANT_PORT",
	APIKey:         "QDRANT_API_KEY",
	UseTLS:         "QDRANT_USE_TLS",
	Collection:     "QDRANT_COLLECTION",
	Dimension:      "EMBEDDING_DIMENSION",
	ConnectTimeout: "QDRANT_CONNECT_TIMEOUT",
}

var sessionsEnv = &coordinator.Env{
	DefaultTTLHours: "SESSION_DEFAULT_TTL_HOURS",
	SweepSchedule:   "SESSION_SWEEP_SCHEDULE",
}
