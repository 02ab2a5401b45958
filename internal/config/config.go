package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all service configuration. It is loaded once at startup and
// injected into constructors; nothing else reads the environment, so tests
// can substitute any value without mutating the process env.
type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	PostgresDSN string `envconfig:"POSTGRES_DSN"`

	MongoURI string `envconfig:"MONGO_URI"`
	MongoDB  string `envconfig:"MONGO_DB" default:"askhr"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"redis:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`

	MinioEndpoint  string `envconfig:"MINIO_ENDPOINT" default:"minio:9000"`
	MinioAccessKey string `envconfig:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `envconfig:"MINIO_SECRET_KEY"`
	MinioBucket    string `envconfig:"MINIO_BUCKET" default:"hr-documents"`
	MinioUseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"false"`

	// Primary and secondary AI providers, both OpenAI-compatible chat
	// completion endpoints. The secondary is only called when the primary
	// fails or returns a non-OK status.
	PrimaryAIURL     string `envconfig:"PRIMARY_AI_URL"`
	PrimaryAIKey     string `envconfig:"PRIMARY_AI_KEY"`
	PrimaryAIModel   string `envconfig:"PRIMARY_AI_MODEL" default:"gpt-4o-mini"`
	SecondaryAIURL   string `envconfig:"SECONDARY_AI_URL"`
	SecondaryAIKey   string `envconfig:"SECONDARY_AI_KEY"`
	SecondaryAIModel string `envconfig:"SECONDARY_AI_MODEL" default:"gpt-4o-mini"`

	// DefaultTenantID scopes requests whose bearer token is missing or
	// unresolvable. Tenancy enforcement is intentionally lenient here.
	DefaultTenantID string `envconfig:"DEFAULT_TENANT_ID" default:"demo"`

	RetrievalTopK int `envconfig:"RETRIEVAL_TOP_K" default:"5"`

	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
}

// Load reads .env if present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}
