package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the service reads from the environment. Load
// populates it once at startup; nothing else should touch os.Getenv.
type Config struct {
	Port string
	Env  string

	DatabaseURL string
	// RedisURL is optional. When set, rate limiting is shared across
	// instances through Redis; when empty, an in-process limiter is used.
	RedisURL string

	JWTSecret  string
	JWTExpiry  time.Duration
	BcryptCost int

	GeminiAPIKey    string
	EmbeddingModel  string
	GenerationModel string

	AWSRegion string
	S3Bucket  string
	// S3Endpoint overrides the AWS endpoint for S3-compatible stores such
	// as MinIO. Empty means the default AWS endpoint.
	S3Endpoint string
	// AWSAccessKeyID and AWSSecretAccessKey, when both set, are used as
	// static credentials. Left empty, the SDK's default chain applies.
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	// EmbedStrategy selects how chunk embeddings are produced: "cached"
	// reuses stored vectors by content hash and retries transient failures,
	// "direct" calls the embedding API once per chunk with no cache.
	EmbedStrategy string

	RateLimitPerMinute int
}

// Load reads the environment, pulling in a .env file when present, and
// validates that the required variables are set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("APP_ENV", "development"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTExpiry:          getEnvDuration("JWT_EXPIRY", 24*time.Hour),
		BcryptCost:         getEnvInt("BCRYPT_COST", 10),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		GenerationModel:    getEnv("GENERATION_MODEL", "gemini-1.5-flash"),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:           os.Getenv("S3_BUCKET"),
		S3Endpoint:         os.Getenv("S3_ENDPOINT"),
		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		EmbedStrategy:      getEnv("EMBED_STRATEGY", "cached"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	var missing []string
	for _, v := range []struct{ name, val string }{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"JWT_SECRET", cfg.JWTSecret},
		{"GEMINI_API_KEY", cfg.GeminiAPIKey},
		{"S3_BUCKET", cfg.S3Bucket},
	} {
		if v.val == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("config: missing required environment variables: %v", missing)
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool { return c.Env == "production" }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
