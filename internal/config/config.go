// Package config builds the process configuration from environment variables.
// Entrypoints load .env via godotenv before calling FromEnv; nothing else in
// the codebase reads the environment directly.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries every externally tunable setting. Zero-valued fields are
// filled with defaults by FromEnv.
type Config struct {
	// Model provider.
	SaptivaAPIKey  string
	SaptivaBaseURL string
	PlannerModel   string // operations tier
	AnalystModel   string // analytical tier (evaluator + writer)
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// Search provider.
	TavilyAPIKey string

	// Evidence store.
	VectorBackend string // "weaviate" | "none"
	WeaviateHost  string

	// Durable store. Empty MongoURL keeps records in-process only.
	MongoURL      string
	MongoDatabase string

	// Artifacts (event log NDJSON).
	ArtifactsDir string

	// Orchestration.
	MaxWorkers    int
	MaxSubQueries int
	RunDeadline   time.Duration

	// HTTP server.
	ListenAddr string
}

// FromEnv reads the recognised environment variables and applies defaults.
//
// Expectations:
//   - SAPTIVA_BASE_URL defaults to https://api.saptiva.com/v1
//   - SAPTIVA_CONNECT_TIMEOUT and SAPTIVA_READ_TIMEOUT are seconds (15, 90)
//   - VECTOR_BACKEND defaults to "weaviate"
//   - ARTIFACTS_DIR defaults to "artifacts"
func FromEnv() Config {
	return Config{
		SaptivaAPIKey:  os.Getenv("SAPTIVA_API_KEY"),
		SaptivaBaseURL: envOr("SAPTIVA_BASE_URL", "https://api.saptiva.com/v1"),
		PlannerModel:   envOr("SAPTIVA_MODEL_PLANNER", "Saptiva Ops"),
		AnalystModel:   envOr("SAPTIVA_MODEL_WRITER", "Saptiva Cortex"),
		ConnectTimeout: envSeconds("SAPTIVA_CONNECT_TIMEOUT", 15),
		ReadTimeout:    envSeconds("SAPTIVA_READ_TIMEOUT", 90),
		TavilyAPIKey:   os.Getenv("TAVILY_API_KEY"),
		VectorBackend:  envOr("VECTOR_BACKEND", "weaviate"),
		WeaviateHost:   envOr("WEAVIATE_HOST", "http://localhost:8080"),
		MongoURL:       os.Getenv("MONGODB_URL"),
		MongoDatabase:  envOr("MONGODB_DATABASE", "aletheia"),
		ArtifactsDir:   envOr("ARTIFACTS_DIR", "artifacts"),
		MaxWorkers:     envInt("ALETHEIA_MAX_WORKERS", 5),
		MaxSubQueries:  envInt("ALETHEIA_MAX_SUBQUERIES", 12),
		RunDeadline:    envSeconds("ALETHEIA_RUN_DEADLINE", 600),
		ListenAddr:     envOr("ALETHEIA_ADDR", ":8080"),
	}
}

// HasModelCredentials reports whether a real Saptiva key is configured.
// The placeholder value from the sample .env counts as absent.
func (c Config) HasModelCredentials() bool {
	return c.SaptivaAPIKey != "" && c.SaptivaAPIKey != "pon_tu_api_key_aqui"
}

// HasSearchCredentials reports whether a real Tavily key is configured.
func (c Config) HasSearchCredentials() bool {
	return c.TavilyAPIKey != "" && c.TavilyAPIKey != "pon_tu_api_key_aqui"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}
