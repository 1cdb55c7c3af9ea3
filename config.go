package discovery

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the process-level configuration surface, read once at startup.
// Providers are selected by explicit backend tags, never by sniffing client
// object shapes.
type Config struct {
	// Embedder selects the active embedding provider: "local", "inference",
	// or "httpsvc".
	Embedder string

	// VectorBackend selects the active vector index: "qdrant", "weaviate",
	// "milvus", "pinecone", or "memory".
	VectorBackend string

	// Dimension is the embedding vector dimension.
	Dimension int

	// Collection is the target collection/index/class name.
	Collection string

	// Model is the embedding model identifier.
	Model string

	// EmbedEndpoint is the base URL for remote embedding providers.
	EmbedEndpoint string

	// EmbedToken is the credential for remote embedding providers.
	EmbedToken string

	// VectorEndpoint is the vector backend address.
	VectorEndpoint string

	// VectorAPIKey is the vector backend credential.
	VectorAPIKey string

	// MongoURI is the record/asset store connection string.
	MongoURI string

	// RedisAddr enables the query-embedding cache when non-empty.
	RedisAddr string
}

// Default configuration values.
const (
	DefaultDimension  = 384
	DefaultCollection = "movies"
	DefaultModel      = "sentence-transformers/all-MiniLM-L6-v2"
)

// LoadConfig reads configuration from DISCOVERY_* environment variables.
// Unset values fall back to defaults; a malformed dimension is an error.
func LoadConfig() (Config, error) {
	cfg := Config{
		Embedder:       envOr("DISCOVERY_EMBEDDER", "local"),
		VectorBackend:  envOr("DISCOVERY_VECTOR_BACKEND", "memory"),
		Dimension:      DefaultDimension,
		Collection:     envOr("DISCOVERY_COLLECTION", DefaultCollection),
		Model:          envOr("DISCOVERY_MODEL", DefaultModel),
		EmbedEndpoint:  os.Getenv("DISCOVERY_EMBED_ENDPOINT"),
		EmbedToken:     os.Getenv("DISCOVERY_EMBED_TOKEN"),
		VectorEndpoint: os.Getenv("DISCOVERY_VECTOR_ENDPOINT"),
		VectorAPIKey:   os.Getenv("DISCOVERY_VECTOR_API_KEY"),
		MongoURI:       os.Getenv("DISCOVERY_MONGO_URI"),
		RedisAddr:      os.Getenv("DISCOVERY_REDIS_ADDR"),
	}

	if raw := os.Getenv("DISCOVERY_DIMENSION"); raw != "" {
		dim, err := strconv.Atoi(raw)
		if err != nil || dim <= 0 {
			return Config{}, fmt.Errorf("discovery: invalid DISCOVERY_DIMENSION %q", raw)
		}
		cfg.Dimension = dim
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
