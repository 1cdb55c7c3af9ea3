// Package discovery provides the embedding and vector-search orchestration
// layer for a movie catalog. Providers are interchangeable behind uniform
// interfaces; the record store is the owner of catalog data and the vector
// index is a derived, eventually-consistent projection of it.
package discovery

import (
	"context"
	"math"
	"time"

	"github.com/MON3EMPASHA/Semantic-Movie-Discovery-System/internal/shared"
)

// Semantic errors for embedding and vector-index operations (re-exported from internal/shared).
var (
	ErrNotFound             = shared.ErrNotFound
	ErrEmptyInput           = shared.ErrEmptyInput
	ErrProviderUnavailable  = shared.ErrProviderUnavailable
	ErrDimensionMismatch    = shared.ErrDimensionMismatch
	ErrInvalidVector        = shared.ErrInvalidVector
	ErrModelNotFound        = shared.ErrModelNotFound
	ErrUnauthorized         = shared.ErrUnauthorized
	ErrModelWarming         = shared.ErrModelWarming
	ErrNoPoints             = shared.ErrNoPoints
	ErrBackend              = shared.ErrBackend
	ErrCollectionNotManaged = shared.ErrCollectionNotManaged
)

// DistanceMetric is re-exported from internal/shared for the public API.
type DistanceMetric = shared.DistanceMetric

// Distance metric constants.
const (
	DistanceCosine       = shared.DistanceCosine
	DistanceL2           = shared.DistanceL2
	DistanceInnerProduct = shared.DistanceInnerProduct
)

// VectorResult is re-exported from internal/shared for the public API.
type VectorResult = shared.VectorResult

// EmbeddingProvider converts text into a fixed-dimension vector.
// Implementations (local, inference, httpsvc) satisfy this interface.
// Exactly one provider is active at a time, selected by configuration.
type EmbeddingProvider interface {
	// Name returns the provider's model identifier.
	Name() string

	// Dimension returns the configured vector dimension.
	Dimension() int

	// Generate converts text into an embedding vector.
	// Returns ErrEmptyInput for blank text, ErrProviderUnavailable when the
	// backing model cannot produce a result, and ErrDimensionMismatch when
	// the output length disagrees with Dimension.
	Generate(ctx context.Context, text string) ([]float32, error)
}

// VectorProvider defines uniform vector-index operations.
// Implementations (qdrant, weaviate, milvus, pinecone, memory) satisfy this
// interface. Point identifiers are the natural keys produced by PointKey;
// providers derive backend-specific ids deterministically from them.
type VectorProvider interface {
	// EnsureCollection creates the collection if it does not exist.
	// Idempotent: an existing collection is not an error. Backends whose
	// indexes are provisioned out-of-band degrade to an existence check and
	// return ErrCollectionNotManaged only when the index is absent.
	EnsureCollection(ctx context.Context, dimension int, metric DistanceMetric) error

	// Upsert stores or updates points, overwriting any point with the same id.
	// Returns ErrNoPoints if the input set is empty.
	Upsert(ctx context.Context, points []VectorPoint) error

	// Query returns the nearest neighbors ordered by descending similarity.
	// Scores are normalized to [0,1], 1.0 most similar. A missing or empty
	// collection yields an empty result, not an error.
	Query(ctx context.Context, vector []float32, limit int) ([]VectorResult, error)

	// Delete removes points by natural key. Deleting a non-existent id is
	// not an error.
	Delete(ctx context.Context, ids []string) error

	// Exists checks whether a point exists.
	Exists(ctx context.Context, id string) (bool, error)

	// Count returns the number of stored points.
	Count(ctx context.Context) (int64, error)
}

// SortOrder controls Find result ordering.
type SortOrder string

const (
	// SortNewestFirst orders by creation time descending (the default).
	SortNewestFirst SortOrder = "newest"

	// SortOldestFirst orders by creation time ascending.
	SortOldestFirst SortOrder = "oldest"
)

// RecordStore defines the catalog record CRUD collaborator.
// Implementations (mongo, sqlite, mockdb) satisfy this interface.
type RecordStore interface {
	// Insert stores a new movie.
	Insert(ctx context.Context, m *Movie) error

	// Get retrieves a movie by id.
	// Returns ErrNotFound if the id does not exist.
	Get(ctx context.Context, id string) (*Movie, error)

	// Find returns movies matching the filter with sort and pagination.
	// Limit of 0 means no limit.
	Find(ctx context.Context, filter MovieFilter, sort SortOrder, limit, offset int) ([]*Movie, error)

	// Update applies a partial update and returns the updated movie.
	// Returns ErrNotFound if the id does not exist.
	Update(ctx context.Context, id string, upd MovieUpdate) (*Movie, error)

	// SetEmbeddingKeys atomically replaces only the embedding-key map,
	// leaving concurrent unrelated field updates intact.
	SetEmbeddingKeys(ctx context.Context, id string, keys map[string]string) error

	// Delete removes a movie by id.
	// Returns ErrNotFound if the id does not exist.
	Delete(ctx context.Context, id string) error

	// List returns a paginated scan of all movies.
	// The cursor should be empty for the first page, or the value returned
	// by the previous call. An empty next cursor ends the scan.
	List(ctx context.Context, cursor string, limit int) ([]*Movie, string, error)
}

// AssetStore defines the blob collaborator for derived poster assets.
// GridFS-shaped: bytes in, generated id out. The core never transforms
// asset bytes.
type AssetStore interface {
	// Put stores data and returns a generated asset id.
	Put(ctx context.Context, data []byte, contentType string) (string, error)

	// Get retrieves asset bytes and content type by id.
	// Returns ErrNotFound if the id does not exist.
	Get(ctx context.Context, id string) ([]byte, string, error)

	// Delete removes an asset by id.
	// Returns ErrNotFound if the id does not exist.
	Delete(ctx context.Context, id string) error
}

// EmbeddingCache caches query embeddings keyed by text.
// Implementations (redis) satisfy this interface. Optional: engines treat a
// nil cache as a no-op.
type EmbeddingCache interface {
	// Get returns the cached vector for text, or ErrNotFound.
	Get(ctx context.Context, text string) ([]float32, error)

	// Set stores the vector for text with the given TTL.
	// TTL of 0 means no expiration.
	Set(ctx context.Context, text string, vector []float32, ttl time.Duration) error
}

// ValidateVector checks that vec is non-empty, finite, and of the expected
// dimension. A NaN or Inf component is a generation failure, not a valid
// vector. Dimension of 0 skips the length check.
func ValidateVector(vec []float32, dimension int) error {
	if len(vec) == 0 {
		return ErrInvalidVector
	}
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrInvalidVector
		}
	}
	if dimension > 0 && len(vec) != dimension {
		return ErrDimensionMismatch
	}
	return nil
}
