package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
	"github.com/MON3EMPASHA/Semantic-Movie-Discovery-System/embed"
	"github.com/MON3EMPASHA/Semantic-Movie-Discovery-System/internal/mockdb"
)

// stubVectors returns canned neighbors and records the requested limit.
type stubVectors struct {
	neighbors []discovery.VectorResult
	err       error
	lastLimit int
}

func (s *stubVectors) EnsureCollection(context.Context, int, discovery.DistanceMetric) error {
	return nil
}

func (s *stubVectors) Upsert(context.Context, []discovery.VectorPoint) error { return nil }

func (s *stubVectors) Query(_ context.Context, _ []float32, limit int) ([]discovery.VectorResult, error) {
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.neighbors, nil
}

func (s *stubVectors) Delete(context.Context, []string) error       { return nil }
func (s *stubVectors) Exists(context.Context, string) (bool, error) { return false, nil }
func (s *stubVectors) Count(context.Context) (int64, error)         { return 0, nil }

// failingEmbedder always errors.
type failingEmbedder struct{}

func (failingEmbedder) Name() string   { return "failing" }
func (failingEmbedder) Dimension() int { return 8 }
func (failingEmbedder) Generate(context.Context, string) ([]float32, error) {
	return nil, discovery.ErrProviderUnavailable
}

// memCache is a minimal in-memory EmbeddingCache.
type memCache struct {
	mu     sync.Mutex
	values map[string][]float32
	sets   int
	gets   int
}

func newMemCache() *memCache {
	return &memCache{values: make(map[string][]float32)}
}

func (c *memCache) Get(_ context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	vec, ok := c.values[text]
	if !ok {
		return nil, discovery.ErrNotFound
	}
	return vec, nil
}

func (c *memCache) Set(_ context.Context, text string, vector []float32, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.values[text] = vector
	return nil
}

func neighbor(recordID string, score float32) discovery.VectorResult {
	return discovery.VectorResult{
		ID:    recordID + ":plot",
		Score: score,
		Payload: map[string]any{
			discovery.PayloadRecordID: recordID,
			discovery.PayloadSource:   discovery.SourcePlot,
		},
	}
}

func seedRecords(t *testing.T, records *mockdb.Store, movies ...*discovery.Movie) {
	t.Helper()
	for _, m := range movies {
		require.NoError(t, records.Insert(context.Background(), m))
	}
}

func ptrF(v float64) *float64 { return &v }

func TestSearchMergeKeepsBestScore(t *testing.T) {
	records := mockdb.NewStore()
	seedRecords(t, records,
		&discovery.Movie{ID: "A", Title: "Movie A"},
		&discovery.Movie{ID: "B", Title: "Movie B"},
	)
	vectors := &stubVectors{neighbors: []discovery.VectorResult{
		neighbor("A", 0.9),
		neighbor("B", 0.8),
		neighbor("A", 0.95),
	}}
	e := New(records, vectors, embed.NewLocal("m", 8), Config{})

	matches, err := e.Search(context.Background(), Request{Query: "anything", Limit: 10})
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "A", matches[0].RecordID)
	require.NotNil(t, matches[0].Score)
	assert.InDelta(t, 0.95, float64(*matches[0].Score), 1e-6,
		"a record seen twice keeps its best score")

	assert.Equal(t, "B", matches[1].RecordID)
	assert.InDelta(t, 0.8, float64(*matches[1].Score), 1e-6)
}

func TestSearchOverFetch(t *testing.T) {
	records := mockdb.NewStore()
	vectors := &stubVectors{}
	e := New(records, vectors, embed.NewLocal("m", 8), Config{})

	_, err := e.Search(context.Background(), Request{Query: "q", Limit: 7})
	require.NoError(t, err)
	assert.Equal(t, 14, vectors.lastLimit, "engine should fetch 2x limit for filter headroom")
}

func TestSearchFilterRejection(t *testing.T) {
	records := mockdb.NewStore()
	seedRecords(t, records,
		&discovery.Movie{ID: "A", Title: "Good", Rating: ptrF(9.0)},
		&discovery.Movie{ID: "B", Title: "Bad", Rating: ptrF(5.0)},
	)
	vectors := &stubVectors{neighbors: []discovery.VectorResult{
		neighbor("B", 0.99),
		neighbor("A", 0.5),
	}}
	e := New(records, vectors, embed.NewLocal("m", 8), Config{})

	matches, err := e.Search(context.Background(), Request{
		Query:  "q",
		Filter: discovery.MovieFilter{MinRating: ptrF(8.0)},
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "A", matches[0].RecordID, "higher-scored neighbor failing the filter is dropped")
}

func TestSearchOrphanedNeighborSkipped(t *testing.T) {
	records := mockdb.NewStore()
	seedRecords(t, records, &discovery.Movie{ID: "A", Title: "Exists"})
	vectors := &stubVectors{neighbors: []discovery.VectorResult{
		neighbor("ghost", 0.99),
		neighbor("A", 0.5),
	}}
	e := New(records, vectors, embed.NewLocal("m", 8), Config{})

	matches, err := e.Search(context.Background(), Request{Query: "q", Limit: 10})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "A", matches[0].RecordID)
}

func TestSearchQueryEmbeddingErrorPropagates(t *testing.T) {
	records := mockdb.NewStore()
	e := New(records, &stubVectors{}, failingEmbedder{}, Config{})

	_, err := e.Search(context.Background(), Request{Query: "q", Limit: 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, discovery.ErrProviderUnavailable,
		"a query-embedding failure must not be swallowed")
}

func TestSearchVectorFailureDegradesToFilterOnly(t *testing.T) {
	records := mockdb.NewStore()
	seedRecords(t, records, &discovery.Movie{ID: "A", Title: "Kept", Rating: ptrF(9.0)})
	vectors := &stubVectors{err: errors.New("backend down")}
	e := New(records, vectors, embed.NewLocal("m", 8), Config{})

	matches, err := e.Search(context.Background(), Request{
		Query:  "q",
		Filter: discovery.MovieFilter{MinRating: ptrF(8.0)},
		Limit:  10,
	})
	require.NoError(t, err, "vector-backend failure degrades, not fails")
	require.Len(t, matches, 1)
	assert.Nil(t, matches[0].Score, "degraded path carries no similarity score")
}

func TestSearchFilterOnlyNewestFirst(t *testing.T) {
	records := mockdb.NewStore()
	base := time.Now().UTC().Add(-time.Hour)
	old := &discovery.Movie{ID: "old", Title: "Old", CreatedAt: base}
	recent := &discovery.Movie{ID: "new", Title: "New", CreatedAt: base.Add(time.Minute)}
	seedRecords(t, records, old, recent)

	e := New(records, &stubVectors{}, embed.NewLocal("m", 8), Config{})

	matches, err := e.Search(context.Background(), Request{Limit: 10})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "new", matches[0].RecordID)
	assert.Nil(t, matches[0].Score)
}

func TestSearchCacheHitSkipsEmbedding(t *testing.T) {
	records := mockdb.NewStore()
	cache := newMemCache()
	cache.values["the matrix"] = []float32{1, 0, 0, 0, 0, 0, 0, 0}

	// A failing embedder proves the cached vector was used.
	e := New(records, &stubVectors{}, failingEmbedder{}, Config{Cache: cache})

	_, err := e.Search(context.Background(), Request{Query: "the matrix", Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.gets)
	assert.Equal(t, 0, cache.sets)
}

func TestSearchCacheMissStoresVector(t *testing.T) {
	records := mockdb.NewStore()
	cache := newMemCache()
	e := New(records, &stubVectors{}, embed.NewLocal("m", 8), Config{Cache: cache})

	_, err := e.Search(context.Background(), Request{Query: "the matrix", Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets, "generated query vector should be cached")
}

func TestSearchTruncatesToLimit(t *testing.T) {
	records := mockdb.NewStore()
	neighbors := make([]discovery.VectorResult, 0, 6)
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		seedRecords(t, records, &discovery.Movie{ID: id, Title: id})
		neighbors = append(neighbors, neighbor(id, 0.5))
	}
	e := New(records, &stubVectors{neighbors: neighbors}, embed.NewLocal("m", 8), Config{})

	matches, err := e.Search(context.Background(), Request{Query: "q", Limit: 3})
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}
