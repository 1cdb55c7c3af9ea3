// Package mockdb provides deterministic in-memory collaborator doubles for
// engine tests: a record store, an asset store, and a fault-injectable
// vector provider.
package mockdb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

// Store is an in-memory discovery.RecordStore. Operations can be made to
// fail by name via Fail.
type Store struct {
	mu     sync.Mutex
	movies map[string]*discovery.Movie
	errs   map[string]error
}

// NewStore creates an empty in-memory record store.
func NewStore() *Store {
	return &Store{
		movies: make(map[string]*discovery.Movie),
		errs:   make(map[string]error),
	}
}

// Fail makes the named operation ("insert", "get", "find", "update",
// "setkeys", "delete", "list") return err. A nil err clears the fault.
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, op)
		return
	}
	s.errs[op] = err
}

func (s *Store) fault(op string) error {
	return s.errs[op]
}

func cloneMovie(m *discovery.Movie) *discovery.Movie {
	c := *m
	if m.Genres != nil {
		c.Genres = append([]string(nil), m.Genres...)
	}
	if m.EmbeddingKeys != nil {
		c.EmbeddingKeys = make(map[string]string, len(m.EmbeddingKeys))
		for k, v := range m.EmbeddingKeys {
			c.EmbeddingKeys[k] = v
		}
	}
	return &c
}

// Insert stores a new movie.
func (s *Store) Insert(_ context.Context, m *discovery.Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("insert"); err != nil {
		return err
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	s.movies[m.ID] = cloneMovie(m)
	return nil
}

// Get retrieves a movie by id.
func (s *Store) Get(_ context.Context, id string) (*discovery.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("get"); err != nil {
		return nil, err
	}
	m, ok := s.movies[id]
	if !ok {
		return nil, discovery.ErrNotFound
	}
	return cloneMovie(m), nil
}

// Find returns movies matching the filter with sort and pagination.
func (s *Store) Find(_ context.Context, filter discovery.MovieFilter, order discovery.SortOrder, limit, offset int) ([]*discovery.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("find"); err != nil {
		return nil, err
	}

	matched := []*discovery.Movie{}
	for _, m := range s.movies {
		if filter.Matches(m) {
			matched = append(matched, cloneMovie(m))
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if order == discovery.SortOldestFirst {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if order == discovery.SortOldestFirst {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})

	if offset > 0 {
		if offset >= len(matched) {
			return []*discovery.Movie{}, nil
		}
		matched = matched[offset:]
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Update applies a partial update and returns the updated movie.
func (s *Store) Update(_ context.Context, id string, upd discovery.MovieUpdate) (*discovery.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("update"); err != nil {
		return nil, err
	}
	m, ok := s.movies[id]
	if !ok {
		return nil, discovery.ErrNotFound
	}
	upd.Apply(m)
	m.UpdatedAt = time.Now().UTC()
	return cloneMovie(m), nil
}

// SetEmbeddingKeys replaces only the embedding-key map.
func (s *Store) SetEmbeddingKeys(_ context.Context, id string, keys map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("setkeys"); err != nil {
		return err
	}
	m, ok := s.movies[id]
	if !ok {
		return discovery.ErrNotFound
	}
	copied := make(map[string]string, len(keys))
	for k, v := range keys {
		copied[k] = v
	}
	m.EmbeddingKeys = copied
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes a movie by id.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("delete"); err != nil {
		return err
	}
	if _, ok := s.movies[id]; !ok {
		return discovery.ErrNotFound
	}
	delete(s.movies, id)
	return nil
}

// List returns a paginated scan of all movies ordered by id.
func (s *Store) List(_ context.Context, cursor string, limit int) ([]*discovery.Movie, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("list"); err != nil {
		return nil, "", err
	}

	ids := make([]string, 0, len(s.movies))
	for id := range s.movies {
		if cursor == "" || id > cursor {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var nextCursor string
	if len(ids) > limit {
		ids = ids[:limit]
		nextCursor = ids[limit-1]
	}

	movies := make([]*discovery.Movie, len(ids))
	for i, id := range ids {
		movies[i] = cloneMovie(s.movies[id])
	}
	return movies, nextCursor, nil
}

// Assets is an in-memory discovery.AssetStore with sequential ids.
type Assets struct {
	mu    sync.Mutex
	next  int
	blobs map[string]assetBlob
}

type assetBlob struct {
	data        []byte
	contentType string
}

// NewAssets creates an empty in-memory asset store.
func NewAssets() *Assets {
	return &Assets{blobs: make(map[string]assetBlob)}
}

// Put stores data and returns a generated asset id.
func (a *Assets) Put(_ context.Context, data []byte, contentType string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	id := fmt.Sprintf("asset-%d", a.next)
	a.blobs[id] = assetBlob{
		data:        append([]byte(nil), data...),
		contentType: contentType,
	}
	return id, nil
}

// Get retrieves asset bytes and content type by id.
func (a *Assets) Get(_ context.Context, id string) ([]byte, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	blob, ok := a.blobs[id]
	if !ok {
		return nil, "", discovery.ErrNotFound
	}
	return append([]byte(nil), blob.data...), blob.contentType, nil
}

// Delete removes an asset by id.
func (a *Assets) Delete(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.blobs[id]; !ok {
		return discovery.ErrNotFound
	}
	delete(a.blobs, id)
	return nil
}

// Len reports the number of stored assets.
func (a *Assets) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.blobs)
}

// Vectors wraps a discovery.VectorProvider with per-operation fault
// injection for degradation-path tests.
type Vectors struct {
	Inner discovery.VectorProvider

	mu   sync.Mutex
	errs map[string]error
}

// NewVectors wraps inner with fault injection.
func NewVectors(inner discovery.VectorProvider) *Vectors {
	return &Vectors{
		Inner: inner,
		errs:  make(map[string]error),
	}
}

// Fail makes the named operation ("ensure", "upsert", "query", "delete",
// "exists", "count") return err. A nil err clears the fault.
func (v *Vectors) Fail(op string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err == nil {
		delete(v.errs, op)
		return
	}
	v.errs[op] = err
}

func (v *Vectors) fault(op string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.errs[strings.ToLower(op)]
}

// EnsureCollection delegates unless an "ensure" fault is set.
func (v *Vectors) EnsureCollection(ctx context.Context, dimension int, metric discovery.DistanceMetric) error {
	if err := v.fault("ensure"); err != nil {
		return err
	}
	return v.Inner.EnsureCollection(ctx, dimension, metric)
}

// Upsert delegates unless an "upsert" fault is set.
func (v *Vectors) Upsert(ctx context.Context, points []discovery.VectorPoint) error {
	if err := v.fault("upsert"); err != nil {
		return err
	}
	return v.Inner.Upsert(ctx, points)
}

// Query delegates unless a "query" fault is set.
func (v *Vectors) Query(ctx context.Context, vector []float32, limit int) ([]discovery.VectorResult, error) {
	if err := v.fault("query"); err != nil {
		return nil, err
	}
	return v.Inner.Query(ctx, vector, limit)
}

// Delete delegates unless a "delete" fault is set.
func (v *Vectors) Delete(ctx context.Context, ids []string) error {
	if err := v.fault("delete"); err != nil {
		return err
	}
	return v.Inner.Delete(ctx, ids)
}

// Exists delegates unless an "exists" fault is set.
func (v *Vectors) Exists(ctx context.Context, id string) (bool, error) {
	if err := v.fault("exists"); err != nil {
		return false, err
	}
	return v.Inner.Exists(ctx, id)
}

// Count delegates unless a "count" fault is set.
func (v *Vectors) Count(ctx context.Context) (int64, error) {
	if err := v.fault("count"); err != nil {
		return 0, err
	}
	return v.Inner.Count(ctx)
}

// Interface conformance for the doubles.
var (
	_ discovery.RecordStore    = (*Store)(nil)
	_ discovery.AssetStore     = (*Assets)(nil)
	_ discovery.VectorProvider = (*Vectors)(nil)
)
