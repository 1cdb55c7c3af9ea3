// Package search merges vector-similarity neighbors with structured filters
// into one ranked result.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

// DefaultLimit applies when a request does not set one.
const DefaultLimit = 10

// DefaultCacheTTL bounds cached query embeddings.
const DefaultCacheTTL = time.Hour

// Request is one search invocation. An empty Query runs the filter-only
// path; a zero Filter imposes no constraint.
type Request struct {
	Query  string
	Filter discovery.MovieFilter
	Limit  int
}

// Config holds optional engine settings.
type Config struct {
	// Cache holds query embeddings keyed by query text. Nil disables caching.
	Cache discovery.EmbeddingCache

	// CacheTTL bounds cached entries. Zero means DefaultCacheTTL.
	CacheTTL time.Duration

	// Logger receives degradation warnings; nil means slog.Default().
	Logger *slog.Logger
}

// Engine answers hybrid queries: embed the query text, fetch nearest
// neighbors, resolve and filter the owning records, and rank by similarity.
// Vector-backend failures degrade to the filter-only path; a failure to
// embed the query itself propagates, since no semantic answer is possible
// without it.
type Engine struct {
	records  discovery.RecordStore
	vectors  discovery.VectorProvider
	embedder discovery.EmbeddingProvider
	cache    discovery.EmbeddingCache
	cacheTTL time.Duration
	logger   *slog.Logger
}

// New creates a search engine over the given collaborators.
func New(records discovery.RecordStore, vectors discovery.VectorProvider, embedder discovery.EmbeddingProvider, config Config) *Engine {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Engine{
		records:  records,
		vectors:  vectors,
		embedder: embedder,
		cache:    config.Cache,
		cacheTTL: ttl,
		logger:   logger,
	}
}

// Search runs the request and returns matches ordered by descending
// similarity (semantic path) or newest-first (filter-only path).
func (e *Engine) Search(ctx context.Context, req Request) ([]*discovery.SearchMatch, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	if strings.TrimSpace(req.Query) == "" {
		return e.filterOnly(ctx, req.Filter, limit)
	}

	vector, err := e.queryVector(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// Over-fetch to leave room for filter rejection and per-record dedupe.
	neighbors, err := e.vectors.Query(ctx, vector, 2*limit)
	if err != nil {
		e.logger.Warn("vector backend failed, degrading to filter-only search", "err", err)
		return e.filterOnly(ctx, req.Filter, limit)
	}

	return e.resolve(ctx, neighbors, req.Filter, limit)
}

// queryVector returns the embedding for the query text, consulting the
// cache first. Cache failures are warnings; embedding failures propagate.
func (e *Engine) queryVector(ctx context.Context, query string) ([]float32, error) {
	if e.cache != nil {
		vec, err := e.cache.Get(ctx, query)
		if err == nil {
			return vec, nil
		}
		if !errors.Is(err, discovery.ErrNotFound) {
			e.logger.Warn("embedding cache read failed", "err", err)
		}
	}

	vec, err := e.embedder.Generate(ctx, query)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, query, vec, e.cacheTTL); err != nil {
			e.logger.Warn("embedding cache write failed", "err", err)
		}
	}
	return vec, nil
}

// resolve maps neighbors to their owning records, keeping the highest score
// per record, dropping records that fail the filter, and truncating to
// limit in similarity order.
func (e *Engine) resolve(ctx context.Context, neighbors []discovery.VectorResult, filter discovery.MovieFilter, limit int) ([]*discovery.SearchMatch, error) {
	type best struct {
		score float32
		rank  int
	}
	// A record appears once per source vector; keep its best occurrence.
	bestByRecord := make(map[string]best)
	order := []string{}
	for rank, n := range neighbors {
		recordID := discovery.RecordID(n.Payload)
		if recordID == "" {
			continue
		}
		prev, seen := bestByRecord[recordID]
		if !seen {
			bestByRecord[recordID] = best{score: n.Score, rank: rank}
			order = append(order, recordID)
			continue
		}
		if n.Score > prev.score {
			bestByRecord[recordID] = best{score: n.Score, rank: prev.rank}
		}
	}

	// Re-rank by the deduped scores; ties keep first-seen neighbor order.
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && bestByRecord[order[j]].score > bestByRecord[order[j-1]].score; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}

	matches := []*discovery.SearchMatch{}
	for _, recordID := range order {
		if len(matches) >= limit {
			break
		}
		m, err := e.records.Get(ctx, recordID)
		if err != nil {
			if errors.Is(err, discovery.ErrNotFound) {
				// Orphaned point; maintenance surfaces these.
				continue
			}
			return nil, err
		}
		if !filter.Matches(m) {
			continue
		}
		score := bestByRecord[recordID].score
		matches = append(matches, &discovery.SearchMatch{
			RecordID: recordID,
			Score:    &score,
			Record:   m,
		})
	}
	return matches, nil
}

// filterOnly answers without similarity: structured filters against the
// record store, newest first, no scores.
func (e *Engine) filterOnly(ctx context.Context, filter discovery.MovieFilter, limit int) ([]*discovery.SearchMatch, error) {
	movies, err := e.records.Find(ctx, filter, discovery.SortNewestFirst, limit, 0)
	if err != nil {
		return nil, err
	}
	matches := make([]*discovery.SearchMatch, len(movies))
	for i, m := range movies {
		matches[i] = &discovery.SearchMatch{
			RecordID: m.ID,
			Record:   m,
		}
	}
	return matches, nil
}
