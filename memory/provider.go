// Package memory provides an in-process VectorProvider with exact cosine
// scan. Suitable for tests and for running the catalog without vector
// infrastructure; not an approximate index.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

type entry struct {
	vector  []float32
	payload map[string]any
}

// Provider implements discovery.VectorProvider backed by a map.
type Provider struct {
	mu      sync.RWMutex
	created bool
	dim     int
	points  map[string]entry
}

// New creates an empty in-memory provider.
func New() *Provider {
	return &Provider{points: make(map[string]entry)}
}

// EnsureCollection marks the collection created and pins the dimension.
func (p *Provider) EnsureCollection(_ context.Context, dimension int, _ discovery.DistanceMetric) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.created {
		p.created = true
		p.dim = dimension
	}
	return nil
}

// Upsert stores or replaces points by natural key.
func (p *Provider) Upsert(_ context.Context, points []discovery.VectorPoint) error {
	if len(points) == 0 {
		return discovery.ErrNoPoints
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pt := range points {
		if p.dim > 0 && len(pt.Vector) != p.dim {
			return discovery.ErrDimensionMismatch
		}
		vec := make([]float32, len(pt.Vector))
		copy(vec, pt.Vector)
		payload := make(map[string]any, len(pt.Payload))
		for k, v := range pt.Payload {
			payload[k] = v
		}
		p.points[pt.ID] = entry{vector: vec, payload: payload}
	}
	return nil
}

// Query returns the nearest neighbors by cosine similarity, normalized to
// [0,1]. An absent or empty collection yields an empty result.
func (p *Provider) Query(_ context.Context, vector []float32, limit int) ([]discovery.VectorResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.points) == 0 || limit <= 0 {
		return []discovery.VectorResult{}, nil
	}

	results := make([]discovery.VectorResult, 0, len(p.points))
	for id, e := range p.points {
		payload := make(map[string]any, len(e.payload))
		for k, v := range e.payload {
			payload[k] = v
		}
		results = append(results, discovery.VectorResult{
			ID:      id,
			Score:   cosineScore(vector, e.vector),
			Payload: payload,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes points by id; missing ids are ignored.
func (p *Provider) Delete(_ context.Context, ids []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		delete(p.points, id)
	}
	return nil
}

// Exists checks whether a point id is stored.
func (p *Provider) Exists(_ context.Context, id string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.points[id]
	return ok, nil
}

// Count returns the number of stored points.
func (p *Provider) Count(_ context.Context) (int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return int64(len(p.points)), nil
}

// cosineScore computes cosine similarity clamped into [0,1], matching the
// normalization the remote backends report.
func cosineScore(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return float32(sim)
}

// Ensure Provider implements discovery.VectorProvider.
var _ discovery.VectorProvider = (*Provider)(nil)
