// Package pinecone provides a discovery VectorProvider implementation for
// Pinecone. Pinecone indexes are provisioned out-of-band through the control
// plane, so EnsureCollection degrades to a logged existence check.
package pinecone

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pinecone-io/go-pinecone/v2/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

// Config holds configuration for the Pinecone provider.
type Config struct {
	// Namespace is the Pinecone namespace for vector operations.
	Namespace string

	// Logger receives provisioning guidance; nil means slog.Default().
	Logger *slog.Logger
}

// Provider implements discovery.VectorProvider for Pinecone. Natural point
// keys are used directly as Pinecone string ids.
type Provider struct {
	index  *pinecone.IndexConnection
	logger *slog.Logger
	config Config
}

// New creates a Pinecone provider with the given index connection and config.
func New(index *pinecone.IndexConnection, config Config) *Provider {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		index:  index,
		logger: logger,
		config: config,
	}
}

// EnsureCollection degrades to an existence check. Pinecone indexes are
// provisioned out-of-band, so an absent index is reported as
// ErrCollectionNotManaged with guidance logged rather than created here.
func (p *Provider) EnsureCollection(ctx context.Context, dimension int, _ discovery.DistanceMetric) error {
	stats, err := p.index.DescribeIndexStats(ctx)
	if err != nil {
		p.logger.Warn("pinecone index not reachable; create it via the control plane with the configured dimension",
			"dimension", dimension, "err", err)
		return fmt.Errorf("%w: %w", discovery.ErrCollectionNotManaged, err)
	}
	if stats.Dimension != uint32(dimension) {
		p.logger.Warn("pinecone index dimension differs from configuration",
			"index", stats.Dimension, "configured", dimension)
	}
	return nil
}

// Upsert stores or updates points in one batch call.
func (p *Provider) Upsert(ctx context.Context, points []discovery.VectorPoint) error {
	if len(points) == 0 {
		return discovery.ErrNoPoints
	}

	vectors := make([]*pinecone.Vector, len(points))
	for i, pt := range points {
		meta, err := toMetadata(pt.Payload)
		if err != nil {
			return err
		}
		vectors[i] = &pinecone.Vector{
			Id:       pt.ID,
			Values:   pt.Vector,
			Metadata: meta,
		}
	}

	_, err := p.index.UpsertVectors(ctx, vectors)
	if err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return nil
}

// Query returns the nearest neighbors, highest similarity first. An empty or
// absent index yields an empty result.
func (p *Provider) Query(ctx context.Context, vector []float32, limit int) ([]discovery.VectorResult, error) {
	resp, err := p.index.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(limit),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}

	results := make([]discovery.VectorResult, len(resp.Matches))
	for i, match := range resp.Matches {
		results[i] = discovery.VectorResult{
			ID:      match.Vector.Id,
			Score:   clampScore(match.Score),
			Payload: fromMetadata(match.Vector.Metadata),
		}
	}
	return results, nil
}

// Delete removes points by natural key. Pinecone ignores non-existent ids.
func (p *Provider) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := p.index.DeleteVectorsById(ctx, ids); err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return nil
}

// Exists checks whether a point exists.
func (p *Provider) Exists(ctx context.Context, id string) (bool, error) {
	resp, err := p.index.FetchVectors(ctx, []string{id})
	if err != nil {
		return false, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	_, ok := resp.Vectors[id]
	return ok, nil
}

// Count returns the number of stored points.
func (p *Provider) Count(ctx context.Context) (int64, error) {
	stats, err := p.index.DescribeIndexStats(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return int64(stats.TotalVectorCount), nil
}

// toMetadata converts a payload map to *pinecone.Metadata.
func toMetadata(payload map[string]any) (*pinecone.Metadata, error) {
	if payload == nil {
		return nil, nil
	}
	meta, err := structpb.NewStruct(payload)
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// fromMetadata converts *pinecone.Metadata to a payload map.
func fromMetadata(meta *pinecone.Metadata) map[string]any {
	if meta == nil {
		return nil
	}
	return meta.AsMap()
}

// clampScore bounds a pinecone cosine similarity into [0,1].
func clampScore(s float32) float32 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Ensure Provider implements discovery.VectorProvider.
var _ discovery.VectorProvider = (*Provider)(nil)
