// Package weaviate provides a discovery VectorProvider implementation for Weaviate.
package weaviate

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

// Payload property names stored on every object.
var properties = []string{"point_key", "record_id", "source"}

// Config holds configuration for the Weaviate provider.
type Config struct {
	// Class is the Weaviate class name for vector storage.
	Class string
}

// Provider implements discovery.VectorProvider for Weaviate. Natural point
// keys are reduced to deterministic UUIDs via discovery.PointUUID.
type Provider struct {
	client *weaviate.Client
	config Config
}

// New creates a Weaviate provider with the given client and config.
func New(client *weaviate.Client, config Config) *Provider {
	return &Provider{
		client: client,
		config: config,
	}
}

// isNotFoundError checks if the error indicates a not found condition.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "404") || strings.Contains(errStr, "not found")
}

// EnsureCollection creates the class if absent, with external vectors
// (vectorizer none) and the given distance metric.
func (p *Provider) EnsureCollection(ctx context.Context, dimension int, metric discovery.DistanceMetric) error {
	exists, err := p.client.Schema().ClassExistenceChecker().
		WithClassName(p.config.Class).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	if exists {
		return nil
	}

	class := &models.Class{
		Class:      p.config.Class,
		Vectorizer: "none",
		VectorIndexConfig: map[string]any{
			"distance": toDistance(metric),
		},
		Properties: []*models.Property{
			{Name: "point_key", DataType: []string{"text"}},
			{Name: "record_id", DataType: []string{"text"}},
			{Name: "source", DataType: []string{"text"}},
		},
	}

	if err := p.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		// A concurrent creator may have won the race.
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return nil
}

// Upsert stores or updates points in one batch call.
func (p *Provider) Upsert(ctx context.Context, points []discovery.VectorPoint) error {
	if len(points) == 0 {
		return discovery.ErrNoPoints
	}

	objects := make([]*models.Object, len(points))
	for i, pt := range points {
		props := map[string]any{
			"point_key": pt.ID,
			"record_id": discovery.RecordID(pt.Payload),
			"source":    discovery.PointSource(pt.Payload),
		}
		objects[i] = &models.Object{
			Class:      p.config.Class,
			ID:         strfmt.UUID(discovery.PointUUID(pt.ID).String()),
			Properties: props,
			Vector:     pt.Vector,
		}
	}

	resp, err := p.client.Batch().ObjectsBatcher().
		WithObjects(objects...).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("%w: batch object: %s",
				discovery.ErrBackend, obj.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// Query returns the nearest neighbors. A missing class is a normal
// cold-start condition yielding an empty result.
func (p *Provider) Query(ctx context.Context, vector []float32, limit int) ([]discovery.VectorResult, error) {
	nearVector := p.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	fields := make([]graphql.Field, 0, len(properties)+1)
	for _, prop := range properties {
		fields = append(fields, graphql.Field{Name: prop})
	}
	fields = append(fields, graphql.Field{
		Name: "_additional",
		Fields: []graphql.Field{
			{Name: "id"},
			{Name: "distance"},
		},
	})

	resp, err := p.client.GraphQL().Get().
		WithClassName(p.config.Class).
		WithNearVector(nearVector).
		WithLimit(limit).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		if isNotFoundError(err) {
			return []discovery.VectorResult{}, nil
		}
		return nil, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}

	if len(resp.Errors) > 0 {
		msg := resp.Errors[0].Message
		// GraphQL reports an unknown class as a resolution error.
		if strings.Contains(msg, "Cannot query field") || strings.Contains(msg, "not found") {
			return []discovery.VectorResult{}, nil
		}
		return nil, fmt.Errorf("%w: %s", discovery.ErrBackend, msg)
	}

	data, ok := resp.Data["Get"].(map[string]any)
	if !ok {
		return []discovery.VectorResult{}, nil
	}
	items, ok := data[p.config.Class].([]any)
	if !ok {
		return []discovery.VectorResult{}, nil
	}

	results := make([]discovery.VectorResult, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		additional, _ := obj["_additional"].(map[string]any)
		distance, _ := additional["distance"].(float64)

		payload := make(map[string]any)
		for k, v := range obj {
			if k != "_additional" {
				payload[k] = v
			}
		}

		key, _ := obj["point_key"].(string)
		results = append(results, discovery.VectorResult{
			ID:      key,
			Score:   distanceToScore(distance),
			Payload: payload,
		})
	}
	return results, nil
}

// Delete removes points by natural key; non-existent ids are not an error.
func (p *Provider) Delete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		err := p.client.Data().Deleter().
			WithClassName(p.config.Class).
			WithID(discovery.PointUUID(id).String()).
			Do(ctx)
		if err != nil && !isNotFoundError(err) {
			return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
		}
	}
	return nil
}

// Exists checks whether a point exists.
func (p *Provider) Exists(ctx context.Context, id string) (bool, error) {
	exists, err := p.client.Data().Checker().
		WithClassName(p.config.Class).
		WithID(discovery.PointUUID(id).String()).
		Do(ctx)
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return exists, nil
}

// Count returns the number of stored points via a meta aggregate.
func (p *Provider) Count(ctx context.Context) (int64, error) {
	resp, err := p.client.GraphQL().Aggregate().
		WithClassName(p.config.Class).
		WithFields(graphql.Field{
			Name:   "meta",
			Fields: []graphql.Field{{Name: "count"}},
		}).
		Do(ctx)
	if err != nil {
		if isNotFoundError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	if len(resp.Errors) > 0 {
		return 0, nil
	}

	data, ok := resp.Data["Aggregate"].(map[string]any)
	if !ok {
		return 0, nil
	}
	items, ok := data[p.config.Class].([]any)
	if !ok || len(items) == 0 {
		return 0, nil
	}
	obj, _ := items[0].(map[string]any)
	meta, _ := obj["meta"].(map[string]any)
	count, _ := meta["count"].(float64)
	return int64(count), nil
}

// toDistance maps a discovery metric to a Weaviate index distance name.
func toDistance(metric discovery.DistanceMetric) string {
	switch metric {
	case discovery.DistanceL2:
		return "l2-squared"
	case discovery.DistanceInnerProduct:
		return "dot"
	default:
		return "cosine"
	}
}

// distanceToScore converts a reported distance in [0,2] to a similarity
// score in [0,1] via score = 1 - d, clamped.
func distanceToScore(d float64) float32 {
	s := 1 - d
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return float32(s)
}

// Ensure Provider implements discovery.VectorProvider.
var _ discovery.VectorProvider = (*Provider)(nil)
