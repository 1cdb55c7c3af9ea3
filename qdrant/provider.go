// Package qdrant provides a discovery VectorProvider implementation for Qdrant.
package qdrant

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

// Config holds configuration for the Qdrant provider.
type Config struct {
	// Collection is the name of the Qdrant collection.
	Collection string
}

// Provider implements discovery.VectorProvider for Qdrant. Natural point
// keys are reduced to numeric ids via discovery.PointNum, so re-ingestion
// overwrites rather than duplicates.
type Provider struct {
	client *qdrant.Client
	config Config
}

// New creates a Qdrant provider with the given client and config.
func New(client *qdrant.Client, config Config) *Provider {
	return &Provider{
		client: client,
		config: config,
	}
}

// pointID converts a natural key to a qdrant PointId.
func pointID(key string) *qdrant.PointId {
	return qdrant.NewIDNum(discovery.PointNum(key))
}

// isMissingCollection checks if the error indicates an absent collection.
func isMissingCollection(err error) bool {
	if err == nil {
		return false
	}
	if status.Code(err) == codes.NotFound {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "doesn't exist") || strings.Contains(msg, "not found")
}

// EnsureCollection creates the collection if absent. Succeeds silently when
// it already exists.
func (p *Provider) EnsureCollection(ctx context.Context, dimension int, metric discovery.DistanceMetric) error {
	exists, err := p.client.CollectionExists(ctx, p.config.Collection)
	if err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	if exists {
		return nil
	}

	err = p.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: p.config.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: toDistance(metric),
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return nil
}

// Upsert stores or updates points in one batch, overwriting same-id points.
func (p *Provider) Upsert(ctx context.Context, points []discovery.VectorPoint) error {
	if len(points) == 0 {
		return discovery.ErrNoPoints
	}

	_, err := p.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: p.config.Collection,
		Points:         toPointStructs(points),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return nil
}

// Query returns the nearest neighbors, highest similarity first. An absent
// collection is a normal cold-start condition yielding an empty result.
func (p *Provider) Query(ctx context.Context, vector []float32, limit int) ([]discovery.VectorResult, error) {
	resp, err := p.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: p.config.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		if isMissingCollection(err) {
			return []discovery.VectorResult{}, nil
		}
		return nil, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}

	results := make([]discovery.VectorResult, len(resp))
	for i, scored := range resp {
		payload := fromPayload(scored.Payload)
		results[i] = discovery.VectorResult{
			ID:      naturalKey(payload),
			Score:   clampScore(scored.Score),
			Payload: payload,
		}
	}
	return results, nil
}

// Delete removes points by natural key; non-existent ids are not an error.
func (p *Provider) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIds := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIds[i] = pointID(id)
	}

	_, err := p.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: p.config.Collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: pointIds,
				},
			},
		},
	})
	if err != nil {
		if isMissingCollection(err) {
			return nil
		}
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return nil
}

// Exists checks whether a point exists.
func (p *Provider) Exists(ctx context.Context, id string) (bool, error) {
	resp, err := p.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: p.config.Collection,
		Ids:            []*qdrant.PointId{pointID(id)},
		WithVectors:    qdrant.NewWithVectors(false),
		WithPayload:    qdrant.NewWithPayload(false),
	})
	if err != nil {
		if isMissingCollection(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return len(resp) > 0, nil
}

// Count returns the number of stored points.
func (p *Provider) Count(ctx context.Context) (int64, error) {
	count, err := p.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: p.config.Collection,
	})
	if err != nil {
		if isMissingCollection(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return int64(count), nil
}

// toPointStructs converts points to the wire representation. Payloads are
// copied before the natural key is added; the caller's maps stay untouched.
func toPointStructs(points []discovery.VectorPoint) []*qdrant.PointStruct {
	structs := make([]*qdrant.PointStruct, len(points))
	for i, pt := range points {
		payload := make(map[string]any, len(pt.Payload)+1)
		for k, v := range pt.Payload {
			payload[k] = v
		}
		// The natural key rides in the payload; Qdrant only sees the
		// reduced numeric id.
		payload["point_key"] = pt.ID
		structs[i] = &qdrant.PointStruct{
			Id:      pointID(pt.ID),
			Vectors: qdrant.NewVectors(pt.Vector...),
			Payload: qdrant.NewValueMap(payload),
		}
	}
	return structs
}

// toDistance maps a discovery metric to the qdrant distance enum.
func toDistance(metric discovery.DistanceMetric) qdrant.Distance {
	switch metric {
	case discovery.DistanceL2:
		return qdrant.Distance_Euclid
	case discovery.DistanceInnerProduct:
		return qdrant.Distance_Dot
	default:
		return qdrant.Distance_Cosine
	}
}

// clampScore bounds a qdrant similarity into [0,1].
func clampScore(s float32) float32 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// naturalKey recovers the natural point key from a payload.
func naturalKey(payload map[string]any) string {
	s, _ := payload["point_key"].(string)
	return s
}

// fromPayload converts qdrant payload values to map[string]any.
func fromPayload(payload map[string]*qdrant.Value) map[string]any {
	if payload == nil {
		return nil
	}
	m := make(map[string]any, len(payload))
	for k, v := range payload {
		m[k] = fromValue(v)
	}
	return m
}

// fromValue converts *qdrant.Value to any.
func fromValue(v *qdrant.Value) any {
	switch v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return v.GetStringValue()
	case *qdrant.Value_DoubleValue:
		return v.GetDoubleValue()
	case *qdrant.Value_IntegerValue:
		return v.GetIntegerValue()
	case *qdrant.Value_BoolValue:
		return v.GetBoolValue()
	case *qdrant.Value_ListValue:
		list := v.GetListValue()
		if list == nil {
			return nil
		}
		result := make([]any, len(list.Values))
		for i, item := range list.Values {
			result[i] = fromValue(item)
		}
		return result
	default:
		return nil
	}
}

// Ensure Provider implements discovery.VectorProvider.
var _ discovery.VectorProvider = (*Provider)(nil)
