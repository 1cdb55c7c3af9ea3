// Package milvus provides a discovery VectorProvider implementation for Milvus.
package milvus

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

// Config holds configuration for the Milvus provider.
type Config struct {
	// Collection is the name of the Milvus collection.
	Collection string
	// IDField is the name of the primary key field. Defaults to "id".
	IDField string
	// VectorField is the name of the vector field. Defaults to "embedding".
	VectorField string
	// RecordField is the name of the owning-record field. Defaults to "record_id".
	RecordField string
	// SourceField is the name of the embedding-source field. Defaults to "source".
	SourceField string
	// Metric is the distance metric the collection is provisioned with.
	// Defaults to cosine. Searches always use the same metric as the index.
	Metric discovery.DistanceMetric
}

// Provider implements discovery.VectorProvider for Milvus. The natural point
// key is stored directly as the varchar primary key.
type Provider struct {
	client client.Client
	config Config
	metric entity.MetricType
}

// New creates a Milvus provider with the given client and config.
func New(c client.Client, config Config) *Provider {
	if config.IDField == "" {
		config.IDField = "id"
	}
	if config.VectorField == "" {
		config.VectorField = "embedding"
	}
	if config.RecordField == "" {
		config.RecordField = "record_id"
	}
	if config.SourceField == "" {
		config.SourceField = "source"
	}
	return &Provider{
		client: c,
		config: config,
		metric: toMetric(config.Metric),
	}
}

// isMissingCollection checks if the error indicates an absent collection.
func isMissingCollection(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "collection not found") ||
		strings.Contains(msg, "can't find collection") ||
		strings.Contains(msg, "collection not exist")
}

// EnsureCollection creates, indexes, and loads the collection if absent. An
// explicitly configured metric wins over the argument; either way the index
// metric is recorded so Query searches with the same one.
func (p *Provider) EnsureCollection(ctx context.Context, dimension int, metric discovery.DistanceMetric) error {
	if p.config.Metric == "" {
		p.metric = toMetric(metric)
	}

	has, err := p.client.HasCollection(ctx, p.config.Collection)
	if err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	if !has {
		schema := entity.NewSchema().
			WithName(p.config.Collection).
			WithField(entity.NewField().
				WithName(p.config.IDField).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(512).
				WithIsPrimaryKey(true)).
			WithField(entity.NewField().
				WithName(p.config.VectorField).
				WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(dimension))).
			WithField(entity.NewField().
				WithName(p.config.RecordField).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(512)).
			WithField(entity.NewField().
				WithName(p.config.SourceField).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(64))

		if err := p.client.CreateCollection(ctx, schema, 1); err != nil {
			return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
		}

		idx, err := entity.NewIndexAUTOINDEX(p.metric)
		if err != nil {
			return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
		}
		if err := p.client.CreateIndex(ctx, p.config.Collection, p.config.VectorField, idx, false); err != nil {
			return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
		}
	}

	if err := p.client.LoadCollection(ctx, p.config.Collection, false); err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return nil
}

// Upsert stores or updates points in one batch, then flushes so the data is
// immediately searchable.
func (p *Provider) Upsert(ctx context.Context, points []discovery.VectorPoint) error {
	if len(points) == 0 {
		return discovery.ErrNoPoints
	}

	ids := make([]string, len(points))
	vecs := make([][]float32, len(points))
	records := make([]string, len(points))
	sources := make([]string, len(points))

	var dim int
	for i, pt := range points {
		ids[i] = pt.ID
		vecs[i] = pt.Vector
		if i == 0 {
			dim = len(pt.Vector)
		}
		records[i] = discovery.RecordID(pt.Payload)
		sources[i] = discovery.PointSource(pt.Payload)
	}

	idCol := entity.NewColumnVarChar(p.config.IDField, ids)
	vecCol := entity.NewColumnFloatVector(p.config.VectorField, dim, vecs)
	recCol := entity.NewColumnVarChar(p.config.RecordField, records)
	srcCol := entity.NewColumnVarChar(p.config.SourceField, sources)

	_, err := p.client.Upsert(ctx, p.config.Collection, "", idCol, vecCol, recCol, srcCol)
	if err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}

	if err := p.client.Flush(ctx, p.config.Collection, false); err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return nil
}

// Query returns the nearest neighbors. A missing collection is a normal
// cold-start condition yielding an empty result.
func (p *Provider) Query(ctx context.Context, vector []float32, limit int) ([]discovery.VectorResult, error) {
	sp, _ := entity.NewIndexAUTOINDEXSearchParam(1)

	results, err := p.client.Search(
		ctx,
		p.config.Collection,
		nil,
		"",
		[]string{p.config.IDField, p.config.RecordField, p.config.SourceField},
		[]entity.Vector{entity.FloatVector(vector)},
		p.config.VectorField,
		p.metric,
		limit,
		sp,
	)
	if err != nil {
		if isMissingCollection(err) {
			return []discovery.VectorResult{}, nil
		}
		return nil, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}

	if len(results) == 0 {
		return []discovery.VectorResult{}, nil
	}

	result := results[0]
	out := make([]discovery.VectorResult, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		var key, record, source string

		if col := result.Fields.GetColumn(p.config.IDField); col != nil {
			if vc, ok := col.(*entity.ColumnVarChar); ok {
				key, _ = vc.ValueByIdx(i)
			}
		}
		if col := result.Fields.GetColumn(p.config.RecordField); col != nil {
			if vc, ok := col.(*entity.ColumnVarChar); ok {
				record, _ = vc.ValueByIdx(i)
			}
		}
		if col := result.Fields.GetColumn(p.config.SourceField); col != nil {
			if vc, ok := col.(*entity.ColumnVarChar); ok {
				source, _ = vc.ValueByIdx(i)
			}
		}

		out = append(out, discovery.VectorResult{
			ID:    key,
			Score: clampScore(result.Scores[i]),
			Payload: map[string]any{
				discovery.PayloadRecordID: record,
				discovery.PayloadSource:   source,
			},
		})
	}
	return out, nil
}

// Delete removes points by natural key; non-existent ids are not an error.
func (p *Provider) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	expr := fmt.Sprintf("%s in [%s]", p.config.IDField, strings.Join(quoted, ","))

	if err := p.client.Delete(ctx, p.config.Collection, "", expr); err != nil {
		if isMissingCollection(err) {
			return nil
		}
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}

	if err := p.client.Flush(ctx, p.config.Collection, false); err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return nil
}

// Exists checks whether a point exists.
func (p *Provider) Exists(ctx context.Context, id string) (bool, error) {
	expr := fmt.Sprintf("%s == %q", p.config.IDField, id)
	results, err := p.client.Query(ctx, p.config.Collection, nil, expr, []string{p.config.IDField})
	if err != nil {
		if isMissingCollection(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}

	for _, col := range results {
		if col.Name() == p.config.IDField {
			return col.Len() > 0, nil
		}
	}
	return false, nil
}

// Count returns the number of stored points.
func (p *Provider) Count(ctx context.Context) (int64, error) {
	results, err := p.client.Query(ctx, p.config.Collection, nil, "", []string{"count(*)"})
	if err != nil {
		if isMissingCollection(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}

	for _, col := range results {
		if ic, ok := col.(*entity.ColumnInt64); ok && ic.Len() > 0 {
			v, err := ic.ValueByIdx(0)
			if err != nil {
				return 0, err
			}
			return v, nil
		}
	}
	return 0, nil
}

// toMetric maps a discovery metric to the milvus metric type.
func toMetric(metric discovery.DistanceMetric) entity.MetricType {
	switch metric {
	case discovery.DistanceL2:
		return entity.L2
	case discovery.DistanceInnerProduct:
		return entity.IP
	default:
		return entity.COSINE
	}
}

// clampScore bounds a milvus cosine similarity into [0,1].
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
