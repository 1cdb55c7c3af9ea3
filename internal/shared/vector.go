// Package shared contains canonical type definitions shared across discovery.
package shared

// DistanceMetric defines the distance function for similarity search.
type DistanceMetric string

const (
	// DistanceCosine represents cosine similarity distance.
	DistanceCosine DistanceMetric = "cosine"

	// DistanceL2 represents Euclidean (L2) distance.
	DistanceL2 DistanceMetric = "l2"

	// DistanceInnerProduct represents inner product (dot product) distance.
	DistanceInnerProduct DistanceMetric = "inner_product"
)

// VectorResult represents a similarity search hit.
// Score is a normalized similarity in [0,1], 1.0 most similar.
type VectorResult struct {
	ID      string
	Score   float32
	Payload map[string]any
}
