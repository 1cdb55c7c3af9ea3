package discovery

import (
	"hash/fnv"

	"github.com/google/uuid"
)

// Payload keys every stored point must carry, so any neighbor can be
// resolved back to its owning record.
const (
	PayloadRecordID = "record_id"
	PayloadSource   = "source"
)

// pointNamespace scopes deterministic point UUIDs. Changing it would orphan
// every previously stored vector.
var pointNamespace = uuid.MustParse("8f2a1c6e-4b0d-4f7a-9c3e-5d1b2a7e9f04")

// VectorPoint is the unit stored in a VectorProvider. ID is the natural key
// from PointKey; Payload always includes the owning record id and source.
type VectorPoint struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// NewVectorPoint builds a point for one record source with the mandatory
// payload fields populated.
func NewVectorPoint(recordID, source string, vector []float32) VectorPoint {
	return VectorPoint{
		ID:     PointKey(recordID, source),
		Vector: vector,
		Payload: map[string]any{
			PayloadRecordID: recordID,
			PayloadSource:   source,
		},
	}
}

// PointKey returns the natural point key for a record source. Deterministic,
// so re-ingestion overwrites rather than duplicates.
func PointKey(recordID, source string) string {
	return recordID + ":" + source
}

// PointNum derives a stable numeric id from a natural key for backends that
// require integer point ids. FNV-64a over the full key; collisions across a
// catalog-sized keyspace are astronomically unlikely.
func PointNum(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}

// PointUUID derives a stable UUID (version 5, SHA-1 in pointNamespace) from a
// natural key for backends that require UUID point ids.
func PointUUID(key string) uuid.UUID {
	return uuid.NewSHA1(pointNamespace, []byte(key))
}

// RecordID extracts the owning record id from a result payload.
func RecordID(payload map[string]any) string {
	s, _ := payload[PayloadRecordID].(string)
	return s
}

// PointSource extracts the embedding source name from a result payload.
func PointSource(payload map[string]any) string {
	s, _ := payload[PayloadSource].(string)
	return s
}
