package qdrant

import (
	"testing"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

func TestNew(t *testing.T) {
	p := New(nil, Config{Collection: "movies"})
	if p == nil {
		t.Fatal("New returned nil")
	}
	if p.config.Collection != "movies" {
		t.Errorf("expected collection 'movies', got %q", p.config.Collection)
	}
}

func TestPointIDDeterministic(t *testing.T) {
	a := pointID("tt0133093:plot")
	b := pointID("tt0133093:plot")
	if a.GetNum() != b.GetNum() {
		t.Errorf("same key produced different ids: %d vs %d", a.GetNum(), b.GetNum())
	}
	if a.GetNum() != discovery.PointNum("tt0133093:plot") {
		t.Error("pointID does not match the shared numeric derivation")
	}
}

func TestToPointStructsCopiesPayload(t *testing.T) {
	pt := discovery.NewVectorPoint("tt0133093", "plot", []float32{0.1, 0.2})

	structs := toPointStructs([]discovery.VectorPoint{pt})
	if len(structs) != 1 {
		t.Fatalf("expected 1 point struct, got %d", len(structs))
	}
	if _, ok := pt.Payload["point_key"]; ok {
		t.Error("caller payload mutated with point_key")
	}
	if structs[0].Payload["point_key"].GetStringValue() != pt.ID {
		t.Error("wire payload missing the natural key")
	}
}

func TestToDistance(t *testing.T) {
	tests := []struct {
		metric discovery.DistanceMetric
		want   string
	}{
		{discovery.DistanceCosine, "Cosine"},
		{discovery.DistanceL2, "Euclid"},
		{discovery.DistanceInnerProduct, "Dot"},
	}
	for _, tt := range tests {
		if got := toDistance(tt.metric).String(); got != tt.want {
			t.Errorf("toDistance(%s) = %s, want %s", tt.metric, got, tt.want)
		}
	}
}

func TestClampScore(t *testing.T) {
	if clampScore(1.5) != 1 {
		t.Error("score above 1 not clamped")
	}
	if clampScore(-0.5) != 0 {
		t.Error("score below 0 not clamped")
	}
	if clampScore(0.7) != 0.7 {
		t.Error("in-range score altered")
	}
}
