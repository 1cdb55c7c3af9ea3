package pinecone

import (
	"testing"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

func TestNew(t *testing.T) {
	p := New(nil, Config{Namespace: "movies"})
	if p == nil {
		t.Fatal("New returned nil")
	}
	if p.config.Namespace != "movies" {
		t.Errorf("expected namespace 'movies', got %q", p.config.Namespace)
	}
	if p.logger == nil {
		t.Error("nil logger not defaulted")
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	payload := map[string]any{
		discovery.PayloadRecordID: "tt0133093",
		discovery.PayloadSource:   discovery.SourcePlot,
	}
	meta, err := toMetadata(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	back := fromMetadata(meta)
	if discovery.RecordID(back) != "tt0133093" {
		t.Errorf("record id lost: %v", back)
	}
	if discovery.PointSource(back) != discovery.SourcePlot {
		t.Errorf("source lost: %v", back)
	}
}

func TestMetadataNil(t *testing.T) {
	meta, err := toMetadata(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta != nil {
		t.Error("nil payload should produce nil metadata")
	}
	if fromMetadata(nil) != nil {
		t.Error("nil metadata should produce nil payload")
	}
}
