package embed

import (
	"context"
	"errors"
	"math"
	"testing"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

func TestLocalGenerate(t *testing.T) {
	p := NewLocal("all-MiniLM-L6-v2", 384)
	ctx := context.Background()

	vec, err := p.Generate(ctx, "A computer hacker discovers a simulated reality.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 384 {
		t.Fatalf("expected dimension 384, got %d", len(vec))
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			t.Fatalf("component %d is not finite: %v", i, v)
		}
	}
}

func TestLocalGenerateDeterministic(t *testing.T) {
	p := NewLocal("all-MiniLM-L6-v2", 64)
	ctx := context.Background()

	a, err := p.Generate(ctx, "the matrix")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := p.Generate(ctx, "the matrix")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("component %d differs across calls: %v vs %v", i, a[i], b[i])
		}
	}

	c, err := p.Generate(ctx, "a very different text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("distinct texts produced identical vectors")
	}
}

func TestLocalGenerateNormalized(t *testing.T) {
	p := NewLocal("m", 128)
	vec, err := p.Generate(context.Background(), "unit length check")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if math.Abs(sumSq-1) > 1e-3 {
		t.Errorf("expected unit norm, got %f", math.Sqrt(sumSq))
	}
}

func TestLocalGenerateBlank(t *testing.T) {
	p := NewLocal("m", 16)
	for _, text := range []string{"", "   ", "\t\n"} {
		if _, err := p.Generate(context.Background(), text); !errors.Is(err, discovery.ErrEmptyInput) {
			t.Errorf("text %q: expected ErrEmptyInput, got %v", text, err)
		}
	}
}

func TestLocalName(t *testing.T) {
	p := NewLocal("my-model", 16)
	if p.Name() != "my-model" {
		t.Errorf("unexpected name: %q", p.Name())
	}
	if p.Dimension() != 16 {
		t.Errorf("unexpected dimension: %d", p.Dimension())
	}
}
