package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

func inferenceServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestInferenceGenerate(t *testing.T) {
	srv := inferenceServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusOK)
			return
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req["inputs"] != "hello" {
			t.Errorf("unexpected inputs: %q", req["inputs"])
		}
		json.NewEncoder(w).Encode([]float32{0.1, 0.2, 0.3})
	})

	p := NewInference(InferenceConfig{Endpoint: srv.URL, Model: "m", Dimension: 3})
	vec, err := p.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3 components, got %d", len(vec))
	}
}

func TestInferenceGenerateNestedResponse(t *testing.T) {
	srv := inferenceServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusOK)
			return
		}
		json.NewEncoder(w).Encode([][]float32{{0.5, 0.6}})
	})

	p := NewInference(InferenceConfig{Endpoint: srv.URL, Model: "m", Dimension: 2})
	vec, err := p.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec[0] != 0.5 || vec[1] != 0.6 {
		t.Errorf("unexpected vector: %v", vec)
	}
}

func TestInferenceModelNotFound(t *testing.T) {
	srv := inferenceServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	p := NewInference(InferenceConfig{Endpoint: srv.URL, Model: "missing", Dimension: 3})
	_, err := p.Generate(context.Background(), "hello")
	if !errors.Is(err, discovery.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestInferenceUnauthorized(t *testing.T) {
	srv := inferenceServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	p := NewInference(InferenceConfig{Endpoint: srv.URL, Model: "m", Dimension: 3})
	_, err := p.Generate(context.Background(), "hello")
	if !errors.Is(err, discovery.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestInferencePreflightCached(t *testing.T) {
	var preflights atomic.Int32
	srv := inferenceServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			preflights.Add(1)
			w.WriteHeader(http.StatusOK)
			return
		}
		json.NewEncoder(w).Encode([]float32{1, 0, 0})
	})

	p := NewInference(InferenceConfig{Endpoint: srv.URL, Model: "m", Dimension: 3})
	for i := 0; i < 3; i++ {
		if _, err := p.Generate(context.Background(), "hello"); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}
	if got := preflights.Load(); got != 1 {
		t.Errorf("expected 1 preflight, got %d", got)
	}
}

func TestInferencePreflightTransientNotCached(t *testing.T) {
	var preflights atomic.Int32
	srv := inferenceServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// First check hits a transient server error; the model is fine.
			if preflights.Add(1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
			return
		}
		json.NewEncoder(w).Encode([]float32{1, 0, 0})
	})

	p := NewInference(InferenceConfig{Endpoint: srv.URL, Model: "m", Dimension: 3})

	_, err := p.Generate(context.Background(), "hello")
	if !errors.Is(err, discovery.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}

	vec, err := p.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("transient preflight failure was cached: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3 components, got %d", len(vec))
	}
	if got := preflights.Load(); got != 2 {
		t.Errorf("expected the check to run again after a transient failure, got %d runs", got)
	}
}

func TestInferenceNotFoundCached(t *testing.T) {
	var preflights atomic.Int32
	srv := inferenceServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			preflights.Add(1)
		}
		w.WriteHeader(http.StatusNotFound)
	})

	p := NewInference(InferenceConfig{Endpoint: srv.URL, Model: "missing", Dimension: 3})
	for i := 0; i < 2; i++ {
		if _, err := p.Generate(context.Background(), "hello"); !errors.Is(err, discovery.ErrModelNotFound) {
			t.Fatalf("call %d: expected ErrModelNotFound, got %v", i, err)
		}
	}
	if got := preflights.Load(); got != 1 {
		t.Errorf("a missing model is conclusive and should be checked once, got %d", got)
	}
}

func TestInferenceWarmingRetried(t *testing.T) {
	var posts atomic.Int32
	srv := inferenceServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// Cold model: preflight reports service unavailable, which is
			// not a permanent failure.
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if posts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{
				"error":          "Model m is currently loading",
				"estimated_time": 0.01,
			})
			return
		}
		json.NewEncoder(w).Encode([]float32{0.2, 0.4})
	})

	p := NewInference(InferenceConfig{Endpoint: srv.URL, Model: "m", Dimension: 2})
	vec, err := p.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("expected 2 components, got %d", len(vec))
	}
	if got := posts.Load(); got != 2 {
		t.Errorf("expected 2 generation attempts, got %d", got)
	}
}

func TestInferenceEmptyInput(t *testing.T) {
	p := NewInference(InferenceConfig{Endpoint: "http://unused", Model: "m"})
	if _, err := p.Generate(context.Background(), "  "); !errors.Is(err, discovery.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestInferenceDimensionMismatch(t *testing.T) {
	srv := inferenceServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusOK)
			return
		}
		json.NewEncoder(w).Encode([]float32{0.1, 0.2})
	})

	p := NewInference(InferenceConfig{Endpoint: srv.URL, Model: "m", Dimension: 3})
	_, err := p.Generate(context.Background(), "hello")
	if !errors.Is(err, discovery.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}
