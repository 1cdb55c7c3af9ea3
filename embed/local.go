// Package embed provides the EmbeddingProvider implementations: an
// in-process local model, a remote inference API client, and a generic HTTP
// embedding microservice client.
package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

// Local is an in-process embedding model. Token-level vectors are derived
// deterministically from the model name, mean-pooled into a sentence vector,
// and L2-normalized. The token table is initialized once per instance behind
// an initialization guard; concurrent first callers wait on the same
// initialization instead of racing.
type Local struct {
	model string
	dim   int

	once sync.Once
	seed uint64
}

// NewLocal creates a local provider for the given model name and dimension.
// Construct one instance per configured model name; the model state is
// memoized for the life of the instance.
func NewLocal(model string, dim int) *Local {
	if dim <= 0 {
		dim = discovery.DefaultDimension
	}
	return &Local{model: model, dim: dim}
}

// Name returns the configured model name.
func (l *Local) Name() string { return l.model }

// Dimension returns the configured vector dimension.
func (l *Local) Dimension() int { return l.dim }

// Generate embeds text by mean-pooling per-token vectors: for T tokens each
// of dimension D, component i of the sentence vector is the arithmetic mean
// of the T token vectors' component i.
func (l *Local) Generate(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, discovery.ErrEmptyInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.once.Do(l.init)

	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return nil, discovery.ErrEmptyInput
	}

	pooled := make([]float64, l.dim)
	for _, tok := range tokens {
		state := l.seed ^ hash64(tok)
		for i := 0; i < l.dim; i++ {
			state = splitmix64(state)
			// Signed reinterpretation maps the state into [-1,1).
			pooled[i] += float64(int64(state)) / float64(math.MaxInt64)
		}
	}
	for i := range pooled {
		pooled[i] /= float64(len(tokens))
	}

	vec := normalize(pooled)
	if err := discovery.ValidateVector(vec, l.dim); err != nil {
		return nil, err
	}
	return vec, nil
}

// init derives the model seed. Stands in for loading model weights; runs
// exactly once per instance.
func (l *Local) init() {
	l.seed = hash64(l.model)
}

// normalize L2-normalizes and converts to float32. An all-zero input comes
// back unchanged rather than dividing by zero.
func normalize(v []float64) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	out := make([]float32, len(v))
	if sumSq == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sumSq)
	for i, x := range v {
		out[i] = float32(x * inv)
	}
	return out
}

func hash64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// splitmix64 advances a deterministic 64-bit generator state.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	z := x
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Ensure Local implements discovery.EmbeddingProvider.
var _ discovery.EmbeddingProvider = (*Local)(nil)
