package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

// HTTPService embeds text through a generic embedding microservice. The
// service receives the text and configured model name and must answer with a
// vector field; anything else is a provider failure.
type HTTPService struct {
	endpoint string
	model    string
	dim      int
	client   *http.Client
}

// NewHTTPService creates a provider for the microservice at endpoint.
func NewHTTPService(endpoint, model string, dim int, client *http.Client) *HTTPService {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if dim <= 0 {
		dim = discovery.DefaultDimension
	}
	return &HTTPService{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		dim:      dim,
		client:   client,
	}
}

// Name returns the configured model name.
func (p *HTTPService) Name() string { return p.model }

// Dimension returns the configured vector dimension.
func (p *HTTPService) Dimension() int { return p.dim }

type httpsvcRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

type httpsvcResponse struct {
	Vector    []float32 `json:"vector"`
	Embedding []float32 `json:"embedding"`
}

// Generate forwards text and model name to the service.
func (p *HTTPService) Generate(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, discovery.ErrEmptyInput
	}

	payload, err := json.Marshal(httpsvcRequest{Model: p.model, Text: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", discovery.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s",
			discovery.ErrProviderUnavailable, resp.StatusCode, body)
	}

	var out httpsvcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %w", discovery.ErrProviderUnavailable, err)
	}

	vec := out.Vector
	if len(vec) == 0 {
		vec = out.Embedding
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: response contains no vector", discovery.ErrProviderUnavailable)
	}

	if err := discovery.ValidateVector(vec, p.dim); err != nil {
		return nil, err
	}
	return vec, nil
}

// Ensure HTTPService implements discovery.EmbeddingProvider.
var _ discovery.EmbeddingProvider = (*HTTPService)(nil)
