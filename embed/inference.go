package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

// Default retry posture for warming models. Attempts bounds the total number
// of generation tries, not the number of backoff sleeps.
const (
	inferenceAttempts       = 3
	inferenceDefaultBackoff = 2 * time.Second
	inferenceMaxBackoff     = 30 * time.Second
)

// Inference is a remote inference API provider (HuggingFace-style). The
// model is preflighted before first use with conclusive outcomes cached;
// warming models are retried with provider-supplied backoff when available.
type Inference struct {
	endpoint string
	model    string
	token    string
	dim      int
	client   *http.Client
	logger   *slog.Logger

	preflightMu   sync.Mutex
	preflightDone bool
	preflightErr  error
}

// InferenceConfig holds configuration for the Inference provider.
type InferenceConfig struct {
	// Endpoint is the API base URL, e.g. "https://api-inference.huggingface.co".
	Endpoint string

	// Model is the hosted model identifier.
	Model string

	// Token is the bearer credential. Optional for public models.
	Token string

	// Dimension is the expected vector dimension.
	Dimension int

	// Client is the HTTP client; nil gets a 30s-timeout default.
	Client *http.Client

	// Logger receives retry warnings; nil means slog.Default().
	Logger *slog.Logger
}

// NewInference creates a remote inference provider.
func NewInference(cfg InferenceConfig) *Inference {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = discovery.DefaultDimension
	}
	return &Inference{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		model:    cfg.Model,
		token:    cfg.Token,
		dim:      dim,
		client:   client,
		logger:   logger,
	}
}

// Name returns the configured model identifier.
func (p *Inference) Name() string { return p.model }

// Dimension returns the configured vector dimension.
func (p *Inference) Dimension() int { return p.dim }

// Generate embeds text through the remote API. Preflights the model on first
// use; 404 and auth failures are permanent, warming models are retried up to
// inferenceAttempts times before the error surfaces.
func (p *Inference) Generate(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, discovery.ErrEmptyInput
	}

	if err := p.preflight(ctx); err != nil {
		return nil, err
	}

	var vec []float32
	b := retry.WithMaxRetries(inferenceAttempts-1, retry.NewConstant(inferenceDefaultBackoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		v, wait, err := p.generateOnce(ctx, text)
		if err != nil {
			if errors.Is(err, discovery.ErrModelWarming) {
				p.logger.Warn("model warming, will retry",
					"model", p.model, "estimated", wait)
				// The constant backoff covers the default case; honor any
				// longer provider-suggested wait before the next attempt.
				if wait > inferenceDefaultBackoff {
					t := time.NewTimer(wait - inferenceDefaultBackoff)
					select {
					case <-ctx.Done():
						t.Stop()
						return ctx.Err()
					case <-t.C:
					}
				}
				return retry.RetryableError(err)
			}
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := discovery.ValidateVector(vec, p.dim); err != nil {
		return nil, err
	}
	return vec, nil
}

// preflight checks the configured model exists and is accessible. Only
// conclusive outcomes are cached for the process lifetime: success,
// model-not-found, and auth failures. Transport errors and transient
// statuses surface but leave the check armed for the next call.
func (p *Inference) preflight(ctx context.Context) error {
	p.preflightMu.Lock()
	defer p.preflightMu.Unlock()
	if p.preflightDone {
		return p.preflightErr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.modelURL(), nil)
	if err != nil {
		return err
	}
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		p.preflightDone = true
		p.preflightErr = fmt.Errorf("%w: %s", discovery.ErrModelNotFound, p.model)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		p.preflightDone = true
		p.preflightErr = discovery.ErrUnauthorized
	case resp.StatusCode >= 400 && resp.StatusCode != http.StatusServiceUnavailable:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: preflight status %d: %s",
			discovery.ErrProviderUnavailable, resp.StatusCode, body)
	default:
		// Success, or 503 meaning the model exists but is cold; Generate
		// handles warming.
		p.preflightDone = true
	}
	return p.preflightErr
}

type inferenceError struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}

// generateOnce performs a single generation attempt. The returned duration
// is the provider-suggested wait when the model is warming.
func (p *Inference) generateOnce(ctx context.Context, text string) ([]float32, time.Duration, error) {
	payload, err := json.Marshal(map[string]any{"inputs": text})
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.modelURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", discovery.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", discovery.ErrProviderUnavailable, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		vec, err := decodeVector(body)
		if err != nil {
			return nil, 0, err
		}
		return vec, 0, nil
	case http.StatusServiceUnavailable:
		var ie inferenceError
		_ = json.Unmarshal(body, &ie)
		wait := inferenceDefaultBackoff
		if ie.EstimatedTime > 0 {
			wait = time.Duration(ie.EstimatedTime * float64(time.Second))
			if wait > inferenceMaxBackoff {
				wait = inferenceMaxBackoff
			}
		}
		return nil, wait, discovery.ErrModelWarming
	case http.StatusNotFound:
		return nil, 0, fmt.Errorf("%w: %s", discovery.ErrModelNotFound, p.model)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, 0, discovery.ErrUnauthorized
	default:
		return nil, 0, fmt.Errorf("%w: status %d: %s",
			discovery.ErrProviderUnavailable, resp.StatusCode, body)
	}
}

func (p *Inference) modelURL() string {
	return p.endpoint + "/models/" + p.model
}

func (p *Inference) authorize(req *http.Request) {
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
}

// decodeVector accepts either a flat vector or a single-row nested array,
// the two shapes feature-extraction endpoints produce for one input.
func decodeVector(body []byte) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(body, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}
	var nested [][]float32
	if err := json.Unmarshal(body, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}
	return nil, fmt.Errorf("%w: response contains no vector", discovery.ErrProviderUnavailable)
}

// Ensure Inference implements discovery.EmbeddingProvider.
var _ discovery.EmbeddingProvider = (*Inference)(nil)
