// Package maintain provides batch routines over the whole catalog: dedupe of
// near-identical records, poster-asset backfill, and orphaned-vector
// detection. Routines run sequentially, are safe to interrupt, and are
// idempotent.
package maintain

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

// scanPageSize is the record-store page size for full catalog scans.
const scanPageSize = 200

// Remover deletes a record together with its vector points. Satisfied by
// ingest.Orchestrator, so dedupe deletions clean the vector index too.
type Remover interface {
	Remove(ctx context.Context, recordID string) error
}

// Report summarizes one maintenance run.
type Report struct {
	// Processed counts candidates examined (dedupe groups, backfill
	// candidates, embedding-key references).
	Processed int `json:"processed"`

	// Changed counts mutations applied (records deleted, posters stored,
	// orphaned references found).
	Changed int `json:"changed"`

	// Failed counts candidates that errored and were skipped.
	Failed int `json:"failed"`
}

// Config holds optional engine settings.
type Config struct {
	// Client fetches poster bytes during backfill; nil means a client with
	// DefaultFetchTimeout.
	Client *http.Client

	// Logger receives per-candidate failures; nil means slog.Default().
	Logger *slog.Logger
}

// DefaultFetchTimeout bounds one poster fetch.
const DefaultFetchTimeout = 15 * time.Second

// Engine runs the maintenance routines.
type Engine struct {
	records discovery.RecordStore
	assets  discovery.AssetStore
	vectors discovery.VectorProvider
	remover Remover
	client  *http.Client
	logger  *slog.Logger
}

// New creates a maintenance engine over the given collaborators.
func New(records discovery.RecordStore, assets discovery.AssetStore, vectors discovery.VectorProvider, remover Remover, config Config) *Engine {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := config.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	return &Engine{
		records: records,
		assets:  assets,
		vectors: vectors,
		remover: remover,
		client:  client,
		logger:  logger,
	}
}

// scan walks the whole catalog through the record store's cursor pages,
// invoking fn per record. Stops early on context cancellation.
func (e *Engine) scan(ctx context.Context, fn func(*discovery.Movie) error) error {
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		movies, next, err := e.records.List(ctx, cursor, scanPageSize)
		if err != nil {
			return err
		}
		for _, m := range movies {
			if err := fn(m); err != nil {
				return err
			}
		}
		if next == "" {
			return nil
		}
		cursor = next
	}
}
