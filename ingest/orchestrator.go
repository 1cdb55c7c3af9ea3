// Package ingest owns the write path: it turns catalog records into vector
// points and keeps the record store's embedding references consistent with
// the vector index. The record store is authoritative; the vector index is a
// derived projection that may briefly lag behind.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

// DefaultReembedTimeout bounds a detached re-embedding task.
const DefaultReembedTimeout = 30 * time.Second

// Config holds optional orchestrator settings.
type Config struct {
	// Logger receives consistency warnings; nil means slog.Default().
	Logger *slog.Logger

	// ReembedTimeout bounds each detached re-embedding task.
	// Zero means DefaultReembedTimeout.
	ReembedTimeout time.Duration
}

// Orchestrator runs the ingestion state machine: persist the record, embed
// each present source, upsert the vector batch, then update embeddingKeys
// for exactly the sources that made it into the batch.
type Orchestrator struct {
	records  discovery.RecordStore
	vectors  discovery.VectorProvider
	embedder discovery.EmbeddingProvider
	jobs     *JobLog
	logger   *slog.Logger
	timeout  time.Duration

	// background tracks detached re-embedding tasks so tests and shutdown
	// can wait for them.
	background sync.WaitGroup
}

// New creates an orchestrator over the given collaborators.
func New(records discovery.RecordStore, vectors discovery.VectorProvider, embedder discovery.EmbeddingProvider, config Config) *Orchestrator {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := config.ReembedTimeout
	if timeout <= 0 {
		timeout = DefaultReembedTimeout
	}
	return &Orchestrator{
		records:  records,
		vectors:  vectors,
		embedder: embedder,
		jobs:     NewJobLog(),
		logger:   logger,
		timeout:  timeout,
	}
}

// Jobs returns the audit log of ingestion jobs.
func (o *Orchestrator) Jobs() *JobLog {
	return o.jobs
}

// sourceVector pairs an embedding source with its generated vector.
type sourceVector struct {
	source string
	vector []float32
}

// embedSources generates one vector per present, non-blank source. A failure
// on one source is logged and that source omitted; it never aborts the rest.
func (o *Orchestrator) embedSources(ctx context.Context, m *discovery.Movie) []sourceVector {
	var mu sync.Mutex
	var produced []sourceVector

	g, gctx := errgroup.WithContext(ctx)
	for _, source := range discovery.EmbedSources {
		text := m.SourceText(source)
		if text == "" {
			continue
		}
		g.Go(func() error {
			vec, err := o.embedder.Generate(gctx, text)
			if err != nil {
				o.logger.Warn("embedding source failed",
					"record", m.ID, "source", source, "err", err)
				return nil
			}
			mu.Lock()
			produced = append(produced, sourceVector{source: source, vector: vec})
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors
	return produced
}

// upsertVectors writes the produced vectors as one batch and returns the
// natural keys per source for the embeddingKeys update. Backends whose
// collections are provisioned out-of-band cannot ensure anything; their
// check is advisory and the upsert reports the real state.
func (o *Orchestrator) upsertVectors(ctx context.Context, recordID string, produced []sourceVector) (map[string]string, error) {
	if err := o.vectors.EnsureCollection(ctx, o.embedder.Dimension(), discovery.DistanceCosine); err != nil {
		if !errors.Is(err, discovery.ErrCollectionNotManaged) {
			return nil, err
		}
		o.logger.Warn("collection check skipped, provisioned out-of-band",
			"record", recordID, "err", err)
	}

	points := make([]discovery.VectorPoint, len(produced))
	keys := make(map[string]string, len(produced))
	for i, sv := range produced {
		points[i] = discovery.NewVectorPoint(recordID, sv.source, sv.vector)
		keys[sv.source] = points[i].ID
	}

	if err := o.vectors.Upsert(ctx, points); err != nil {
		return nil, err
	}
	return keys, nil
}

// Ingest persists the record and projects it into the vector index. The
// record save is durable even when embedding fails entirely; a zero-vector
// outcome is a consistency warning, not an error. Embedding or upsert errors
// after the save mark the job failed and propagate.
func (o *Orchestrator) Ingest(ctx context.Context, m *discovery.Movie) (*discovery.IngestionJob, error) {
	job := o.jobs.create(m.ID)

	if err := o.records.Insert(ctx, m); err != nil {
		o.jobs.transition(job.ID, discovery.JobFailed, nil, err.Error())
		job, _ := o.jobs.Get(job.ID)
		return job, err
	}
	o.jobs.transition(job.ID, discovery.JobProcessing, nil, "")

	produced := o.embedSources(ctx, m)

	if len(produced) == 0 {
		o.logger.Warn("record saved without semantic searchability", "record", m.ID)
		o.jobs.transition(job.ID, discovery.JobCompleted, []string{}, "")
		job, _ := o.jobs.Get(job.ID)
		return job, nil
	}

	keys, err := o.upsertVectors(ctx, m.ID, produced)
	if err != nil {
		o.jobs.transition(job.ID, discovery.JobFailed, nil, err.Error())
		job, _ := o.jobs.Get(job.ID)
		return job, fmt.Errorf("upsert vectors: %w", err)
	}

	if err := o.applyEmbeddingKeys(ctx, m, keys); err != nil {
		o.jobs.transition(job.ID, discovery.JobFailed, nil, err.Error())
		job, _ := o.jobs.Get(job.ID)
		return job, fmt.Errorf("update embedding keys: %w", err)
	}

	sources := make([]string, 0, len(keys))
	for source := range keys {
		sources = append(sources, source)
	}
	o.jobs.transition(job.ID, discovery.JobCompleted, sources, "")
	job, _ = o.jobs.Get(job.ID)
	return job, nil
}

// applyEmbeddingKeys merges the freshly upserted keys into the record's
// existing map. Keys for sources outside the batch are preserved; the map
// never names a point that was not actually upserted.
func (o *Orchestrator) applyEmbeddingKeys(ctx context.Context, m *discovery.Movie, keys map[string]string) error {
	merged := make(map[string]string, len(m.EmbeddingKeys)+len(keys))
	for source, key := range m.EmbeddingKeys {
		merged[source] = key
	}
	for source, key := range keys {
		merged[source] = key
	}
	if err := o.records.SetEmbeddingKeys(ctx, m.ID, merged); err != nil {
		return err
	}
	m.EmbeddingKeys = merged
	return nil
}

// Reembed refreshes the vector projection after a record update. It is a
// no-op unless an embeddable source actually changed, and runs as a detached
// background task: the update's caller is never blocked on it and its
// failures are logged, not surfaced.
func (o *Orchestrator) Reembed(recordID string, before, after *discovery.Movie) {
	changed := false
	for _, source := range discovery.EmbedSources {
		if before.SourceText(source) != after.SourceText(source) {
			changed = true
			break
		}
	}
	if !changed {
		return
	}

	snapshot := *after
	o.background.Add(1)
	go func() {
		defer o.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		defer cancel()

		produced := o.embedSources(ctx, &snapshot)
		if len(produced) == 0 {
			o.logger.Warn("re-embedding produced no vectors", "record", recordID)
			return
		}
		keys, err := o.upsertVectors(ctx, recordID, produced)
		if err != nil {
			o.logger.Error("re-embedding upsert failed", "record", recordID, "err", err)
			return
		}
		if err := o.applyEmbeddingKeys(ctx, &snapshot, keys); err != nil {
			o.logger.Error("re-embedding key update failed", "record", recordID, "err", err)
		}
	}()
}

// Wait blocks until all detached re-embedding tasks have finished.
func (o *Orchestrator) Wait() {
	o.background.Wait()
}

// Remove deletes the vector points named by the record's embeddingKeys and
// then the record itself. Vector deletion errors propagate; the record is
// not deleted while its points may remain.
func (o *Orchestrator) Remove(ctx context.Context, recordID string) error {
	m, err := o.records.Get(ctx, recordID)
	if err != nil {
		return err
	}

	if len(m.EmbeddingKeys) > 0 {
		ids := make([]string, 0, len(m.EmbeddingKeys))
		for _, key := range m.EmbeddingKeys {
			ids = append(ids, key)
		}
		if err := o.vectors.Delete(ctx, ids); err != nil {
			return fmt.Errorf("delete vectors: %w", err)
		}
	}

	return o.records.Delete(ctx, recordID)
}
