package maintain

import (
	"context"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

// OrphanRef names one embeddingKeys entry whose vector point is missing
// from the index.
type OrphanRef struct {
	RecordID string `json:"recordId"`
	Source   string `json:"source"`
	PointKey string `json:"pointKey"`
}

// OrphanReport extends the run report with the dangling references found
// and the index point count for drift auditing.
type OrphanReport struct {
	Report

	// Orphans lists embeddingKeys entries with no backing point.
	Orphans []OrphanRef `json:"orphans,omitempty"`

	// IndexPoints is the vector backend's total point count at scan time.
	IndexPoints int64 `json:"indexPoints"`
}

// Orphans cross-checks every embeddingKeys reference against the vector
// index and reports drift left behind by partial failures. Report-only: no
// references are repaired or removed.
//
// Processed counts references checked, Changed counts orphans found, Failed
// counts references whose existence check errored.
func (e *Engine) Orphans(ctx context.Context) (*OrphanReport, error) {
	report := &OrphanReport{}

	err := e.scan(ctx, func(m *discovery.Movie) error {
		for _, source := range discovery.EmbedSources {
			key, ok := m.EmbeddingKeys[source]
			if !ok {
				continue
			}
			report.Processed++

			exists, err := e.vectors.Exists(ctx, key)
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				report.Failed++
				e.logger.Warn("orphan check failed",
					"record", m.ID, "source", source, "err", err)
				continue
			}
			if !exists {
				report.Changed++
				report.Orphans = append(report.Orphans, OrphanRef{
					RecordID: m.ID,
					Source:   source,
					PointKey: key,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	count, err := e.vectors.Count(ctx)
	if err != nil {
		e.logger.Warn("index point count unavailable", "err", err)
	} else {
		report.IndexPoints = count
	}
	return report, nil
}
