package maintain

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

// maxPosterBytes caps one fetched poster.
const maxPosterBytes = 10 << 20

// posterSizeTokens are the width markers commonly present in catalog poster
// URLs, largest-preference order for fallback rewrites.
var posterSizeTokens = []string{"_SX300", "_SX600", "_SX1080"}

// posterCandidates returns the URLs to try in order: the original first,
// then size-variant rewrites when the URL carries a recognizable size token.
func posterCandidates(url string) []string {
	candidates := []string{url}
	for _, token := range posterSizeTokens {
		if !strings.Contains(url, token) {
			continue
		}
		for _, alt := range posterSizeTokens {
			if alt == token {
				continue
			}
			candidates = append(candidates, strings.ReplaceAll(url, token, alt))
		}
		break
	}
	return candidates
}

// Backfill stores a derived poster asset for every record that has a source
// poster URL but no asset yet. Candidate URLs are tried in order, stopping
// at the first success; a record whose candidates all fail is counted and
// skipped, never fatal to the batch.
func (e *Engine) Backfill(ctx context.Context) (*Report, error) {
	var candidates []*discovery.Movie
	err := e.scan(ctx, func(m *discovery.Movie) error {
		if m.PosterAssetID == "" && m.PosterURL != "" {
			candidates = append(candidates, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, m := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Processed++

		if err := e.backfillOne(ctx, m); err != nil {
			report.Failed++
			e.logger.Warn("poster backfill failed", "record", m.ID, "err", err)
			continue
		}
		report.Changed++
	}
	return report, nil
}

// backfillOne fetches the first reachable poster candidate, stores it, and
// records the asset id on the movie.
func (e *Engine) backfillOne(ctx context.Context, m *discovery.Movie) error {
	var lastErr error
	for _, url := range posterCandidates(m.PosterURL) {
		data, contentType, err := e.fetch(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}

		assetID, err := e.assets.Put(ctx, data, contentType)
		if err != nil {
			return fmt.Errorf("store poster: %w", err)
		}
		if _, err := e.records.Update(ctx, m.ID, discovery.MovieUpdate{
			PosterAssetID: &assetID,
		}); err != nil {
			return fmt.Errorf("record asset id: %w", err)
		}
		m.PosterAssetID = assetID
		return nil
	}
	return fmt.Errorf("all candidates failed: %w", lastErr)
}

// fetch downloads one URL, bounded by maxPosterBytes.
func (e *Engine) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPosterBytes))
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty body")
	}
	return data, resp.Header.Get("Content-Type"), nil
}
