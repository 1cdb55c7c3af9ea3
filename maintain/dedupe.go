package maintain

import (
	"context"
	"fmt"
	"strings"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

// dedupeKey normalizes a title and year into the duplicate-group key:
// lowercase, whitespace collapsed to single spaces, trimmed.
func dedupeKey(m *discovery.Movie) string {
	title := strings.Join(strings.Fields(strings.ToLower(m.Title)), " ")
	year := ""
	if m.Year != nil {
		year = fmt.Sprintf("%d", *m.Year)
	}
	return title + "|" + year
}

// survives reports whether a should survive over b: higher rating first
// (missing rating is lowest), then poster-asset presence, then most
// recently created.
func survives(a, b *discovery.Movie) bool {
	ra, rb := -1.0, -1.0
	if a.Rating != nil {
		ra = *a.Rating
	}
	if b.Rating != nil {
		rb = *b.Rating
	}
	if ra != rb {
		return ra > rb
	}
	if (a.PosterAssetID != "") != (b.PosterAssetID != "") {
		return a.PosterAssetID != ""
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// Dedupe removes near-identical records. Records sharing a normalized
// title+year key form a group; one survivor is kept per group and the rest
// are deleted through the remover so their vector points are cleaned too.
// If the survivor lacks a poster asset, the reference migrates from a
// duplicate before that duplicate is deleted. Idempotent: a second run with
// no intervening writes deletes nothing.
//
// The report counts groups of size > 1 as processed, deleted records as
// changed, and groups that errored as failed.
func (e *Engine) Dedupe(ctx context.Context) (*Report, error) {
	groups := make(map[string][]*discovery.Movie)
	err := e.scan(ctx, func(m *discovery.Movie) error {
		key := dedupeKey(m)
		groups[key] = append(groups[key], m)
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for key, group := range groups {
		if len(group) < 2 {
			continue
		}
		report.Processed++

		survivor := group[0]
		for _, m := range group[1:] {
			if survives(m, survivor) {
				survivor = m
			}
		}

		if err := e.collapseGroup(ctx, survivor, group); err != nil {
			if ctx.Err() != nil {
				return report, err
			}
			report.Failed++
			e.logger.Error("dedupe group failed", "key", key, "err", err)
			continue
		}
		report.Changed += len(group) - 1
	}
	return report, nil
}

// collapseGroup migrates the poster reference if needed and deletes every
// non-survivor in the group.
func (e *Engine) collapseGroup(ctx context.Context, survivor *discovery.Movie, group []*discovery.Movie) error {
	if survivor.PosterAssetID == "" {
		for _, m := range group {
			if m.ID == survivor.ID || m.PosterAssetID == "" {
				continue
			}
			assetID := m.PosterAssetID
			if _, err := e.records.Update(ctx, survivor.ID, discovery.MovieUpdate{
				PosterAssetID: &assetID,
			}); err != nil {
				return fmt.Errorf("migrate poster to %s: %w", survivor.ID, err)
			}
			survivor.PosterAssetID = assetID
			// Clear the duplicate's reference so its deletion cannot be
			// mistaken for owning the migrated asset.
			empty := ""
			if _, err := e.records.Update(ctx, m.ID, discovery.MovieUpdate{
				PosterAssetID: &empty,
			}); err != nil {
				return fmt.Errorf("clear poster on %s: %w", m.ID, err)
			}
			m.PosterAssetID = ""
			break
		}
	}

	for _, m := range group {
		if m.ID == survivor.ID {
			continue
		}
		if err := e.remover.Remove(ctx, m.ID); err != nil {
			return fmt.Errorf("remove %s: %w", m.ID, err)
		}
	}
	return nil
}
