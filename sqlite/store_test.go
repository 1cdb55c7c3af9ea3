package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }

func sampleMovie(id, title string) *discovery.Movie {
	return &discovery.Movie{
		ID:       id,
		Title:    title,
		Plot:     "plot of " + title,
		Genres:   []string{"Action"},
		Rating:   ptrF(8.0),
		Year:     ptrI(1999),
		Director: "Someone",
	}
}

func TestInsertAndGet(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	m := sampleMovie("tt1", "The Matrix")
	if err := s.Insert(ctx, m); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	got, err := s.Get(ctx, "tt1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Title != "The Matrix" {
		t.Errorf("unexpected title: %q", got.Title)
	}
	if len(got.Genres) != 1 || got.Genres[0] != "Action" {
		t.Errorf("genres lost: %v", got.Genres)
	}
	if got.Rating == nil || *got.Rating != 8.0 {
		t.Errorf("rating lost: %v", got.Rating)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not stamped")
	}
}

func TestGetNotFound(t *testing.T) {
	s := setupStore(t)
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, discovery.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindFilters(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	a := sampleMovie("tt1", "The Matrix")
	a.Rating = ptrF(9.5)
	b := sampleMovie("tt2", "Speed")
	b.Rating = ptrF(7.2)
	b.Genres = []string{"Thriller"}
	c := sampleMovie("tt3", "Old Drama")
	c.Rating = nil
	c.Year = ptrI(1950)

	for _, m := range []*discovery.Movie{a, b, c} {
		if err := s.Insert(ctx, m); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	// Inclusive rating boundary.
	got, err := s.Find(ctx, discovery.MovieFilter{MinRating: ptrF(9.5)}, discovery.SortNewestFirst, 0, 0)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "tt1" {
		t.Errorf("min-rating filter: got %d results", len(got))
	}

	// Genre any-of runs over the decoded rows.
	got, err = s.Find(ctx, discovery.MovieFilter{Genres: []string{"thriller"}}, discovery.SortNewestFirst, 0, 0)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "tt2" {
		t.Errorf("genre filter: got %d results", len(got))
	}

	// Year range excludes the 1950 record.
	got, err = s.Find(ctx, discovery.MovieFilter{YearFrom: ptrI(1990)}, discovery.SortNewestFirst, 0, 0)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("year filter: got %d results", len(got))
	}

	// Director substring, case-insensitive.
	got, err = s.Find(ctx, discovery.MovieFilter{Director: "someONE"}, discovery.SortNewestFirst, 0, 0)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("director filter: got %d results", len(got))
	}
}

func TestFindSortAndPaging(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []string{"tt1", "tt2", "tt3"} {
		m := sampleMovie(id, "Movie "+id)
		m.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.Insert(ctx, m); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	got, err := s.Find(ctx, discovery.MovieFilter{}, discovery.SortNewestFirst, 2, 0)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "tt3" {
		t.Errorf("newest-first paging wrong: %d results, first %q", len(got), got[0].ID)
	}

	got, err = s.Find(ctx, discovery.MovieFilter{}, discovery.SortOldestFirst, 2, 1)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "tt2" {
		t.Errorf("oldest-first offset wrong: first %q", got[0].ID)
	}
}

func TestUpdatePartial(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, sampleMovie("tt1", "Old Title")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	title := "New Title"
	got, err := s.Update(ctx, "tt1", discovery.MovieUpdate{Title: &title})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got.Title != "New Title" {
		t.Errorf("title not updated: %q", got.Title)
	}
	if got.Plot != "plot of Old Title" {
		t.Errorf("nil field clobbered plot: %q", got.Plot)
	}

	if _, err := s.Update(ctx, "missing", discovery.MovieUpdate{Title: &title}); !errors.Is(err, discovery.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetEmbeddingKeys(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, sampleMovie("tt1", "The Matrix")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	keys := map[string]string{"title": "tt1:title", "plot": "tt1:plot"}
	if err := s.SetEmbeddingKeys(ctx, "tt1", keys); err != nil {
		t.Fatalf("set keys failed: %v", err)
	}

	got, err := s.Get(ctx, "tt1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.EmbeddingKeys["plot"] != "tt1:plot" {
		t.Errorf("keys not stored: %v", got.EmbeddingKeys)
	}

	if err := s.SetEmbeddingKeys(ctx, "missing", keys); !errors.Is(err, discovery.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, sampleMovie("tt1", "The Matrix")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := s.Delete(ctx, "tt1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := s.Delete(ctx, "tt1"); !errors.Is(err, discovery.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPagination(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	ids := []string{"tt1", "tt2", "tt3", "tt4", "tt5"}
	for _, id := range ids {
		if err := s.Insert(ctx, sampleMovie(id, "Movie "+id)); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	var seen []string
	cursor := ""
	for {
		page, next, err := s.List(ctx, cursor, 2)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		for _, m := range page {
			seen = append(seen, m.ID)
		}
		if next == "" {
			break
		}
		cursor = next
	}

	if len(seen) != len(ids) {
		t.Fatalf("expected %d records across pages, got %d", len(ids), len(seen))
	}
	for i, id := range ids {
		if seen[i] != id {
			t.Errorf("page order wrong at %d: %q", i, seen[i])
		}
	}
}
