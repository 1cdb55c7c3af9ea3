// Package sqlite provides a SQLite-backed discovery RecordStore on sqlx with
// the modernc.org/sqlite driver. Suitable for single-node deployments and
// integration tests that want durable storage without a MongoDB instance.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

// timeLayout is RFC3339 with fixed-width nanoseconds so the TEXT columns
// order lexicographically the same as chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS movies (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	plot            TEXT NOT NULL DEFAULT '',
	genres          TEXT NOT NULL DEFAULT '[]',
	rating          REAL,
	year            INTEGER,
	director        TEXT NOT NULL DEFAULT '',
	poster_url      TEXT NOT NULL DEFAULT '',
	poster_asset_id TEXT NOT NULL DEFAULT '',
	embedding_keys  TEXT NOT NULL DEFAULT '{}',
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_movies_created_at ON movies(created_at);
`

// row is the flat SQL projection of a movie. Genres and embedding keys are
// stored as JSON text columns.
type row struct {
	ID            string          `db:"id"`
	Title         string          `db:"title"`
	Plot          string          `db:"plot"`
	Genres        string          `db:"genres"`
	Rating        sql.NullFloat64 `db:"rating"`
	Year          sql.NullInt64   `db:"year"`
	Director      string          `db:"director"`
	PosterURL     string          `db:"poster_url"`
	PosterAssetID string          `db:"poster_asset_id"`
	EmbeddingKeys string          `db:"embedding_keys"`
	CreatedAt     string          `db:"created_at"`
	UpdatedAt     string          `db:"updated_at"`
}

// Store implements discovery.RecordStore on a SQLite database.
type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) a SQLite database at the given path and
// bootstraps the schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing sqlx.DB and bootstraps the schema.
func New(db *sqlx.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores a new movie, stamping creation and update times.
func (s *Store) Insert(ctx context.Context, m *discovery.Movie) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	r, err := toRow(m)
	if err != nil {
		return err
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO movies (id, title, plot, genres, rating, year, director,
			poster_url, poster_asset_id, embedding_keys, created_at, updated_at)
		VALUES (:id, :title, :plot, :genres, :rating, :year, :director,
			:poster_url, :poster_asset_id, :embedding_keys, :created_at, :updated_at)`,
		r)
	if err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return nil
}

// Get retrieves a movie by id.
func (s *Store) Get(ctx context.Context, id string) (*discovery.Movie, error) {
	var r row
	err := s.db.GetContext(ctx, &r, `SELECT * FROM movies WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, discovery.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return fromRow(&r)
}

// Find returns movies matching the filter with sort and pagination. Scalar
// predicates run in SQL; the genre predicate runs over the decoded rows
// because genres live in a JSON column.
func (s *Store) Find(ctx context.Context, filter discovery.MovieFilter, sort discovery.SortOrder, limit, offset int) ([]*discovery.Movie, error) {
	var conds []string
	var args []any

	if filter.MinRating != nil {
		conds = append(conds, "rating >= ?")
		args = append(args, *filter.MinRating)
	}
	if filter.MaxRating != nil {
		conds = append(conds, "rating <= ?")
		args = append(args, *filter.MaxRating)
	}
	if filter.YearFrom != nil {
		conds = append(conds, "year >= ?")
		args = append(args, *filter.YearFrom)
	}
	if filter.YearTo != nil {
		conds = append(conds, "year <= ?")
		args = append(args, *filter.YearTo)
	}
	if filter.Director != "" {
		conds = append(conds, "LOWER(director) LIKE ?")
		args = append(args, "%"+strings.ToLower(filter.Director)+"%")
	}

	query := "SELECT * FROM movies"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if sort == discovery.SortOldestFirst {
		query += " ORDER BY created_at ASC, id ASC"
	} else {
		query += " ORDER BY created_at DESC, id DESC"
	}

	// Pagination is pushed into SQL only when no in-memory predicate remains.
	sqlPaging := len(filter.Genres) == 0
	if sqlPaging {
		if limit > 0 {
			query += " LIMIT ?"
			args = append(args, limit)
			if offset > 0 {
				query += " OFFSET ?"
				args = append(args, offset)
			}
		} else if offset > 0 {
			query += " LIMIT -1 OFFSET ?"
			args = append(args, offset)
		}
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}

	movies := []*discovery.Movie{}
	for i := range rows {
		m, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		if len(filter.Genres) > 0 && !filter.Matches(m) {
			continue
		}
		movies = append(movies, m)
	}

	if !sqlPaging {
		if offset > 0 {
			if offset >= len(movies) {
				return []*discovery.Movie{}, nil
			}
			movies = movies[offset:]
		}
		if limit > 0 && len(movies) > limit {
			movies = movies[:limit]
		}
	}
	return movies, nil
}

// Update applies a partial update and returns the updated movie.
func (s *Store) Update(ctx context.Context, id string, upd discovery.MovieUpdate) (*discovery.Movie, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	upd.Apply(m)
	m.UpdatedAt = time.Now().UTC()

	r, err := toRow(m)
	if err != nil {
		return nil, err
	}

	_, err = s.db.NamedExecContext(ctx, `
		UPDATE movies SET title = :title, plot = :plot, genres = :genres,
			rating = :rating, year = :year, director = :director,
			poster_url = :poster_url, poster_asset_id = :poster_asset_id,
			updated_at = :updated_at
		WHERE id = :id`,
		r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return m, nil
}

// SetEmbeddingKeys replaces only the embedding-key column, leaving
// concurrent unrelated field updates intact.
func (s *Store) SetEmbeddingKeys(ctx context.Context, id string, keys map[string]string) error {
	encoded, err := json.Marshal(keys)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE movies SET embedding_keys = ?, updated_at = ? WHERE id = ?`,
		string(encoded), time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	if affected == 0 {
		return discovery.ErrNotFound
	}
	return nil
}

// Delete removes a movie by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM movies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	if affected == 0 {
		return discovery.ErrNotFound
	}
	return nil
}

// List returns a paginated scan of all movies ordered by id.
func (s *Store) List(ctx context.Context, cursor string, limit int) ([]*discovery.Movie, string, error) {
	query := `SELECT * FROM movies`
	var args []any
	if cursor != "" {
		query += ` WHERE id > ?`
		args = append(args, cursor)
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit+1) // Fetch one extra to check for more

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, "", fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}

	var movies []*discovery.Movie
	for i := range rows {
		m, err := fromRow(&rows[i])
		if err != nil {
			return nil, "", err
		}
		movies = append(movies, m)
	}

	var nextCursor string
	if len(movies) > limit {
		movies = movies[:limit]
		nextCursor = movies[limit-1].ID
	}
	return movies, nextCursor, nil
}

// toRow flattens a movie into its SQL projection.
func toRow(m *discovery.Movie) (*row, error) {
	genres, err := json.Marshal(m.Genres)
	if err != nil {
		return nil, err
	}
	keys := m.EmbeddingKeys
	if keys == nil {
		keys = map[string]string{}
	}
	encodedKeys, err := json.Marshal(keys)
	if err != nil {
		return nil, err
	}

	r := &row{
		ID:            m.ID,
		Title:         m.Title,
		Plot:          m.Plot,
		Genres:        string(genres),
		Director:      m.Director,
		PosterURL:     m.PosterURL,
		PosterAssetID: m.PosterAssetID,
		EmbeddingKeys: string(encodedKeys),
		CreatedAt:     m.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:     m.UpdatedAt.UTC().Format(timeLayout),
	}
	if m.Rating != nil {
		r.Rating = sql.NullFloat64{Float64: *m.Rating, Valid: true}
	}
	if m.Year != nil {
		r.Year = sql.NullInt64{Int64: int64(*m.Year), Valid: true}
	}
	return r, nil
}

// fromRow rebuilds a movie from its SQL projection.
func fromRow(r *row) (*discovery.Movie, error) {
	m := &discovery.Movie{
		ID:            r.ID,
		Title:         r.Title,
		Plot:          r.Plot,
		Director:      r.Director,
		PosterURL:     r.PosterURL,
		PosterAssetID: r.PosterAssetID,
	}

	if r.Genres != "" {
		if err := json.Unmarshal([]byte(r.Genres), &m.Genres); err != nil {
			return nil, err
		}
	}
	if r.EmbeddingKeys != "" {
		if err := json.Unmarshal([]byte(r.EmbeddingKeys), &m.EmbeddingKeys); err != nil {
			return nil, err
		}
		if len(m.EmbeddingKeys) == 0 {
			m.EmbeddingKeys = nil
		}
	}
	if r.Rating.Valid {
		m.Rating = &r.Rating.Float64
	}
	if r.Year.Valid {
		year := int(r.Year.Int64)
		m.Year = &year
	}

	var err error
	if m.CreatedAt, err = time.Parse(timeLayout, r.CreatedAt); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = time.Parse(timeLayout, r.UpdatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

// Ensure Store implements discovery.RecordStore.
var _ discovery.RecordStore = (*Store)(nil)
