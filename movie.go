package discovery

import (
	"strings"
	"time"
)

// Embedding source names. Each present, non-blank source on a movie yields
// one vector point.
const (
	SourceTitle = "title"
	SourcePlot  = "plot"
	SourceGenre = "genre"
)

// EmbedSources lists the embeddable sources in ingestion order.
var EmbedSources = []string{SourceTitle, SourcePlot, SourceGenre}

// Movie is the canonical catalog record. The record store owns it; vector
// points referenced by EmbeddingKeys are a derived projection.
type Movie struct {
	ID       string   `json:"id" bson:"_id" db:"id"`
	Title    string   `json:"title" bson:"title" db:"title"`
	Plot     string   `json:"plot,omitempty" bson:"plot,omitempty" db:"plot"`
	Genres   []string `json:"genres,omitempty" bson:"genres,omitempty" db:"-"`
	Rating   *float64 `json:"rating,omitempty" bson:"rating,omitempty" db:"rating"`
	Year     *int     `json:"year,omitempty" bson:"year,omitempty" db:"year"`
	Director string   `json:"director,omitempty" bson:"director,omitempty" db:"director"`

	// PosterURL is the source poster location; PosterAssetID references the
	// derived asset in the AssetStore once backfilled.
	PosterURL     string `json:"posterUrl,omitempty" bson:"posterUrl,omitempty" db:"poster_url"`
	PosterAssetID string `json:"posterAssetId,omitempty" bson:"posterAssetId,omitempty" db:"poster_asset_id"`

	// EmbeddingKeys maps source name to the natural key of the vector point
	// currently stored for that source. Every key must reference a point
	// that exists in the vector index.
	EmbeddingKeys map[string]string `json:"embeddingKeys,omitempty" bson:"embeddingKeys,omitempty" db:"-"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt" db:"updated_at"`
}

// SourceText returns the embeddable text for the named source.
// Genre sources join the genre list into one text.
func (m *Movie) SourceText(source string) string {
	switch source {
	case SourceTitle:
		return strings.TrimSpace(m.Title)
	case SourcePlot:
		return strings.TrimSpace(m.Plot)
	case SourceGenre:
		return strings.TrimSpace(strings.Join(m.Genres, " "))
	default:
		return ""
	}
}

// MovieUpdate is a partial update. Nil fields are left untouched.
type MovieUpdate struct {
	Title     *string   `json:"title,omitempty"`
	Plot      *string   `json:"plot,omitempty"`
	Genres    *[]string `json:"genres,omitempty"`
	Rating    *float64  `json:"rating,omitempty"`
	Year      *int      `json:"year,omitempty"`
	Director  *string   `json:"director,omitempty"`
	PosterURL *string   `json:"posterUrl,omitempty"`

	// PosterAssetID is settable so maintenance can relocate a derived asset.
	PosterAssetID *string `json:"posterAssetId,omitempty"`
}

// Apply mutates m in place with the non-nil fields of the update.
func (u MovieUpdate) Apply(m *Movie) {
	if u.Title != nil {
		m.Title = *u.Title
	}
	if u.Plot != nil {
		m.Plot = *u.Plot
	}
	if u.Genres != nil {
		m.Genres = *u.Genres
	}
	if u.Rating != nil {
		m.Rating = u.Rating
	}
	if u.Year != nil {
		m.Year = u.Year
	}
	if u.Director != nil {
		m.Director = *u.Director
	}
	if u.PosterURL != nil {
		m.PosterURL = *u.PosterURL
	}
	if u.PosterAssetID != nil {
		m.PosterAssetID = *u.PosterAssetID
	}
}

// MovieFilter is a conjunctive set of optional structured predicates.
// A zero-value field imposes no constraint.
type MovieFilter struct {
	// Genres matches movies carrying at least one of the listed genres.
	Genres []string `json:"genres,omitempty"`

	// MinRating and MaxRating bound the rating range, inclusive.
	MinRating *float64 `json:"minRating,omitempty"`
	MaxRating *float64 `json:"maxRating,omitempty"`

	// YearFrom and YearTo bound the release year, inclusive.
	YearFrom *int `json:"yearFrom,omitempty"`
	YearTo   *int `json:"yearTo,omitempty"`

	// Director is a case-insensitive substring match.
	Director string `json:"director,omitempty"`
}

// IsZero reports whether no predicate is set.
func (f MovieFilter) IsZero() bool {
	return len(f.Genres) == 0 &&
		f.MinRating == nil && f.MaxRating == nil &&
		f.YearFrom == nil && f.YearTo == nil &&
		f.Director == ""
}

// Matches evaluates the filter against a movie. All set predicates must hold.
func (f MovieFilter) Matches(m *Movie) bool {
	if len(f.Genres) > 0 {
		found := false
		for _, want := range f.Genres {
			for _, have := range m.Genres {
				if strings.EqualFold(want, have) {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.MinRating != nil && (m.Rating == nil || *m.Rating < *f.MinRating) {
		return false
	}
	if f.MaxRating != nil && (m.Rating == nil || *m.Rating > *f.MaxRating) {
		return false
	}
	if f.YearFrom != nil && (m.Year == nil || *m.Year < *f.YearFrom) {
		return false
	}
	if f.YearTo != nil && (m.Year == nil || *m.Year > *f.YearTo) {
		return false
	}
	if f.Director != "" && !strings.Contains(strings.ToLower(m.Director), strings.ToLower(f.Director)) {
		return false
	}
	return true
}

// SearchMatch is an ephemeral query result. Score is nil for filter-only
// searches where no similarity was computed.
type SearchMatch struct {
	RecordID string   `json:"recordId"`
	Score    *float32 `json:"score,omitempty"`
	Record   *Movie   `json:"record"`
}

// JobStatus is the lifecycle state of an ingestion job.
type JobStatus string

// Ingestion job states. Failed is terminal and not automatically retried.
const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IngestionJob tracks one ingestion attempt for one movie. Mutated only by
// the orchestrator; retained for audit and never reused across records.
type IngestionJob struct {
	ID        string    `json:"id"`
	RecordID  string    `json:"recordId"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	Sources   []string  `json:"sources,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
