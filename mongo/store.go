// Package mongo provides MongoDB-backed implementations of the discovery
// RecordStore and AssetStore.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

// Store implements discovery.RecordStore on a MongoDB collection of movie
// documents keyed by _id.
type Store struct {
	collection *mongo.Collection
}

// NewStore creates a record store using the given collection.
func NewStore(collection *mongo.Collection) *Store {
	return &Store{
		collection: collection,
	}
}

// Insert stores a new movie, stamping creation and update times.
func (s *Store) Insert(ctx context.Context, m *discovery.Movie) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	_, err := s.collection.InsertOne(ctx, m)
	if err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return nil
}

// Get retrieves a movie by id.
func (s *Store) Get(ctx context.Context, id string) (*discovery.Movie, error) {
	var m discovery.Movie
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, discovery.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return &m, nil
}

// Find returns movies matching the filter with sort and pagination.
func (s *Store) Find(ctx context.Context, filter discovery.MovieFilter, sort discovery.SortOrder, limit, offset int) ([]*discovery.Movie, error) {
	query := toQuery(filter)

	direction := -1
	if sort == discovery.SortOldestFirst {
		direction = 1
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "createdAt", Value: direction},
		{Key: "_id", Value: direction},
	})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts = opts.SetSkip(int64(offset))
	}

	cur, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	defer cur.Close(ctx)

	movies := []*discovery.Movie{}
	for cur.Next(ctx) {
		var m discovery.Movie
		if err := cur.Decode(&m); err != nil {
			return nil, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
		}
		movies = append(movies, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return movies, nil
}

// Update applies a partial update and returns the updated movie.
func (s *Store) Update(ctx context.Context, id string, upd discovery.MovieUpdate) (*discovery.Movie, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Plot != nil {
		set["plot"] = *upd.Plot
	}
	if upd.Genres != nil {
		set["genres"] = *upd.Genres
	}
	if upd.Rating != nil {
		set["rating"] = *upd.Rating
	}
	if upd.Year != nil {
		set["year"] = *upd.Year
	}
	if upd.Director != nil {
		set["director"] = *upd.Director
	}
	if upd.PosterURL != nil {
		set["posterUrl"] = *upd.PosterURL
	}
	if upd.PosterAssetID != nil {
		set["posterAssetId"] = *upd.PosterAssetID
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m discovery.Movie
	err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, discovery.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return &m, nil
}

// SetEmbeddingKeys atomically replaces only the embedding-key map, so
// concurrent field updates on the same document are not lost.
func (s *Store) SetEmbeddingKeys(ctx context.Context, id string, keys map[string]string) error {
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"embeddingKeys": keys,
			"updatedAt":     time.Now().UTC(),
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	if result.MatchedCount == 0 {
		return discovery.ErrNotFound
	}
	return nil
}

// Delete removes a movie by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	if result.DeletedCount == 0 {
		return discovery.ErrNotFound
	}
	return nil
}

// List returns a paginated scan of all movies ordered by id.
// The cursor should be empty for the first page, or the value returned by the
// previous call.
func (s *Store) List(ctx context.Context, cursor string, limit int) ([]*discovery.Movie, string, error) {
	query := bson.M{}
	if cursor != "" {
		query["_id"] = bson.M{"$gt": cursor}
	}

	opts := options.Find().
		SetSort(bson.M{"_id": 1}).
		SetLimit(int64(limit + 1)) // Fetch one extra to check for more

	cur, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	defer cur.Close(ctx)

	var movies []*discovery.Movie
	for cur.Next(ctx) {
		var m discovery.Movie
		if err := cur.Decode(&m); err != nil {
			return nil, "", fmt.Errorf("%w: %w", discovery.ErrBackend, err)
		}
		movies = append(movies, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, "", fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}

	var nextCursor string
	if len(movies) > limit {
		movies = movies[:limit]
		nextCursor = movies[limit-1].ID
	}
	return movies, nextCursor, nil
}

// toQuery converts a MovieFilter into a MongoDB query document.
func toQuery(filter discovery.MovieFilter) bson.M {
	query := bson.M{}

	if len(filter.Genres) > 0 {
		patterns := make([]bson.Regex, len(filter.Genres))
		for i, g := range filter.Genres {
			patterns[i] = bson.Regex{
				Pattern: "^" + regexp.QuoteMeta(g) + "$",
				Options: "i",
			}
		}
		query["genres"] = bson.M{"$in": patterns}
	}

	rating := bson.M{}
	if filter.MinRating != nil {
		rating["$gte"] = *filter.MinRating
	}
	if filter.MaxRating != nil {
		rating["$lte"] = *filter.MaxRating
	}
	if len(rating) > 0 {
		query["rating"] = rating
	}

	year := bson.M{}
	if filter.YearFrom != nil {
		year["$gte"] = *filter.YearFrom
	}
	if filter.YearTo != nil {
		year["$lte"] = *filter.YearTo
	}
	if len(year) > 0 {
		query["year"] = year
	}

	if filter.Director != "" {
		query["director"] = bson.Regex{
			Pattern: regexp.QuoteMeta(filter.Director),
			Options: "i",
		}
	}

	return query
}

// Ensure Store implements discovery.RecordStore.
var _ discovery.RecordStore = (*Store)(nil)
