// Package redis provides a Redis-backed discovery EmbeddingCache.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

// Client defines the Redis client interface used by this cache.
// This allows for easy mocking in tests.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Cache implements discovery.EmbeddingCache. Vectors are keyed by a digest of
// the query text and stored as little-endian float32 bytes.
type Cache struct {
	client Client
	prefix string
}

// New creates a cache scoped to the given key prefix.
func New(client Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// cacheKey digests the text so arbitrary query strings stay within Redis key
// conventions.
func (c *Cache) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.prefix + hex.EncodeToString(sum[:])
}

// Get returns the cached vector for text, or ErrNotFound.
func (c *Cache) Get(ctx context.Context, text string) ([]float32, error) {
	data, err := c.client.Get(ctx, c.cacheKey(text)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, discovery.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return decodeVector(data)
}

// Set stores the vector for text with the given TTL. TTL of 0 means no
// expiration.
func (c *Cache) Set(ctx context.Context, text string, vector []float32, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.cacheKey(text), encodeVector(vector), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return nil
}

// encodeVector packs a vector as little-endian float32 bytes.
func encodeVector(vector []float32) []byte {
	data := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return data
}

// decodeVector unpacks little-endian float32 bytes.
func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, discovery.ErrInvalidVector
	}
	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vector, nil
}

// Ensure Cache implements discovery.EmbeddingCache.
var _ discovery.EmbeddingCache = (*Cache)(nil)
