package embedder

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"lukechampine.com/blake3"
)

// Cache stores embeddings by key. A miss is reported with ok == false and a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (vec []float32, ok bool, err error)
	Set(ctx context.Context, key string, vec []float32) error
}

// CachedEmbedder looks embeddings up in a cache before calling the wrapped
// embedder. Cache failures are logged and never fail the embedding.
type CachedEmbedder struct {
	next  Embedder
	cache Cache
}

func NewCachedEmbedder(next Embedder, cache Cache) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: cache}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(c.next.ModelInfo(), text)

	vec, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		log.Printf("embedding cache get: %v", err)
	} else if ok {
		return vec, nil
	}

	vec, err = c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, vec); err != nil {
		log.Printf("embedding cache set: %v", err)
	}
	return vec, nil
}

func (c *CachedEmbedder) Dimension() int    { return c.next.Dimension() }
func (c *CachedEmbedder) ModelInfo() string { return c.next.ModelInfo() }

// CacheKey derives a cache key from the model and the text.
func CacheKey(model, text string) string {
	h := blake3.New(32, nil)
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// MemoryCache is a process-local cache holding at most maxEntries vectors.
// When full, an arbitrary entry is evicted.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string][]float32
	maxEntries int
}

func NewMemoryCache(maxEntries int) *MemoryCache {
	return &MemoryCache{entries: make(map[string][]float32), maxEntries: maxEntries}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vec, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return append([]float32(nil), vec...), true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, vec []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok && m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		for k := range m.entries {
			delete(m.entries, k)
			break
		}
	}
	m.entries[key] = append([]float32(nil), vec...)
	return nil
}

func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// RedisCache shares embeddings between processes. Vectors are stored as
// little-endian float32 bytes under prefix+key.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// ConnectRedisCache connects to Redis and checks the connection
func ConnectRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client, prefix: "videoqa:emb:", ttl: ttl}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("error reading embedding: %w", err)
	}
	vec, err := decodeVector(b)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, vec []float32) error {
	if err := r.client.Set(ctx, r.prefix+key, encodeVector(vec), r.ttl).Err(); err != nil {
		return fmt.Errorf("error writing embedding: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}

func encodeVector(vec []float32) []byte {
	b := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("corrupt cached embedding: %d bytes", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return vec, nil
}
