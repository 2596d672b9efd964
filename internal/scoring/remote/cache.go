package remote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"foodsafe-backend/internal/analysis"
	"foodsafe-backend/internal/scoring"
)

// Cache stores remote verdicts so identical requests skip the LLM call.
type Cache interface {
	Get(ctx context.Context, key string) (analysis.AnalysisResult, bool, error)
	Set(ctx context.Context, key string, res analysis.AnalysisResult, ttl time.Duration) error
}

// CacheKey derives a stable key from the normalized input. Ingredient order
// matters to the label; allergy and medication order does not.
func CacheKey(promptVersion string, in scoring.Input) string {
	allergies := analysis.NormalizeSet(in.Allergies)
	meds := analysis.NormalizeSet(in.Medications)
	sort.Strings(allergies)
	sort.Strings(meds)
	ingredients := make([]string, len(in.Ingredients))
	for i, ing := range in.Ingredients {
		ingredients[i] = strings.ToLower(strings.TrimSpace(ing))
	}

	h := sha256.New()
	fmt.Fprintf(h, "v=%s\n", promptVersion)
	fmt.Fprintf(h, "i=%s\n", strings.Join(ingredients, "\x1f"))
	fmt.Fprintf(h, "a=%s\n", strings.Join(allergies, "\x1f"))
	fmt.Fprintf(h, "m=%s\n", strings.Join(meds, "\x1f"))
	return hex.EncodeToString(h.Sum(nil))
}

type memoryEntry struct {
	res     analysis.AnalysisResult
	expires time.Time
}

// MemoryCache is an in-process Cache safe for concurrent use.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache constructs a MemoryCache. now may be nil.
func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{entries: make(map[string]memoryEntry), now: now}
}

// Get returns a cached verdict if present and not expired.
func (c *MemoryCache) Get(ctx context.Context, key string) (analysis.AnalysisResult, bool, error) {
	if err := ctx.Err(); err != nil {
		return analysis.AnalysisResult{}, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return analysis.AnalysisResult{}, false, nil
	}
	if !entry.expires.IsZero() && !c.now().Before(entry.expires) {
		delete(c.entries, key)
		return analysis.AnalysisResult{}, false, nil
	}
	return entry.res.Clone(), true, nil
}

// Set stores a verdict. A non-positive ttl never expires.
func (c *MemoryCache) Set(ctx context.Context, key string, res analysis.AnalysisResult, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry := memoryEntry{res: res.Clone()}
	if ttl > 0 {
		entry.expires = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

type redisCmds interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisCache stores verdicts in Redis as JSON.
type RedisCache struct {
	client redisCmds
	prefix string
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client redis.Cmdable, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "foodsafe:verdict:"
	}
	return &RedisCache{client: client, prefix: prefix}
}

// OpenRedis parses a redis:// URL and pings the server.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Get returns a cached verdict. A missing key is a miss, not an error.
func (c *RedisCache) Get(ctx context.Context, key string) (analysis.AnalysisResult, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return analysis.AnalysisResult{}, false, nil
		}
		return analysis.AnalysisResult{}, false, fmt.Errorf("redis get: %w", err)
	}
	var res analysis.AnalysisResult
	if err := json.Unmarshal(data, &res); err != nil {
		return analysis.AnalysisResult{}, false, fmt.Errorf("decode cached verdict: %w", err)
	}
	return res, true, nil
}

// Set stores a verdict with the given ttl.
func (c *RedisCache) Set(ctx context.Context, key string, res analysis.AnalysisResult, ttl time.Duration) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*RedisCache)(nil)
)
