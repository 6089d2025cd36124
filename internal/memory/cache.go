package memory

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the full memory service surface used by the tools layer.
type Store interface {
	Searcher
	Store(ctx context.Context, namespace, content string, metadata map[string]any) (string, error)
	Get(ctx context.Context, memoryID string) (*Entry, error)
	Update(ctx context.Context, memoryID, content string, metadata map[string]any) error
	Delete(ctx context.Context, memoryID string) (bool, error)
	List(ctx context.Context, namespace string, limit int) ([]Entry, error)
	Health(ctx context.Context) bool
}

// CacheConfig holds Redis connection settings for the search cache.
type CacheConfig struct {
	URL      string
	Password string
	DB       int
	TTL      time.Duration
}

// CachedStore wraps a Client with a Redis search-result cache.
//
// The cache is strictly best-effort: if Redis is unreachable, every call
// falls through to the memory service. Writes invalidate the namespace's
// cached searches so a store-then-search round trip stays fresh.
type CachedStore struct {
	*Client
	rdb *redis.Client
	ttl time.Duration
}

// NewCachedStore wraps client with a Redis cache. Returns the bare client
// unchanged when cfg.URL is empty or invalid.
func NewCachedStore(client *Client, cfg CacheConfig) Store {
	if cfg.URL == "" {
		return client
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		log.Printf("[memory] invalid redis url, cache disabled: %v", err)
		return client
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedStore{
		Client: client,
		rdb:    redis.NewClient(opts),
		ttl:    ttl,
	}
}

func searchKey(namespace, query string, limit int) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%s|%d", namespace, query, limit)))
	return fmt.Sprintf("memsearch:%s:%x", namespace, sum)
}

// Search consults the cache before the memory service.
func (s *CachedStore) Search(ctx context.Context, namespace, query string, limit int) ([]Entry, error) {
	key := searchKey(namespace, query, limit)

	if data, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
		var entries []Entry
		if json.Unmarshal(data, &entries) == nil {
			return entries, nil
		}
	}

	entries, err := s.Client.Search(ctx, namespace, query, limit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(entries); err == nil {
		if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
			log.Printf("[memory] cache write failed: %v", err)
		}
	}
	return entries, nil
}

// Store writes through and drops the namespace's cached searches.
func (s *CachedStore) Store(ctx context.Context, namespace, content string, metadata map[string]any) (string, error) {
	id, err := s.Client.Store(ctx, namespace, content, metadata)
	if err != nil {
		return "", err
	}
	s.invalidate(ctx, namespace)
	return id, nil
}

// Update writes through and flushes cached searches. The entry's namespace
// is not recoverable from its id, so every cached search goes.
func (s *CachedStore) Update(ctx context.Context, memoryID, content string, metadata map[string]any) error {
	if err := s.Client.Update(ctx, memoryID, content, metadata); err != nil {
		return err
	}
	s.invalidate(ctx, "*")
	return nil
}

// Delete writes through and flushes cached searches.
func (s *CachedStore) Delete(ctx context.Context, memoryID string) (bool, error) {
	deleted, err := s.Client.Delete(ctx, memoryID)
	if err != nil {
		return false, err
	}
	if deleted {
		s.invalidate(ctx, "*")
	}
	return deleted, nil
}

// invalidate drops cached searches for a namespace, or for every namespace
// when called with "*".
func (s *CachedStore) invalidate(ctx context.Context, namespace string) {
	pattern := fmt.Sprintf("memsearch:%s:*", namespace)
	iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if iter.Err() != nil {
		return
	}
	if len(keys) > 0 {
		s.rdb.Del(ctx, keys...)
	}
}
