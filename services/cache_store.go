package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryItem struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

// memoryStore is the in-process fallback backend.
type memoryStore struct {
	items sync.Map
}

func newMemoryStore() *memoryStore {
	return &memoryStore{}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, ok := m.items.Load(key)
	if !ok {
		return nil, false, nil
	}

	item := val.(*memoryItem)
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		m.items.CompareAndDelete(key, val)
		return nil, false, nil
	}
	return item.data, true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	item := &memoryItem{data: value}
	if ttl > 0 {
		item.expiresAt = time.Now().Add(ttl)
	}
	m.items.Store(key, item)
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.items.Delete(key)
	return nil
}

func (m *memoryStore) Clear(_ context.Context, prefix string) (int, error) {
	deleted := 0
	m.items.Range(func(key, _ interface{}) bool {
		if strings.HasPrefix(key.(string), prefix) {
			m.items.Delete(key)
			deleted++
		}
		return true
	})
	return deleted, nil
}

func (m *memoryStore) Len() int {
	n := 0
	m.items.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// each visits every live item with its remaining ttl (0 for no expiry).
func (m *memoryStore) each(fn func(key string, data []byte, ttl time.Duration)) {
	now := time.Now()
	m.items.Range(func(key, value interface{}) bool {
		item := value.(*memoryItem)
		var ttl time.Duration
		if !item.expiresAt.IsZero() {
			ttl = item.expiresAt.Sub(now)
			if ttl <= 0 {
				return true
			}
		}
		fn(key.(string), item.data, ttl)
		return true
	})
}

// redisStore is the shared backend used while Redis is reachable.
type redisStore struct {
	client *redis.Client
}

func newRedisStore(client *redis.Client) *redisStore {
	return &redisStore{client: client}
}

func (r *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (r *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return r.client.Del(ctx, key).Err()
}

func (r *redisStore) Clear(ctx context.Context, prefix string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Use SCAN to find and delete our keys
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("redis del %s: %w", iter.Val(), err)
		}
		deleted++
	}
	return deleted, iter.Err()
}

func (r *redisStore) DBSize(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return r.client.DBSize(ctx).Result()
}

// layeredStore reads through a fast store to a slower persistent one and
// backfills the fast store on a slow hit. Writes go to both.
type layeredStore struct {
	fast CacheStore
	slow CacheStore
	ttl  time.Duration
}

func newLayeredStore(fast, slow CacheStore, ttl time.Duration) *layeredStore {
	return &layeredStore{fast: fast, slow: slow, ttl: ttl}
}

func (l *layeredStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := l.fast.Get(ctx, key)
	if err == nil && ok {
		return data, true, nil
	}

	data, ok, err = l.slow.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}

	if err := l.fast.Set(ctx, key, data, l.ttl); err != nil {
		log.Printf("⚠️  Cache backfill failed for %s: %v", key, err)
	}
	return data, true, nil
}

func (l *layeredStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.Join(
		l.fast.Set(ctx, key, value, ttl),
		l.slow.Set(ctx, key, value, ttl),
	)
}

func (l *layeredStore) Delete(ctx context.Context, key string) error {
	return errors.Join(
		l.fast.Delete(ctx, key),
		l.slow.Delete(ctx, key),
	)
}

func (l *layeredStore) Clear(ctx context.Context, prefix string) (int, error) {
	nFast, errFast := l.fast.Clear(ctx, prefix)
	nSlow, errSlow := l.slow.Clear(ctx, prefix)
	return nFast + nSlow, errors.Join(errFast, errSlow)
}
