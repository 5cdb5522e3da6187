package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMemorySize = 1024

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a bounded in-process store. Expiry is checked lazily on read,
// and LRU pressure may evict entries before their TTL.
type MemoryStore struct {
	entries *lru.Cache[string, memEntry]
	now     func() time.Time
}

// NewMemoryStore returns a store holding at most size entries.
func NewMemoryStore(size int) *MemoryStore {
	if size <= 0 {
		size = defaultMemorySize
	}
	entries, err := lru.New[string, memEntry](size)
	if err != nil {
		// lru.New only fails for a non-positive size.
		panic(err)
	}
	return &MemoryStore{entries: entries, now: time.Now}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := s.entries.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	if !s.now().Before(e.expiresAt) {
		s.entries.Remove(key)
		return nil, ErrMiss
	}
	return append([]byte(nil), e.value...), nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.entries.Add(key, memEntry{value: append([]byte(nil), value...), expiresAt: s.now().Add(ttl)})
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.entries.Remove(key)
	return nil
}

func (s *MemoryStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	n := 0
	for _, k := range s.entries.Keys() {
		if matchPattern(pattern, k) && s.entries.Remove(k) {
			n++
		}
	}
	return n, nil
}

// Len reports the number of entries, expired ones included.
func (s *MemoryStore) Len() int { return s.entries.Len() }
