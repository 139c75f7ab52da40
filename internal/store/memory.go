package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	hash      map[string]string
	str       *string
	expiresAt time.Time
}

// MemoryStore is an in-process Store used by tests and by STORE_URL=memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     now,
	}
}

// live returns the entry at key, dropping it first if it expired.
// Callers hold s.mu.
func (s *MemoryStore) live(key string) *memoryEntry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return nil
	}
	return e
}

func (s *MemoryStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		e = &memoryEntry{hash: make(map[string]string, len(fields))}
		s.entries[key] = e
	}
	if e.hash == nil {
		return ErrWrongType
	}
	for f, v := range fields {
		e.hash[f] = v
	}
	return nil
}

func (s *MemoryStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string)
	e := s.live(key)
	if e == nil {
		return out, nil
	}
	if e.hash == nil {
		return nil, ErrWrongType
	}
	for f, v := range e.hash {
		out[f] = v
	}
	return out, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &memoryEntry{str: &value}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		return "", ErrNotFound
	}
	if e.str == nil {
		return "", ErrWrongType
	}
	return *e.str, nil
}

func (s *MemoryStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live(key) != nil {
		return false, nil
	}
	e := &memoryEntry{str: &value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return true, nil
}

func (s *MemoryStore) Del(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}

func (s *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0)
	for k := range s.entries {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if s.live(k) != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		return nil
	}
	if ttl <= 0 {
		e.expiresAt = time.Time{}
		return nil
	}
	e.expiresAt = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close() {}
