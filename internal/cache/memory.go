package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with the same expiry semantics as the
// redis implementation. Used in tests and for local runs without redis.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry

	// now is swappable so tests can control expiry
	now func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetClock overrides the store's time source
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !ent.expiresAt.IsZero() && s.now().After(ent.expiresAt) {
		delete(s.entries, key)
		return nil, ErrNotFound
	}

	out := make([]byte, len(ent.value))
	copy(out, ent.value)
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		ent.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = ent
	return nil
}

func (s *MemoryStore) Increment(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if ok && !ent.expiresAt.IsZero() && s.now().After(ent.expiresAt) {
		delete(s.entries, key)
		ok = false
	}

	var count int64
	if ok {
		parsed, err := strconv.ParseInt(string(ent.value), 10, 64)
		if err != nil {
			return 0, err
		}
		count = parsed
	}
	count++

	s.entries[key] = memoryEntry{
		value:     []byte(strconv.FormatInt(count, 10)),
		expiresAt: ent.expiresAt,
	}
	return count, nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}
