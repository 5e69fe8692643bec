package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zxcv8096-dotcom/line-tool/fault"
)

type memEntry struct {
	value   string
	expires time.Time // zero means no expiry
}

// MemStore is an in-process Store used in tests and local runs. Expired
// entries are dropped lazily on access.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]memEntry
	now  func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		data: make(map[string]memEntry),
		now:  time.Now,
	}
}

// SetClock overrides the store's clock. Test hook for expiry behavior.
func (s *MemStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok {
		return "", fault.ErrNotFound
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.data, key)
		return "", fault.ErrNotFound
	}
	return e.value, nil
}

func (s *MemStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memEntry{value: value}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.data[key] = e
	return nil
}

func (s *MemStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemStore) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	now := s.now()
	for k, e := range s.data {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(s.data, k)
			continue
		}
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}

// TTL reports the remaining lifetime of a key. Test helper; zero duration
// with ok=true means the key never expires.
func (s *MemStore) TTL(key string) (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok {
		return 0, false
	}
	if e.expires.IsZero() {
		return 0, true
	}
	return e.expires.Sub(s.now()), true
}
