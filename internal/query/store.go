package query

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Entry is one cached query result.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
	Stale     bool            `json:"stale"`
}

// epochRetention is how long an untouched namespace epoch is kept. It must
// outlive any single fetch, retries included.
const epochRetention = 24 * time.Hour

// Store persists cache entries. Entries expire gcTime after their last write.
//
// Every key belongs to a namespace, "entity:scope". Writers bump the
// namespace epoch before touching its entries; SetIfEpoch stores a fetched
// result only if the epoch read before the fetch is still current, so a
// fetch that raced a write never lands in the cache.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)

	Epoch(ctx context.Context, ns string) (uint64, error)
	BumpEpoch(ctx context.Context, ns string) error
	SetIfEpoch(ctx context.Context, key, ns string, epoch uint64, e Entry) (bool, error)
}

type memItem struct {
	entry   Entry
	expires time.Time
}

type memEpoch struct {
	value   uint64
	touched time.Time
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu     sync.Mutex
	items  map[string]memItem
	epochs map[string]memEpoch
	gcTime time.Duration
	now    func() time.Time
}

// NewMemoryStore returns a store evicting entries gcTime after their last
// write. A zero gcTime keeps entries until they are deleted.
func NewMemoryStore(gcTime time.Duration) *MemoryStore {
	return &MemoryStore{
		items:  make(map[string]memItem),
		epochs: make(map[string]memEpoch),
		gcTime: gcTime,
		now:    time.Now,
	}
}

func (s *MemoryStore) expired(it memItem, now time.Time) bool {
	return !it.expires.IsZero() && now.After(it.expires)
}

func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[key]
	if !ok {
		return Entry{}, false, nil
	}
	if s.expired(it, s.now()) {
		delete(s.items, key)
		return Entry{}, false, nil
	}
	return it.entry, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(key, e)
	return nil
}

func (s *MemoryStore) set(key string, e Entry) {
	it := memItem{entry: e}
	if s.gcTime > 0 {
		it.expires = s.now().Add(s.gcTime)
	}
	s.items[key] = it
}

func (s *MemoryStore) Epoch(_ context.Context, ns string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epochs[ns].value, nil
}

func (s *MemoryStore) BumpEpoch(_ context.Context, ns string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep := s.epochs[ns]
	s.epochs[ns] = memEpoch{value: ep.value + 1, touched: s.now()}
	return nil
}

func (s *MemoryStore) SetIfEpoch(_ context.Context, key, ns string, epoch uint64, e Entry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epochs[ns].value != epoch {
		return false, nil
	}
	s.set(key, e)
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.items, k)
	}
	return nil
}

func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var keys []string
	for k, it := range s.items {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if s.expired(it, now) {
			delete(s.items, k)
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Sweep drops expired entries and returns how many were removed. Epochs
// untouched for epochRetention are dropped too.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for k, it := range s.items {
		if s.expired(it, now) {
			delete(s.items, k)
			n++
		}
	}
	for ns, ep := range s.epochs {
		if now.Sub(ep.touched) > epochRetention {
			delete(s.epochs, ns)
		}
	}
	return n
}

// RunJanitor sweeps every interval until ctx is done.
func (s *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
