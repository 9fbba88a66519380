package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

var errClosed = errors.New("store closed")

// MemoryCounterStore implements CounterStore using an in-memory map.
// Values are kept as strings, mirroring what Redis holds.
type MemoryCounterStore struct {
	data   map[string]*memoryItem
	mu     sync.RWMutex
	now    func() time.Time
	closed bool
	stop   chan struct{}
	logger *zap.Logger
}

type memoryItem struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (i *memoryItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && !now.Before(i.expiresAt)
}

// MemoryOption configures a MemoryCounterStore
type MemoryOption func(*MemoryCounterStore)

// WithClock replaces time.Now, mainly for tests that need to move past a TTL
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryCounterStore) {
		s.now = now
	}
}

// NewMemoryCounterStore creates a new in-memory counter store
func NewMemoryCounterStore(logger *zap.Logger, opts ...MemoryOption) *MemoryCounterStore {
	s := &MemoryCounterStore{
		data:   make(map[string]*memoryItem),
		now:    time.Now,
		stop:   make(chan struct{}),
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Start cleanup goroutine
	go s.cleanup()

	return s
}

// lookup returns the live item for key. Caller must hold the lock.
func (s *MemoryCounterStore) lookup(key string) (*memoryItem, bool) {
	item, exists := s.data[key]
	if !exists || item.expired(s.now()) {
		return nil, false
	}
	return item, true
}

// Incr implements CounterStore.Incr
func (s *MemoryCounterStore) Incr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, unavailable("incr", key, errClosed)
	}

	var current int64
	item, ok := s.lookup(key)
	if ok {
		n, err := strconv.ParseInt(item.value, 10, 64)
		if err != nil {
			return 0, unavailable("incr", key, fmt.Errorf("non-integer value %q", item.value))
		}
		current = n
	} else {
		item = &memoryItem{}
		s.data[key] = item
	}

	current++
	item.value = strconv.FormatInt(current, 10)
	return current, nil
}

// Get implements CounterStore.Get
func (s *MemoryCounterStore) Get(ctx context.Context, key string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, false, unavailable("get", key, errClosed)
	}

	item, ok := s.lookup(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(item.value, 10, 64)
	if err != nil {
		return 0, false, unavailable("get", key, fmt.Errorf("non-integer value %q", item.value))
	}
	return n, true, nil
}

// MGet implements CounterStore.MGet
func (s *MemoryCounterStore) MGet(ctx context.Context, keys []string) ([]*int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, unavailable("mget", fmt.Sprintf("%d keys", len(keys)), errClosed)
	}

	values := make([]*int64, len(keys))
	for i, key := range keys {
		item, ok := s.lookup(key)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(item.value, 10, 64)
		if err != nil {
			return nil, unavailable("mget", key, fmt.Errorf("non-integer value %q", item.value))
		}
		values[i] = &n
	}
	return values, nil
}

// SetNX implements CounterStore.SetNX
func (s *MemoryCounterStore) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, unavailable("setnx", key, errClosed)
	}

	if _, ok := s.lookup(key); ok {
		return false, nil
	}

	item := &memoryItem{value: formatValue(value)}
	if ttl > 0 {
		item.expiresAt = s.now().Add(ttl)
	}
	s.data[key] = item
	return true, nil
}

// formatValue renders value the way go-redis writes it to the wire.
func formatValue(value interface{}) string {
	if b, ok := value.(bool); ok {
		if b {
			return "1"
		}
		return "0"
	}
	return fmt.Sprint(value)
}

// Ping implements CounterStore.Ping
func (s *MemoryCounterStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return unavailable("ping", "", errClosed)
	}
	return nil
}

// Close stops the cleanup goroutine. Operations after Close fail as unavailable.
func (s *MemoryCounterStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.stop)
	return nil
}

// cleanup periodically removes expired entries
func (s *MemoryCounterStore) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			now := s.now()
			removed := 0
			for key, item := range s.data {
				if item.expired(now) {
					delete(s.data, key)
					removed++
				}
			}
			s.mu.Unlock()
			if removed > 0 {
				s.logger.Debug("removed expired keys", zap.Int("count", removed))
			}
		}
	}
}

// Size returns the number of live keys
func (s *MemoryCounterStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	n := 0
	for _, item := range s.data {
		if !item.expired(now) {
			n++
		}
	}
	return n
}
