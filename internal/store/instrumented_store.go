package store

import (
	"context"
	"time"
)

// OpRecorder receives timing and outcome for each store call
type OpRecorder interface {
	RecordStoreOp(operation string, err error, duration time.Duration)
}

// InstrumentedStore wraps a CounterStore and reports every call to an OpRecorder
type InstrumentedStore struct {
	next     CounterStore
	recorder OpRecorder
}

// NewInstrumentedStore creates a new instrumented store
func NewInstrumentedStore(next CounterStore, recorder OpRecorder) *InstrumentedStore {
	return &InstrumentedStore{next: next, recorder: recorder}
}

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	s.recorder.RecordStoreOp(op, err, time.Since(start))
}

// Incr implements CounterStore.Incr
func (s *InstrumentedStore) Incr(ctx context.Context, key string) (int64, error) {
	start := time.Now()
	n, err := s.next.Incr(ctx, key)
	s.observe("incr", start, err)
	return n, err
}

// Get implements CounterStore.Get
func (s *InstrumentedStore) Get(ctx context.Context, key string) (int64, bool, error) {
	start := time.Now()
	n, found, err := s.next.Get(ctx, key)
	s.observe("get", start, err)
	return n, found, err
}

// MGet implements CounterStore.MGet
func (s *InstrumentedStore) MGet(ctx context.Context, keys []string) ([]*int64, error) {
	start := time.Now()
	values, err := s.next.MGet(ctx, keys)
	s.observe("mget", start, err)
	return values, err
}

// SetNX implements CounterStore.SetNX
func (s *InstrumentedStore) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	start := time.Now()
	set, err := s.next.SetNX(ctx, key, value, ttl)
	s.observe("setnx", start, err)
	return set, err
}

// Ping implements CounterStore.Ping
func (s *InstrumentedStore) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.next.Ping(ctx)
	s.observe("ping", start, err)
	return err
}

// Close implements CounterStore.Close
func (s *InstrumentedStore) Close() error {
	return s.next.Close()
}
