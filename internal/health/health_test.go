package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePinger struct {
	mu  sync.Mutex
	err error
}

func (p *fakePinger) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *fakePinger) set(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

type recordingSink struct {
	mu     sync.Mutex
	states []bool
}

func (s *recordingSink) SetHealthStatus(healthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, healthy)
}

func (s *recordingSink) last() (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.states) == 0 {
		return false, false
	}
	return s.states[len(s.states)-1], true
}

func newTestHealthCheck(t *testing.T, pinger Pinger, sink StatusSink) *HealthCheck {
	t.Helper()
	hc := newHealthCheck(pinger, sink, zap.NewNop(), time.Hour)
	t.Cleanup(hc.Stop)
	return hc
}

func TestHealthCheck_LivenessHandler(t *testing.T) {
	hc := newTestHealthCheck(t, &fakePinger{err: errors.New("down")}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	hc.LivenessHandler(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestHealthCheck_ReadinessHandler(t *testing.T) {
	t.Run("store reachable", func(t *testing.T) {
		sink := &recordingSink{}
		hc := newTestHealthCheck(t, &fakePinger{}, sink)
		assert.False(t, hc.IsReady())

		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		w := httptest.NewRecorder()
		hc.ReadinessHandler(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ready", resp.Status)
		assert.Equal(t, "healthy", resp.Checks["store"])
		assert.True(t, hc.IsReady())

		healthy, ok := sink.last()
		require.True(t, ok)
		assert.True(t, healthy)
	})

	t.Run("store unreachable", func(t *testing.T) {
		sink := &recordingSink{}
		hc := newTestHealthCheck(t, &fakePinger{err: errors.New("connection refused")}, sink)

		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		w := httptest.NewRecorder()
		hc.ReadinessHandler(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var resp ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "not_ready", resp.Status)
		assert.Equal(t, "unhealthy", resp.Checks["store"])
		assert.Contains(t, resp.Error, "connection refused")

		healthy, ok := sink.last()
		require.True(t, ok)
		assert.False(t, healthy)
	})

	t.Run("already ready skips the ping", func(t *testing.T) {
		hc := newTestHealthCheck(t, &fakePinger{err: errors.New("down")}, nil)
		hc.SetReady(true)

		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		w := httptest.NewRecorder()
		hc.ReadinessHandler(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestHealthCheck_BackgroundCheck(t *testing.T) {
	pinger := &fakePinger{}
	hc := newHealthCheck(pinger, nil, zap.NewNop(), 10*time.Millisecond)
	defer hc.Stop()

	assert.Eventually(t, hc.IsReady, time.Second, 5*time.Millisecond)

	pinger.set(errors.New("down"))
	assert.Eventually(t, func() bool { return !hc.IsReady() }, time.Second, 5*time.Millisecond)
}

func TestHealthCheck_SetReady(t *testing.T) {
	hc := newTestHealthCheck(t, &fakePinger{}, nil)

	assert.False(t, hc.IsReady())
	hc.SetReady(true)
	assert.True(t, hc.IsReady())
	hc.SetReady(false)
	assert.False(t, hc.IsReady())

	hc.Stop()
	hc.Stop()
}
