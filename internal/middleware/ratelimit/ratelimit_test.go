package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *clock) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl.now = c.now
	return rl, c
}

func TestLimiter_Allow(t *testing.T) {
	rl, c := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("a"), "request %d", i+1)
	}
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "clients are limited independently")

	c.advance(time.Minute)
	assert.True(t, rl.Allow("a"), "a new window starts after a minute")
	assert.Equal(t, int64(1), rl.GetMetrics().Rejected)
}

func TestLimiter_RejectedRequestsDoNotExtendWindow(t *testing.T) {
	rl, c := newTestLimiter(t, 1)

	assert.True(t, rl.Allow("a"))
	c.advance(30 * time.Second)
	assert.False(t, rl.Allow("a"))
	c.advance(30 * time.Second)
	assert.True(t, rl.Allow("a"))
}

func TestLimiter_CleanupStaleEntries(t *testing.T) {
	rl, c := newTestLimiter(t, 5)
	rl.Allow("old")
	c.advance(11 * time.Minute)
	rl.Allow("fresh")

	assert.Equal(t, 1, rl.cleanupStaleEntries())
	assert.Equal(t, 1, rl.ActiveClients())
}

func TestLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	h := rl.Middleware(func(*http.Request) string { return "client" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestLimiter_StopTwice(t *testing.T) {
	rl := NewLimiter(Config{})
	assert.NotPanics(t, func() {
		rl.Stop()
		rl.Stop()
	})
}
