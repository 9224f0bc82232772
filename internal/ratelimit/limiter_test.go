package ratelimit

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
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.now = clock.Now
	return store, clock
}

func TestMemoryStoreSlidingWindow(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore()
	window := 15 * time.Minute

	for i := 0; i < 3; i++ {
		res, err := store.Take(ctx, "k", 3, window)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
		clock.Advance(time.Minute)
	}

	res, err := store.Take(ctx, "k", 3, window)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Empty(t, res.HitID)
	assert.Equal(t, clock.Now().Add(-3*time.Minute).Add(window), res.ResetAt)

	// the first hit leaves the window 15 minutes after it was recorded
	clock.Advance(12 * time.Minute)
	res, err = store.Take(ctx, "k", 3, window)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	_, err := store.Take(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	res, err := store.Take(ctx, "b", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestMemoryStoreRelease(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	first, err := store.Take(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "k", first.HitID))

	again, err := store.Take(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, again.Allowed)

	require.NoError(t, store.Release(ctx, "missing", "nope"))
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore()

	_, err := store.Take(ctx, "a", 5, time.Minute)
	require.NoError(t, err)
	_, err = store.Take(ctx, "b", 5, time.Hour)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	store.Sweep()
	assert.Equal(t, 1, store.keys())
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.7:5123"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "10.0.0.7", ClientIP(r, false))
	assert.Equal(t, "203.0.113.9", ClientIP(r, true))

	r.Header.Del("X-Forwarded-For")
	assert.Equal(t, "10.0.0.7", ClientIP(r, true))
}

type countingRecorder struct {
	hits map[string]int
}

func (c *countingRecorder) RateLimited(name string) {
	if c.hits == nil {
		c.hits = map[string]int{}
	}
	c.hits[name]++
}

func TestLimiterRejectsOverLimit(t *testing.T) {
	store, _ := newTestStore()
	rec := &countingRecorder{}
	calls := 0
	lim := &Limiter{
		Name:     "global",
		Limit:    2,
		Window:   15 * time.Minute,
		Message:  "Too many requests from this IP, please try again later.",
		Store:    store,
		Recorder: rec,
	}
	h := lim.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		h.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/", nil))
	}

	assert.Equal(t, 2, calls)
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
	assert.Equal(t, "2", last.Header().Get("RateLimit-Limit"))
	assert.Equal(t, "0", last.Header().Get("RateLimit-Remaining"))
	assert.Equal(t, 1, rec.hits["global"])

	var body map[string]any
	require.NoError(t, json.Unmarshal(last.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Too many requests from this IP, please try again later.", body["message"])
}

func TestLimiterSkipSuccessful(t *testing.T) {
	store, _ := newTestStore()
	status := http.StatusOK
	lim := &Limiter{
		Name:           "login",
		Limit:          2,
		Window:         15 * time.Minute,
		Message:        "Too many login attempts, please try again after 15 minutes.",
		SkipSuccessful: true,
		Store:          store,
	}
	h := lim.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	serve := func() int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
		return rec.Code
	}

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(), "successful requests are not counted")
	}

	status = http.StatusUnauthorized
	assert.Equal(t, http.StatusUnauthorized, serve())
	assert.Equal(t, http.StatusUnauthorized, serve())
	assert.Equal(t, http.StatusTooManyRequests, serve())

	status = http.StatusOK
	assert.Equal(t, http.StatusTooManyRequests, serve(), "correct credentials are refused while locked")
}

type failingStore struct{}

func (failingStore) Take(context.Context, string, int, time.Duration) (Result, error) {
	return Result{}, errors.New("store down")
}

func (failingStore) Release(context.Context, string, string) error { return nil }

func TestLimiterFailsOpen(t *testing.T) {
	lim := &Limiter{Name: "global", Limit: 1, Window: time.Minute, Store: failingStore{}}
	h := lim.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
