package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/customer-be/internal/config"
	"github.com/hongminglow/customer-be/internal/storage/memory"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Port:            "0",
		Env:             "development",
		StorageDriver:   config.DriverMemory,
		JWTSecret:       "test-secret",
		JWTIssuer:       "customer-be",
		TokenExpireDays: 30,
		CORSOrigins:     []string{"http://localhost:3000"},
		PublicDir:       t.TempDir(),
		UploadMaxBytes:  1 << 20,
		BodyLimitBytes:  1 << 10,
		RateLimit: config.RateLimitConfig{
			Window:   15 * time.Minute,
			Max:      100,
			LoginMax: 5,
		},
	}
}

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	srv, err := New(cfg, Deps{Store: memory.NewStore()})
	require.NoError(t, err)
	return srv
}

func TestPipelineHeaders(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "100", rec.Header().Get("RateLimit-Limit"))
	assert.Equal(t, "99", rec.Header().Get("RateLimit-Remaining"))
}

func TestGlobalLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.Max = 2
	srv := newTestServer(t, cfg)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestBodyLimit(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	payload := `{"name":"` + strings.Repeat("a", 2<<10) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/customers", strings.NewReader(payload))
	r.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, r)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRegisterLoginAndMetrics(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	h := srv.Handler()

	post := func(path string, body map[string]string) *httptest.ResponseRecorder {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
		r.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	rec := post("/api/v1/customers", map[string]string{"name": "Ada", "email": "ada@example.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = post("/api/v1/customers/login", map[string]string{"email": "ada@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = post("/api/v1/customers/login", map[string]string{"email": "ada@example.com", "password": "bad-pass"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	metrics := httptest.NewRecorder()
	h.ServeHTTP(metrics, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, metrics.Code)

	body := metrics.Body.String()
	assert.Contains(t, body, `customer_login_attempts_total{result="success"} 1`)
	assert.Contains(t, body, `customer_login_attempts_total{result="invalid"} 1`)
	assert.Contains(t, body, `route="POST /api/v1/customers/login"`)
}

func TestPanicsBecomeServerErrors(t *testing.T) {
	// a nil store panics on first use
	srv, err := New(testConfig(t), Deps{})
	require.NoError(t, err)

	raw := `{"email":"ada@example.com","password":"secret1"}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/customers/login", strings.NewReader(raw))
	r.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, r)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Server Error")
}
