package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ryde/internal/domain"
	"ryde/internal/repository"
)

type stubVerifier map[string]string

func (v stubVerifier) Verify(token string) (string, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return "", errors.New("bad token")
}

type stubDirectory map[string]*domain.Actor

func (d stubDirectory) GetActor(_ context.Context, id string) (*domain.Actor, error) {
	if a, ok := d[id]; ok {
		return a, nil
	}
	return nil, repository.ErrNotFound
}

type memoryStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (m *memoryStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *memoryStore) Save(_ context.Context, key string, data []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = data
	return nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func fixtures() (stubVerifier, stubDirectory) {
	verifier := stubVerifier{"tok-cust": "cust-1", "tok-off": "cust-off", "tok-ghost": "ghost"}
	directory := stubDirectory{
		"cust-1":   {ID: "cust-1", Type: domain.ActorTypeCustomer, IsActive: true},
		"cust-off": {ID: "cust-off", Type: domain.ActorTypeCustomer, IsActive: false},
	}
	return verifier, directory
}

func serve(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(`{}`))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer   abc "))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken("abc"))
	assert.Empty(t, bearerToken(""))
}

func TestRequireActor(t *testing.T) {
	verifier, directory := fixtures()
	r := gin.New()
	r.GET("/me", RequireActor(verifier, directory, zap.NewNop()), func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		require.True(t, ok)
		c.String(http.StatusOK, actor.ID)
	})

	testCases := []struct {
		name   string
		header string
		code   int
	}{
		{"valid", "Bearer tok-cust", http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"invalid", "Bearer nope", http.StatusUnauthorized},
		{"unknown actor", "Bearer tok-ghost", http.StatusUnauthorized},
		{"disabled account", "Bearer tok-off", http.StatusUnauthorized},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(r, http.MethodGet, "/me", map[string]string{"Authorization": tc.header})
			assert.Equal(t, tc.code, w.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, "cust-1", w.Body.String())
			}
		})
	}
}

func TestOptionalActor(t *testing.T) {
	verifier, directory := fixtures()
	r := gin.New()
	r.GET("/ws", OptionalActor(verifier, directory), func(c *gin.Context) {
		if actor, ok := ActorFromContext(c); ok {
			c.String(http.StatusOK, actor.ID)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	assert.Equal(t, "cust-1", serve(r, http.MethodGet, "/ws", map[string]string{"Authorization": "Bearer tok-cust"}).Body.String())
	assert.Equal(t, "anonymous", serve(r, http.MethodGet, "/ws", map[string]string{"Authorization": "Bearer nope"}).Body.String())
	assert.Equal(t, "anonymous", serve(r, http.MethodGet, "/ws", nil).Body.String())
}

func TestIdempotencyMiddleware(t *testing.T) {
	verifier, directory := fixtures()
	store := &memoryStore{entries: map[string][]byte{}}
	var calls int32

	r := gin.New()
	r.Use(RequireActor(verifier, directory, zap.NewNop()), IdempotencyMiddleware(store, zap.NewNop()))
	r.POST("/rides", func(c *gin.Context) {
		n := atomic.AddInt32(&calls, 1)
		c.JSON(http.StatusCreated, gin.H{"n": n})
	})
	r.POST("/boom", func(c *gin.Context) {
		atomic.AddInt32(&calls, 1)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})

	headers := map[string]string{"Authorization": "Bearer tok-cust", "Idempotency-Key": "k1"}
	first := serve(r, http.MethodPost, "/rides", headers)
	second := serve(r, http.MethodPost, "/rides", headers)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// No key, no replay.
	serve(r, http.MethodPost, "/rides", map[string]string{"Authorization": "Bearer tok-cust"})
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	// Server errors are not stored.
	serve(r, http.MethodPost, "/boom", headers)
	serve(r, http.MethodPost, "/boom", headers)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://app.ryde.co.ke"}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/health", map[string]string{"Origin": "https://app.ryde.co.ke"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.ryde.co.ke", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodGet, "/health", map[string]string{"Origin": "https://other.example"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	open := gin.New()
	open.Use(CORSMiddleware([]string{"*"}))
	open.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = serve(open, http.MethodGet, "/health", map[string]string{"Origin": "https://other.example"})
	assert.Equal(t, "https://other.example", w.Header().Get("Access-Control-Allow-Origin"))
}
