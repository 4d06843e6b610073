package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	mw "github.com/devarsh/jobfleet/internal/api/middleware"
	"github.com/devarsh/jobfleet/internal/cache"
	"github.com/devarsh/jobfleet/internal/store"
	"github.com/devarsh/jobfleet/pkg/models"
)

const testRawKey = "jf_0123456789abcdef0123456789abcdef"

func testKeyHash(t *testing.T) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(testRawKey), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

// ─── mock store ──────────────────────────────────────────────────────────────

type mockStore struct {
	keys   []*models.APIKey
	getErr error
}

func (s *mockStore) Ping(_ context.Context) error { return nil }

func (s *mockStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *mockStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (s *mockStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	s.keys = append(s.keys, key)
	return nil
}
func (s *mockStore) ListAPIKeys(_ context.Context) ([]*models.APIKey, error) { return s.keys, nil }
func (s *mockStore) RevokeAPIKey(_ context.Context, _ uuid.UUID) error       { return nil }

var _ store.Store = (*mockStore)(nil)

// ─── mock cache ──────────────────────────────────────────────────────────────

type mockCache struct {
	counters map[string]int64
	incrErr  error
}

func newMockCache() *mockCache {
	return &mockCache{counters: make(map[string]int64)}
}

func (c *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *mockCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *mockCache) Ping(_ context.Context) error                                     { return nil }

func (c *mockCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	if c.incrErr != nil {
		return 0, c.incrErr
	}
	c.counters[key]++
	return c.counters[key], nil
}

var _ cache.Cache = (*mockCache)(nil)

// ─── helpers ─────────────────────────────────────────────────────────────────

func storeWithKey(t *testing.T, scopes ...string) *mockStore {
	t.Helper()
	if len(scopes) == 0 {
		scopes = []string{"jobs"}
	}
	return &mockStore{keys: []*models.APIKey{{
		ID:        uuid.New(),
		Name:      "test-key",
		KeyHash:   testKeyHash(t),
		KeyPrefix: testRawKey[:8],
		Scopes:    scopes,
	}}}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func authedRequest(key string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/x", nil)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	return req
}

// ─── auth tests ──────────────────────────────────────────────────────────────

func TestAuthenticateValidKey(t *testing.T) {
	auth := mw.NewAuth(storeWithKey(t))

	var gotPrefix string
	handler := auth.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrefix, _ = mw.GetKeyPrefix(r)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(testRawKey))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testRawKey[:8], gotPrefix)
}

func TestAuthenticateMissingHeader(t *testing.T) {
	auth := mw.NewAuth(storeWithKey(t))
	rec := httptest.NewRecorder()
	auth.Authenticate(okHandler()).ServeHTTP(rec, authedRequest(""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateMalformedHeader(t *testing.T) {
	auth := mw.NewAuth(storeWithKey(t))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	auth.Authenticate(okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateWrongKey(t *testing.T) {
	auth := mw.NewAuth(storeWithKey(t))
	rec := httptest.NewRecorder()
	// Same prefix, different secret. bcrypt comparison must reject it.
	auth.Authenticate(okHandler()).ServeHTTP(rec, authedRequest(testRawKey[:8]+"wrongsecretwrongsecret"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateShortKey(t *testing.T) {
	auth := mw.NewAuth(storeWithKey(t))
	rec := httptest.NewRecorder()
	auth.Authenticate(okHandler()).ServeHTTP(rec, authedRequest("jf_1"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateStoreError(t *testing.T) {
	auth := mw.NewAuth(&mockStore{getErr: errors.New("db down")})
	rec := httptest.NewRecorder()
	auth.Authenticate(okHandler()).ServeHTTP(rec, authedRequest(testRawKey))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequireScope(t *testing.T) {
	auth := mw.NewAuth(storeWithKey(t, "jobs", "admin"))
	handler := auth.Authenticate(auth.RequireScope("admin")(okHandler()))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(testRawKey))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireScopeMissing(t *testing.T) {
	auth := mw.NewAuth(storeWithKey(t, "jobs"))
	handler := auth.Authenticate(auth.RequireScope("admin")(okHandler()))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(testRawKey))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// ─── rate limit tests ────────────────────────────────────────────────────────

func TestRateLimitAllowsUnderLimit(t *testing.T) {
	auth := mw.NewAuth(storeWithKey(t))
	rl := mw.NewRateLimit(newMockCache(), 5)
	handler := auth.Authenticate(rl.Limit(okHandler()))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(testRawKey))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}
}

func TestRateLimitBlocksOverLimit(t *testing.T) {
	auth := mw.NewAuth(storeWithKey(t))
	rl := mw.NewRateLimit(newMockCache(), 2)
	handler := auth.Authenticate(rl.Limit(okHandler()))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(testRawKey))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(testRawKey))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitFailsOpenOnCacheError(t *testing.T) {
	auth := mw.NewAuth(storeWithKey(t))
	broken := newMockCache()
	broken.incrErr = errors.New("redis down")
	rl := mw.NewRateLimit(broken, 1)
	handler := auth.Authenticate(rl.Limit(okHandler()))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(testRawKey))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimitWithoutAuthPassesThrough(t *testing.T) {
	rl := mw.NewRateLimit(newMockCache(), 1)
	rec := httptest.NewRecorder()
	rl.Limit(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
