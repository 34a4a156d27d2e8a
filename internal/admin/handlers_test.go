package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ferro-labs/ai-shield/internal/cache"
	"github.com/ferro-labs/ai-shield/internal/ratelimit"
	"github.com/ferro-labs/ai-shield/internal/stats"
)

func setupTestRouter(t *testing.T) (*Handlers, chi.Router) {
	t.Helper()
	store := NewKeyStore()
	cacheStore := cache.New(cache.Options{MaxEntries: 10, DefaultTTL: time.Hour})
	t.Cleanup(cacheStore.Close)

	limiter := ratelimit.New(ratelimit.Config{Window: time.Minute, MaxRequests: 5})
	t.Cleanup(limiter.Stop)

	h := &Handlers{
		Keys:  store,
		Cache: cacheStore,
		Stats: stats.New(cacheStore, map[string]*ratelimit.Limiter{"global": limiter}),
	}
	r := chi.NewRouter()
	r.Use(AuthMiddleware(store))
	r.Mount("/admin", h.Routes())
	return h, r
}

func createAdminKey(t *testing.T, h *Handlers) *APIKey {
	t.Helper()
	key, err := h.Keys.Create("admin-key", []string{ScopeAdmin}, nil)
	if err != nil {
		t.Fatalf("failed to create admin key: %v", err)
	}
	return key
}

func createReadOnlyKey(t *testing.T, h *Handlers) *APIKey {
	t.Helper()
	key, err := h.Keys.Create("readonly-key", []string{ScopeReadOnly}, nil)
	if err != nil {
		t.Fatalf("failed to create readonly key: %v", err)
	}
	return key
}

func authedRequest(method, url string, body string, apiKey *APIKey) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, url, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey.Key)
	return req
}

func TestCreateKey(t *testing.T) {
	h, r := setupTestRouter(t)
	key := createAdminKey(t, h)

	body := `{"name":"test-key"}`
	req := authedRequest(http.MethodPost, "/admin/keys", body, key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var created APIKey
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Name != "test-key" {
		t.Errorf("got name %q, want test-key", created.Name)
	}
	if created.Key == "" {
		t.Error("expected full key string in create response")
	}
}

func TestCreateKey_RequiresName(t *testing.T) {
	h, r := setupTestRouter(t)
	key := createAdminKey(t, h)

	req := authedRequest(http.MethodPost, "/admin/keys", `{}`, key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestCreateKey_ReadOnlyForbidden(t *testing.T) {
	h, r := setupTestRouter(t)
	key := createReadOnlyKey(t, h)

	req := authedRequest(http.MethodPost, "/admin/keys", `{"name":"nope"}`, key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("got status %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestListKeys_ReadOnlyAllowed(t *testing.T) {
	h, r := setupTestRouter(t)
	key := createReadOnlyKey(t, h)

	req := authedRequest(http.MethodGet, "/admin/keys", "", key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}

	var keys []APIKey
	if err := json.Unmarshal(w.Body.Bytes(), &keys); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(keys) != 1 {
		t.Errorf("got %d keys, want 1", len(keys))
	}
}

func TestCacheStats(t *testing.T) {
	h, r := setupTestRouter(t)
	key := createReadOnlyKey(t, h)

	h.Cache.Set("abc123", cache.Value{Meta: []byte(`{"x":1}`)}, time.Hour)

	req := authedRequest(http.MethodGet, "/admin/cache/stats", "", key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var got cache.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Count != 1 {
		t.Errorf("got count %d, want 1", got.Count)
	}
}

func TestClearCache(t *testing.T) {
	h, r := setupTestRouter(t)
	key := createAdminKey(t, h)

	h.Cache.Set("abc123", cache.Value{Meta: []byte(`{}`)}, time.Hour)
	h.Cache.Set("def456", cache.Value{Meta: []byte(`{}`)}, time.Hour)

	req := authedRequest(http.MethodDelete, "/admin/cache", "", key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	if h.Cache.Len() != 0 {
		t.Errorf("cache has %d entries after clear, want 0", h.Cache.Len())
	}

	var body struct {
		Status  string `json:"status"`
		Removed int    `json:"removed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Removed != 2 {
		t.Errorf("got removed %d, want 2", body.Removed)
	}
}

func TestClearCache_ReadOnlyForbidden(t *testing.T) {
	h, r := setupTestRouter(t)
	key := createReadOnlyKey(t, h)

	req := authedRequest(http.MethodDelete, "/admin/cache", "", key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("got status %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestDeleteCacheEntry(t *testing.T) {
	h, r := setupTestRouter(t)
	key := createAdminKey(t, h)

	h.Cache.Set("abc123", cache.Value{Meta: []byte(`{}`)}, time.Hour)

	req := authedRequest(http.MethodDelete, "/admin/cache/abc123", "", key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusNoContent)
	}
	if _, ok := h.Cache.Get("abc123"); ok {
		t.Error("entry still present after delete")
	}
}

func TestRateLimitStats(t *testing.T) {
	h, r := setupTestRouter(t)
	key := createReadOnlyKey(t, h)

	req := authedRequest(http.MethodGet, "/admin/ratelimit/stats", "", key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}

	var body struct {
		RateLimits map[string]ratelimit.Stats `json:"rate_limits"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := body.RateLimits["global"]; !ok {
		t.Error("expected global limiter stats in response")
	}
}

func TestListLogs_NotEnabled(t *testing.T) {
	h, r := setupTestRouter(t)
	key := createReadOnlyKey(t, h)

	req := authedRequest(http.MethodGet, "/admin/logs", "", key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotImplemented {
		t.Errorf("got status %d, want %d", w.Code, http.StatusNotImplemented)
	}
}

func TestDashboard(t *testing.T) {
	h, r := setupTestRouter(t)
	key := createReadOnlyKey(t, h)

	req := authedRequest(http.MethodGet, "/admin/dashboard", "", key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	for _, field := range []string{"keys", "cache", "rate_limits", "request_logs"} {
		if _, ok := body[field]; !ok {
			t.Errorf("dashboard response missing %q", field)
		}
	}
}

func TestRevokeKeyEndpoint(t *testing.T) {
	h, r := setupTestRouter(t)
	key := createAdminKey(t, h)
	victim, _ := h.Keys.Create("victim", nil, nil)

	req := authedRequest(http.MethodPost, "/admin/keys/"+victim.ID+"/revoke", "", key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	if _, ok := h.Keys.ValidateKey(victim.Key); ok {
		t.Error("expected revoked key to fail validation")
	}
}

func TestUnauthenticated(t *testing.T) {
	_, r := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/keys", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
