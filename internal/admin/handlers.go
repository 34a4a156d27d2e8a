// Package admin provides HTTP handlers for the gateway administration API.
// Routes expose cache inspection and purging, rate-limit statistics, request
// log access, and API key management. All admin routes are protected by
// bearer-token authentication via AuthMiddleware.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ferro-labs/ai-shield/internal/cache"
	"github.com/ferro-labs/ai-shield/internal/requestlog"
	"github.com/ferro-labs/ai-shield/internal/stats"
)

// LogReader reads back persisted request log entries.
// The requestlog SQLWriter implements this interface.
type LogReader interface {
	Recent(ctx context.Context, limit int) ([]requestlog.Entry, error)
}

// LogMaintainer deletes old request log entries.
type LogMaintainer interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// BreakerSource reports circuit breaker states keyed by upstream name.
type BreakerSource interface {
	States() map[string]string
}

// Handlers holds dependencies for admin HTTP handlers.
type Handlers struct {
	Keys     Store
	Cache    *cache.Store
	Stats    *stats.Collector
	Logs     LogReader
	LogAdmin LogMaintainer
	Breakers BreakerSource
}

// Routes returns a chi.Router with all admin endpoints mounted.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()

	// Read-only endpoints (accessible with read-only or admin scope).
	r.Group(func(r chi.Router) {
		r.Use(RequireScope(ScopeReadOnly, ScopeAdmin))
		r.Get("/dashboard", h.dashboard)
		r.Get("/cache/stats", h.cacheStats)
		r.Get("/ratelimit/stats", h.rateLimitStats)
		r.Get("/breakers", h.breakerStates)
		r.Get("/logs", h.listLogs)
		r.Get("/keys", h.listKeys)
		r.Get("/keys/{id}", h.getKey)
	})

	// Write endpoints (admin scope only).
	r.Group(func(r chi.Router) {
		r.Use(RequireScope(ScopeAdmin))
		r.Delete("/cache", h.clearCache)
		r.Delete("/cache/{key}", h.deleteCacheEntry)
		r.Delete("/logs", h.purgeLogs)
		r.Post("/keys", h.createKey)
		r.Put("/keys/{id}", h.updateKey)
		r.Delete("/keys/{id}", h.deleteKey)
		r.Post("/keys/{id}/revoke", h.revokeKey)
		r.Post("/keys/{id}/rotate", h.rotateKey)
	})

	return r
}

func (h *Handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	keys := h.Keys.List()
	activeKeys := 0
	now := time.Now().UTC()
	expiredKeys := 0
	for _, key := range keys {
		if key.Active {
			activeKeys++
		}
		if key.ExpiresAt != nil && key.ExpiresAt.Before(now) {
			expiredKeys++
		}
	}

	body := map[string]interface{}{
		"keys": map[string]interface{}{
			"total":   len(keys),
			"active":  activeKeys,
			"expired": expiredKeys,
		},
		"request_logs": map[string]interface{}{
			"enabled": h.Logs != nil,
		},
	}
	if h.Stats != nil {
		snap := h.Stats.Snapshot()
		body["generated_at"] = snap.GeneratedAt
		body["cache"] = snap.Cache
		body["rate_limits"] = snap.RateLimits
	}
	if h.Breakers != nil {
		body["breakers"] = h.Breakers.States()
	}

	writeJSON(w, http.StatusOK, body)
}

func (h *Handlers) cacheStats(w http.ResponseWriter, _ *http.Request) {
	if h.Cache == nil {
		writeError(w, http.StatusNotImplemented, "response cache is not enabled", "not_implemented_error", "not_implemented")
		return
	}
	writeJSON(w, http.StatusOK, h.Cache.Stats())
}

func (h *Handlers) clearCache(w http.ResponseWriter, _ *http.Request) {
	if h.Cache == nil {
		writeError(w, http.StatusNotImplemented, "response cache is not enabled", "not_implemented_error", "not_implemented")
		return
	}
	removed := h.Cache.Len()
	h.Cache.Clear()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "cleared",
		"removed": removed,
	})
}

func (h *Handlers) deleteCacheEntry(w http.ResponseWriter, r *http.Request) {
	if h.Cache == nil {
		writeError(w, http.StatusNotImplemented, "response cache is not enabled", "not_implemented_error", "not_implemented")
		return
	}
	key := chi.URLParam(r, "key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "cache key is required", "invalid_request_error", "invalid_request")
		return
	}
	h.Cache.Delete(key)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) rateLimitStats(w http.ResponseWriter, _ *http.Request) {
	if h.Stats == nil {
		writeError(w, http.StatusNotImplemented, "rate limit statistics are not enabled", "not_implemented_error", "not_implemented")
		return
	}
	snap := h.Stats.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"generated_at": snap.GeneratedAt,
		"rate_limits":  snap.RateLimits,
	})
}

func (h *Handlers) breakerStates(w http.ResponseWriter, _ *http.Request) {
	if h.Breakers == nil {
		writeError(w, http.StatusNotImplemented, "circuit breakers are not enabled", "not_implemented_error", "not_implemented")
		return
	}
	writeJSON(w, http.StatusOK, h.Breakers.States())
}

func (h *Handlers) listLogs(w http.ResponseWriter, r *http.Request) {
	if h.Logs == nil {
		writeError(w, http.StatusNotImplemented, "request log storage is not enabled", "not_implemented_error", "not_implemented")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit: must be a positive integer", "invalid_request_error", "invalid_request")
			return
		}
		if parsed > 200 {
			parsed = 200
		}
		limit = parsed
	}

	entries, err := h.Logs.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load request logs", "server_error", "internal_error")
		return
	}
	if entries == nil {
		entries = []requestlog.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  entries,
		"limit": limit,
	})
}

func (h *Handlers) purgeLogs(w http.ResponseWriter, r *http.Request) {
	if h.LogAdmin == nil {
		writeError(w, http.StatusNotImplemented, "request log storage is not enabled", "not_implemented_error", "not_implemented")
		return
	}

	raw := r.URL.Query().Get("before")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "before is required", "invalid_request_error", "invalid_request")
		return
	}
	before, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid before: must be RFC3339 format", "invalid_request_error", "invalid_request")
		return
	}

	deleted, err := h.LogAdmin.Purge(r.Context(), before)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to purge request logs", "server_error", "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "purged",
		"deleted": deleted,
	})
}

func (h *Handlers) createKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name      string   `json:"name"`
		Scopes    []string `json:"scopes"`
		ExpiresAt string   `json:"expires_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "invalid_request_error", "invalid_request")
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", "invalid_request_error", "invalid_request")
		return
	}

	var expiresAt *time.Time
	if body.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, body.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid expires_at: must be RFC3339 format", "invalid_request_error", "invalid_request")
			return
		}
		expiresAt = &t
	}

	key, err := h.Keys.Create(body.Name, body.Scopes, expiresAt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "server_error", "internal_error")
		return
	}
	writeJSON(w, http.StatusCreated, key)
}

func (h *Handlers) listKeys(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Keys.List())
}

func (h *Handlers) getKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	key, ok := h.Keys.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "key not found", "not_found_error", "resource_not_found")
		return
	}

	masked := *key
	if len(masked.Key) > 8 {
		masked.Key = masked.Key[:8] + "..."
	}
	writeJSON(w, http.StatusOK, masked)
}

func (h *Handlers) updateKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Name            string   `json:"name"`
		Scopes          []string `json:"scopes"`
		ExpiresAt       string   `json:"expires_at"`
		ClearExpiration bool     `json:"clear_expiration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "invalid_request_error", "invalid_request")
		return
	}

	key, err := h.Keys.Update(id, body.Name, body.Scopes)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error(), "not_found_error", "resource_not_found")
		return
	}

	if body.ClearExpiration {
		if err := h.Keys.SetExpiration(id, nil); err != nil {
			writeError(w, http.StatusNotFound, err.Error(), "not_found_error", "resource_not_found")
			return
		}
		key.ExpiresAt = nil
	} else if body.ExpiresAt != "" {
		expiresAt, parseErr := time.Parse(time.RFC3339, body.ExpiresAt)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid expires_at: must be RFC3339 format", "invalid_request_error", "invalid_request")
			return
		}
		if err := h.Keys.SetExpiration(id, &expiresAt); err != nil {
			writeError(w, http.StatusNotFound, err.Error(), "not_found_error", "resource_not_found")
			return
		}
		t := expiresAt
		key.ExpiresAt = &t
	}

	writeJSON(w, http.StatusOK, key)
}

func (h *Handlers) deleteKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Keys.Delete(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error(), "not_found_error", "resource_not_found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) revokeKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Keys.Revoke(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error(), "not_found_error", "resource_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (h *Handlers) rotateKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	key, err := h.Keys.RotateKey(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error(), "not_found_error", "resource_not_found")
		return
	}
	writeJSON(w, http.StatusOK, key)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
