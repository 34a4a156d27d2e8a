package main

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	aishield "github.com/ferro-labs/ai-shield"
	"github.com/ferro-labs/ai-shield/internal/admin"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := aishield.DefaultConfig()
	cfg.Cache.Storage = aishield.CacheStorageNone
	cfg.Upstreams.Mode = aishield.UpstreamModeSandbox
	gw, err := aishield.New(cfg)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	t.Cleanup(gw.Close)
	return newRouter(gw, admin.NewKeyStore())
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	h := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("got status %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != "OK" {
		t.Errorf("got body %q, want OK", got)
	}
}

func TestVoices(t *testing.T) {
	h := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/speech/voices", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
	var resp struct {
		Voices []struct {
			ID string `json:"id"`
		} `json:"voices"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Voices) == 0 {
		t.Error("expected non-empty voice list")
	}
}

func TestSynthesize(t *testing.T) {
	h := testRouter(t)

	w := postJSON(t, h, "/v1/speech/synthesize", `{"text":"Once upon a time"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp synthesizeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Cached {
		t.Error("first call reported cached=true")
	}
	if !strings.HasPrefix(resp.Audio, "data:audio/mpeg;base64,") {
		t.Errorf("audio is not an mp3 data URL: %.40s", resp.Audio)
	}
	if _, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(resp.Audio, "data:audio/mpeg;base64,")); err != nil {
		t.Errorf("audio payload is not valid base64: %v", err)
	}

	// Same request again is a cache hit.
	w = postJSON(t, h, "/v1/speech/synthesize", `{"text":"Once upon a time"}`)
	var second synthesizeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &second); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !second.Cached {
		t.Error("second call reported cached=false")
	}
	if second.Audio != resp.Audio {
		t.Error("cached audio differs from original")
	}
}

func TestSynthesize_Validation(t *testing.T) {
	h := testRouter(t)
	cases := []struct {
		name string
		body string
	}{
		{"missing text", `{}`},
		{"unknown voice", `{"text":"hi","voice":"nope"}`},
		{"invalid json", `{`},
		{"oversized text", `{"text":"` + strings.Repeat("a", 2000) + `"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(t, h, "/v1/speech/synthesize", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("got status %d, want 400", w.Code)
			}
			var resp struct {
				Error struct {
					Type string `json:"type"`
				} `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decoding error envelope: %v", err)
			}
			if resp.Error.Type != "invalid_request_error" {
				t.Errorf("got error type %q, want invalid_request_error", resp.Error.Type)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	h := testRouter(t)

	w := postJSON(t, h, "/v1/text/generate", `{"messages":[{"role":"user","content":"Tell me a story."}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp generateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Content == "" {
		t.Error("expected non-empty content")
	}
	if resp.FinishReason != "stop" {
		t.Errorf("got finish_reason %q, want stop", resp.FinishReason)
	}
	if resp.Cached {
		t.Error("first call reported cached=true")
	}

	w = postJSON(t, h, "/v1/text/generate", `{"messages":[{"role":"user","content":"Tell me a story."}]}`)
	var second generateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &second); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !second.Cached {
		t.Error("second call reported cached=false")
	}
	if second.Content != resp.Content {
		t.Error("cached content differs from original")
	}
}

func TestGenerate_Validation(t *testing.T) {
	h := testRouter(t)

	w := postJSON(t, h, "/v1/text/generate", `{"messages":[]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty messages: got status %d, want 400", w.Code)
	}
	w = postJSON(t, h, "/v1/text/generate", `{"messages":[{"role":"robot","content":"hi"}]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown role: got status %d, want 400", w.Code)
	}
}

func TestCloneVoice(t *testing.T) {
	h := testRouter(t)
	sample := base64.StdEncoding.EncodeToString([]byte("fake audio sample"))
	body := `{"speaker_name":"Narrator","audios":[{"audio_bytes":"` + sample + `","format":"wav","text":"hello"}]}`

	w := postJSON(t, h, "/v1/voice-clone/train", body)
	if w.Code != http.StatusAccepted {
		t.Fatalf("got status %d, want 202: %s", w.Code, w.Body.String())
	}
	var resp struct {
		SpeakerID string `json:"speaker_id"`
		TaskID    string `json:"task_id"`
		Status    string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "training" {
		t.Errorf("got status %q, want training", resp.Status)
	}
	if resp.SpeakerID == "" || resp.TaskID == "" {
		t.Error("expected speaker_id and task_id to be set")
	}
}

func TestCloneVoice_Validation(t *testing.T) {
	h := testRouter(t)

	w := postJSON(t, h, "/v1/voice-clone/train", `{"audios":[{"audio_bytes":"aGk="}]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing speaker_name: got status %d, want 400", w.Code)
	}
	w = postJSON(t, h, "/v1/voice-clone/train", `{"speaker_name":"N"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing audios: got status %d, want 400", w.Code)
	}
	w = postJSON(t, h, "/v1/voice-clone/train", `{"speaker_name":"N","audios":[{"audio_bytes":"not base64!!"}]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad base64: got status %d, want 400", w.Code)
	}
}

func TestSpeechRateLimit(t *testing.T) {
	cfg := aishield.DefaultConfig()
	cfg.Cache.Storage = aishield.CacheStorageNone
	cfg.Upstreams.Mode = aishield.UpstreamModeSandbox
	cfg.RateLimits.Speech = aishield.RateLimitRule{WindowSeconds: 60, MaxRequests: 2, Message: "slow down"}
	gw, err := aishield.New(cfg)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	t.Cleanup(gw.Close)
	h := newRouter(gw, admin.NewKeyStore())

	// Distinct texts so the cache does not absorb the repeats; admission runs
	// before the cache either way, but this keeps the test honest.
	texts := []string{"one", "two", "three"}
	var last *httptest.ResponseRecorder
	for _, text := range texts {
		last = postJSON(t, h, "/v1/speech/synthesize", `{"text":"`+text+`"}`)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: got status %d, want 429", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if got := last.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("got X-RateLimit-Remaining %q, want 0", got)
	}
	var resp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(last.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error envelope: %v", err)
	}
	if resp.Error.Type != "rate_limit_error" {
		t.Errorf("got error type %q, want rate_limit_error", resp.Error.Type)
	}
	if resp.Error.Message != "slow down" {
		t.Errorf("got message %q, want %q", resp.Error.Message, "slow down")
	}
}

func TestAdminRequiresAuth(t *testing.T) {
	h := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("got status %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "shield_") {
		t.Error("expected shield_ metrics in output")
	}
}

func TestCORSPreflight(t *testing.T) {
	h := testRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/v1/speech/voices", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("got status %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("got Allow-Origin %q, want *", got)
	}
}
