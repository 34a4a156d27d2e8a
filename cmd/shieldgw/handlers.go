package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	aishield "github.com/ferro-labs/ai-shield"
	"github.com/ferro-labs/ai-shield/internal/ratelimit"
	"github.com/ferro-labs/ai-shield/internal/requestlog"
	"github.com/ferro-labs/ai-shield/internal/upstream"
)

// maxSynthesisChars bounds the text accepted for one synthesis call.
const maxSynthesisChars = 1024

type apiHandlers struct {
	gw *aishield.Gateway
}

type synthesizeRequest struct {
	Text       string `json:"text"`
	Voice      string `json:"voice,omitempty"`
	Speed      int    `json:"speed,omitempty"`
	Emotion    string `json:"emotion,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

type synthesizeResponse struct {
	// Audio is a data URL so browser clients can play it directly.
	Audio           string `json:"audio"`
	Encoding        string `json:"encoding"`
	DurationSeconds int    `json:"duration_seconds"`
	Cached          bool   `json:"cached"`
	CacheKey        string `json:"cache_key"`
}

func (h *apiHandlers) synthesize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req synthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid JSON body", "invalid_request_error")
		return
	}
	if req.Text == "" {
		writeAPIError(w, http.StatusBadRequest, "text is required", "invalid_request_error")
		return
	}
	if len(req.Text) > maxSynthesisChars {
		writeAPIError(w, http.StatusBadRequest,
			fmt.Sprintf("text exceeds %d characters", maxSynthesisChars), "invalid_request_error")
		return
	}
	if req.Voice != "" && !upstream.ValidVoice(req.Voice) {
		writeAPIError(w, http.StatusBadRequest, "unknown voice: "+req.Voice, "invalid_request_error")
		return
	}

	out, err := h.gw.Synthesize(r.Context(), aishield.SpeechParams{
		Text:       req.Text,
		Voice:      req.Voice,
		Speed:      req.Speed,
		Emotion:    req.Emotion,
		Encoding:   req.Encoding,
		SampleRate: req.SampleRate,
	})
	if err != nil {
		status := upstreamStatus(err)
		h.logRequest(r, aishield.OpSynthesize, status, false, start, err)
		writeAPIError(w, status, err.Error(), "upstream_error")
		return
	}
	h.logRequest(r, aishield.OpSynthesize, http.StatusOK, out.Cached, start, nil)

	writeJSON(w, http.StatusOK, synthesizeResponse{
		Audio:           audioDataURL(out.Encoding, out.Audio),
		Encoding:        out.Encoding,
		DurationSeconds: out.DurationSeconds,
		Cached:          out.Cached,
		CacheKey:        out.Key,
	})
}

func (h *apiHandlers) voices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"voices": h.gw.Voices()})
}

type generateRequest struct {
	Model       string                 `json:"model,omitempty"`
	Messages    []aishield.ChatMessage `json:"messages"`
	Temperature float64                `json:"temperature,omitempty"`
	MaxTokens   int                    `json:"max_tokens,omitempty"`
	TopP        float64                `json:"top_p,omitempty"`
}

type generateResponse struct {
	ID           string         `json:"id"`
	Model        string         `json:"model"`
	Content      string         `json:"content"`
	FinishReason string         `json:"finish_reason"`
	Usage        aishield.Usage `json:"usage"`
	Cached       bool           `json:"cached"`
	CacheKey     string         `json:"cache_key"`
}

func (h *apiHandlers) generate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid JSON body", "invalid_request_error")
		return
	}
	if len(req.Messages) == 0 {
		writeAPIError(w, http.StatusBadRequest, "messages is required", "invalid_request_error")
		return
	}
	for i, m := range req.Messages {
		switch m.Role {
		case "system", "user", "assistant":
		default:
			writeAPIError(w, http.StatusBadRequest,
				fmt.Sprintf("messages[%d]: unknown role %q", i, m.Role), "invalid_request_error")
			return
		}
	}

	out, err := h.gw.Generate(r.Context(), aishield.ChatParams{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
	})
	if err != nil {
		status := upstreamStatus(err)
		h.logRequest(r, aishield.OpGenerate, status, false, start, err)
		writeAPIError(w, status, err.Error(), "upstream_error")
		return
	}
	h.logRequest(r, aishield.OpGenerate, http.StatusOK, out.Cached, start, nil)

	writeJSON(w, http.StatusOK, generateResponse{
		ID:           out.Result.ID,
		Model:        out.Result.Model,
		Content:      out.Result.Content,
		FinishReason: out.Result.FinishReason,
		Usage:        out.Result.Usage,
		Cached:       out.Cached,
		CacheKey:     out.Key,
	})
}

type cloneRequest struct {
	SpeakerName string                `json:"speaker_name"`
	SpeakerID   string                `json:"speaker_id,omitempty"`
	Language    string                `json:"language,omitempty"`
	ModelType   string                `json:"model_type,omitempty"`
	Audios      []aishield.CloneAudio `json:"audios"`
}

func (h *apiHandlers) cloneVoice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req cloneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid JSON body", "invalid_request_error")
		return
	}
	if req.SpeakerName == "" {
		writeAPIError(w, http.StatusBadRequest, "speaker_name is required", "invalid_request_error")
		return
	}
	if len(req.Audios) == 0 {
		writeAPIError(w, http.StatusBadRequest, "at least one training audio is required", "invalid_request_error")
		return
	}
	for i, a := range req.Audios {
		if a.AudioBytes == "" {
			writeAPIError(w, http.StatusBadRequest,
				fmt.Sprintf("audios[%d]: audio_bytes is required", i), "invalid_request_error")
			return
		}
		if _, err := base64.StdEncoding.DecodeString(a.AudioBytes); err != nil {
			writeAPIError(w, http.StatusBadRequest,
				fmt.Sprintf("audios[%d]: audio_bytes is not valid base64", i), "invalid_request_error")
			return
		}
	}

	result, err := h.gw.CloneVoice(r.Context(), aishield.CloneRequest{
		SpeakerName: req.SpeakerName,
		SpeakerID:   req.SpeakerID,
		Language:    req.Language,
		ModelType:   req.ModelType,
		Audios:      req.Audios,
	})
	if err != nil {
		status := upstreamStatus(err)
		h.logRequest(r, aishield.OpCloneVoice, status, false, start, err)
		writeAPIError(w, status, err.Error(), "upstream_error")
		return
	}
	h.logRequest(r, aishield.OpCloneVoice, http.StatusAccepted, false, start, nil)

	writeJSON(w, http.StatusAccepted, result)
}

func (h *apiHandlers) logRequest(r *http.Request, op string, status int, cacheHit bool, start time.Time, err error) {
	entry := requestlog.Entry{
		Operation:  op,
		ClientID:   ratelimit.ClientID(r),
		Status:     status,
		CacheHit:   cacheHit,
		DurationMs: time.Since(start).Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
	}
	h.gw.LogRequest(r.Context(), entry)
}

// upstreamStatus maps a gateway error to an HTTP status: 503 for an open
// breaker, the upstream's own status when it reported one, 502 otherwise.
func upstreamStatus(err error) int {
	if errors.Is(err, aishield.ErrUpstreamUnavailable) {
		return http.StatusServiceUnavailable
	}
	var ue *upstream.Error
	if errors.As(err, &ue) && ue.StatusCode >= 400 {
		return ue.StatusCode
	}
	return http.StatusBadGateway
}

// audioDataURL wraps raw audio in a data URL for direct playback in clients.
func audioDataURL(encoding string, audio []byte) string {
	mime := "audio/mpeg"
	switch encoding {
	case "wav":
		mime = "audio/wav"
	case "ogg_opus":
		mime = "audio/ogg"
	case "pcm":
		mime = "audio/pcm"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(audio))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeAPIError writes the gateway's unified JSON error envelope.
func writeAPIError(w http.ResponseWriter, status int, message, errType string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    errType,
			"code":    status,
		},
	})
}
