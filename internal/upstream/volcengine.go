package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const volcengineTimeout = 30 * time.Second

// VolcengineSpeech implements Synthesizer against the Volcengine openspeech
// TTS API, which returns raw audio bytes for a JSON synthesis request.
type VolcengineSpeech struct {
	appID      string
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewVolcengineSpeech creates a Volcengine speech client. The optional
// baseURL parameter overrides the API endpoint (pass "" for the default).
func NewVolcengineSpeech(appID, token, baseURL string) (*VolcengineSpeech, error) {
	if token == "" {
		return nil, fmt.Errorf("volcengine: access token is required")
	}
	if baseURL == "" {
		baseURL = "https://openspeech.bytedance.com"
	}
	return &VolcengineSpeech{
		appID:      appID,
		token:      token,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: volcengineTimeout},
	}, nil
}

// Name returns the upstream identifier.
func (v *VolcengineSpeech) Name() string { return "volcengine-speech" }

// Wire format: the openspeech API takes nested snake_case request objects.
type volcApp struct {
	AppID string `json:"appid"`
}

type volcUser struct {
	UID string `json:"uid"`
}

type volcRequest struct {
	ReqID     string `json:"reqid"`
	Text      string `json:"text"`
	VoiceType string `json:"voice_type"`
}

type volcAudio struct {
	Encoding     string `json:"encoding"`
	SampleRate   int    `json:"sample_rate"`
	SpeechRate   int    `json:"speech_rate"`
	LoudnessRate int    `json:"loudness_rate"`
	Emotion      string `json:"emotion"`
}

type volcSpeechPayload struct {
	App     volcApp     `json:"app"`
	User    volcUser    `json:"user"`
	Request volcRequest `json:"request"`
	Audio   volcAudio   `json:"audio"`
}

// Synthesize posts the synthesis request and returns the binary audio.
func (v *VolcengineSpeech) Synthesize(ctx context.Context, req SpeechRequest) (*SpeechResult, error) {
	payload := volcSpeechPayload{
		App:  volcApp{AppID: v.appID},
		User: volcUser{UID: "gateway"},
		Request: volcRequest{
			ReqID:     req.RequestID,
			Text:      req.Text,
			VoiceType: req.Voice,
		},
		Audio: volcAudio{
			Encoding:   req.Encoding,
			SampleRate: req.SampleRate,
			SpeechRate: req.Speed,
			Emotion:    req.Emotion,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("volcengine: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/api/v1/tts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("volcengine: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+v.token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Upstream: v.Name(), Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Upstream:   v.Name(),
			StatusCode: resp.StatusCode,
			Message:    statusMessage(resp.StatusCode),
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Upstream: v.Name(), Message: "read audio body: " + err.Error()}
	}
	return &SpeechResult{
		Audio:           audio,
		Encoding:        req.Encoding,
		DurationSeconds: estimateDuration(len(audio)),
	}, nil
}

// Voice-clone training wire format, mega_tts upload API.
type volcCloneAudio struct {
	AudioBytes  string `json:"audio_bytes"`
	AudioFormat string `json:"audio_format"`
	Text        string `json:"text,omitempty"`
}

type volcClonePayload struct {
	AppID     string           `json:"appid"`
	SpeakerID string           `json:"speaker_id"`
	Audios    []volcCloneAudio `json:"audios"`
	Source    int              `json:"source"`
	Language  string           `json:"language,omitempty"`
	ModelType string           `json:"model_type,omitempty"`
}

type volcCloneResponse struct {
	BaseResp struct {
		StatusCode    int    `json:"StatusCode"`
		StatusMessage string `json:"StatusMessage"`
	} `json:"BaseResp"`
	SpeakerID string `json:"speaker_id"`
	TaskID    string `json:"task_id"`
}

// Train uploads the voice samples and starts a clone training job.
func (v *VolcengineSpeech) Train(ctx context.Context, req CloneRequest) (*CloneResult, error) {
	payload := volcClonePayload{
		AppID:     v.appID,
		SpeakerID: req.SpeakerID,
		Source:    2,
		Language:  req.Language,
		ModelType: req.ModelType,
	}
	for _, a := range req.Audios {
		payload.Audios = append(payload.Audios, volcCloneAudio{
			AudioBytes:  a.AudioBytes,
			AudioFormat: a.Format,
			Text:        a.Text,
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("volcengine: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/api/v1/mega_tts/audio/upload", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("volcengine: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+v.token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Upstream: v.Name(), Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Upstream:   v.Name(),
			StatusCode: resp.StatusCode,
			Message:    statusMessage(resp.StatusCode),
		}
	}

	var decoded volcCloneResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &Error{Upstream: v.Name(), Message: "decode response: " + err.Error()}
	}
	if decoded.BaseResp.StatusCode != 0 {
		return nil, &Error{
			Upstream:   v.Name(),
			StatusCode: resp.StatusCode,
			Message:    decoded.BaseResp.StatusMessage,
		}
	}

	speakerID := decoded.SpeakerID
	if speakerID == "" {
		speakerID = req.SpeakerID
	}
	return &CloneResult{
		SpeakerID: speakerID,
		TaskID:    decoded.TaskID,
		Status:    "training",
	}, nil
}

// statusMessage maps common upstream statuses to operator-friendly text.
func statusMessage(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "unauthorized, check the API credentials"
	case http.StatusTooManyRequests:
		return "upstream rate limited, retry later"
	case http.StatusBadRequest:
		return "invalid request parameters"
	default:
		return "upstream service error"
	}
}

// estimateDuration approximates audio playback length from the payload size.
func estimateDuration(audioBytes int) int {
	return audioBytes / 1000
}
