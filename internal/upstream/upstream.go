// Package upstream defines the interfaces and shared data types for the
// metered external AI services the gateway shields: speech synthesis, text
// generation, and voice-clone training.
//
// Core interfaces: Synthesizer, Generator, VoiceCloner. Implementations
// perform the only blocking work in the request path; everything upstream of
// them (admission, cache) is synchronous and fast.
package upstream

import (
	"context"
	"fmt"
)

// SpeechRequest carries the normalized parameters of one synthesis call.
type SpeechRequest struct {
	Text       string
	Voice      string
	Speed      int
	Emotion    string
	Encoding   string
	SampleRate int
	// RequestID correlates the upstream call with the gateway request log.
	RequestID string
}

// SpeechResult is the synthesized audio returned by a Synthesizer.
type SpeechResult struct {
	Audio    []byte `json:"-"`
	Encoding string `json:"encoding"`
	// DurationSeconds is a rough estimate derived from the audio size.
	DurationSeconds int `json:"duration_seconds"`
}

// ChatMessage is a single conversation turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest carries the normalized parameters of one generation call.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// Usage carries token consumption for a generation call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResult is the generated completion returned by a Generator.
type ChatResult struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

// CloneAudio is one training sample for voice cloning.
type CloneAudio struct {
	// AudioBytes is the base64-encoded sample.
	AudioBytes string `json:"audio_bytes"`
	Format     string `json:"format"`
	Text       string `json:"text"`
}

// CloneRequest starts a voice-clone training job.
type CloneRequest struct {
	SpeakerName string
	SpeakerID   string
	Language    string
	ModelType   string
	Audios      []CloneAudio
}

// CloneResult reports the accepted training job.
type CloneResult struct {
	SpeakerID string `json:"speaker_id"`
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
}

// Synthesizer converts text to audio via an external speech service.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, req SpeechRequest) (*SpeechResult, error)
}

// Generator produces chat completions via an external text service.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req ChatRequest) (*ChatResult, error)
}

// VoiceCloner starts voice-clone training jobs. Training is stateful and is
// never cached by the gateway.
type VoiceCloner interface {
	Name() string
	Train(ctx context.Context, req CloneRequest) (*CloneResult, error)
}

// Error is a failed upstream call. It propagates to the gateway caller
// unchanged; the cache never stores it.
type Error struct {
	Upstream   string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Upstream, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Upstream, e.Message)
}

// Voice describes one selectable synthesis voice.
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Gender      string `json:"gender"`
	Language    string `json:"language"`
	Description string `json:"description"`
}

// Voices returns the catalog of supported synthesis voices.
func Voices() []Voice {
	return []Voice{
		{
			ID:          "female-warm-1",
			Name:        "Warm Female",
			Gender:      "female",
			Language:    "en-US",
			Description: "Soft, warm female voice suited to bedtime stories",
		},
		{
			ID:          "male-calm-1",
			Name:        "Calm Male",
			Gender:      "male",
			Language:    "en-US",
			Description: "Steady, calm male voice suited to educational content",
		},
		{
			ID:          "female-bright-1",
			Name:        "Bright Female",
			Gender:      "female",
			Language:    "en-US",
			Description: "Clear, friendly female voice for general narration",
		},
	}
}

// ValidVoice reports whether id names a voice in the catalog.
func ValidVoice(id string) bool {
	for _, v := range Voices() {
		if v.ID == id {
			return true
		}
	}
	return false
}
