package upstream

import (
	"bytes"
	"context"
	"testing"
	"time"
)

// TestVoices tests the voice catalog.
func TestVoices(t *testing.T) {
	voices := Voices()
	if len(voices) == 0 {
		t.Fatal("Voices() returned empty catalog")
	}
	for _, v := range voices {
		if v.ID == "" || v.Name == "" {
			t.Errorf("voice %+v missing id or name", v)
		}
	}
}

// TestValidVoice tests catalog membership checks.
func TestValidVoice(t *testing.T) {
	if !ValidVoice("female-warm-1") {
		t.Error("ValidVoice(female-warm-1) = false, want true")
	}
	if ValidVoice("nonexistent-voice") {
		t.Error("ValidVoice(nonexistent-voice) = true, want false")
	}
}

// TestError_WithStatus tests error formatting with an HTTP status.
func TestError_WithStatus(t *testing.T) {
	err := &Error{Upstream: "volcengine-speech", StatusCode: 429, Message: "rate limited"}
	want := "volcengine-speech: rate limited (status 429)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// TestError_WithoutStatus tests error formatting for transport failures.
func TestError_WithoutStatus(t *testing.T) {
	err := &Error{Upstream: "openai", Message: "connection refused"}
	want := "openai: connection refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// TestMock_SynthesizeDeterministic tests that identical requests produce
// identical audio.
func TestMock_SynthesizeDeterministic(t *testing.T) {
	m := &Mock{}
	req := SpeechRequest{
		Text:     "Once upon a time",
		Voice:    "female-warm-1",
		Encoding: "mp3",
	}

	a, err := m.Synthesize(context.Background(), req)
	if err != nil {
		t.Fatalf("Synthesize() returned error: %v", err)
	}
	b, err := m.Synthesize(context.Background(), req)
	if err != nil {
		t.Fatalf("Synthesize() returned error: %v", err)
	}

	if !bytes.Equal(a.Audio, b.Audio) {
		t.Error("identical requests produced different audio")
	}
	if a.Encoding != "mp3" {
		t.Errorf("Encoding = %v, want mp3", a.Encoding)
	}
	if a.DurationSeconds != len(req.Text)/3 {
		t.Errorf("DurationSeconds = %v, want %v", a.DurationSeconds, len(req.Text)/3)
	}
}

// TestMock_SynthesizeVariesByVoice tests that different voices produce
// different audio for the same text.
func TestMock_SynthesizeVariesByVoice(t *testing.T) {
	m := &Mock{}
	base := SpeechRequest{Text: "hello", Voice: "female-warm-1", Encoding: "mp3"}
	other := base
	other.Voice = "male-calm-1"

	a, _ := m.Synthesize(context.Background(), base)
	b, _ := m.Synthesize(context.Background(), other)
	if bytes.Equal(a.Audio, b.Audio) {
		t.Error("different voices produced identical audio")
	}
}

// TestMock_Generate tests the sandbox completion shape.
func TestMock_Generate(t *testing.T) {
	m := &Mock{}
	result, err := m.Generate(context.Background(), ChatRequest{
		Model: "doubao-seed-1-6",
		Messages: []ChatMessage{
			{Role: "system", Content: "You tell bedtime stories."},
			{Role: "user", Content: "Tell me a story about a rabbit."},
		},
	})
	if err != nil {
		t.Fatalf("Generate() returned error: %v", err)
	}
	if result.ID == "" {
		t.Error("Generate() returned empty ID")
	}
	if result.Model != "doubao-seed-1-6" {
		t.Errorf("Model = %v, want doubao-seed-1-6", result.Model)
	}
	if result.FinishReason != "stop" {
		t.Errorf("FinishReason = %v, want stop", result.FinishReason)
	}
	if result.Usage.TotalTokens != result.Usage.PromptTokens+result.Usage.CompletionTokens {
		t.Error("Usage.TotalTokens does not equal prompt + completion")
	}
}

// TestMock_Train tests the sandbox clone submission path.
func TestMock_Train(t *testing.T) {
	m := &Mock{}
	result, err := m.Train(context.Background(), CloneRequest{
		SpeakerName: "Mom's Voice",
		Audios: []CloneAudio{
			{AudioBytes: "bW9jaw==", Format: "wav", Text: "sample"},
		},
	})
	if err != nil {
		t.Fatalf("Train() returned error: %v", err)
	}
	if result.SpeakerID == "" || result.TaskID == "" {
		t.Error("Train() returned empty speaker or task ID")
	}
	if result.Status != "training" {
		t.Errorf("Status = %v, want training", result.Status)
	}
}

// TestMock_TrainKeepsSpeakerID tests that an explicit speaker ID is preserved.
func TestMock_TrainKeepsSpeakerID(t *testing.T) {
	m := &Mock{}
	result, err := m.Train(context.Background(), CloneRequest{
		SpeakerName: "Dad's Voice",
		SpeakerID:   "speaker-dad-001",
	})
	if err != nil {
		t.Fatalf("Train() returned error: %v", err)
	}
	if result.SpeakerID != "speaker-dad-001" {
		t.Errorf("SpeakerID = %v, want speaker-dad-001", result.SpeakerID)
	}
}

// TestMock_CancelledContext tests that a cancelled context aborts a delayed call.
func TestMock_CancelledContext(t *testing.T) {
	m := &Mock{Latency: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Synthesize(ctx, SpeechRequest{Text: "hi"}); err == nil {
		t.Error("Synthesize() with cancelled context returned nil error")
	}
}
