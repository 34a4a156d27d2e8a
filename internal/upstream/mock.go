package upstream

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Mock implements all three upstream interfaces with deterministic local
// responses. It backs sandbox mode, where the gateway serves full request
// flows without touching any metered external service.
//
// Latency simulates the real upstream's response time so that cache and
// admission behavior under sandbox load resembles production.
type Mock struct {
	// Latency is how long each call sleeps before answering. Zero means
	// respond immediately.
	Latency time.Duration
}

// Name returns the upstream identifier.
func (m *Mock) Name() string { return "mock" }

func (m *Mock) wait(ctx context.Context) error {
	if m.Latency <= 0 {
		return nil
	}
	select {
	case <-time.After(m.Latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Synthesize returns placeholder audio derived from the request text.
// Identical requests produce identical audio, so cache round trips are
// observable in sandbox mode.
func (m *Mock) Synthesize(ctx context.Context, req SpeechRequest) (*SpeechResult, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	sum := sha256.Sum256([]byte(req.Voice + "\x00" + req.Text))
	audio := []byte(fmt.Sprintf("MOCKAUDIO:%s:%s", req.Encoding, hex.EncodeToString(sum[:])))

	return &SpeechResult{
		Audio:           audio,
		Encoding:        req.Encoding,
		DurationSeconds: len(req.Text) / 3,
	}, nil
}

// Generate returns a canned completion echoing the last user message.
func (m *Mock) Generate(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	prompt := ""
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			prompt = msg.Content
		}
	}

	content := "This is a sandbox completion. In production this request would " +
		"reach the configured text-generation service. Prompt received: " + prompt
	sum := sha256.Sum256([]byte(req.Model + "\x00" + prompt))

	return &ChatResult{
		ID:           "mock-" + hex.EncodeToString(sum[:8]),
		Model:        req.Model,
		Content:      content,
		FinishReason: "stop",
		Usage: Usage{
			PromptTokens:     len(prompt),
			CompletionTokens: len(content),
			TotalTokens:      len(prompt) + len(content),
		},
	}, nil
}

// Train accepts the clone job and reports it as queued for training.
// Progress never advances; sandbox mode only exercises the submission path.
func (m *Mock) Train(ctx context.Context, req CloneRequest) (*CloneResult, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	sum := sha256.Sum256([]byte(req.SpeakerName))
	speakerID := req.SpeakerID
	if speakerID == "" {
		speakerID = "speaker-" + hex.EncodeToString(sum[:6])
	}

	return &CloneResult{
		SpeakerID: speakerID,
		TaskID:    "task-" + hex.EncodeToString(sum[6:12]),
		Status:    "training",
	}, nil
}
