package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Documented defaults substituted for absent optional fields during
// normalization. Two requests that differ only in omitted-vs-default fields
// derive the same key.
const (
	DefaultVoice      = "female-warm-1"
	DefaultEmotion    = "neutral"
	DefaultEncoding   = "mp3"
	DefaultSampleRate = 24000

	DefaultModel       = "doubao-seed-1-6"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048
	DefaultTopP        = 0.9
)

// SpeechParams is the normalized parameter set of a speech-synthesis request.
type SpeechParams struct {
	Text       string `json:"text"`
	Voice      string `json:"voice"`
	Speed      int    `json:"speed"`
	Emotion    string `json:"emotion"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// Normalize trims the text and substitutes documented defaults for absent
// optional fields.
func (p SpeechParams) Normalize() SpeechParams {
	p.Text = strings.TrimSpace(p.Text)
	if p.Voice == "" {
		p.Voice = DefaultVoice
	}
	if p.Emotion == "" {
		p.Emotion = DefaultEmotion
	}
	if p.Encoding == "" {
		p.Encoding = DefaultEncoding
	}
	if p.SampleRate == 0 {
		p.SampleRate = DefaultSampleRate
	}
	return p
}

// ChatMessage is a single conversation turn in a text-generation request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams is the normalized parameter set of a text-generation request.
type ChatParams struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	TopP        float64       `json:"top_p"`
}

// Normalize trims message content and substitutes documented defaults for
// absent optional fields.
func (p ChatParams) Normalize() ChatParams {
	if p.Model == "" {
		p.Model = DefaultModel
	}
	if p.Temperature == 0 {
		p.Temperature = DefaultTemperature
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = DefaultMaxTokens
	}
	if p.TopP == 0 {
		p.TopP = DefaultTopP
	}
	msgs := make([]ChatMessage, len(p.Messages))
	for i, m := range p.Messages {
		msgs[i] = ChatMessage{Role: m.Role, Content: strings.TrimSpace(m.Content)}
	}
	p.Messages = msgs
	return p
}

// DeriveKey turns a normalized parameter struct into a fixed-length cache
// key: the hex SHA-256 of the params' JSON encoding with field names sorted
// lexicographically at every level, so field order never affects the key.
// Side-effect free; always succeeds for JSON-encodable input.
func DeriveKey(params any) string {
	raw, _ := json.Marshal(params)
	var generic any
	_ = json.Unmarshal(raw, &generic)
	// encoding/json writes map keys in sorted order.
	canonical, _ := json.Marshal(generic)
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
