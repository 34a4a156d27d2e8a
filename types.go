package aishield

import (
	"github.com/ferro-labs/ai-shield/internal/cache"
	"github.com/ferro-labs/ai-shield/internal/upstream"
)

// The request and response types of the Gateway methods, re-exported so
// embedding programs can call Synthesize, Generate, and CloneVoice without
// reaching into internal packages.
type (
	// SpeechParams is the parameter set of a speech-synthesis request.
	// Optional fields left zero take the documented defaults.
	SpeechParams = cache.SpeechParams
	// ChatParams is the parameter set of a text-generation request.
	ChatParams = cache.ChatParams
	// ChatMessage is a single conversation turn in a ChatParams.
	ChatMessage = cache.ChatMessage

	// ChatResult is the completion returned inside a ChatOutput.
	ChatResult = upstream.ChatResult
	// Usage carries token consumption for a generation call.
	Usage = upstream.Usage
	// CloneRequest starts a voice-clone training job.
	CloneRequest = upstream.CloneRequest
	// CloneAudio is one training sample in a CloneRequest.
	CloneAudio = upstream.CloneAudio
	// CloneResult reports an accepted training job.
	CloneResult = upstream.CloneResult
	// Voice describes one selectable synthesis voice.
	Voice = upstream.Voice
)
