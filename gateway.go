// Package aishield shields metered AI upstreams behind a response cache and
// a per-client admission layer.
//
// The Gateway type is the main entry point: create one with New, admit a
// request with Admit (or the HTTP rate-limit middleware), and serve it with
// Synthesize, Generate, or CloneVoice. Identical requests within an entry's
// TTL are answered from the cache without touching the upstream.
package aishield

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ferro-labs/ai-shield/internal/cache"
	"github.com/ferro-labs/ai-shield/internal/circuitbreaker"
	"github.com/ferro-labs/ai-shield/internal/logging"
	"github.com/ferro-labs/ai-shield/internal/metrics"
	"github.com/ferro-labs/ai-shield/internal/ratelimit"
	"github.com/ferro-labs/ai-shield/internal/requestlog"
	"github.com/ferro-labs/ai-shield/internal/stats"
	"github.com/ferro-labs/ai-shield/internal/upstream"
)

// Limiter class names. Each class has its own fixed-window rule.
const (
	ClassGlobal     = "global"
	ClassSpeech     = "speech"
	ClassText       = "text"
	ClassVoiceClone = "voice_clone"
)

// Operation names used in metrics and the request log.
const (
	OpSynthesize = "speech.synthesize"
	OpGenerate   = "text.generate"
	OpCloneVoice = "voice_clone.train"
)

// SpeechOutput is the result of Synthesize.
type SpeechOutput struct {
	Audio           []byte
	Encoding        string
	DurationSeconds int
	// Cached reports whether the audio came from the response cache.
	Cached bool
	// Key is the derived cache key for the normalized request.
	Key string
}

// ChatOutput is the result of Generate.
type ChatOutput struct {
	Result ChatResult
	Cached bool
	Key    string
}

// speechMeta is the JSON metadata stored alongside cached audio.
type speechMeta struct {
	Encoding        string `json:"encoding"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Gateway owns the cache store, the per-class rate limiters, the circuit
// breakers, and the upstream clients.
type Gateway struct {
	cfg      Config
	store    *cache.Store
	limiters map[string]*ratelimit.Limiter
	breakers *circuitbreaker.Registry
	stats    *stats.Collector

	synthesizer upstream.Synthesizer
	generator   upstream.Generator
	cloner      upstream.VoiceCloner

	logWriter requestlog.Writer
	logCloser interface{ Close() error }
}

// New creates a Gateway from the given configuration: cache persistence,
// limiters, breakers, upstream clients, and the request log writer.
func New(cfg Config) (*Gateway, error) {
	persistence, err := buildPersistence(cfg.Cache)
	if err != nil {
		return nil, err
	}

	store := cache.New(cache.Options{
		MaxEntries:    cfg.Cache.MaxEntries,
		DefaultTTL:    time.Duration(cfg.Cache.DefaultTTLSeconds) * time.Second,
		SweepInterval: time.Duration(cfg.Cache.SweepIntervalSeconds) * time.Second,
		Persistence:   persistence,
	})

	limiters := map[string]*ratelimit.Limiter{
		ClassGlobal:     newLimiter(cfg.RateLimits.Global),
		ClassSpeech:     newLimiter(cfg.RateLimits.Speech),
		ClassText:       newLimiter(cfg.RateLimits.Text),
		ClassVoiceClone: newLimiter(cfg.RateLimits.VoiceClone),
	}

	g := &Gateway{
		cfg:      cfg,
		store:    store,
		limiters: limiters,
		breakers: circuitbreaker.NewRegistry(
			cfg.Upstreams.Breaker.FailureThreshold,
			cfg.Upstreams.Breaker.SuccessThreshold,
			time.Duration(cfg.Upstreams.Breaker.OpenSeconds)*time.Second,
		),
		stats:     stats.New(store, limiters),
		logWriter: requestlog.NoopWriter{},
	}

	if err := g.buildUpstreams(); err != nil {
		g.Close()
		return nil, err
	}
	if err := g.buildRequestLog(); err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

func newLimiter(rule RateLimitRule) *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Config{
		Window:      time.Duration(rule.WindowSeconds) * time.Second,
		MaxRequests: rule.MaxRequests,
		Message:     rule.Message,
	})
}

func buildPersistence(cfg CacheConfig) (cache.Persistence, error) {
	switch cfg.Storage {
	case CacheStorageNone:
		return nil, nil
	case CacheStorageFile:
		fs, err := cache.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case CacheStorageRedis:
		rs, err := cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown cache storage %q", cfg.Storage)
	}
}

func (g *Gateway) buildUpstreams() error {
	if g.cfg.Upstreams.Mode == UpstreamModeSandbox {
		mock := &upstream.Mock{}
		g.synthesizer = mock
		g.generator = mock
		g.cloner = mock
		return nil
	}

	synth, err := upstream.NewVolcengineSpeech(
		g.cfg.Upstreams.Speech.AppID,
		g.cfg.Upstreams.Speech.Token,
		g.cfg.Upstreams.Speech.BaseURL,
	)
	if err != nil {
		return fmt.Errorf("building speech upstream: %w", err)
	}
	g.synthesizer = synth

	switch g.cfg.Upstreams.Text.Provider {
	case TextProviderOpenAI:
		gen, err := upstream.NewOpenAIGenerator(g.cfg.Upstreams.Text.APIKey, g.cfg.Upstreams.Text.BaseURL)
		if err != nil {
			return fmt.Errorf("building text upstream: %w", err)
		}
		g.generator = gen
	case TextProviderBedrock:
		gen, err := upstream.NewBedrockGenerator(g.cfg.Upstreams.Text.Region)
		if err != nil {
			return fmt.Errorf("building text upstream: %w", err)
		}
		g.generator = gen
	default:
		return fmt.Errorf("unknown text provider %q", g.cfg.Upstreams.Text.Provider)
	}

	// The speech service also hosts voice-clone training.
	g.cloner = synth
	return nil
}

func (g *Gateway) buildRequestLog() error {
	switch g.cfg.RequestLog.Backend {
	case RequestLogNone:
		return nil
	case RequestLogSQLite:
		w, err := requestlog.NewSQLiteWriter(g.cfg.RequestLog.DSN)
		if err != nil {
			return fmt.Errorf("building request log: %w", err)
		}
		g.logWriter = w
		g.logCloser = w
	case RequestLogPostgres:
		w, err := requestlog.NewPostgresWriter(g.cfg.RequestLog.DSN)
		if err != nil {
			return fmt.Errorf("building request log: %w", err)
		}
		g.logWriter = w
		g.logCloser = w
	default:
		return fmt.Errorf("unknown request log backend %q", g.cfg.RequestLog.Backend)
	}
	return nil
}

// Config returns the configuration the gateway was built with.
func (g *Gateway) Config() Config { return g.cfg }

// Limiter returns the named rate limiter, or nil for an unknown class.
func (g *Gateway) Limiter(class string) *ratelimit.Limiter { return g.limiters[class] }

// Store returns the response cache store.
func (g *Gateway) Store() *cache.Store { return g.store }

// Stats returns the read-only stats collector.
func (g *Gateway) Stats() *stats.Collector { return g.stats }

// Breakers returns the per-upstream circuit breaker registry.
func (g *Gateway) Breakers() *circuitbreaker.Registry { return g.breakers }

// RequestLog returns the configured request log writer.
func (g *Gateway) RequestLog() requestlog.Writer { return g.logWriter }

// Admit runs the named limiter for clientID. It returns nil when the request
// may proceed and a *RateLimitedError when the window is exhausted.
func (g *Gateway) Admit(class, clientID string) error {
	l := g.limiters[class]
	if l == nil {
		return nil
	}
	result := l.Admit(clientID)
	if result.Allowed {
		return nil
	}
	metrics.RateLimitRejections.WithLabelValues(class).Inc()
	return &RateLimitedError{
		Class:             class,
		Message:           l.Config().Message,
		RetryAfterSeconds: int(result.RetryAfter / time.Second),
	}
}

// Synthesize serves a speech-synthesis request: normalize, derive the cache
// key, answer from the cache when possible, otherwise call the upstream
// through its breaker and cache the successful result.
func (g *Gateway) Synthesize(ctx context.Context, params SpeechParams) (*SpeechOutput, error) {
	start := time.Now()
	log := logging.FromContext(ctx)

	params = params.Normalize()
	key := cache.DeriveKey(params)

	if v, ok := g.store.Get(key); ok {
		metrics.CacheHits.WithLabelValues(OpSynthesize).Inc()
		metrics.RequestsTotal.WithLabelValues(OpSynthesize, "success").Inc()
		metrics.RequestDuration.WithLabelValues(OpSynthesize).Observe(time.Since(start).Seconds())

		var meta speechMeta
		_ = json.Unmarshal(v.Meta, &meta)
		log.Info("speech served from cache", "key", key[:12], "latency_ms", time.Since(start).Milliseconds())
		return &SpeechOutput{
			Audio:           v.Blob,
			Encoding:        meta.Encoding,
			DurationSeconds: meta.DurationSeconds,
			Cached:          true,
			Key:             key,
		}, nil
	}
	metrics.CacheMisses.WithLabelValues(OpSynthesize).Inc()

	result, err := g.callSynthesizer(ctx, upstream.SpeechRequest{
		Text:       params.Text,
		Voice:      params.Voice,
		Speed:      params.Speed,
		Emotion:    params.Emotion,
		Encoding:   params.Encoding,
		SampleRate: params.SampleRate,
		RequestID:  logging.RequestIDFromContext(ctx),
	})
	latency := time.Since(start)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(OpSynthesize, "error").Inc()
		log.Error("speech synthesis failed", "key", key[:12], "latency_ms", latency.Milliseconds(), "error", err.Error())
		return nil, err
	}

	meta, _ := json.Marshal(speechMeta{
		Encoding:        result.Encoding,
		DurationSeconds: result.DurationSeconds,
	})
	g.store.Set(key, cache.Value{Meta: meta, Blob: result.Audio}, 0)

	metrics.RequestsTotal.WithLabelValues(OpSynthesize, "success").Inc()
	metrics.RequestDuration.WithLabelValues(OpSynthesize).Observe(latency.Seconds())
	log.Info("speech synthesized",
		"key", key[:12],
		"upstream", g.synthesizer.Name(),
		"audio_bytes", len(result.Audio),
		"latency_ms", latency.Milliseconds(),
	)

	return &SpeechOutput{
		Audio:           result.Audio,
		Encoding:        result.Encoding,
		DurationSeconds: result.DurationSeconds,
		Cached:          false,
		Key:             key,
	}, nil
}

// Generate serves a text-generation request with the same cache-then-upstream
// flow as Synthesize.
func (g *Gateway) Generate(ctx context.Context, params ChatParams) (*ChatOutput, error) {
	start := time.Now()
	log := logging.FromContext(ctx)

	params = params.Normalize()
	key := cache.DeriveKey(params)

	if v, ok := g.store.Get(key); ok {
		metrics.CacheHits.WithLabelValues(OpGenerate).Inc()
		metrics.RequestsTotal.WithLabelValues(OpGenerate, "success").Inc()
		metrics.RequestDuration.WithLabelValues(OpGenerate).Observe(time.Since(start).Seconds())

		var result upstream.ChatResult
		if err := json.Unmarshal(v.Meta, &result); err != nil {
			// Undecodable entry: drop it and fall through to the upstream.
			g.store.Delete(key)
		} else {
			log.Info("completion served from cache", "key", key[:12], "latency_ms", time.Since(start).Milliseconds())
			return &ChatOutput{Result: result, Cached: true, Key: key}, nil
		}
	} else {
		metrics.CacheMisses.WithLabelValues(OpGenerate).Inc()
	}

	messages := make([]upstream.ChatMessage, len(params.Messages))
	for i, m := range params.Messages {
		messages[i] = upstream.ChatMessage{Role: m.Role, Content: m.Content}
	}
	result, err := g.callGenerator(ctx, upstream.ChatRequest{
		Model:       params.Model,
		Messages:    messages,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		TopP:        params.TopP,
	})
	latency := time.Since(start)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(OpGenerate, "error").Inc()
		log.Error("text generation failed", "key", key[:12], "latency_ms", latency.Milliseconds(), "error", err.Error())
		return nil, err
	}

	meta, _ := json.Marshal(result)
	g.store.Set(key, cache.Value{Meta: meta}, 0)

	metrics.RequestsTotal.WithLabelValues(OpGenerate, "success").Inc()
	metrics.RequestDuration.WithLabelValues(OpGenerate).Observe(latency.Seconds())
	log.Info("completion generated",
		"key", key[:12],
		"upstream", g.generator.Name(),
		"model", result.Model,
		"tokens", result.Usage.TotalTokens,
		"latency_ms", latency.Milliseconds(),
	)

	return &ChatOutput{Result: *result, Cached: false, Key: key}, nil
}

// CloneVoice submits a voice-clone training job. Training is stateful, so the
// response cache is never consulted.
func (g *Gateway) CloneVoice(ctx context.Context, req CloneRequest) (*CloneResult, error) {
	start := time.Now()
	log := logging.FromContext(ctx)

	cb := g.breakers.For(g.cloner.Name())
	if !cb.Allow() {
		metrics.RequestsTotal.WithLabelValues(OpCloneVoice, "error").Inc()
		metrics.UpstreamErrors.WithLabelValues(g.cloner.Name(), "circuit_open").Inc()
		return nil, fmt.Errorf("%s: %w", g.cloner.Name(), ErrUpstreamUnavailable)
	}

	result, err := g.cloner.Train(ctx, req)
	latency := time.Since(start)
	if err != nil {
		cb.RecordFailure()
		metrics.RequestsTotal.WithLabelValues(OpCloneVoice, "error").Inc()
		metrics.UpstreamErrors.WithLabelValues(g.cloner.Name(), "train_failed").Inc()
		log.Error("voice clone submission failed", "latency_ms", latency.Milliseconds(), "error", err.Error())
		return nil, err
	}
	cb.RecordSuccess()

	metrics.RequestsTotal.WithLabelValues(OpCloneVoice, "success").Inc()
	metrics.RequestDuration.WithLabelValues(OpCloneVoice).Observe(latency.Seconds())
	log.Info("voice clone submitted",
		"speaker_id", result.SpeakerID,
		"task_id", result.TaskID,
		"latency_ms", latency.Milliseconds(),
	)
	return result, nil
}

// Voices returns the synthesis voice catalog.
func (g *Gateway) Voices() []Voice { return upstream.Voices() }

func (g *Gateway) callSynthesizer(ctx context.Context, req upstream.SpeechRequest) (*upstream.SpeechResult, error) {
	cb := g.breakers.For(g.synthesizer.Name())
	if !cb.Allow() {
		metrics.UpstreamErrors.WithLabelValues(g.synthesizer.Name(), "circuit_open").Inc()
		return nil, fmt.Errorf("%s: %w", g.synthesizer.Name(), ErrUpstreamUnavailable)
	}
	result, err := g.synthesizer.Synthesize(ctx, req)
	if err != nil {
		cb.RecordFailure()
		metrics.UpstreamErrors.WithLabelValues(g.synthesizer.Name(), "synthesize_failed").Inc()
		return nil, err
	}
	cb.RecordSuccess()
	return result, nil
}

func (g *Gateway) callGenerator(ctx context.Context, req upstream.ChatRequest) (*upstream.ChatResult, error) {
	cb := g.breakers.For(g.generator.Name())
	if !cb.Allow() {
		metrics.UpstreamErrors.WithLabelValues(g.generator.Name(), "circuit_open").Inc()
		return nil, fmt.Errorf("%s: %w", g.generator.Name(), ErrUpstreamUnavailable)
	}
	result, err := g.generator.Generate(ctx, req)
	if err != nil {
		cb.RecordFailure()
		metrics.UpstreamErrors.WithLabelValues(g.generator.Name(), "generate_failed").Inc()
		return nil, err
	}
	cb.RecordSuccess()
	return result, nil
}

// LogRequest records one completed request in the durable request log.
// Failures are logged and swallowed; auditing never breaks the request path.
func (g *Gateway) LogRequest(ctx context.Context, entry requestlog.Entry) {
	if entry.RequestID == "" {
		entry.RequestID = logging.RequestIDFromContext(ctx)
	}
	if err := g.logWriter.Write(ctx, entry); err != nil {
		logging.FromContext(ctx).Warn("request log write failed", "error", err.Error())
	}
}

// Close stops the background sweeps, flushes pending persistence writes, and
// closes the request log.
func (g *Gateway) Close() {
	for _, l := range g.limiters {
		l.Stop()
	}
	if g.store != nil {
		g.store.Close()
	}
	if g.logCloser != nil {
		_ = g.logCloser.Close()
	}
}
