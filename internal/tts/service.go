package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/lexiqai/assist-gateway/internal/audio"
	"github.com/lexiqai/assist-gateway/internal/capability"
	"github.com/lexiqai/assist-gateway/internal/config"
	"github.com/lexiqai/assist-gateway/internal/objectstore"
	"github.com/lexiqai/assist-gateway/internal/observability"
	"github.com/lexiqai/assist-gateway/internal/resilience"
)

const silenceFrameMs = 20

// AudioCache stores synthesized WAV payloads by key
type AudioCache interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// Options tunes the TTS service
type Options struct {
	DefaultVoice     string
	TrimSilence      bool
	SilenceThreshold float64
	Cache            AudioCache // optional
}

// Service is the text-to-speech capability
type Service struct {
	*capability.Lifecycle
	synth Synthesizer
	guard *resilience.Guard
	info  capability.Info
	opts  Options
}

// NewService wraps synth
func NewService(synth Synthesizer, guard *resilience.Guard, info capability.Info, opts Options) *Service {
	s := &Service{synth: synth, guard: guard, info: info, opts: opts}
	s.Lifecycle = capability.NewLifecycle(capability.TTS, s.setup).WithInitTimeout(guard.Timeout())
	return s
}

// NewDisabledService returns a service that rejects every call with reason
func NewDisabledService(reason string, info capability.Info) *Service {
	return &Service{
		Lifecycle: capability.NewDisabledLifecycle(capability.TTS, reason),
		info:      info,
	}
}

// NewFromConfig selects the provider configured for speech synthesis
func NewFromConfig(cfg *config.Config, guard *resilience.Guard, cache AudioCache) *Service {
	info := capability.Info{Provider: cfg.TTSProvider}
	if disabled, reason := cfg.Disabled(capability.TTS); disabled {
		return NewDisabledService(reason, info)
	}

	opts := Options{
		DefaultVoice:     cfg.TTSDefaultVoice,
		TrimSilence:      cfg.TTSTrimSilence,
		SilenceThreshold: cfg.TTSSilenceThreshold,
		Cache:            cache,
	}

	switch cfg.TTSProvider {
	case "openai":
		info.Model = cfg.OpenAITTSModel
		info.Device = "openai-api"
		if cfg.OpenAIAPIKey == "" {
			return NewDisabledService("OPENAI_API_KEY not configured", info)
		}
		return NewService(NewOpenAISpeech(cfg.OpenAIAPIKey, "", cfg.OpenAITTSModel), guard, info, opts)
	default:
		info.Model = cfg.TTSModel
		info.Device = "local-pipeline"
		if cfg.LocalTTSURL == "" {
			return NewDisabledService("LOCAL_TTS_URL not configured", info)
		}
		return NewService(NewLocalPipeline(cfg.LocalTTSURL, cfg.TTSModel, nil), guard, info, opts)
	}
}

func (s *Service) setup(ctx context.Context) error {
	if p, ok := s.synth.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return capability.Unavailable(capability.TTS, "failed to load speech model", err)
		}
	}
	return nil
}

// Info describes the configured provider
func (s *Service) Info() capability.Info {
	return s.info
}

// Synthesize converts text to a normalized PCM16 clip
func (s *Service) Synthesize(ctx context.Context, text, voice string) (*audio.Clip, error) {
	if strings.TrimSpace(text) == "" {
		return nil, capability.Validation(capability.TTS, "No text provided")
	}
	if voice == "" {
		voice = s.opts.DefaultVoice
	}
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}

	key := s.cacheKey(text, voice)
	if clip := s.lookup(ctx, key); clip != nil {
		return clip, nil
	}

	var clip *audio.Clip
	err := capability.Call(ctx, capability.TTS, "speech synthesis failed", s.guard, func(ctx context.Context) error {
		c, err := s.synth.Synthesize(ctx, text, voice)
		if err != nil {
			return err
		}
		clip = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if clip == nil || len(clip.PCM) == 0 {
		return nil, capability.ProviderFailure(capability.TTS, "speech synthesis failed", audio.ErrNoOutput)
	}

	if s.opts.TrimSilence {
		clip = clip.TrimSilence(silenceFrameMs, s.opts.SilenceThreshold)
	}

	observability.LoggerFromContext(ctx).Debug().
		Int("sampling_rate", clip.SampleRate).
		Float64("duration_s", clip.Duration()).
		Msg("Speech synthesized")

	s.store(ctx, key, clip)
	return clip, nil
}

// SynthesizeWAV returns the clip as WAV bytes and its sampling rate
func (s *Service) SynthesizeWAV(ctx context.Context, text, voice string) ([]byte, int, error) {
	clip, err := s.Synthesize(ctx, text, voice)
	if err != nil {
		return nil, 0, err
	}
	return clip.WAV(), clip.SampleRate, nil
}

// SynthesizeBase64 returns the clip as a base64 WAV envelope
func (s *Service) SynthesizeBase64(ctx context.Context, text, voice string) (audio.Envelope, error) {
	clip, err := s.Synthesize(ctx, text, voice)
	if err != nil {
		return audio.Envelope{}, err
	}
	return clip.Envelope(), nil
}

func (s *Service) cacheKey(text, voice string) string {
	sum := sha256.Sum256([]byte(s.info.Provider + "|" + s.info.Model + "|" + voice + "|" + text))
	return hex.EncodeToString(sum[:])
}

// lookup never fails a request: cache errors are logged and treated as a miss
func (s *Service) lookup(ctx context.Context, key string) *audio.Clip {
	if s.opts.Cache == nil {
		return nil
	}
	logger := observability.LoggerFromContext(ctx)

	data, err := s.opts.Cache.Download(ctx, key)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			observability.RecordCacheLookup("miss")
		} else {
			observability.RecordCacheLookup("error")
			logger.Warn().Err(err).Msg("Audio cache lookup failed")
		}
		return nil
	}

	clip, err := audio.DecodeWAV(data)
	if err != nil {
		observability.RecordCacheLookup("error")
		logger.Warn().Err(err).Str("key", key).Msg("Discarding unreadable cached clip")
		return nil
	}
	observability.RecordCacheLookup("hit")
	return clip
}

func (s *Service) store(ctx context.Context, key string, clip *audio.Clip) {
	if s.opts.Cache == nil {
		return
	}
	if err := s.opts.Cache.Upload(ctx, key, clip.WAV()); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Failed to cache synthesized audio")
	}
}
