package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the assist gateway service
type Config struct {
	// Server configuration
	Port      string `envconfig:"PORT" default:"6969"`
	EagerInit bool   `envconfig:"EAGER_INIT" default:"false"` // Initialize every capability at startup instead of on first request

	// Summarization / chat configuration
	SummarizationProvider string `envconfig:"SUMMARIZATION_PROVIDER" default:"groq"` // groq, local, openai
	GroqAPIKey            string `envconfig:"GROQ_API_KEY" default:""`
	GroqModel             string `envconfig:"GROQ_MODEL" default:"llama-3.1-8b-instant"`
	GroqBaseURL           string `envconfig:"GROQ_BASE_URL" default:"https://api.groq.com/openai/v1"`
	LocalLLMURL           string `envconfig:"LOCAL_LLM_URL" default:""`                        // OpenAI-compatible text-generation pipeline
	LocalLLMModel         string `envconfig:"LOCAL_LLM_MODEL" default:"NousResearch/Hermes-3-Llama-3.1-8B"`
	OpenAIAPIKey          string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIChatModel       string `envconfig:"OPENAI_CHAT_MODEL" default:"gpt-4.1-mini"`

	// Text-to-speech configuration
	TTSProvider     string `envconfig:"TTS_PROVIDER" default:"local"` // local, openai
	LocalTTSURL     string `envconfig:"LOCAL_TTS_URL" default:""`     // Speech synthesis pipeline sidecar
	TTSModel        string `envconfig:"TTS_MODEL" default:"maya-research/maya1"`
	TTSDefaultVoice string `envconfig:"TTS_DEFAULT_VOICE" default:""`
	OpenAITTSModel  string `envconfig:"OPENAI_TTS_MODEL" default:"gpt-4o-mini-tts"`
	WSFrameSamples  int    `envconfig:"WS_FRAME_SAMPLES" default:"4096"` // PCM samples per WebSocket audio frame

	TTSTrimSilence      bool    `envconfig:"TTS_TRIM_SILENCE" default:"false"`    // Drop leading/trailing silence from synthesized clips
	TTSSilenceThreshold float64 `envconfig:"TTS_SILENCE_THRESHOLD" default:"200"` // RMS level below which a 20ms frame counts as silence

	// OCR configuration
	OCRProvider                  string `envconfig:"OCR_PROVIDER" default:"ocrspace"` // ocrspace, vision
	OCRAPIKey                    string `envconfig:"OCR_API_KEY" default:""`
	OCRAPIURL                    string `envconfig:"OCR_API_URL" default:"https://api.ocr.space/parse/image"`
	GoogleVisionAPIKey           string `envconfig:"GOOGLE_VISION_API_KEY" default:""`
	GoogleApplicationCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS" default:""`

	// Translation configuration
	TranslationProvider   string   `envconfig:"TRANSLATION_PROVIDER" default:"google-free"` // google-free, google-cloud, llm
	GoogleTranslateAPIKey string   `envconfig:"GOOGLE_TRANSLATE_API_KEY" default:""`
	GoogleTranslateURL    string   `envconfig:"GOOGLE_TRANSLATE_URL" default:"https://translate.googleapis.com/translate_a/single"`
	TranslationLanguages  []string `envconfig:"TRANSLATION_LANGUAGES" default:"hi,kn,ta,te,ml,fr,es,en"`

	// Audio cache (NATS JetStream object store)
	NATSURL          string `envconfig:"NATS_URL" default:""`
	AudioCacheBucket string `envconfig:"AUDIO_CACHE_BUCKET" default:"synthesized-audio"`
	AudioCacheTTL    int    `envconfig:"AUDIO_CACHE_TTL" default:"24"` // hours, 0 keeps clips forever

	// Capability overlay file (TOML)
	CapabilitiesFile string `envconfig:"CAPABILITIES_FILE" default:""`

	// Resilience configuration
	ProviderTimeout            int `envconfig:"PROVIDER_TIMEOUT" default:"60"`               // seconds per provider call
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`    // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"`  // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`              // Maximum attempts for transient network errors
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`         // Initial backoff in milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`          // NATS connection attempts at startup
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`            // Reconnection backoff in milliseconds

	// Observability configuration
	LogLevel          string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty         bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled    bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
	GRPCHealthEnabled bool   `envconfig:"GRPC_HEALTH_ENABLED" default:"false"`
	GRPCHealthPort    string `envconfig:"GRPC_HEALTH_PORT" default:"9090"`

	// Capabilities is populated from CapabilitiesFile, keyed by capability name.
	Capabilities map[string]CapabilityOverride `ignored:"true"`
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.CapabilitiesFile != "" {
		overrides, err := LoadCapabilities(cfg.CapabilitiesFile)
		if err != nil {
			return nil, err
		}
		cfg.Capabilities = overrides
		cfg.applyProviderOverrides()
	}

	return &cfg, nil
}

// validate rejects values that cannot work at all. Missing API keys are not
// errors: the matching capability is reported unavailable instead.
func (c *Config) validate() error {
	if err := oneOf("SUMMARIZATION_PROVIDER", c.SummarizationProvider, "groq", "local", "openai"); err != nil {
		return err
	}
	if err := oneOf("TTS_PROVIDER", c.TTSProvider, "local", "openai"); err != nil {
		return err
	}
	if err := oneOf("OCR_PROVIDER", c.OCRProvider, "ocrspace", "vision"); err != nil {
		return err
	}
	if err := oneOf("TRANSLATION_PROVIDER", c.TranslationProvider, "google-free", "google-cloud", "llm"); err != nil {
		return err
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.WSFrameSamples <= 0 {
		return fmt.Errorf("WS_FRAME_SAMPLES must be positive")
	}
	return nil
}

func (c *Config) applyProviderOverrides() {
	for name, o := range c.Capabilities {
		if o.Provider == "" {
			continue
		}
		switch name {
		case "summarization":
			c.SummarizationProvider = o.Provider
		case "tts":
			c.TTSProvider = o.Provider
		case "ocr":
			c.OCRProvider = o.Provider
		case "translation":
			c.TranslationProvider = o.Provider
		}
	}
}

// Disabled reports whether the capability was switched off in the overlay
// file, together with the configured reason.
func (c *Config) Disabled(capability string) (bool, string) {
	o, ok := c.Capabilities[capability]
	if !ok || o.Enabled == nil || *o.Enabled {
		return false, ""
	}
	reason := o.Reason
	if reason == "" {
		reason = fmt.Sprintf("%s service disabled", capability)
	}
	return true, reason
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), value)
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
