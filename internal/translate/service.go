package translate

import (
	"context"
	"errors"
	"strings"

	"github.com/lexiqai/assist-gateway/internal/capability"
	"github.com/lexiqai/assist-gateway/internal/config"
	"github.com/lexiqai/assist-gateway/internal/llm"
	"github.com/lexiqai/assist-gateway/internal/observability"
	"github.com/lexiqai/assist-gateway/internal/resilience"
)

// autoSource is reported when the source language cannot be determined
const autoSource = "auto"

// minReliableConfidence is the detector confidence below which the source
// language is reported as auto
const minReliableConfidence = 0.5

var errNoLanguage = errors.New("no language could be identified in the text")

// Result is a provider translation
type Result struct {
	Text           string
	SourceLanguage string
}

// Translator translates text into the language identified by target (ISO 639-1)
type Translator interface {
	Translate(ctx context.Context, text, target string) (Result, error)
}

// Translation is the response of Service.Translate
type Translation struct {
	Translated     string `json:"translated"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	TargetCode     string `json:"target_code"`
}

// Detection is the response of Service.DetectLanguage
type Detection struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

// Service is the translation and language detection capability
type Service struct {
	*capability.Lifecycle
	translator Translator
	detector   Detector
	catalog    *Catalog
	guard      *resilience.Guard
	info       capability.Info
}

// NewService wraps a translator that is ready to use
func NewService(translator Translator, detector Detector, catalog *Catalog, guard *resilience.Guard, info capability.Info) *Service {
	s := &Service{translator: translator, detector: detector, catalog: catalog, guard: guard}
	s.info = withLanguages(info, catalog)
	s.Lifecycle = capability.NewLifecycle(capability.Translation, nil)
	return s
}

// NewLazyService builds its translator on first use
func NewLazyService(build func(ctx context.Context) (Translator, error), detector Detector, catalog *Catalog, guard *resilience.Guard, info capability.Info) *Service {
	s := &Service{detector: detector, catalog: catalog, guard: guard}
	s.info = withLanguages(info, catalog)
	s.Lifecycle = capability.NewLifecycle(capability.Translation, func(ctx context.Context) error {
		t, err := build(context.WithoutCancel(ctx))
		if err != nil {
			return capability.Unavailable(capability.Translation, "failed to create translation client", err)
		}
		s.translator = t
		return nil
	}).WithInitTimeout(guard.Timeout())
	return s
}

// NewDisabledService returns a service that rejects every call with reason
func NewDisabledService(reason string, catalog *Catalog, info capability.Info) *Service {
	return &Service{
		Lifecycle: capability.NewDisabledLifecycle(capability.Translation, reason),
		catalog:   catalog,
		info:      withLanguages(info, catalog),
	}
}

// NewFromConfig selects the provider configured for translation
func NewFromConfig(cfg *config.Config, guard *resilience.Guard) (*Service, error) {
	catalog, err := NewCatalog(cfg.TranslationLanguages)
	if err != nil {
		return nil, err
	}

	info := capability.Info{Provider: cfg.TranslationProvider}
	if disabled, reason := cfg.Disabled(capability.Translation); disabled {
		return NewDisabledService(reason, catalog, info), nil
	}

	detector := NgramDetector{}
	switch cfg.TranslationProvider {
	case "google-cloud":
		info.Device = "google-cloud-api"
		if cfg.GoogleTranslateAPIKey == "" {
			return NewDisabledService("GOOGLE_TRANSLATE_API_KEY not configured", catalog, info), nil
		}
		return NewLazyService(func(ctx context.Context) (Translator, error) {
			return NewCloud(ctx, cfg.GoogleTranslateAPIKey)
		}, detector, catalog, guard, info), nil
	case "llm":
		var provider llm.Provider
		switch {
		case cfg.GroqAPIKey != "":
			info.Model = cfg.GroqModel
			provider = llm.NewOpenAIChat(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.GroqModel, false)
		case cfg.OpenAIAPIKey != "":
			info.Model = cfg.OpenAIChatModel
			provider = llm.NewOpenAIChat(cfg.OpenAIAPIKey, "", cfg.OpenAIChatModel, false)
		default:
			return NewDisabledService("GROQ_API_KEY or OPENAI_API_KEY required for LLM translation", catalog, info), nil
		}
		info.Device = "llm-api"
		return NewService(NewLLMTranslator(provider, catalog), detector, catalog, guard, info), nil
	default:
		info.Device = "google-web"
		return NewService(NewGoogleFree(cfg.GoogleTranslateURL, nil), detector, catalog, guard, info), nil
	}
}

func withLanguages(info capability.Info, catalog *Catalog) capability.Info {
	if catalog != nil {
		info.SupportedLanguages = catalog.Names()
	}
	return info
}

// Info describes the configured provider
func (s *Service) Info() capability.Info {
	return s.info
}

// SupportedLanguages lists the target language names accepted by Translate
func (s *Service) SupportedLanguages() []string {
	if s.catalog == nil {
		return []string{}
	}
	return s.catalog.Names()
}

// Translate translates text into targetLanguage, given as an English name
// ("Hindi") or a code ("hi").
func (s *Service) Translate(ctx context.Context, text, targetLanguage string) (Translation, error) {
	if strings.TrimSpace(text) == "" {
		return Translation{}, capability.Validation(capability.Translation, "Text cannot be empty")
	}
	if strings.TrimSpace(targetLanguage) == "" {
		return Translation{}, capability.Validation(capability.Translation, "No target language provided")
	}
	if err := s.Initialize(ctx); err != nil {
		return Translation{}, err
	}

	lang, ok := s.catalog.Lookup(targetLanguage)
	if !ok {
		return Translation{}, capability.Unsupported(capability.Translation, "Unsupported language: "+targetLanguage)
	}

	var result Result
	err := capability.Call(ctx, capability.Translation, "Translation failed", s.guard, func(ctx context.Context) error {
		r, err := s.translator.Translate(ctx, text, lang.Code)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return Translation{}, err
	}

	source := autoSource
	if code, confidence, ok := s.detector.Detect(text); ok && confidence >= minReliableConfidence {
		source = code
	} else if result.SourceLanguage != "" {
		source = result.SourceLanguage
	}

	observability.LoggerFromContext(ctx).Debug().
		Str("source", source).
		Str("target", lang.Code).
		Int("chars", len(text)).
		Msg("Translation finished")

	return Translation{
		Translated:     result.Text,
		SourceLanguage: source,
		TargetLanguage: lang.Name,
		TargetCode:     lang.Code,
	}, nil
}

// DetectLanguage identifies the language of text
func (s *Service) DetectLanguage(ctx context.Context, text string) (Detection, error) {
	if strings.TrimSpace(text) == "" {
		return Detection{}, capability.Validation(capability.Translation, "Text cannot be empty")
	}
	if err := s.Initialize(ctx); err != nil {
		return Detection{}, err
	}

	code, confidence, ok := s.detector.Detect(text)
	if !ok {
		return Detection{}, capability.ProviderFailure(capability.Translation, "Language detection failed", errNoLanguage)
	}
	return Detection{Language: code, Confidence: confidence}, nil
}
