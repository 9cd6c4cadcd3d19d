package ocr

import (
	"context"
	"errors"
	"strings"

	"github.com/lexiqai/assist-gateway/internal/capability"
	"github.com/lexiqai/assist-gateway/internal/config"
	"github.com/lexiqai/assist-gateway/internal/resilience"
)

// DefaultLanguage is used when a request names none
const DefaultLanguage = "eng"

var (
	errEmptyImage    = errors.New("empty image payload")
	errInvalidBase64 = errors.New("invalid base64 image data")
)

// Extractor reads the text in an image
type Extractor interface {
	ExtractText(ctx context.Context, img Image, language string) (string, error)
}

// Service is the OCR capability
type Service struct {
	*capability.Lifecycle
	extractor Extractor
	guard     *resilience.Guard
	info      capability.Info
}

// NewService wraps an extractor that is ready to use
func NewService(extractor Extractor, guard *resilience.Guard, info capability.Info) *Service {
	s := &Service{extractor: extractor, guard: guard, info: info}
	s.Lifecycle = capability.NewLifecycle(capability.OCR, nil)
	return s
}

// NewLazyService builds its extractor on first use. build failures are
// sticky like any other initialization failure. The client keeps the
// context it is built with, so build never sees a cancellable one.
func NewLazyService(build func(ctx context.Context) (Extractor, error), guard *resilience.Guard, info capability.Info) *Service {
	s := &Service{guard: guard, info: info}
	s.Lifecycle = capability.NewLifecycle(capability.OCR, func(ctx context.Context) error {
		e, err := build(context.WithoutCancel(ctx))
		if err != nil {
			return capability.Unavailable(capability.OCR, "failed to create OCR client", err)
		}
		s.extractor = e
		return nil
	}).WithInitTimeout(guard.Timeout())
	return s
}

// NewDisabledService returns a service that rejects every call with reason
func NewDisabledService(reason string, info capability.Info) *Service {
	return &Service{
		Lifecycle: capability.NewDisabledLifecycle(capability.OCR, reason),
		info:      info,
	}
}

// NewFromConfig selects the provider configured for OCR
func NewFromConfig(cfg *config.Config, guard *resilience.Guard) *Service {
	info := capability.Info{Provider: cfg.OCRProvider}
	if disabled, reason := cfg.Disabled(capability.OCR); disabled {
		return NewDisabledService(reason, info)
	}

	switch cfg.OCRProvider {
	case "vision":
		info.Model = "DOCUMENT_TEXT_DETECTION"
		info.Device = "google-vision-api"
		if cfg.GoogleVisionAPIKey == "" && cfg.GoogleApplicationCredentials == "" {
			return NewDisabledService("Google Vision credentials not configured. Please set GOOGLE_VISION_API_KEY or GOOGLE_APPLICATION_CREDENTIALS.", info)
		}
		return NewLazyService(func(ctx context.Context) (Extractor, error) {
			return NewVision(ctx, cfg.GoogleVisionAPIKey, cfg.GoogleApplicationCredentials)
		}, guard, info)
	default:
		info.Device = "ocrspace-api"
		if cfg.OCRAPIKey == "" {
			return NewDisabledService("OCR API key not configured. Please set OCR_API_KEY environment variable.", info)
		}
		return NewService(NewOCRSpace(cfg.OCRAPIKey, cfg.OCRAPIURL, nil), guard, info)
	}
}

// Info describes the configured provider
func (s *Service) Info() capability.Info {
	return s.info
}

// ExtractText decodes a base64 image (data-URI prefix optional) and returns
// the recognized text, trimmed. An image without text yields "".
func (s *Service) ExtractText(ctx context.Context, image, language string) (string, error) {
	img, err := DecodeImage(image)
	switch {
	case errors.Is(err, errEmptyImage):
		return "", capability.Validation(capability.OCR, "No image provided")
	case err != nil:
		return "", capability.Validation(capability.OCR, "Invalid base64 image data")
	}

	language = strings.TrimSpace(language)
	if language == "" {
		language = DefaultLanguage
	}

	if err := s.Initialize(ctx); err != nil {
		return "", err
	}

	var text string
	err = capability.Call(ctx, capability.OCR, "OCR processing failed", s.guard, func(ctx context.Context) error {
		t, err := s.extractor.ExtractText(ctx, img, language)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
