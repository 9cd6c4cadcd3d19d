package translate

import (
	"context"
	"errors"
	"fmt"
	"html"

	"google.golang.org/api/option"
	gtranslate "google.golang.org/api/translate/v2"
)

// Cloud uses the Google Cloud Translation v2 API
type Cloud struct {
	svc *gtranslate.Service
}

// NewCloud creates a Cloud Translation client. Extra options are appended
// after the API key.
func NewCloud(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Cloud, error) {
	if apiKey == "" {
		return nil, errors.New("no Google Cloud Translation API key configured")
	}
	svc, err := gtranslate.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create translation client: %w", err)
	}
	return &Cloud{svc: svc}, nil
}

// Translate implements Translator
func (c *Cloud) Translate(ctx context.Context, text, target string) (Result, error) {
	resp, err := c.svc.Translations.List([]string{text}, target).Format("text").Context(ctx).Do()
	if err != nil {
		return Result{}, err
	}
	if len(resp.Translations) == 0 {
		return Result{}, errors.New("translation response contained no text")
	}
	t := resp.Translations[0]
	return Result{
		Text:           html.UnescapeString(t.TranslatedText),
		SourceLanguage: t.DetectedSourceLanguage,
	}, nil
}
