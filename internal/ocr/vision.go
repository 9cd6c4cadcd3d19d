package ocr

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/text/language"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

// Vision uses Google Cloud Vision document text detection
type Vision struct {
	svc *vision.Service
}

// NewVision creates a Vision client authenticated with an API key or a
// service account credentials file. Extra options are appended, which lets
// tests point the client at a fake endpoint.
func NewVision(ctx context.Context, apiKey, credentialsFile string, opts ...option.ClientOption) (*Vision, error) {
	var auth []option.ClientOption
	switch {
	case apiKey != "":
		auth = append(auth, option.WithAPIKey(apiKey))
	case credentialsFile != "":
		auth = append(auth, option.WithCredentialsFile(credentialsFile))
	default:
		return nil, errors.New("no Google Vision credentials configured")
	}

	svc, err := vision.NewService(ctx, append(auth, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &Vision{svc: svc}, nil
}

// ExtractText runs DOCUMENT_TEXT_DETECTION on the image
func (v *Vision) ExtractText(ctx context.Context, img Image, lang string) (string, error) {
	req := &vision.AnnotateImageRequest{
		Image:    &vision.Image{Content: img.Base64()},
		Features: []*vision.Feature{{Type: "DOCUMENT_TEXT_DETECTION"}},
	}
	if hint := languageHint(lang); hint != "" {
		req.ImageContext = &vision.ImageContext{LanguageHints: []string{hint}}
	}

	resp, err := v.svc.Images.Annotate(&vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{req},
	}).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(resp.Responses) == 0 {
		return "", errors.New("vision returned no responses")
	}

	r := resp.Responses[0]
	if r.Error != nil && r.Error.Message != "" {
		return "", fmt.Errorf("vision error %d: %s", r.Error.Code, r.Error.Message)
	}
	if r.FullTextAnnotation == nil {
		return "", nil
	}
	return r.FullTextAnnotation.Text, nil
}

// languageHint maps OCR.space style codes ("eng", "hin") to the BCP 47
// base language Vision expects ("en", "hi").
func languageHint(lang string) string {
	if lang == "" || lang == "auto" {
		return ""
	}
	base, err := language.ParseBase(lang)
	if err != nil {
		return ""
	}
	return base.String()
}
