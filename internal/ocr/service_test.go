package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/lexiqai/assist-gateway/internal/capability"
	"github.com/lexiqai/assist-gateway/internal/config"
	"github.com/lexiqai/assist-gateway/internal/resilience"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)

type fakeExtractor struct {
	calls    int
	language string
	img      Image
	text     string
	err      error
}

func (f *fakeExtractor) ExtractText(ctx context.Context, img Image, language string) (string, error) {
	f.calls++
	f.img = img
	f.language = language
	return f.text, f.err
}

func testGuard() *resilience.Guard {
	return resilience.NewGuard(nil, &resilience.RetryConfig{MaxAttempts: 1}, time.Second)
}

func TestDecodeImage(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(pngBytes)

	tests := []struct {
		name  string
		input string
	}{
		{"plain", encoded},
		{"data uri", "data:image/png;base64," + encoded},
		{"wrapped lines", encoded[:10] + "\n" + encoded[10:]},
		{"unpadded", strings.TrimRight(encoded, "=")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := DecodeImage(tt.input)
			require.NoError(t, err)
			require.Equal(t, pngBytes, img.Data)
			require.Equal(t, "image/png", img.MimeType)
		})
	}
}

func TestDecodeImage_UnknownTypeIsJPEG(t *testing.T) {
	img, err := DecodeImage(base64.StdEncoding.EncodeToString([]byte("some bytes")))
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", img.MimeType)
	require.True(t, strings.HasPrefix(img.DataURI(), "data:image/jpeg;base64,"))
}

func TestExtractText_Validation(t *testing.T) {
	fake := &fakeExtractor{text: "unused"}
	s := NewService(fake, testGuard(), capability.Info{})

	for _, input := range []string{"", "   ", "data:image/png;base64,", "!!!not-base64!!!"} {
		_, err := s.ExtractText(context.Background(), input, "")
		require.Equal(t, capability.KindValidation, capability.KindOf(err), "input %q", input)
	}
	require.Zero(t, fake.calls)
}

func TestExtractText_DefaultsLanguage(t *testing.T) {
	fake := &fakeExtractor{text: "  Hello world \n"}
	s := NewService(fake, testGuard(), capability.Info{})

	text, err := s.ExtractText(context.Background(), base64.StdEncoding.EncodeToString(pngBytes), "")
	require.NoError(t, err)
	require.Equal(t, "Hello world", text)
	require.Equal(t, "eng", fake.language)
	require.Equal(t, pngBytes, fake.img.Data)
}

func TestNewFromConfig_MissingKeyDisables(t *testing.T) {
	s := NewFromConfig(&config.Config{OCRProvider: "ocrspace"}, testGuard())

	_, err := s.ExtractText(context.Background(), base64.StdEncoding.EncodeToString(pngBytes), "")
	require.Equal(t, capability.KindDisabled, capability.KindOf(err))
	require.Contains(t, err.Error(), "OCR_API_KEY")
}

func TestNewLazyService_BuildFailureIsSticky(t *testing.T) {
	builds := 0
	s := NewLazyService(func(ctx context.Context) (Extractor, error) {
		builds++
		return nil, errors.New("credentials file not found")
	}, testGuard(), capability.Info{})

	for i := 0; i < 2; i++ {
		_, err := s.ExtractText(context.Background(), base64.StdEncoding.EncodeToString(pngBytes), "")
		require.Equal(t, capability.KindProviderUnavailable, capability.KindOf(err))
	}
	require.Equal(t, 1, builds)
}

func TestOCRSpace_ExtractText(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		form = map[string]string{
			"apikey":            r.PostForm.Get("apikey"),
			"language":          r.PostForm.Get("language"),
			"base64Image":       r.PostForm.Get("base64Image"),
			"isOverlayRequired": r.PostForm.Get("isOverlayRequired"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ParsedResults":[{"ParsedText":"Line one\r\n"},{"ParsedText":""},{"ParsedText":"Line two"}],"OCRExitCode":1,"IsErroredOnProcessing":false,"ErrorMessage":null}`))
	}))
	defer srv.Close()

	s := NewService(NewOCRSpace("secret", srv.URL, nil), testGuard(), capability.Info{})
	text, err := s.ExtractText(context.Background(), base64.StdEncoding.EncodeToString(pngBytes), "fre")
	require.NoError(t, err)
	require.Equal(t, "Line one\r\n\nLine two", text)

	require.Equal(t, "secret", form["apikey"])
	require.Equal(t, "fre", form["language"])
	require.Equal(t, "false", form["isOverlayRequired"])
	require.True(t, strings.HasPrefix(form["base64Image"], "data:image/png;base64,"))
}

func TestOCRSpace_ProcessingError(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"list", `["Unable to recognize the file type","E216"]`, "Unable to recognize the file type; E216"},
		{"string", `"Timed out waiting for results"`, "Timed out waiting for results"},
		{"missing", `null`, "Unknown error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"IsErroredOnProcessing":true,"OCRExitCode":3,"ErrorMessage":` + tt.message + `}`))
			}))
			defer srv.Close()

			s := NewService(NewOCRSpace("secret", srv.URL, nil), testGuard(), capability.Info{})
			_, err := s.ExtractText(context.Background(), base64.StdEncoding.EncodeToString(pngBytes), "")
			require.Equal(t, capability.KindProvider, capability.KindOf(err))

			var capErr *capability.Error
			require.True(t, errors.As(err, &capErr))
			require.Contains(t, capErr.Details(), tt.want)
		})
	}
}

func TestOCRSpace_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ParsedResults":[],"IsErroredOnProcessing":false}`))
	}))
	defer srv.Close()

	s := NewService(NewOCRSpace("secret", srv.URL, nil), testGuard(), capability.Info{})
	text, err := s.ExtractText(context.Background(), base64.StdEncoding.EncodeToString(pngBytes), "")
	require.NoError(t, err)
	require.Equal(t, "", text)
}

func TestVision_ExtractText(t *testing.T) {
	var req struct {
		Requests []struct {
			Image struct {
				Content string `json:"content"`
			} `json:"image"`
			Features []struct {
				Type string `json:"type"`
			} `json:"features"`
			ImageContext struct {
				LanguageHints []string `json:"languageHints"`
			} `json:"imageContext"`
		} `json:"requests"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"responses":[{"fullTextAnnotation":{"text":"Hello\nWorld\n"}}]}`))
	}))
	defer srv.Close()

	v, err := NewVision(context.Background(), "key", "", option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	s := NewService(v, testGuard(), capability.Info{})
	text, err := s.ExtractText(context.Background(), base64.StdEncoding.EncodeToString(pngBytes), "eng")
	require.NoError(t, err)
	require.Equal(t, "Hello\nWorld", text)

	require.Len(t, req.Requests, 1)
	require.Equal(t, "DOCUMENT_TEXT_DETECTION", req.Requests[0].Features[0].Type)
	require.Equal(t, []string{"en"}, req.Requests[0].ImageContext.LanguageHints)
	require.Equal(t, base64.StdEncoding.EncodeToString(pngBytes), req.Requests[0].Image.Content)
}

func TestVision_ResponseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"responses":[{"error":{"code":3,"message":"Bad image data."}}]}`))
	}))
	defer srv.Close()

	v, err := NewVision(context.Background(), "key", "", option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	s := NewService(v, testGuard(), capability.Info{})
	_, err = s.ExtractText(context.Background(), base64.StdEncoding.EncodeToString(pngBytes), "")
	require.Equal(t, capability.KindProvider, capability.KindOf(err))
	require.Contains(t, err.Error(), "Bad image data.")
}

func TestLanguageHint(t *testing.T) {
	require.Equal(t, "en", languageHint("eng"))
	require.Equal(t, "hi", languageHint("hin"))
	require.Equal(t, "", languageHint("auto"))
	require.Equal(t, "", languageHint("not a language"))
}
