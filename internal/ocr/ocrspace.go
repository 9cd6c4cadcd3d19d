package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// OCRSpace calls the OCR.space parse/image endpoint
type OCRSpace struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
}

type ocrSpaceResponse struct {
	ParsedResults []struct {
		ParsedText        string `json:"ParsedText"`
		FileParseExitCode int    `json:"FileParseExitCode"`
	} `json:"ParsedResults"`
	OCRExitCode           int             `json:"OCRExitCode"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

// NewOCRSpace creates an OCR.space client
func NewOCRSpace(apiKey, apiURL string, httpClient *http.Client) *OCRSpace {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &OCRSpace{apiKey: apiKey, apiURL: apiURL, httpClient: httpClient}
}

// ExtractText posts the image and joins the text of every parsed result
func (o *OCRSpace) ExtractText(ctx context.Context, img Image, language string) (string, error) {
	form := url.Values{}
	form.Set("apikey", o.apiKey)
	form.Set("language", language)
	form.Set("isOverlayRequired", "false")
	form.Set("base64Image", img.DataURI())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("OCR API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read OCR response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OCR API returned status %d: %s", resp.StatusCode, truncate(string(body), 256))
	}

	var result ocrSpaceResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("malformed OCR response: %w", err)
	}
	if result.IsErroredOnProcessing {
		return "", fmt.Errorf("OCR processing error: %s", errorMessage(result.ErrorMessage))
	}

	var parts []string
	for _, r := range result.ParsedResults {
		if r.ParsedText != "" {
			parts = append(parts, r.ParsedText)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n")), nil
}

// errorMessage flattens ErrorMessage, which OCR.space sends as either a
// string or a list of strings.
func errorMessage(raw json.RawMessage) string {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return strings.Join(list, "; ")
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single
	}
	return "Unknown error"
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
