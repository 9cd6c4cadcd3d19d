package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

// maxChunkChars keeps each request under the web endpoint's length limit
const maxChunkChars = 4500

// GoogleFree uses the keyless Google web translation endpoint
type GoogleFree struct {
	endpoint   string
	httpClient *http.Client
}

// NewGoogleFree creates a translator for endpoint (translate_a/single)
func NewGoogleFree(endpoint string, httpClient *http.Client) *GoogleFree {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &GoogleFree{endpoint: endpoint, httpClient: httpClient}
}

// Translate translates text chunk by chunk with automatic source detection
func (g *GoogleFree) Translate(ctx context.Context, text, target string) (Result, error) {
	var (
		out    strings.Builder
		source string
	)
	for _, chunk := range splitText(text, maxChunkChars) {
		translated, detected, err := g.translateChunk(ctx, chunk, target)
		if err != nil {
			return Result{}, err
		}
		out.WriteString(translated)
		if source == "" {
			source = detected
		}
	}
	return Result{Text: out.String(), SourceLanguage: source}, nil
}

func (g *GoogleFree) translateChunk(ctx context.Context, text, target string) (string, string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", "auto")
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("failed to read translation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("translation endpoint returned status %d", resp.StatusCode)
	}
	return parseGoogleFree(body)
}

// parseGoogleFree reads the positional array the endpoint answers with:
// [[["translated","original",...],...],null,"detected-source",...]
func parseGoogleFree(body []byte) (string, string, error) {
	var top []json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil || len(top) == 0 {
		return "", "", errors.New("malformed translation response")
	}

	var segments [][]json.RawMessage
	if err := json.Unmarshal(top[0], &segments); err != nil {
		return "", "", errors.New("malformed translation segments")
	}

	var out strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(seg[0], &s); err == nil {
			out.WriteString(s)
		}
	}
	if out.Len() == 0 {
		return "", "", errors.New("translation response contained no text")
	}

	var source string
	if len(top) > 2 {
		_ = json.Unmarshal(top[2], &source)
	}
	return out.String(), source, nil
}

// splitText cuts text into pieces of at most max runes, preferring to break
// after a newline, then after sentence punctuation, then after a space.
func splitText(text string, max int) []string {
	var chunks []string
	for utf8.RuneCountInString(text) > max {
		runes := []rune(text)
		cut := max
		for _, seps := range []string{"\n", ".!?。।", " "} {
			if i := lastIndexAny(runes[:max], seps); i > max/2 {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		text = string(runes[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

func lastIndexAny(runes []rune, chars string) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if strings.ContainsRune(chars, runes[i]) {
			return i
		}
	}
	return -1
}
