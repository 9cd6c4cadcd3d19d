package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/lexiqai/assist-gateway/internal/audio"
	"github.com/lexiqai/assist-gateway/internal/resilience"
)

// Synthesizer turns text into a normalized clip
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (*audio.Clip, error)
}

// Pinger is implemented by synthesizers that must be loaded before use
type Pinger interface {
	Ping(ctx context.Context) error
}

// LocalPipeline calls the speech synthesis sidecar that hosts the
// transformer model. The sidecar answers with raw samples, which are run
// through the audio encoding path here.
type LocalPipeline struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

type pipelineRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
	Model string `json:"model,omitempty"`
}

type pipelineResponse struct {
	SamplingRate int             `json:"sampling_rate"`
	Channels     int             `json:"channels"`
	Dtype        string          `json:"dtype"`
	Audio        json.RawMessage `json:"audio"`
	Error        string          `json:"error"`
}

// NewLocalPipeline creates a client for the sidecar at baseURL
func NewLocalPipeline(baseURL, model string, httpClient *http.Client) *LocalPipeline {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &LocalPipeline{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: httpClient,
	}
}

// Ping checks that the sidecar has its model loaded
func (p *LocalPipeline) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach speech pipeline: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("speech pipeline health returned status %d", resp.StatusCode)
	}
	return nil
}

// Synthesize runs the pipeline on text
func (p *LocalPipeline) Synthesize(ctx context.Context, text, voice string) (*audio.Clip, error) {
	body, err := json.Marshal(pipelineRequest{Text: text, Voice: voice, Model: p.model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	var out pipelineResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("speech pipeline returned status %d", resp.StatusCode)
		if decodeErr == nil && out.Error != "" {
			statusErr = fmt.Errorf("speech pipeline returned status %d: %s", resp.StatusCode, out.Error)
		}
		switch resp.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			// sidecar restarting or still loading the model
			return nil, resilience.NewRetryableError(statusErr)
		}
		return nil, statusErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode speech pipeline response: %w", decodeErr)
	}

	buf, err := audio.Materialize(out.Audio, out.Dtype, out.SamplingRate, out.Channels)
	if err != nil {
		return nil, err
	}
	return audio.Encode(buf)
}

// OpenAISpeech synthesizes with the OpenAI speech endpoint, requesting WAV
type OpenAISpeech struct {
	client *openai.Client
	model  string
}

// NewOpenAISpeech creates a speech provider. baseURL may be empty.
func NewOpenAISpeech(apiKey, baseURL, model string) *OpenAISpeech {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAISpeech{client: openai.NewClientWithConfig(cfg), model: model}
}

// Synthesize requests speech and decodes the returned WAV
func (o *OpenAISpeech) Synthesize(ctx context.Context, text, voice string) (*audio.Clip, error) {
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech response: %w", err)
	}
	if len(data) == 0 {
		return nil, audio.ErrNoOutput
	}
	return audio.DecodeWAV(data)
}
