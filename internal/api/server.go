package api

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexiqai/assist-gateway/internal/capability"
	"github.com/lexiqai/assist-gateway/internal/llm"
	"github.com/lexiqai/assist-gateway/internal/observability"
	"github.com/lexiqai/assist-gateway/internal/ocr"
	"github.com/lexiqai/assist-gateway/internal/stream"
	"github.com/lexiqai/assist-gateway/internal/translate"
	"github.com/lexiqai/assist-gateway/internal/tts"
)

// Services are the capability services built at startup
type Services struct {
	LLM       *llm.Service
	TTS       *tts.Service
	OCR       *ocr.Service
	Translate *translate.Service
}

// Options tunes the router
type Options struct {
	Metrics         bool
	WSFrameSamples  int
	ReadinessChecks map[string]observability.HealthCheckFunc
}

// Server is the HTTP front door over the capability services
type Server struct {
	services Services
	registry *capability.Registry
	opts     Options
}

// NewServer registers every service with a fresh registry
func NewServer(services Services, opts Options) *Server {
	registry := capability.NewRegistry()
	registry.Register(services.LLM)
	registry.Register(services.TTS)
	registry.Register(services.OCR)
	registry.Register(services.Translate)
	if opts.WSFrameSamples <= 0 {
		opts.WSFrameSamples = 4096
	}
	return &Server{services: services, registry: registry, opts: opts}
}

// Registry exposes the registry for startup initialization and health
func (s *Server) Registry() *capability.Registry {
	return s.registry
}

// Handler returns the routed handler wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", observability.HealthCheckHandler(func() interface{} {
		return s.registry.Statuses()
	}))
	mux.HandleFunc("GET /ready", observability.ReadinessHandler(s.opts.ReadinessChecks))
	if s.opts.Metrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	mux.HandleFunc("POST /summarize", s.guarded(s.services.LLM, s.handleSummarize))
	mux.HandleFunc("POST /chat", s.guarded(s.services.LLM, s.handleChat))
	mux.HandleFunc("POST /synthesize", s.guarded(s.services.TTS, s.handleSynthesize))
	mux.HandleFunc("POST /synthesize_json", s.guarded(s.services.TTS, s.handleSynthesizeJSON))
	mux.HandleFunc("POST /tts", s.guarded(s.services.TTS, s.handleSynthesizeJSON))
	mux.HandleFunc("GET /ws/synthesize", s.guarded(s.services.TTS, stream.Handler(s.services.TTS, s.opts.WSFrameSamples)))
	mux.HandleFunc("POST /ocr", s.guarded(s.services.OCR, s.handleOCR))
	mux.HandleFunc("POST /translate", s.guarded(s.services.Translate, s.handleTranslate))
	mux.HandleFunc("POST /detect-language", s.guarded(s.services.Translate, s.handleDetectLanguage))
	mux.HandleFunc("GET /supported-languages", s.handleSupportedLanguages)

	return withCORS(withCorrelation(withRecovery(mux)))
}

// guarded answers 503 before touching the body when the capability is
// switched off.
func (s *Server) guarded(svc capability.Service, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if state, err := svc.State(); state == capability.StateDisabled {
			writeError(w, r, err)
			return
		}
		next(w, r)
	}
}

type textRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeRequest(w, r, capability.Summarization, textSchema, &req); err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.services.LLM.Summarize(r.Context(), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

type chatRequest struct {
	Messages    []llm.Message `json:"messages"`
	MaxTokens   *int          `json:"max_tokens"`
	Temperature *float64      `json:"temperature"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeRequest(w, r, capability.Summarization, chatSchema, &req); err != nil {
		writeError(w, r, err)
		return
	}
	response, err := s.services.LLM.Chat(r.Context(), req.Messages, llm.ChatOptions{
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": response})
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := decodeRequest(w, r, capability.TTS, synthesizeSchema, &req); err != nil {
		writeError(w, r, err)
		return
	}
	wav, rate, err := s.services.TTS.SynthesizeWAV(r.Context(), req.Text, req.Voice)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", `attachment; filename="speech.wav"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	w.Header().Set("X-Sampling-Rate", strconv.Itoa(rate))
	w.WriteHeader(http.StatusOK)
	w.Write(wav)
	observability.RecordAudioBytes("wav", len(wav))
}

func (s *Server) handleSynthesizeJSON(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := decodeRequest(w, r, capability.TTS, synthesizeSchema, &req); err != nil {
		writeError(w, r, err)
		return
	}
	envelope, err := s.services.TTS.SynthesizeBase64(r.Context(), req.Text, req.Voice)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope)
	observability.RecordAudioBytes("base64", len(envelope.Audio))
}

type ocrRequest struct {
	Image    string `json:"image"`
	Language string `json:"language"`
}

func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	var req ocrRequest
	if err := decodeRequest(w, r, capability.OCR, ocrSchema, &req); err != nil {
		writeError(w, r, err)
		return
	}
	text, err := s.services.OCR.ExtractText(r.Context(), req.Image, req.Language)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

type translateRequest struct {
	Text       string `json:"text"`
	TargetLang string `json:"targetLang"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := decodeRequest(w, r, capability.Translation, translateSchema, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.services.Translate.Translate(r.Context(), req.Text, req.TargetLang)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDetectLanguage(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeRequest(w, r, capability.Translation, textSchema, &req); err != nil {
		writeError(w, r, err)
		return
	}
	detection, err := s.services.Translate.DetectLanguage(r.Context(), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detection)
}

// handleSupportedLanguages answers even when translation is disabled
func (s *Server) handleSupportedLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"languages": s.services.Translate.SupportedLanguages()})
}
