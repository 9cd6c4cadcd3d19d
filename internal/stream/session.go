package stream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/assist-gateway/internal/audio"
	"github.com/lexiqai/assist-gateway/internal/capability"
	"github.com/lexiqai/assist-gateway/internal/observability"
)

// Encodings accepted in a synthesize event
const (
	EncodingPCM16 = "pcm16"
	EncodingMulaw = "mulaw"
)

// mulawRate is the telephony rate used when a mulaw stream names no rate
const mulawRate = 8000

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients are served from arbitrary origins, same as the CORS policy
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Synthesizer produces a clip for text. *tts.Service satisfies it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (*audio.Clip, error)
}

// ClientMessage is an event sent by the client
type ClientMessage struct {
	Event      string `json:"event"` // synthesize, stop
	Text       string `json:"text,omitempty"`
	Voice      string `json:"voice,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// ServerMessage is an event sent to the client
type ServerMessage struct {
	Event        string `json:"event"` // start, audio, done, error
	StreamID     string `json:"stream_id"`
	SamplingRate int    `json:"sampling_rate,omitempty"`
	Channels     int    `json:"channels,omitempty"`
	Encoding     string `json:"encoding,omitempty"`
	Audio        string `json:"audio,omitempty"`
	Sequence     int    `json:"sequence,omitempty"`
	Frames       int    `json:"frames,omitempty"`
	Error        string `json:"error,omitempty"`
	Details      string `json:"details,omitempty"`
}

// Session holds the state of one streaming connection. A connection carries
// any number of synthesize requests; a new request or a stop event cancels
// the one in flight.
type Session struct {
	conn         *websocket.Conn
	synth        Synthesizer
	frameSamples int
	logger       zerolog.Logger

	writeMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	jobs   sync.WaitGroup
}

// Handler upgrades the request and runs a session until the client hangs up
func Handler(synth Synthesizer, frameSamples int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the error response
			observability.LoggerFromContext(r.Context()).Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}
		defer conn.Close()

		logger := observability.LoggerFromContext(r.Context()).With().
			Str("stream_id", observability.NewCorrelationID()).
			Logger()
		session := &Session{
			conn:         conn,
			synth:        synth,
			frameSamples: frameSamples,
			logger:       logger,
		}

		observability.StreamOpened()
		defer observability.StreamClosed()
		logger.Info().Msg("Speech stream opened")

		session.Run(r.Context())
		logger.Info().Msg("Speech stream closed")
	}
}

// Run reads client events until the connection closes or ctx is done
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.jobs.Wait()
	}()

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendError("", capability.Validation(capability.TTS, "Invalid message"))
			continue
		}

		switch msg.Event {
		case "synthesize":
			s.start(ctx, msg)
		case "stop":
			s.stopCurrent()
		default:
			s.sendError("", capability.Validation(capability.TTS, fmt.Sprintf("Unknown event: %s", msg.Event)))
		}
	}
}

func (s *Session) start(ctx context.Context, msg ClientMessage) {
	s.stopCurrent()

	jobCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	id := observability.NewCorrelationID()
	logger := s.logger.With().Str("request_id", id).Logger()
	jobCtx = logger.WithContext(jobCtx)

	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		defer cancel()
		if err := s.synthesize(jobCtx, id, msg); err != nil {
			if jobCtx.Err() != nil || errors.Is(err, context.Canceled) {
				logger.Debug().Msg("Synthesis cancelled")
				return
			}
			s.sendError(id, err)
		}
	}()
}

func (s *Session) stopCurrent() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) synthesize(ctx context.Context, id string, msg ClientMessage) error {
	encoding := strings.ToLower(msg.Encoding)
	if encoding == "" {
		encoding = EncodingPCM16
	}
	if encoding != EncodingPCM16 && encoding != EncodingMulaw {
		return capability.Unsupported(capability.TTS, fmt.Sprintf("Unsupported encoding: %s", msg.Encoding))
	}
	if msg.SampleRate < 0 {
		return capability.Validation(capability.TTS, "sample_rate must be positive")
	}

	clip, err := s.synth.Synthesize(ctx, msg.Text, msg.Voice)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	clip, frames := s.encode(clip, encoding, msg.SampleRate)
	if err := s.send(ServerMessage{
		Event:        "start",
		StreamID:     id,
		SamplingRate: clip.SampleRate,
		Channels:     clip.Channels,
		Encoding:     encoding,
	}); err != nil {
		return err
	}

	for i, frame := range frames {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.send(ServerMessage{
			Event:    "audio",
			StreamID: id,
			Audio:    base64.StdEncoding.EncodeToString(frame),
			Sequence: i + 1,
		}); err != nil {
			return err
		}
		observability.RecordAudioBytes("stream", len(frame))
	}

	return s.send(ServerMessage{Event: "done", StreamID: id, Frames: len(frames)})
}

// encode converts the clip to the requested wire format and splits it
func (s *Session) encode(clip *audio.Clip, encoding string, rate int) (*audio.Clip, [][]byte) {
	if encoding == EncodingMulaw {
		if rate == 0 {
			rate = mulawRate
		}
		clip = clip.Mono().Resample(rate)
	} else if rate > 0 {
		clip = clip.Resample(rate)
	}

	frames := clip.Frames(s.frameSamples)
	if encoding == EncodingMulaw {
		// PCM16 frames carry two bytes per sample; mulaw one
		for i, frame := range frames {
			samples := make([]int16, len(frame)/2)
			for j := range samples {
				samples[j] = int16(uint16(frame[2*j]) | uint16(frame[2*j+1])<<8)
			}
			frames[i] = audio.EncodeMulaw(samples)
		}
	}
	return clip, frames
}

func (s *Session) sendError(id string, err error) {
	msg := ServerMessage{Event: "error", StreamID: id, Error: err.Error()}
	var capErr *capability.Error
	if errors.As(err, &capErr) {
		msg.Error = capErr.Message
		msg.Details = capErr.Details()
	}
	if sendErr := s.send(msg); sendErr != nil {
		s.logger.Debug().Err(sendErr).Msg("Failed to send error event")
	}
}

// send serializes writes; gorilla connections allow a single concurrent writer
func (s *Session) send(msg ServerMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(msg)
}
