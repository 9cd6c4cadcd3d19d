package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoOutput means the synthesis pipeline produced nothing at all
	ErrNoOutput = errors.New("speech pipeline produced no output")
	// ErrEmptyBuffer means the pipeline produced a buffer without samples
	ErrEmptyBuffer = errors.New("audio buffer is empty")
	// ErrNotNumeric means the payload is not a numeric sample array
	ErrNotNumeric = errors.New("audio buffer is not a numeric array")
)

const (
	pcm16Max         = 32767
	wavHeaderSize    = 44
	formatPCM        = 1
	formatExtensible = 0xFFFE
)

// Buffer is a host-resident sample buffer as produced by a speech pipeline.
// Exactly one of Float or Int16 is set; samples are interleaved by channel.
type Buffer struct {
	Float      []float64
	Int16      []int16
	SampleRate int
	Channels   int
}

// Len returns the number of samples across all channels
func (b *Buffer) Len() int {
	if b.Int16 != nil {
		return len(b.Int16)
	}
	return len(b.Float)
}

// Materialize decodes a provider payload into a Buffer. raw may be a flat
// JSON number array, a channel-first nested array ([[...],[...]]), or a
// base64 string of little-endian float32 or int16 samples as named by dtype.
func Materialize(raw json.RawMessage, dtype string, sampleRate, channels int) (*Buffer, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrNoOutput
	}
	if channels <= 0 {
		channels = 1
	}

	var samples []float64
	switch trimmed[0] {
	case '"':
		var encoded string
		if err := json.Unmarshal(trimmed, &encoded); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotNumeric, err)
		}
		return decodePacked(encoded, dtype, sampleRate, channels)
	case '[':
		var nested [][]float64
		if err := json.Unmarshal(trimmed, &nested); err == nil {
			var interleaved []float64
			interleaved, channels, err = interleave(nested)
			if err != nil {
				return nil, err
			}
			samples = interleaved
			break
		}
		if err := json.Unmarshal(trimmed, &samples); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotNumeric, err)
		}
	default:
		return nil, ErrNotNumeric
	}

	b := &Buffer{SampleRate: sampleRate, Channels: channels}
	if dtype == "int16" {
		b.Int16 = make([]int16, len(samples))
		for i, s := range samples {
			if s < math.MinInt16 || s > math.MaxInt16 || s != math.Trunc(s) {
				return nil, fmt.Errorf("%w: sample %d out of int16 range", ErrNotNumeric, i)
			}
			b.Int16[i] = int16(s)
		}
	} else {
		b.Float = samples
	}
	return b, b.validate()
}

func decodePacked(encoded, dtype string, sampleRate, channels int) (*Buffer, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 audio: %v", ErrNotNumeric, err)
	}

	b := &Buffer{SampleRate: sampleRate, Channels: channels}
	switch dtype {
	case "int16":
		if len(data)%2 != 0 {
			return nil, fmt.Errorf("%w: int16 payload has odd length", ErrNotNumeric)
		}
		b.Int16 = make([]int16, len(data)/2)
		for i := range b.Int16 {
			b.Int16[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
		}
	case "float32", "":
		if len(data)%4 != 0 {
			return nil, fmt.Errorf("%w: float32 payload length not a multiple of 4", ErrNotNumeric)
		}
		b.Float = make([]float64, len(data)/4)
		for i := range b.Float {
			b.Float[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		}
	default:
		return nil, fmt.Errorf("%w: unsupported dtype %q", ErrNotNumeric, dtype)
	}
	return b, b.validate()
}

// interleave flattens channel-first arrays. A single row is mono, which
// covers the [1, N] shape pipelines return with a batch dimension.
func interleave(channels [][]float64) ([]float64, int, error) {
	if len(channels) == 0 {
		return nil, 0, ErrEmptyBuffer
	}
	n := len(channels[0])
	for _, ch := range channels[1:] {
		if len(ch) != n {
			return nil, 0, fmt.Errorf("%w: channels have different lengths", ErrNotNumeric)
		}
	}
	out := make([]float64, 0, n*len(channels))
	for i := 0; i < n; i++ {
		for _, ch := range channels {
			out = append(out, ch[i])
		}
	}
	return out, len(channels), nil
}

func (b *Buffer) validate() error {
	if b.SampleRate <= 0 {
		return fmt.Errorf("invalid sampling rate %d", b.SampleRate)
	}
	if b.Channels <= 0 {
		return fmt.Errorf("invalid channel count %d", b.Channels)
	}
	if b.Len() == 0 {
		return ErrEmptyBuffer
	}
	if b.Len()%b.Channels != 0 {
		return fmt.Errorf("%d samples do not divide into %d channels", b.Len(), b.Channels)
	}
	return nil
}

// ToPCM16 converts the buffer to signed 16-bit samples. Float buffers whose
// peak exceeds 1.0 are rescaled by that peak first; int16 buffers are
// returned unchanged.
func ToPCM16(b *Buffer) ([]int16, error) {
	if b == nil {
		return nil, ErrNoOutput
	}
	if b.Int16 != nil {
		if len(b.Int16) == 0 {
			return nil, ErrEmptyBuffer
		}
		out := make([]int16, len(b.Int16))
		copy(out, b.Int16)
		return out, nil
	}
	if len(b.Float) == 0 {
		return nil, ErrEmptyBuffer
	}

	peak := 0.0
	for _, s := range b.Float {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, ErrNotNumeric
		}
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	scale := 1.0
	if peak > 1.0 {
		scale = 1.0 / peak
	}

	out := make([]int16, len(b.Float))
	for i, s := range b.Float {
		v := math.Round(s * scale * pcm16Max)
		if v < math.MinInt16 {
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return out, nil
}

// Clip is normalized PCM16 audio ready to be containerized or streamed
type Clip struct {
	PCM        []int16
	SampleRate int
	Channels   int
}

// Encode runs the full encoding path on a buffer
func Encode(b *Buffer) (*Clip, error) {
	if b == nil {
		return nil, ErrNoOutput
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	pcm, err := ToPCM16(b)
	if err != nil {
		return nil, err
	}
	return &Clip{PCM: pcm, SampleRate: b.SampleRate, Channels: b.Channels}, nil
}

// PCMBytes returns the samples as little-endian bytes
func (c *Clip) PCMBytes() []byte {
	out := make([]byte, len(c.PCM)*2)
	for i, s := range c.PCM {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// WAV serializes the clip as a RIFF/WAVE container with a PCM fmt chunk
func (c *Clip) WAV() []byte {
	data := c.PCMBytes()
	blockAlign := c.Channels * 2

	buf := make([]byte, wavHeaderSize, wavHeaderSize+len(data))
	copy(buf[0:], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+len(data)))
	copy(buf[8:], "WAVE")
	copy(buf[12:], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], formatPCM)
	binary.LittleEndian.PutUint16(buf[22:], uint16(c.Channels))
	binary.LittleEndian.PutUint32(buf[24:], uint32(c.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:], uint32(c.SampleRate*blockAlign))
	binary.LittleEndian.PutUint16(buf[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:], 16)
	copy(buf[36:], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(len(data)))
	return append(buf, data...)
}

// Envelope is the JSON form of a synthesized clip
type Envelope struct {
	Audio        string `json:"audio"`
	SamplingRate int    `json:"sampling_rate"`
	Format       string `json:"format"`
}

// Envelope base64-encodes the WAV bytes
func (c *Clip) Envelope() Envelope {
	return Envelope{
		Audio:        base64.StdEncoding.EncodeToString(c.WAV()),
		SamplingRate: c.SampleRate,
		Format:       "wav",
	}
}

// Frames splits the PCM bytes into chunks of samplesPerFrame samples per
// channel. The last frame may be shorter.
func (c *Clip) Frames(samplesPerFrame int) [][]byte {
	if samplesPerFrame <= 0 || len(c.PCM) == 0 {
		return nil
	}
	data := c.PCMBytes()
	size := samplesPerFrame * c.Channels * 2
	frames := make([][]byte, 0, (len(data)+size-1)/size)
	for start := 0; start < len(data); start += size {
		end := start + size
		if end > len(data) {
			end = len(data)
		}
		frames = append(frames, data[start:end])
	}
	return frames
}

// Duration returns the clip length in seconds
func (c *Clip) Duration() float64 {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return float64(len(c.PCM)/c.Channels) / float64(c.SampleRate)
}

// DecodeWAV parses a 16-bit PCM WAV payload. Chunks other than fmt and data
// are skipped. A data chunk whose declared size overruns the payload (as
// with streamed WAV) is truncated to what is present.
func DecodeWAV(data []byte) (*Clip, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, errors.New("not a RIFF/WAVE payload")
	}

	var (
		clip    Clip
		haveFmt bool
		pcm     []byte
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4:]))
		body := pos + 8
		end := body + size
		if end > len(data) || end < body {
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, errors.New("fmt chunk too short")
			}
			format := binary.LittleEndian.Uint16(data[body:])
			if format != formatPCM && format != formatExtensible {
				return nil, fmt.Errorf("unsupported WAV format %d", format)
			}
			clip.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			if bits := binary.LittleEndian.Uint16(data[body+14:]); bits != 16 {
				return nil, fmt.Errorf("unsupported bit depth %d", bits)
			}
			haveFmt = true
		case "data":
			pcm = data[body:end]
		}

		// chunks are word aligned
		pos = end + (end-body)%2
	}

	if !haveFmt {
		return nil, errors.New("missing fmt chunk")
	}
	if pcm == nil {
		return nil, errors.New("missing data chunk")
	}
	if clip.Channels <= 0 || clip.SampleRate <= 0 {
		return nil, errors.New("invalid WAV format header")
	}

	clip.PCM = make([]int16, len(pcm)/2)
	for i := range clip.PCM {
		clip.PCM[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	if len(clip.PCM) == 0 {
		return nil, ErrEmptyBuffer
	}
	return &clip, nil
}
