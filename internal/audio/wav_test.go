package audio

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestToPCM16_WithinRange(t *testing.T) {
	samples := []float64{0.5, -0.25, 0.1, 0, -0.5}
	pcm, err := ToPCM16(&Buffer{Float: samples, SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("ToPCM16 failed: %v", err)
	}

	for i, s := range samples {
		expected := int16(math.Round(s * 32767))
		if pcm[i] != expected {
			t.Errorf("Sample %d: expected %d, got %d", i, expected, pcm[i])
		}
	}
}

func TestToPCM16_RescalesAbovePeak(t *testing.T) {
	samples := []float64{2.0, -1.0, 0.5, -2.0}
	pcm, err := ToPCM16(&Buffer{Float: samples, SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("ToPCM16 failed: %v", err)
	}

	for i, s := range samples {
		expected := int16(math.Round((s / 2.0) * 32767))
		if pcm[i] != expected {
			t.Errorf("Sample %d: expected %d, got %d", i, expected, pcm[i])
		}
	}
	if pcm[0] != 32767 || pcm[3] != -32767 {
		t.Errorf("Expected peaks at full scale, got %d and %d", pcm[0], pcm[3])
	}
}

func TestToPCM16_Int16Unchanged(t *testing.T) {
	in := []int16{32767, -32768, 1, 0, -1200}
	pcm, err := ToPCM16(&Buffer{Int16: in, SampleRate: 22050, Channels: 1})
	if err != nil {
		t.Fatalf("ToPCM16 failed: %v", err)
	}
	for i := range in {
		if pcm[i] != in[i] {
			t.Errorf("Sample %d rescaled: expected %d, got %d", i, in[i], pcm[i])
		}
	}

	// Feeding the output back must not change it either.
	again, err := ToPCM16(&Buffer{Int16: pcm, SampleRate: 22050, Channels: 1})
	if err != nil {
		t.Fatalf("ToPCM16 failed: %v", err)
	}
	for i := range pcm {
		if again[i] != pcm[i] {
			t.Errorf("Sample %d changed on second pass", i)
		}
	}
}

func TestToPCM16_Errors(t *testing.T) {
	tests := []struct {
		name string
		buf  *Buffer
		want error
	}{
		{"nil buffer", nil, ErrNoOutput},
		{"empty float", &Buffer{Float: []float64{}, SampleRate: 16000, Channels: 1}, ErrEmptyBuffer},
		{"NaN sample", &Buffer{Float: []float64{0.1, math.NaN()}, SampleRate: 16000, Channels: 1}, ErrNotNumeric},
		{"Inf sample", &Buffer{Float: []float64{math.Inf(1)}, SampleRate: 16000, Channels: 1}, ErrNotNumeric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToPCM16(tt.buf)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestMaterialize_FlatArray(t *testing.T) {
	b, err := Materialize(json.RawMessage(`[0.1, -0.2, 0.3]`), "float32", 24000, 1)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if len(b.Float) != 3 || b.Channels != 1 || b.SampleRate != 24000 {
		t.Errorf("Unexpected buffer: %+v", b)
	}
}

func TestMaterialize_NestedChannels(t *testing.T) {
	b, err := Materialize(json.RawMessage(`[[0.1, 0.2], [-0.1, -0.2]]`), "float32", 24000, 0)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if b.Channels != 2 {
		t.Fatalf("Expected 2 channels, got %d", b.Channels)
	}
	expected := []float64{0.1, -0.1, 0.2, -0.2}
	for i, s := range expected {
		if b.Float[i] != s {
			t.Errorf("Sample %d: expected %f, got %f", i, s, b.Float[i])
		}
	}
}

func TestMaterialize_BatchDimensionIsMono(t *testing.T) {
	b, err := Materialize(json.RawMessage(`[[0.1, 0.2, 0.3]]`), "float32", 24000, 1)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if b.Channels != 1 || len(b.Float) != 3 {
		t.Errorf("Expected mono buffer with 3 samples, got %d channels, %d samples", b.Channels, len(b.Float))
	}
}

func TestMaterialize_Base64Float32(t *testing.T) {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint32(raw[0:], math.Float32bits(0.5))
	binary.LittleEndian.PutUint32(raw[4:], math.Float32bits(-0.25))
	payload, _ := json.Marshal(base64.StdEncoding.EncodeToString(raw))

	b, err := Materialize(payload, "float32", 16000, 1)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if len(b.Float) != 2 || b.Float[0] != 0.5 || b.Float[1] != -0.25 {
		t.Errorf("Unexpected samples: %v", b.Float)
	}
}

func TestMaterialize_Base64Int16(t *testing.T) {
	raw := make([]byte, 4)
	binary.LittleEndian.PutUint16(raw[0:], uint16(1000))
	var neg int16 = -1000
	binary.LittleEndian.PutUint16(raw[2:], uint16(neg))
	payload, _ := json.Marshal(base64.StdEncoding.EncodeToString(raw))

	b, err := Materialize(payload, "int16", 16000, 1)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if len(b.Int16) != 2 || b.Int16[0] != 1000 || b.Int16[1] != -1000 {
		t.Errorf("Unexpected samples: %v", b.Int16)
	}
}

func TestMaterialize_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"null", `null`, ErrNoOutput},
		{"missing", ``, ErrNoOutput},
		{"empty array", `[]`, ErrEmptyBuffer},
		{"strings", `["a", "b"]`, ErrNotNumeric},
		{"object", `{"a": 1}`, ErrNotNumeric},
		{"bad base64", `"not base64!!"`, ErrNotNumeric},
		{"ragged channels", `[[0.1, 0.2], [0.3]]`, ErrNotNumeric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Materialize(json.RawMessage(tt.raw), "float32", 16000, 1)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestMaterialize_InvalidSampleRate(t *testing.T) {
	if _, err := Materialize(json.RawMessage(`[0.1]`), "float32", 0, 1); err == nil {
		t.Error("Expected error for zero sampling rate")
	}
}

func TestClip_WAVHeader(t *testing.T) {
	clip := &Clip{PCM: []int16{1, -1, 100, -100}, SampleRate: 22050, Channels: 2}
	wav := clip.WAV()

	if len(wav) != 44+8 {
		t.Fatalf("Expected 52 bytes, got %d", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Error("Missing RIFF/WAVE/data markers")
	}
	if got := binary.LittleEndian.Uint32(wav[4:]); got != 44 {
		t.Errorf("Expected RIFF size 44, got %d", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:]); got != 2 {
		t.Errorf("Expected 2 channels, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:]); got != 22050 {
		t.Errorf("Expected rate 22050, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:]); got != 22050*4 {
		t.Errorf("Expected byte rate %d, got %d", 22050*4, got)
	}
	if got := binary.LittleEndian.Uint16(wav[34:]); got != 16 {
		t.Errorf("Expected 16 bits per sample, got %d", got)
	}
}

func TestDecodeWAV_RoundTrip(t *testing.T) {
	clip := &Clip{PCM: []int16{0, 32767, -32768, 42}, SampleRate: 24000, Channels: 1}

	decoded, err := DecodeWAV(clip.WAV())
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if decoded.SampleRate != 24000 || decoded.Channels != 1 {
		t.Errorf("Unexpected format: %d Hz, %d channels", decoded.SampleRate, decoded.Channels)
	}
	for i := range clip.PCM {
		if decoded.PCM[i] != clip.PCM[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, clip.PCM[i], decoded.PCM[i])
		}
	}
}

func TestDecodeWAV_SkipsChunksAndStreamedSize(t *testing.T) {
	clip := &Clip{PCM: []int16{5, 6, 7}, SampleRate: 24000, Channels: 1}
	wav := clip.WAV()

	// Insert a LIST chunk before data and mark data size as unknown.
	list := append([]byte("LIST"), 3, 0, 0, 0, 'a', 'b', 'c', 0)
	patched := append([]byte{}, wav[:36]...)
	patched = append(patched, list...)
	patched = append(patched, wav[36:]...)
	binary.LittleEndian.PutUint32(patched[36+len(list)+4:], 0xFFFFFFFF)

	decoded, err := DecodeWAV(patched)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if len(decoded.PCM) != 3 || decoded.PCM[2] != 7 {
		t.Errorf("Unexpected samples: %v", decoded.PCM)
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	if _, err := DecodeWAV([]byte("not a wav file at all")); err == nil {
		t.Error("Expected error for non-WAV payload")
	}
	if _, err := DecodeWAV([]byte("RIFF\x04\x00\x00\x00WAVE")); err == nil {
		t.Error("Expected error for missing chunks")
	}
}

func TestClip_Envelope(t *testing.T) {
	clip := &Clip{PCM: []int16{1, 2, 3}, SampleRate: 16000, Channels: 1}
	env := clip.Envelope()

	if env.Format != "wav" || env.SamplingRate != 16000 {
		t.Errorf("Unexpected envelope: %+v", env)
	}
	raw, err := base64.StdEncoding.DecodeString(env.Audio)
	if err != nil {
		t.Fatalf("Envelope audio is not base64: %v", err)
	}
	if string(raw[0:4]) != "RIFF" {
		t.Error("Envelope audio is not a WAV payload")
	}
}

func TestClip_Frames(t *testing.T) {
	clip := &Clip{PCM: make([]int16, 10), SampleRate: 16000, Channels: 1}
	frames := clip.Frames(4)

	if len(frames) != 3 {
		t.Fatalf("Expected 3 frames, got %d", len(frames))
	}
	if len(frames[0]) != 8 || len(frames[2]) != 4 {
		t.Errorf("Unexpected frame sizes %d and %d", len(frames[0]), len(frames[2]))
	}
	if clip.Frames(0) != nil {
		t.Error("Expected nil frames for zero frame size")
	}
}

func TestEncode(t *testing.T) {
	clip, err := Encode(&Buffer{Float: []float64{0.5, 0.5}, SampleRate: 16000, Channels: 2})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if clip.Channels != 2 || clip.Duration() != 1.0/16000 {
		t.Errorf("Unexpected clip: %+v", clip)
	}

	if _, err := Encode(&Buffer{Float: []float64{0.1, 0.2, 0.3}, SampleRate: 16000, Channels: 2}); err == nil {
		t.Error("Expected error when samples do not divide into channels")
	}
}
