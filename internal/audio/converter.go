package audio

import "math"

// Mono averages interleaved channels into a single channel
func (c *Clip) Mono() *Clip {
	if c.Channels <= 1 {
		return c
	}
	frames := len(c.PCM) / c.Channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for ch := 0; ch < c.Channels; ch++ {
			sum += int(c.PCM[i*c.Channels+ch])
		}
		out[i] = int16(sum / c.Channels)
	}
	return &Clip{PCM: out, SampleRate: c.SampleRate, Channels: 1}
}

// Resample converts c to rate using linear interpolation. Multi-channel
// clips are downmixed first. c is returned as is when already at rate.
func (c *Clip) Resample(rate int) *Clip {
	if rate <= 0 || rate == c.SampleRate || len(c.PCM) == 0 {
		return c
	}
	mono := c.Mono()
	return &Clip{PCM: resample(mono.PCM, mono.SampleRate, rate), SampleRate: rate, Channels: 1}
}

func resample(samples []int16, inputRate, outputRate int) []int16 {
	ratio := float64(outputRate) / float64(inputRate)
	n := int(float64(len(samples)) * ratio)
	out := make([]int16, n)
	last := len(samples) - 1

	for i := range out {
		pos := float64(i) / ratio
		i0 := int(pos)
		if i0 > last {
			i0 = last
		}
		i1 := i0 + 1
		if i1 > last {
			i1 = last
		}
		frac := pos - float64(i0)
		out[i] = int16(math.Round(float64(samples[i0])*(1-frac) + float64(samples[i1])*frac))
	}
	return out
}

// G.711 mu-law constants
const (
	mulawBias = 0x84
	mulawClip = 32635
)

// EncodeMulaw converts PCM16 samples to 8-bit G.711 mu-law for telephony clients
func EncodeMulaw(samples []int16) []byte {
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = linearToMulaw(s)
	}
	return out
}

func linearToMulaw(sample int16) byte {
	v := int(sample)
	sign := 0
	if v < 0 {
		sign = 0x80
		v = -v
	}
	if v > mulawClip {
		v = mulawClip
	}
	v += mulawBias

	exponent := 7
	for mask := 0x4000; v&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := (v >> (exponent + 3)) & 0x0F
	return ^byte(sign | exponent<<4 | mantissa)
}
