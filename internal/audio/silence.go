package audio

import "math"

// CalculateRMS returns the root mean square level of samples
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// TrimSilence drops leading and trailing frames whose RMS energy is below
// threshold. frameMs sets the analysis window. A clip that is silent
// throughout is returned unchanged.
func (c *Clip) TrimSilence(frameMs int, threshold float64) *Clip {
	if frameMs <= 0 || c.SampleRate <= 0 || c.Channels <= 0 {
		return c
	}
	frameLen := c.SampleRate * frameMs / 1000 * c.Channels
	if frameLen <= 0 || len(c.PCM) <= frameLen {
		return c
	}

	loud := func(start int) bool {
		end := start + frameLen
		if end > len(c.PCM) {
			end = len(c.PCM)
		}
		return CalculateRMS(c.PCM[start:end]) >= threshold
	}

	first := -1
	for start := 0; start < len(c.PCM); start += frameLen {
		if loud(start) {
			first = start
			break
		}
	}
	if first < 0 {
		return c
	}

	last := first
	for start := first; start < len(c.PCM); start += frameLen {
		if loud(start) {
			last = start
		}
	}
	end := last + frameLen
	if end > len(c.PCM) {
		end = len(c.PCM)
	}

	if first == 0 && end == len(c.PCM) {
		return c
	}
	pcm := make([]int16, end-first)
	copy(pcm, c.PCM[first:end])
	return &Clip{PCM: pcm, SampleRate: c.SampleRate, Channels: c.Channels}
}
