package audio

import (
	"time"
)

// TranscriptionRate is the sample rate the speech model expects.
const TranscriptionRate = 16000

// Frame is one timestamped block of raw PCM samples as delivered by the
// capture transport. Samples are interleaved when Channels > 1.
type Frame struct {
	Samples    []int16
	SampleRate int
	Channels   int
	ReceivedAt time.Time
}

// Duration reports how much audio the frame covers.
func (f Frame) Duration() time.Duration {
	if f.SampleRate == 0 || f.Channels == 0 {
		return 0
	}
	n := len(f.Samples) / f.Channels
	return time.Duration(n) * time.Second / time.Duration(f.SampleRate)
}

// Downmix collapses interleaved multi-channel samples to mono by averaging.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	out := make([]int16, len(samples)/channels)
	for i := range out {
		var sum int
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		out[i] = int16(sum / channels)
	}
	return out
}

// Resample converts mono samples from one rate to another using linear
// interpolation. Good enough for speech; we are feeding a model, not ears.
func Resample(samples []int16, from, to int) []int16 {
	if from == to || from == 0 || len(samples) == 0 {
		return samples
	}
	ratio := float64(from) / float64(to)
	n := int(float64(len(samples)) / ratio)
	if n == 0 {
		return nil
	}
	out := make([]int16, n)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		a := float64(samples[idx])
		b := float64(samples[idx+1])
		out[i] = int16(a + (b-a)*frac)
	}
	return out
}

// Normalize converts a frame to mono samples at the transcription rate.
func Normalize(f Frame) []int16 {
	mono := Downmix(f.Samples, f.Channels)
	return Resample(mono, f.SampleRate, TranscriptionRate)
}
