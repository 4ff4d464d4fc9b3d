package audio

import (
	"time"
)

// MinChunkLength is the shortest buffer worth sending to the speech model.
const MinChunkLength = 500 * time.Millisecond

// ChunkBuffer accumulates mono samples at the transcription rate until one
// chunk duration's worth is available. It is owned by a single goroutine;
// no locking here.
type ChunkBuffer struct {
	samples       []int16
	chunkDuration time.Duration
}

func NewChunkBuffer(chunkDuration time.Duration) *ChunkBuffer {
	return &ChunkBuffer{chunkDuration: chunkDuration}
}

// SetChunkDuration changes the flush threshold. Takes effect at the next
// Ready check, so a mid-capture change applies from the following flush.
func (b *ChunkBuffer) SetChunkDuration(d time.Duration) {
	if d > 0 {
		b.chunkDuration = d
	}
}

func (b *ChunkBuffer) ChunkDuration() time.Duration {
	return b.chunkDuration
}

// Append merges a frame into the buffer, normalizing it first.
func (b *ChunkBuffer) Append(f Frame) {
	b.samples = append(b.samples, Normalize(f)...)
}

// Duration reports how much audio is currently buffered.
func (b *ChunkBuffer) Duration() time.Duration {
	return time.Duration(len(b.samples)) * time.Second / TranscriptionRate
}

// Ready reports whether the buffer holds at least one chunk duration of audio.
func (b *ChunkBuffer) Ready() bool {
	return b.Duration() >= b.chunkDuration && b.Duration() >= MinChunkLength
}

// HasMinimum reports whether the buffer holds enough audio for a forced
// flush to be worthwhile (time-based flushes while frames trickle in).
func (b *ChunkBuffer) HasMinimum() bool {
	return b.Duration() >= MinChunkLength
}

// Flush returns exactly one chunk duration's worth of samples and retains
// whatever arrived after that boundary. If less than a full chunk is
// buffered, everything is returned and the buffer empties.
func (b *ChunkBuffer) Flush() []int16 {
	boundary := int(b.chunkDuration * TranscriptionRate / time.Second)
	if boundary > len(b.samples) {
		boundary = len(b.samples)
	}
	out := make([]int16, boundary)
	copy(out, b.samples[:boundary])
	rest := len(b.samples) - boundary
	copy(b.samples, b.samples[boundary:])
	b.samples = b.samples[:rest]
	return out
}
