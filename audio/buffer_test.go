package audio

import (
	"testing"
	"time"
)

func monoFrame(n int, rate int) Frame {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(1000 + i%100)
	}
	return Frame{Samples: samples, SampleRate: rate, Channels: 1}
}

func TestChunkBufferFlushBoundary(t *testing.T) {
	// 3.2s of 16kHz mono arrives; exactly one 3s flush, 0.2s retained.
	b := NewChunkBuffer(3 * time.Second)
	b.Append(monoFrame(3200*TranscriptionRate/1000, TranscriptionRate))

	if !b.Ready() {
		t.Fatalf("buffer with %v should be ready", b.Duration())
	}

	chunk := b.Flush()
	if got, want := len(chunk), 3*TranscriptionRate; got != want {
		t.Errorf("flushed %d samples, want %d", got, want)
	}
	if got, want := b.Duration(), 200*time.Millisecond; got != want {
		t.Errorf("retained %v after flush, want %v", got, want)
	}
	if b.Ready() {
		t.Error("buffer should not be ready again right after flush")
	}
}

func TestChunkBufferShortFlush(t *testing.T) {
	b := NewChunkBuffer(3 * time.Second)
	b.Append(monoFrame(TranscriptionRate, TranscriptionRate)) // 1s

	if b.Ready() {
		t.Error("1s buffer should not be ready at 3s chunk duration")
	}
	if !b.HasMinimum() {
		t.Error("1s buffer should pass the minimum length check")
	}

	chunk := b.Flush()
	if got, want := len(chunk), TranscriptionRate; got != want {
		t.Errorf("flushed %d samples, want %d", got, want)
	}
	if b.Duration() != 0 {
		t.Errorf("buffer should be empty after short flush, has %v", b.Duration())
	}
}

func TestChunkBufferDurationChangeAppliesNextFlush(t *testing.T) {
	b := NewChunkBuffer(3 * time.Second)
	b.Append(monoFrame(2*TranscriptionRate, TranscriptionRate)) // 2s

	if b.Ready() {
		t.Fatal("2s buffer should not be ready at 3s")
	}
	b.SetChunkDuration(1 * time.Second)
	if !b.Ready() {
		t.Fatal("2s buffer should be ready at 1s")
	}
	chunk := b.Flush()
	if got, want := len(chunk), TranscriptionRate; got != want {
		t.Errorf("flushed %d samples, want %d", got, want)
	}
}

func TestChunkBufferNormalizesInput(t *testing.T) {
	b := NewChunkBuffer(time.Second)

	// 1s of 48kHz stereo should land as 1s of 16kHz mono.
	stereo := make([]int16, 48000*2)
	b.Append(Frame{Samples: stereo, SampleRate: 48000, Channels: 2})

	if got, want := b.Duration(), time.Second; got != want {
		t.Errorf("buffered %v, want %v", got, want)
	}
}

func TestFrameDuration(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  time.Duration
	}{
		{"mono 16k", Frame{Samples: make([]int16, 16000), SampleRate: 16000, Channels: 1}, time.Second},
		{"stereo 48k", Frame{Samples: make([]int16, 48000*2), SampleRate: 48000, Channels: 2}, time.Second},
		{"half second", Frame{Samples: make([]int16, 8000), SampleRate: 16000, Channels: 1}, 500 * time.Millisecond},
		{"zero rate", Frame{Samples: make([]int16, 100)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.frame.Duration(); got != tt.want {
				t.Errorf("duration %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDownmix(t *testing.T) {
	got := Downmix([]int16{100, 200, -50, 50}, 2)
	want := []int16{150, 0}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestResample(t *testing.T) {
	tests := []struct {
		name    string
		in      int
		from    int
		to      int
		wantLen int
	}{
		{"identity", 16000, 16000, 16000, 16000},
		{"48k to 16k", 48000, 48000, 16000, 16000},
		{"8k to 16k", 8000, 8000, 16000, 16000},
		{"empty", 0, 48000, 16000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]int16, tt.in)
			out := Resample(in, tt.from, tt.to)
			if len(out) != tt.wantLen {
				t.Errorf("got %d samples, want %d", len(out), tt.wantLen)
			}
		})
	}
}
