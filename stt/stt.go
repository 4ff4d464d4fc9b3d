package stt

import (
	"context"
	"time"
)

// Segment is the text produced for one flushed audio chunk. A failed
// transcription is carried as a segment with Err set so the loop's consumer
// can surface it without the loop stopping.
type Segment struct {
	Text     string
	Start    time.Duration
	Duration time.Duration
	Err      error
}

// Transcriber converts one chunk of mono 16kHz samples into text.
// An empty string with nil error means the model heard silence.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []int16, language string) (string, error)
}

// ModelSizes lists the supported accuracy/speed trade-offs.
var ModelSizes = []string{"tiny", "base", "small", "medium", "large"}

// Languages lists the supported language hints; empty means auto-detect.
var Languages = []string{"", "en", "es", "fr", "de", "it", "pt", "ru", "ja", "ko", "zh"}

func ValidModelSize(size string) bool {
	for _, s := range ModelSizes {
		if s == size {
			return true
		}
	}
	return false
}

func ValidLanguage(lang string) bool {
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}
