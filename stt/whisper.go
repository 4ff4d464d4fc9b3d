package stt

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/sashabaranov/go-openai"

	"voxsearch/audio"
)

// Whisper transcribes audio chunks through an OpenAI-compatible
// transcription endpoint. Self-hosted whisper servers speak the same API,
// which is how the model-size selector reaches a real model choice.
type Whisper struct {
	client *openai.Client
	model  string
	logger *log.Logger
}

type WhisperOptions struct {
	APIKey  string
	BaseURL string // empty for api.openai.com
	Model   string // API model name, defaults to whisper-1
}

func NewWhisper(opts WhisperOptions, logger *log.Logger) *Whisper {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	model := opts.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &Whisper{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}
}

// ModelForSize maps the UI's size selector onto an API model name.
// Hosted OpenAI only serves whisper-1; self-hosted servers expose the
// size-suffixed names directly.
func ModelForSize(size string) string {
	switch size {
	case "", "base":
		return openai.Whisper1
	default:
		return "whisper-" + size
	}
}

func (w *Whisper) Transcribe(ctx context.Context, samples []int16, language string) (string, error) {
	wav := audio.EncodeWAV(samples, audio.TranscriptionRate)

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: "chunk.wav",
		Reader:   bytes.NewReader(wav),
		Language: language,
	})
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	w.logger.Debug("transcribed", "bytes", len(wav), "chars", len(text))
	return text, nil
}
