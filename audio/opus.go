package audio

import (
	"fmt"
	"time"

	"gopkg.in/hraban/opus.v2"
)

// maxOpusFrameSamples covers the largest opus frame (120ms at 48kHz).
const maxOpusFrameSamples = 5760

// OpusDecoder turns opus packets from the capture transport into PCM frames.
type OpusDecoder struct {
	decoder    *opus.Decoder
	sampleRate int
	channels   int
}

func NewOpusDecoder(sampleRate, channels int) (*OpusDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	return &OpusDecoder{
		decoder:    dec,
		sampleRate: sampleRate,
		channels:   channels,
	}, nil
}

// Decode converts one opus packet into a Frame.
func (d *OpusDecoder) Decode(packet []byte, receivedAt time.Time) (Frame, error) {
	pcm := make([]int16, maxOpusFrameSamples*d.channels)
	n, err := d.decoder.Decode(packet, pcm)
	if err != nil {
		return Frame{}, fmt.Errorf("opus decode: %w", err)
	}
	return Frame{
		Samples:    pcm[:n*d.channels],
		SampleRate: d.sampleRate,
		Channels:   d.channels,
		ReceivedAt: receivedAt,
	}, nil
}
