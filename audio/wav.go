package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Stats summarizes a buffer of mono samples for the silence gate.
type Stats struct {
	Duration time.Duration
	RMS      float64
	Peak     float64
}

// Analyze computes duration, RMS and peak amplitude (normalized to [0,1])
// for mono samples at the transcription rate.
func Analyze(samples []int16) Stats {
	if len(samples) == 0 {
		return Stats{}
	}
	var sumSquares, peak float64
	for _, s := range samples {
		v := math.Abs(float64(s) / 32768.0)
		if v > peak {
			peak = v
		}
		sumSquares += v * v
	}
	return Stats{
		Duration: time.Duration(len(samples)) * time.Second / TranscriptionRate,
		RMS:      math.Sqrt(sumSquares / float64(len(samples))),
		Peak:     peak,
	}
}

// Voiced applies the silence gate: the buffer must be long enough and loud
// enough to bother the speech model with. A strong peak rescues a quiet RMS,
// matching how short utterances with long pauses behave.
func (s Stats) Voiced(minDuration time.Duration, silenceThreshold float64) bool {
	if s.Duration < minDuration {
		return false
	}
	return s.RMS >= silenceThreshold || s.Peak >= silenceThreshold*3
}

// EncodeWAV wraps mono 16-bit samples in a minimal RIFF/WAVE container for
// upload to the transcription API.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataSize := len(samples) * 2
	var buf bytes.Buffer
	buf.Grow(44 + dataSize)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	binary.Write(&buf, binary.LittleEndian, uint16(2))            // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16))           // bits per sample

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	for _, s := range samples {
		binary.Write(&buf, binary.LittleEndian, s)
	}
	return buf.Bytes()
}

// DecodeWAV parses a 16-bit PCM RIFF/WAVE file into interleaved samples.
// Only the subset EncodeWAV emits plus multichannel input is supported.
func DecodeWAV(data []byte) (samples []int16, sampleRate, channels int, err error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, 0, fmt.Errorf("not a RIFF/WAVE file")
	}

	var bitsPerSample int
	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := data[pos+8:]
		if chunkSize > len(body) {
			chunkSize = len(body)
		}
		body = body[:chunkSize]

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, 0, 0, fmt.Errorf("fmt chunk too short")
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			if format != 1 {
				return nil, 0, 0, fmt.Errorf("unsupported WAV format %d, want PCM", format)
			}
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
		case "data":
			if bitsPerSample != 16 {
				return nil, 0, 0, fmt.Errorf("unsupported bit depth %d, want 16", bitsPerSample)
			}
			samples = make([]int16, len(body)/2)
			for i := range samples {
				samples[i] = int16(binary.LittleEndian.Uint16(body[i*2:]))
			}
			return samples, sampleRate, channels, nil
		}

		// Chunks are word-aligned.
		pos += 8 + chunkSize + chunkSize%2
	}
	return nil, 0, 0, fmt.Errorf("no data chunk found")
}
