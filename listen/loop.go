package listen

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"voxsearch/audio"
	"voxsearch/stt"
)

// Config tunes one capture session's transcription loop.
type Config struct {
	ChunkDuration    time.Duration // flush threshold, bounded 1-10s
	Language         string        // hint for the speech model, empty for auto-detect
	MinDuration      time.Duration // silence gate: shortest voiced chunk
	SilenceThreshold float64       // silence gate: RMS floor
}

const (
	MinChunkDuration     = 1 * time.Second
	MaxChunkDuration     = 10 * time.Second
	DefaultChunkDuration = 3 * time.Second
)

// ClampChunkDuration bounds a requested chunk duration to the allowed range.
func ClampChunkDuration(d time.Duration) time.Duration {
	if d < MinChunkDuration {
		return MinChunkDuration
	}
	if d > MaxChunkDuration {
		return MaxChunkDuration
	}
	return d
}

func (c Config) withDefaults() Config {
	c.ChunkDuration = ClampChunkDuration(c.ChunkDuration)
	if c.MinDuration == 0 {
		c.MinDuration = 500 * time.Millisecond
	}
	if c.SilenceThreshold == 0 {
		c.SilenceThreshold = 0.01
	}
	return c
}

// Loop accumulates incoming audio frames and flushes them to a transcriber
// whenever one chunk duration's worth has arrived. One chunk failing to
// transcribe does not stop the loop; the failure is emitted as an
// error-tagged segment and accumulation continues.
type Loop struct {
	transcriber stt.Transcriber
	cfg         Config
	updates     chan time.Duration
	logger      *log.Logger
}

func New(transcriber stt.Transcriber, cfg Config, logger *log.Logger) *Loop {
	return &Loop{
		transcriber: transcriber,
		cfg:         cfg.withDefaults(),
		updates:     make(chan time.Duration, 1),
		logger:      logger,
	}
}

// SetChunkDuration requests a new flush threshold. It takes effect at the
// next flush boundary, never retroactively.
func (l *Loop) SetChunkDuration(d time.Duration) {
	select {
	case l.updates <- ClampChunkDuration(d):
	default:
	}
}

// Run consumes frames until the channel closes or ctx is canceled, emitting
// transcript segments in frame arrival order on the returned channel. The
// segment channel closes when the loop ends.
func (l *Loop) Run(ctx context.Context, frames <-chan audio.Frame) <-chan stt.Segment {
	segments := make(chan stt.Segment)
	go l.run(ctx, frames, segments)
	return segments
}

func (l *Loop) run(ctx context.Context, frames <-chan audio.Frame, segments chan<- stt.Segment) {
	defer close(segments)

	buf := audio.NewChunkBuffer(l.cfg.ChunkDuration)
	var elapsed time.Duration

	// The ticker covers the trickle case: frames keep arriving but never
	// cross the duration threshold on their own.
	ticker := time.NewTicker(l.cfg.ChunkDuration)
	defer ticker.Stop()

	flush := func() {
		samples := buf.Flush()
		ticker.Reset(buf.ChunkDuration())

		stats := audio.Analyze(samples)
		start := elapsed
		elapsed += stats.Duration

		if !stats.Voiced(l.cfg.MinDuration, l.cfg.SilenceThreshold) {
			l.logger.Debug("chunk gated as silence",
				"duration", stats.Duration, "rms", stats.RMS)
			return
		}

		text, err := l.transcriber.Transcribe(ctx, samples, l.cfg.Language)
		seg := stt.Segment{
			Text:     text,
			Start:    start,
			Duration: stats.Duration,
			Err:      err,
		}
		if err != nil {
			l.logger.Error("chunk transcription failed", "error", err)
		} else {
			l.logger.Info("heard", "text", text, "start", start)
		}

		select {
		case segments <- seg:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case d := <-l.updates:
			buf.SetChunkDuration(d)
			l.logger.Info("chunk duration changed", "duration", d)

		case <-ticker.C:
			if buf.HasMinimum() {
				flush()
			}

		case frame, ok := <-frames:
			if !ok {
				// Source ended: flush whatever is left worth flushing.
				for buf.HasMinimum() {
					flush()
				}
				return
			}
			buf.Append(frame)
			for buf.Ready() {
				flush()
			}
		}
	}
}
