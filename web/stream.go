package web

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voxsearch/audio"
	"voxsearch/listen"
	"voxsearch/stt"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The chat page and the capture socket are same-origin; this server
	// is not meant to sit on the open internet without a proxy in front.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamEvent is the envelope for both directions of the capture socket.
type streamEvent struct {
	Event string `json:"event"`

	// client -> server, "start"
	Encoding   string `json:"encoding,omitempty"` // "pcm16" or "opus"
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`

	// client -> server, "media"
	Payload string `json:"payload,omitempty"` // base64 audio

	// server -> client
	Text  string `json:"text,omitempty"`
	Meta  string `json:"meta,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleStream runs one capture session: the client streams audio frames,
// the server streams back transcript segments and answers.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, header := s.streamSession(r)

	conn, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		s.Logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &capture{
		server:    s,
		sessionID: id,
		conn:      conn,
	}
	c.run(ctx)
}

// capture holds the state of one live capture session.
type capture struct {
	server    *Server
	sessionID uuid.UUID
	conn      *websocket.Conn

	writeMu sync.Mutex

	frames     chan audio.Frame
	decoder    *audio.OpusDecoder
	sampleRate int
	channels   int
	started    bool
	done       chan struct{}
}

func (c *capture) send(ev streamEvent) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(ev); err != nil {
		c.server.Logger.Debug("websocket write failed", "error", err)
	}
}

func (c *capture) run(ctx context.Context) {
	defer c.stop()

	for {
		var ev streamEvent
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.server.Logger.Debug("websocket read failed", "error", err)
			}
			return
		}

		switch ev.Event {
		case "start":
			if err := c.start(ctx, ev); err != nil {
				c.send(streamEvent{Event: "error", Error: err.Error()})
				return
			}

		case "media":
			c.media(ev)

		case "stop":
			return

		default:
			c.server.Logger.Warn("unknown stream event", "event", ev.Event)
		}
	}
}

func (c *capture) start(ctx context.Context, ev streamEvent) error {
	if c.started {
		return nil
	}
	if ev.SampleRate <= 0 || ev.Channels <= 0 {
		return errFormat("missing sample_rate or channels")
	}

	settings := c.server.Settings.Settings()

	if ev.Encoding == "opus" {
		dec, err := audio.NewOpusDecoder(ev.SampleRate, ev.Channels)
		if err != nil {
			return err
		}
		c.decoder = dec
	} else if ev.Encoding != "pcm16" {
		return errFormat("unknown encoding " + ev.Encoding)
	}

	c.sampleRate = ev.SampleRate
	c.channels = ev.Channels
	c.frames = make(chan audio.Frame, 64)
	c.done = make(chan struct{})
	c.started = true

	loop := listen.New(
		c.server.NewTranscriber(settings),
		listen.Config{
			ChunkDuration:    settings.ChunkDuration,
			Language:         settings.Language,
			MinDuration:      c.server.MinDuration,
			SilenceThreshold: c.server.SilenceThreshold,
		},
		c.server.Logger.With("session", c.sessionID.String()),
	)
	c.server.registerLoop(c.sessionID, loop)
	segments := loop.Run(ctx, c.frames)

	go c.consume(ctx, segments)

	c.server.Logger.Info("capture started",
		"session", c.sessionID, "encoding", ev.Encoding,
		"rate", ev.SampleRate, "channels", ev.Channels)
	return nil
}

func (c *capture) media(ev streamEvent) {
	if !c.started {
		return
	}
	data, err := base64.StdEncoding.DecodeString(ev.Payload)
	if err != nil {
		c.server.Logger.Debug("bad media payload", "error", err)
		return
	}

	var frame audio.Frame
	if c.decoder != nil {
		frame, err = c.decoder.Decode(data, time.Now())
		if err != nil {
			c.server.Logger.Debug("opus decode failed", "error", err)
			return
		}
	} else {
		frame = audio.Frame{
			Samples:    bytesToPCM16(data),
			SampleRate: c.sampleRate,
			Channels:   c.channels,
			ReceivedAt: time.Now(),
		}
	}

	select {
	case c.frames <- frame:
	default:
		// Transcription is behind; dropping is better than unbounded growth.
		c.server.Logger.Warn("frame dropped, transcription lagging",
			"duration", frame.Duration())
	}
}

// consume forwards transcript segments to the client and, with auto-search
// on, runs each one through the answer pipeline.
func (c *capture) consume(ctx context.Context, segments <-chan stt.Segment) {
	defer close(c.done)

	for seg := range segments {
		if seg.Err != nil {
			c.send(streamEvent{Event: "error", Error: "transcription failed for one chunk"})
			continue
		}
		if seg.Text == "" {
			continue
		}

		c.send(streamEvent{Event: "segment", Text: seg.Text})

		settings := c.server.Settings.Settings()
		if !settings.AutoSearch {
			continue
		}

		_, answerMsg, err := c.server.answerQuestion(ctx, c.sessionID, seg.Text)
		if err != nil {
			c.server.Logger.Error("failed to record voice query", "error", err)
			continue
		}
		c.send(streamEvent{Event: "answer", Text: answerMsg.Content, Meta: answerMsg.Meta})
	}
}

func (c *capture) stop() {
	if !c.started {
		return
	}
	c.server.unregisterLoop(c.sessionID)
	close(c.frames)
	<-c.done // let the loop drain and the final answers go out
	c.server.Logger.Info("capture stopped", "session", c.sessionID)
}

func bytesToPCM16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

type errFormat string

func (e errFormat) Error() string { return string(e) }
