package web

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"voxsearch/config"
	"voxsearch/listen"
	"voxsearch/rag"
	"voxsearch/search"
	"voxsearch/session"
	"voxsearch/stt"
)

// TranscriberFactory builds a transcriber for the current settings; a
// model-size change takes effect on the next capture session.
type TranscriberFactory func(settings config.Settings) stt.Transcriber

// Server is the user-facing surface: the chat page, its JSON API, and the
// WebSocket capture endpoint.
type Server struct {
	Logger         *log.Logger
	Store          session.Store
	Settings       *config.Manager
	Answerer       *rag.Answerer
	Searcher       search.Searcher
	NewTranscriber TranscriberFactory
	ICE            ICEProvider

	// Silence gate tuning; zero values fall back to the loop defaults.
	SilenceThreshold float64
	MinDuration      time.Duration

	// Active capture loops, so settings changes reach running sessions.
	mu    sync.Mutex
	loops map[uuid.UUID]*listen.Loop
}

// Router assembles all routes with the standard middleware stack.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/stream", s.handleStream)

	r.Route("/api", func(r chi.Router) {
		r.Get("/history", s.handleHistory)
		r.Post("/ask", s.handleAsk)
		r.Post("/clear", s.handleClear)
		r.Get("/settings", s.handleGetSettings)
		r.Post("/settings", s.handleUpdateSettings)
		r.Get("/status", s.handleStatus)
		r.Get("/ice", s.handleICE)
	})

	return r
}

// Serve runs the HTTP server until it fails.
func (s *Server) Serve(port int) error {
	if s.loops == nil {
		s.loops = make(map[uuid.UUID]*listen.Loop)
	}
	s.Logger.Info("http", "url", fmt.Sprintf("http://localhost:%d", port))
	return http.ListenAndServe(fmt.Sprintf(":%d", port), s.Router())
}

func (s *Server) registerLoop(id uuid.UUID, loop *listen.Loop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loops == nil {
		s.loops = make(map[uuid.UUID]*listen.Loop)
	}
	s.loops[id] = loop
}

func (s *Server) unregisterLoop(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loops, id)
}

func (s *Server) broadcastChunkDuration(settings config.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, loop := range s.loops {
		loop.SetChunkDuration(settings.ChunkDuration)
	}
}

const sessionCookie = "voxsearch_session"

// sessionID reads the session cookie, minting one when missing.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) uuid.UUID {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if id, err := uuid.Parse(cookie.Value); err == nil {
			return id
		}
	}
	id := uuid.New()
	http.SetCookie(w, newSessionCookie(id))
	return id
}

func newSessionCookie(id uuid.UUID) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookie,
		Value:    id.String(),
		Path:     "/",
		HttpOnly: true,
	}
}

// streamSession resolves the session for the capture socket. The upgrade
// hijacks the connection, so a fresh cookie has to travel in the handshake
// headers; anything set on the ResponseWriter is discarded.
func (s *Server) streamSession(r *http.Request) (uuid.UUID, http.Header) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if id, err := uuid.Parse(cookie.Value); err == nil {
			return id, nil
		}
	}
	id := uuid.New()
	header := http.Header{}
	header.Add("Set-Cookie", newSessionCookie(id).String())
	return id, header
}
