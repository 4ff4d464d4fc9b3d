package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"voxsearch/config"
	"voxsearch/rag"
	"voxsearch/session"
)

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	history, err := s.Store.History(r.Context(), id)
	if err != nil {
		s.Logger.Error("failed to load history", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []session.Message{}
	}
	writeJSON(w, history)
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Question session.Message `json:"question"`
	Answer   session.Message `json:"answer"`
}

// handleAsk is the manual text-entry fallback: same pipeline as a voice
// query, minus the transcription.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	userMsg, answerMsg, err := s.answerQuestion(r.Context(), id, question)
	if err != nil {
		s.Logger.Error("failed to record conversation", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, askResponse{Question: userMsg, Answer: answerMsg})
}

// answerQuestion runs one question through the RAG pipeline and appends
// both sides to the conversation.
func (s *Server) answerQuestion(ctx context.Context, id uuid.UUID, question string) (session.Message, session.Message, error) {
	userMsg := session.NewMessage(session.RoleUser, question, "")
	if err := s.Store.Append(ctx, id, userMsg); err != nil {
		return session.Message{}, session.Message{}, err
	}

	answer := s.Answerer.Ask(ctx, question)
	answerMsg := session.NewMessage(session.RoleAssistant, answer.Text, answerMeta(answer))
	if err := s.Store.Append(ctx, id, answerMsg); err != nil {
		return session.Message{}, session.Message{}, err
	}
	return userMsg, answerMsg, nil
}

func answerMeta(a rag.Answer) string {
	switch {
	case a.Degraded != "":
		return a.Degraded
	case a.NoResults:
		return "no results"
	default:
		return ""
	}
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	if err := s.Store.Clear(r.Context(), id); err != nil {
		s.Logger.Error("failed to clear history", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type settingsPayload struct {
	ChunkDurationSeconds int    `json:"chunk_duration_seconds"`
	ModelSize            string `json:"model_size"`
	Language             string `json:"language"`
	SearchLimit          int    `json:"search_limit"`
	AnswerModel          string `json:"answer_model"`
	AutoSearch           bool   `json:"auto_search"`
}

func toPayload(s config.Settings) settingsPayload {
	return settingsPayload{
		ChunkDurationSeconds: int(s.ChunkDuration / time.Second),
		ModelSize:            s.ModelSize,
		Language:             s.Language,
		SearchLimit:          s.SearchLimit,
		AnswerModel:          s.AnswerModel,
		AutoSearch:           s.AutoSearch,
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, toPayload(s.Settings.Settings()))
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var p settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	updated := config.Settings{
		ChunkDuration: time.Duration(p.ChunkDurationSeconds) * time.Second,
		ModelSize:     p.ModelSize,
		Language:      p.Language,
		SearchLimit:   p.SearchLimit,
		AnswerModel:   p.AnswerModel,
		AutoSearch:    p.AutoSearch,
	}
	if err := s.Settings.Update(r.Context(), updated); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	applied := s.Settings.Settings()
	s.Answerer.SetLimit(applied.SearchLimit)
	s.broadcastChunkDuration(applied)

	writeJSON(w, toPayload(applied))
}

type statusResponse struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// handleStatus reports search-service reachability for the UI indicator.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.Searcher.Ping(ctx); err != nil {
		writeJSON(w, statusResponse{Connected: false, Error: err.Error()})
		return
	}
	writeJSON(w, statusResponse{Connected: true})
}

func (s *Server) handleICE(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"iceServers": s.ICE.ICEServers()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
