package config

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/viper"

	"voxsearch/listen"
	"voxsearch/search"
	"voxsearch/stt"
)

// Store is where the runtime-adjustable settings live between restarts.
// Backed by the Postgres config table when a database is configured.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

// Settings are the parameters the user can adjust from the web UI, the
// sidebar knobs of the application.
type Settings struct {
	ChunkDuration time.Duration `json:"chunk_duration"`
	ModelSize     string        `json:"model_size"`
	Language      string        `json:"language"`
	SearchLimit   int           `json:"search_limit"`
	AnswerModel   string        `json:"answer_model"` // "openai" or "gemini"
	AutoSearch    bool          `json:"auto_search"`
}

func DefaultSettings() Settings {
	return Settings{
		ChunkDuration: listen.DefaultChunkDuration,
		ModelSize:     "base",
		Language:      "",
		SearchLimit:   search.DefaultLimit,
		AnswerModel:   "openai",
		AutoSearch:    true,
	}
}

// Validate normalizes a settings update, rejecting values the downstream
// components would refuse.
func (s Settings) Validate() (Settings, error) {
	s.ChunkDuration = listen.ClampChunkDuration(s.ChunkDuration)
	s.SearchLimit = search.ClampLimit(s.SearchLimit)
	if !stt.ValidModelSize(s.ModelSize) {
		return s, fmt.Errorf("unknown model size %q", s.ModelSize)
	}
	if !stt.ValidLanguage(s.Language) {
		return s, fmt.Errorf("unknown language %q", s.Language)
	}
	if s.AnswerModel != "openai" && s.AnswerModel != "gemini" {
		return s, fmt.Errorf("unknown answer model %q", s.AnswerModel)
	}
	return s, nil
}

// Manager loads persisted settings at startup and writes updates through.
// Settings are read from capture sessions while the web UI updates them,
// so access goes through a lock.
type Manager struct {
	store Store

	mu       sync.RWMutex
	settings Settings
}

func NewManager(store Store) *Manager {
	return &Manager{store: store, settings: DefaultSettings()}
}

// Load pulls stored values over the defaults. Missing keys keep defaults.
func (m *Manager) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	stored, err := m.store.All(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	s := m.Settings()
	if v, ok := stored["chunk_duration"]; ok {
		if secs, err := strconv.Atoi(v); err == nil {
			s.ChunkDuration = time.Duration(secs) * time.Second
		}
	}
	if v, ok := stored["model_size"]; ok && stt.ValidModelSize(v) {
		s.ModelSize = v
	}
	if v, ok := stored["language"]; ok && stt.ValidLanguage(v) {
		s.Language = v
	}
	if v, ok := stored["search_limit"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			s.SearchLimit = search.ClampLimit(n)
		}
	}
	if v, ok := stored["answer_model"]; ok && (v == "openai" || v == "gemini") {
		s.AnswerModel = v
	}
	if v, ok := stored["auto_search"]; ok {
		s.AutoSearch = v != "false"
	}
	m.mu.Lock()
	m.settings = s
	m.mu.Unlock()
	return nil
}

func (m *Manager) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// Update validates, applies, and persists a settings change.
func (m *Manager) Update(ctx context.Context, s Settings) error {
	s, err := s.Validate()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.settings = s
	m.mu.Unlock()
	if m.store == nil {
		return nil
	}
	values := map[string]string{
		"chunk_duration": strconv.Itoa(int(s.ChunkDuration / time.Second)),
		"model_size":     s.ModelSize,
		"language":       s.Language,
		"search_limit":   strconv.Itoa(s.SearchLimit),
		"answer_model":   s.AnswerModel,
		"auto_search":    strconv.FormatBool(s.AutoSearch),
	}
	for k, v := range values {
		if err := m.store.Set(ctx, k, v); err != nil {
			return fmt.Errorf("persist setting %s: %w", k, err)
		}
	}
	return nil
}

// SetDefaults registers the process-level configuration defaults with viper.
// Everything here is overridable by environment variables or flags.
func SetDefaults() {
	viper.SetDefault("web_port", 8080)
	viper.SetDefault("silence_thresh", 0.01)
	viper.SetDefault("min_duration_s", 0.5)
	viper.SetDefault("debug", false)
	viper.SetDefault("stt_model", "")
	viper.SetDefault("stt_base_url", "")
	viper.SetDefault("openai_model", "")
	viper.SetDefault("gemini_model", "")
}
