package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role distinguishes who said what in the conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation entry. Immutable once appended.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Meta      string    `json:"meta,omitempty"` // degradation/no-results indicator
	CreatedAt time.Time `json:"created_at"`
}

// Store persists conversation history per session. History is append-only;
// it empties only through an explicit Clear.
type Store interface {
	Append(ctx context.Context, sessionID uuid.UUID, msg Message) error
	History(ctx context.Context, sessionID uuid.UUID) ([]Message, error)
	Clear(ctx context.Context, sessionID uuid.UUID) error
}

// NewMessage stamps a message with an ID and timestamp.
func NewMessage(role Role, content, meta string) Message {
	return Message{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		Meta:      meta,
		CreatedAt: time.Now().UTC(),
	}
}

// MemoryStore keeps history in process memory. Used when no database is
// configured, and by tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID][]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID][]Message)}
}

func (s *MemoryStore) Append(_ context.Context, sessionID uuid.UUID, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], msg)
	return nil
}

func (s *MemoryStore) History(_ context.Context, sessionID uuid.UUID) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.sessions[sessionID]
	out := make([]Message, len(history))
	copy(out, history)
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
