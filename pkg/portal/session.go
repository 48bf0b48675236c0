package portal

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// Actor is the authenticated identity driving a session.
type Actor struct {
	ID          string `json:"id"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
}

// sessionState is what survives a restart: the credential, the actor it
// belongs to, and the pointer to the last active assistant conversation.
type sessionState struct {
	Token          string `json:"token,omitempty"`
	Actor          *Actor `json:"actor,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// StateStore persists session state between runs. Load returning a zero
// state means "nothing stored"; a corrupt store must degrade to the same,
// never to an error that blocks startup.
type StateStore interface {
	Load() sessionState
	Save(sessionState)
	Clear()
}

// MemoryStore is a StateStore that lives and dies with the process.
type MemoryStore struct {
	mu sync.Mutex
	st sessionState
}

func (m *MemoryStore) Load() sessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st
}

func (m *MemoryStore) Save(st sessionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = st
}

func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = sessionState{}
}

// FileStore persists session state as JSON at a fixed path. Read and parse
// failures are logged and treated as an absent session.
type FileStore struct {
	Path string
}

func (f *FileStore) Load() sessionState {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", f.Path).Msg("session store unreadable, starting fresh")
		}
		return sessionState{}
	}
	var st sessionState
	if err := json.Unmarshal(raw, &st); err != nil {
		log.Warn().Err(err).Str("path", f.Path).Msg("session store corrupt, starting fresh")
		return sessionState{}
	}
	return st
}

func (f *FileStore) Save(st sessionState) {
	raw, err := json.Marshal(st)
	if err != nil {
		return
	}
	if err := os.WriteFile(f.Path, raw, 0o600); err != nil {
		log.Warn().Err(err).Str("path", f.Path).Msg("session store write failed")
	}
}

func (f *FileStore) Clear() {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("path", f.Path).Msg("session store clear failed")
	}
}

// SessionContext holds the acting identity and the persisted conversation
// pointer. Engines receive it by injection instead of reading ambient
// storage themselves. All methods are safe for concurrent use.
type SessionContext struct {
	mu    sync.RWMutex
	store StateStore
	st    sessionState
}

// NewSessionContext wires a context to its backing store. A nil store
// defaults to an in-memory one.
func NewSessionContext(store StateStore) *SessionContext {
	if store == nil {
		store = &MemoryStore{}
	}
	return &SessionContext{store: store}
}

// Init hydrates the context from persistent storage. Call once at startup.
func (s *SessionContext) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = s.store.Load()
}

// Teardown clears all session state, in memory and in the store. Call on
// logout; engines must be re-initialized afterwards.
func (s *SessionContext) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = sessionState{}
	s.store.Clear()
}

// Actor returns the acting identity, or nil when anonymous. Never errors:
// absence of a credential is a state, not a failure.
func (s *SessionContext) Actor() *Actor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.st.Actor == nil {
		return nil
	}
	a := *s.st.Actor
	return &a
}

// Token returns the bearer credential, or "" when anonymous.
func (s *SessionContext) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Token
}

// SetAuth records a fresh login and persists it.
func (s *SessionContext) SetAuth(token string, actor *Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Token = token
	s.st.Actor = actor
	s.store.Save(s.st)
}

// invalidate drops the credential after a backend rejection, keeping the
// conversation pointer so a re-login can restore the assistant view.
func (s *SessionContext) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Token = ""
	s.st.Actor = nil
	s.store.Save(s.st)
}

// ConversationID returns the persisted assistant conversation pointer.
func (s *SessionContext) ConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ConversationID
}

// SetConversationID persists the assistant conversation pointer so the
// conversation can be restored after a reload.
func (s *SessionContext) SetConversationID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.ConversationID == id {
		return
	}
	s.st.ConversationID = id
	s.store.Save(s.st)
}
