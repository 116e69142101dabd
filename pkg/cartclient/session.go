package cartclient

import (
	"sync"

	"github.com/google/uuid"
)

// SessionKey is the key the cart session id is stored under.
const SessionKey = "kelvo_ecomm_session_id"

// SessionStore persists small values for the lifetime of a client session.
type SessionStore interface {
	Load(key string) (string, bool)
	Store(key, value string)
}

// MemorySessionStore is a SessionStore held in process memory.
type MemorySessionStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemorySessionStore creates an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{values: make(map[string]string)}
}

func (s *MemorySessionStore) Load(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok && v != ""
}

func (s *MemorySessionStore) Store(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// SessionID returns the cart session id kept in store, generating and
// storing a random one the first time.
func SessionID(store SessionStore) string {
	if id, ok := store.Load(SessionKey); ok {
		return id
	}
	id := uuid.NewString()
	store.Store(SessionKey, id)
	return id
}
