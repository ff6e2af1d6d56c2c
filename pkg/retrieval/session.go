package retrieval

import (
	"sort"
	"sync"
)

// Store keeps the current session per session ID. Sessions are replaced
// wholesale: a reader holding a *Session keeps seeing that snapshot even if a
// newer ingestion replaces it.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	latest   string
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Put installs s as the current session for s.ID and marks it as the latest.
func (st *Store) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
	st.latest = s.ID
}

// Get returns the session for id. An empty id selects the most recently
// ingested session.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if id == "" {
		id = st.latest
	}
	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotReady
	}
	return s, nil
}

// Delete drops a session. It reports whether the session existed.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return false
	}
	delete(st.sessions, id)
	if st.latest == id {
		st.latest = ""
	}
	return true
}

// IDs lists the stored session IDs in sorted order.
func (st *Store) IDs() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
