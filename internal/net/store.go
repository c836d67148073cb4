package net

import (
	"cmp"
	"slices"
)

// SessionStore holds the live sessions of this shard, keyed by session ID.
// Accessed only from the game loop goroutine; no locks.
type SessionStore struct {
	sessions map[uint64]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uint64]*Session)}
}

func (st *SessionStore) Add(s *Session)         { st.sessions[s.ID] = s }
func (st *SessionStore) Remove(id uint64)       { delete(st.sessions, id) }
func (st *SessionStore) Get(id uint64) *Session { return st.sessions[id] }
func (st *SessionStore) Count() int             { return len(st.sessions) }

// ForEach visits sessions in ascending ID order.
func (st *SessionStore) ForEach(fn func(*Session)) {
	for _, s := range st.Sorted() {
		fn(s)
	}
}

// Sorted returns a snapshot of the sessions in ascending ID order. Safe to
// mutate the store while iterating the snapshot.
func (st *SessionStore) Sorted() []*Session {
	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *Session) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// CloseAll closes every session; used at shutdown.
func (st *SessionStore) CloseAll() {
	for _, s := range st.sessions {
		s.Close()
	}
}
