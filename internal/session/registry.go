package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aura-companion/gateway/internal/model/persona"
	"github.com/aura-companion/gateway/pkg/logx"
)

var (
	ErrResourceExhausted = errors.New("session capacity reached")
	ErrSessionNotFound   = errors.New("session not found")
	ErrPersonaNotFound   = errors.New("persona not found")
)

// PersonaLookup is the read side of the persona store.
type PersonaLookup interface {
	FindByID(id string) (persona.Persona, bool)
}

// Registry owns the table of live sessions.
type Registry struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	personas   PersonaLookup
	max        int
	queueDepth int
	log        zerolog.Logger
}

// NewRegistry creates a registry admitting at most maxSessions connections,
// each with a pending-unit queue of queueDepth.
func NewRegistry(personas PersonaLookup, maxSessions, queueDepth int) *Registry {
	if queueDepth < 1 {
		queueDepth = 1
	}
	return &Registry{
		sessions:   make(map[string]*Session),
		personas:   personas,
		max:        maxSessions,
		queueDepth: queueDepth,
		log:        logx.Component("session"),
	}
}

// Admit allocates a session for conn and returns its id.
func (r *Registry) Admit(conn Conn) (string, error) {
	r.mu.Lock()
	if len(r.sessions) >= r.max {
		r.mu.Unlock()
		return "", ErrResourceExhausted
	}
	s := newSession(uuid.NewString(), conn, r.queueDepth)
	r.sessions[s.ID] = s
	count := len(r.sessions)
	r.mu.Unlock()

	r.log.Info().Str("session", s.ID).Int("active", count).Msg("session admitted")
	return s.ID, nil
}

// BindPersona snapshots a persona into the session. An empty personaID
// restores default behaviour. On ErrPersonaNotFound the session keeps its
// previous binding.
func (r *Registry) BindPersona(_ context.Context, sessionID, personaID string) error {
	s, ok := r.Lookup(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	if personaID == "" {
		s.bind(nil)
		return nil
	}

	p, ok := r.personas.FindByID(personaID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPersonaNotFound, personaID)
	}
	s.bind(&p)

	r.log.Debug().Str("session", sessionID).Str("persona", personaID).Msg("persona bound")
	return nil
}

// Evict marks the session dead, cancels its work and closes the connection.
// Calling it again, or with an unknown id, does nothing.
func (r *Registry) Evict(sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return
	}
	s.close()
	r.log.Info().Str("session", sessionID).Int("active", count).Msg("session evicted")
}

// Lookup returns a live session.
func (r *Registry) Lookup(sessionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Full reports whether Admit would currently fail.
func (r *Registry) Full() bool {
	return r.Count() >= r.max
}

// CloseAll evicts every session, used on shutdown.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range all {
		s.close()
	}
	return len(all)
}
