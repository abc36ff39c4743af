package persona

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("persona not found")
	ErrNameRequired = errors.New("persona name is required")
	ErrReservedID   = errors.New("persona id is reserved")
)

// Store exposes persona lookup and administration.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
	Create(req CreateRequest) (Persona, error)
	Update(id string, req UpdateRequest) (Persona, error)
	Delete(id string) error
	Replace(items []Persona)
}

// MemoryStore implements Store with an in-memory, insertion-ordered slice.
type MemoryStore struct {
	mu    sync.RWMutex
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns a copy of all personas.
func (s *MemoryStore) List() []Persona {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier. The returned value is a copy.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexOf(id); idx >= 0 {
		return s.items[idx], true
	}
	return Persona{}, false
}

// Create stores a new persona under a generated id.
func (s *MemoryStore) Create(req CreateRequest) (Persona, error) {
	if strings.TrimSpace(req.Name) == "" {
		return Persona{}, ErrNameRequired
	}

	p := Persona{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		SystemPrompt: req.SystemPrompt,
		VoiceID:      req.VoiceID,
		AvatarURL:    req.AvatarURL,
	}

	s.mu.Lock()
	s.items = append(s.items, p)
	s.mu.Unlock()
	return p, nil
}

// Update applies a partial update and returns the stored result.
func (s *MemoryStore) Update(id string, req UpdateRequest) (Persona, error) {
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return Persona{}, ErrNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return Persona{}, ErrNotFound
	}
	req.apply(&s.items[idx])
	return s.items[idx], nil
}

// Delete removes a persona.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return ErrNotFound
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	return nil
}

// Replace swaps the whole set, used when the persona file is reloaded.
func (s *MemoryStore) Replace(items []Persona) {
	s.mu.Lock()
	s.items = append([]Persona(nil), items...)
	s.mu.Unlock()
}

// indexOf must be called with the lock held.
func (s *MemoryStore) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}
