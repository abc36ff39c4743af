// Package session tracks live duplex connections and their per-session state.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aura-companion/gateway/internal/model/event"
	"github.com/aura-companion/gateway/internal/model/persona"
)

const writeWait = 10 * time.Second

// Conn is the part of *websocket.Conn a session needs.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session is one live connection. The persona snapshot is replaced
// atomically and never mutated after it is stored.
type Session struct {
	ID string

	conn    Conn
	persona atomic.Pointer[persona.Persona]
	alive   atomic.Bool
	queue   chan event.Unit

	writeMu   sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newSession(id string, conn Conn, queueDepth int) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:     id,
		conn:   conn,
		queue:  make(chan event.Unit, queueDepth),
		ctx:    ctx,
		cancel: cancel,
	}
	s.alive.Store(true)
	return s
}

// Context is cancelled when the session is evicted.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Alive reports whether the session has not been evicted.
func (s *Session) Alive() bool {
	return s.alive.Load()
}

// Persona returns the bound snapshot, or nil for default behaviour.
func (s *Session) Persona() *persona.Persona {
	return s.persona.Load()
}

// Enqueue hands a unit to the session worker without blocking. It reports
// false when the queue is full or the session is gone.
func (s *Session) Enqueue(u event.Unit) bool {
	if !s.Alive() {
		return false
	}
	select {
	case s.queue <- u:
		return true
	default:
		return false
	}
}

// Units is drained by the single session worker. It is never closed; the
// worker stops on Context().Done().
func (s *Session) Units() <-chan event.Unit {
	return s.queue
}

// Write sends one frame. Writes from the worker, the read loop and the ping
// loop are serialised here.
func (s *Session) Write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(messageType, data)
}

func (s *Session) bind(p *persona.Persona) {
	s.persona.Store(p)
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.alive.Store(false)
		s.cancel()
		_ = s.conn.Close()
	})
}
