package voice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/aura-companion/gateway/internal/model/event"
	"github.com/aura-companion/gateway/internal/model/persona"
	"github.com/aura-companion/gateway/internal/relay"
	"github.com/aura-companion/gateway/internal/session"
	"github.com/aura-companion/gateway/pkg/logx"
	"github.com/aura-companion/gateway/pkg/utils"
)

const (
	msgSessionBusy     = "session busy"
	msgPersonaNotFound = "persona not found"
	msgEmptyText       = "text content is required"
	msgUnknownType     = "unknown message type"
	maxMessageSize     = 16 << 20
)

// Runner runs one pipeline invocation.
type Runner interface {
	Run(ctx context.Context, unit event.Unit, p *persona.Persona) <-chan event.Event
}

// Handler WebSocket语音处理器，负责会话端点与实时转发端点。
type Handler struct {
	registry    *session.Registry
	pipeline    Runner
	relay       *relay.Relay
	upgrader    websocket.Upgrader
	idleTimeout time.Duration
	log         zerolog.Logger
}

// New 创建WebSocket处理器。relay 为 nil 时实时转发端点返回 503。
func New(registry *session.Registry, runner Runner, rl *relay.Relay, idleTimeout time.Duration) *Handler {
	if idleTimeout <= 0 {
		idleTimeout = 60 * time.Second
	}
	return &Handler{
		registry: registry,
		pipeline: runner,
		relay:    rl,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		idleTimeout: idleTimeout,
		log:         logx.Component("websocket"),
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleSession)
	r.Get("/ws/realtime", h.handleRealtime)
}

// handleSession 处理双工会话连接
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	if h.registry.Full() {
		utils.RespondError(w, http.StatusServiceUnavailable, session.ErrResourceExhausted.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("upgrade failed")
		return
	}

	id, err := h.registry.Admit(conn)
	if err != nil {
		rejectFull(conn)
		return
	}
	defer h.registry.Evict(id)

	s, ok := h.registry.Lookup(id)
	if !ok {
		return
	}

	if personaID := strings.TrimSpace(r.URL.Query().Get("persona")); personaID != "" {
		if err := h.registry.BindPersona(r.Context(), id, personaID); err != nil {
			h.sendJSON(s, errorFrame{Type: string(event.KindError), Message: msgPersonaNotFound})
		}
	}

	if !h.sendJSON(s, connectedFrame{Type: "connected", SessionID: id, Persona: s.Persona()}) {
		return
	}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.idleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.idleTimeout))
	})

	go h.pingLoop(s.Context(), conn)
	go h.worker(s)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && s.Alive() {
				h.log.Info().Err(err).Str("session", id).Msg("read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.idleTimeout))

		switch messageType {
		case websocket.BinaryMessage:
			h.enqueue(s, event.AudioUnit{Data: data})
		case websocket.TextMessage:
			h.handleText(r.Context(), s, data)
		}
	}
}

// handleText 处理文本帧：控制消息或纯文本输入
func (h *Handler) handleText(ctx context.Context, s *session.Session, data []byte) {
	msg := decodeText(data)
	switch msg.Type {
	case inboundText:
		if strings.TrimSpace(msg.Content) == "" {
			h.sendJSON(s, errorFrame{Type: string(event.KindError), Message: msgEmptyText})
			return
		}
		h.enqueue(s, event.TextUnit{Content: msg.Content})

	case inboundPersona:
		if err := h.registry.BindPersona(ctx, s.ID, strings.TrimSpace(msg.PersonaID)); err != nil {
			message := err.Error()
			if errors.Is(err, session.ErrPersonaNotFound) {
				message = msgPersonaNotFound
			}
			h.sendJSON(s, errorFrame{Type: string(event.KindError), Message: message})
			return
		}
		h.sendJSON(s, personaFrame{Type: inboundPersona, Persona: s.Persona()})

	case inboundPing:
		h.sendJSON(s, pongFrame{Type: "pong"})

	default:
		h.sendJSON(s, errorFrame{Type: string(event.KindError), Message: msgUnknownType})
	}
}

func (h *Handler) enqueue(s *session.Session, u event.Unit) {
	if !s.Enqueue(u) {
		h.sendJSON(s, errorFrame{Type: string(event.KindError), Message: msgSessionBusy})
	}
}

// worker runs queued units one at a time, so events of two invocations are
// never interleaved.
func (h *Handler) worker(s *session.Session) {
	ctx := s.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-s.Units():
			for e := range h.pipeline.Run(ctx, u, s.Persona()) {
				messageType, payload, err := encodeEvent(e)
				if err != nil {
					h.log.Error().Err(err).Str("session", s.ID).Msg("encode event failed")
					continue
				}
				if err := s.Write(messageType, payload); err != nil {
					h.log.Debug().Err(err).Str("session", s.ID).Msg("write failed, evicting")
					h.registry.Evict(s.ID)
					return
				}
			}
		}
	}
}

func (h *Handler) sendJSON(s *session.Session, frame any) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal frame failed")
		return false
	}
	if err := s.Write(websocket.TextMessage, data); err != nil {
		h.registry.Evict(s.ID)
		return false
	}
	return true
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(h.idleTimeout * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

func rejectFull(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, session.ErrResourceExhausted.Error())
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
}
