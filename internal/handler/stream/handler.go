package stream

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/aura-companion/gateway/internal/model/chat"
	"github.com/aura-companion/gateway/internal/model/event"
	"github.com/aura-companion/gateway/internal/model/persona"
	"github.com/aura-companion/gateway/pkg/utils"
)

// Runner runs one pipeline invocation.
type Runner interface {
	Run(ctx context.Context, unit event.Unit, p *persona.Persona) <-chan event.Event
}

// Handler streams pipeline events via Server-Sent Events.
type Handler struct {
	pipeline Runner
	personas persona.Store
}

// New creates a new stream handler
func New(runner Runner, personas persona.Store) *Handler {
	return &Handler{
		pipeline: runner,
		personas: personas,
	}
}

// RegisterRoutes mounts the SSE endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream", h.handleStream)
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event    string `json:"event"`
	Content  string `json:"content,omitempty"`
	AgentID  string `json:"agentId,omitempty"`
	Finished bool   `json:"finished,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.URL.Query().Get("text"))
	agentID := strings.TrimSpace(r.URL.Query().Get("agent_id"))
	if text == "" {
		utils.RespondError(w, http.StatusBadRequest, "text query parameter is required")
		return
	}

	var bound *persona.Persona
	if agentID != "" {
		p, ok := h.personas.FindByID(agentID)
		if !ok {
			utils.RespondError(w, http.StatusNotFound, "persona not found")
			return
		}
		bound = &p
	} else {
		agentID = chat.DefaultConversation
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	utils.SetupSSEHeaders(w)

	utils.SendSSEChunk(w, flusher, StreamResponse{Event: "start", AgentID: agentID})

	for e := range h.pipeline.Run(r.Context(), event.TextUnit{Content: text}, bound) {
		utils.SendSSEChunk(w, flusher, toChunk(e, agentID))
	}

	if r.Context().Err() != nil {
		log.Debug().Str("component", "stream").Str("agent", agentID).Msg("client left before stream finished")
		return
	}
	utils.SendSSEChunk(w, flusher, StreamResponse{Event: "end", AgentID: agentID, Finished: true})
}

func toChunk(e event.Event, agentID string) StreamResponse {
	chunk := StreamResponse{Event: string(e.Kind()), AgentID: agentID}
	switch ev := e.(type) {
	case event.Transcript:
		chunk.Content = ev.Text
	case event.Response:
		chunk.Content = ev.Text
	case event.Audio:
		chunk.Content = base64.StdEncoding.EncodeToString(ev.Data)
	case event.Error:
		chunk.Error = ev.Message
	}
	return chunk
}
