package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aura-companion/gateway/internal/handler/chat"
	"github.com/aura-companion/gateway/internal/handler/persona"
	"github.com/aura-companion/gateway/internal/handler/speech"
	"github.com/aura-companion/gateway/internal/handler/stream"
	"github.com/aura-companion/gateway/internal/handler/voice"
	middlewarePkg "github.com/aura-companion/gateway/internal/middleware"
	personaModel "github.com/aura-companion/gateway/internal/model/persona"
	"github.com/aura-companion/gateway/internal/relay"
	"github.com/aura-companion/gateway/internal/service/ai"
	chatService "github.com/aura-companion/gateway/internal/service/chat"
	"github.com/aura-companion/gateway/internal/service/pipeline"
	speechService "github.com/aura-companion/gateway/internal/service/speech"
	"github.com/aura-companion/gateway/internal/session"
	"github.com/aura-companion/gateway/pkg/utils"
)

// Deps groups the services the router wires into handlers.
type Deps struct {
	Personas     personaModel.Store
	Transcripts  chatService.Store
	Pipeline     *pipeline.Pipeline
	// Memory is nil when the placeholder responder is in use.
	Memory       *ai.Memory
	Transcriber  speechService.Transcriber
	Synthesizer  speechService.Synthesizer
	Registry     *session.Registry
	// Relay is nil when realtime relay is not configured.
	Relay        *relay.Relay
	DefaultVoice string
	IdleTimeout  time.Duration
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	personaHandler := persona.New(deps.Personas)
	chatHandler := chat.New(deps.Pipeline, deps.Transcripts, deps.Personas, deps.Memory)
	streamHandler := stream.New(deps.Pipeline, deps.Personas)
	speechHandler := speech.New(deps.Transcriber, deps.Synthesizer, deps.Personas, deps.DefaultVoice)
	voiceHandler := voice.New(deps.Registry, deps.Pipeline, deps.Relay, deps.IdleTimeout)

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		speechHandler.RegisterRoutes(api)
	})

	voiceHandler.RegisterRoutes(r)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": deps.Registry.Count(),
		})
	})

	return r
}
