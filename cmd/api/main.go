package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/aura-companion/gateway/internal/config"
	"github.com/aura-companion/gateway/internal/handler"
	"github.com/aura-companion/gateway/internal/model/persona"
	"github.com/aura-companion/gateway/internal/relay"
	"github.com/aura-companion/gateway/internal/service/ai"
	"github.com/aura-companion/gateway/internal/service/chat"
	"github.com/aura-companion/gateway/internal/service/pipeline"
	"github.com/aura-companion/gateway/internal/service/speech"
	"github.com/aura-companion/gateway/internal/session"
	"github.com/aura-companion/gateway/pkg/logx"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logx.Init(cfg.Log)
	if envErr != nil {
		log.Info().Err(envErr).Msg("no .env file, continuing with system environment variables only")
	}

	personaStore, err := newPersonaStore(cfg.Personas)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load personas")
	}

	transcripts, err := chat.New(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open transcript store")
	}
	defer transcripts.Close()

	var responder ai.Responder = ai.PlaceholderResponder{}
	var memory *ai.Memory
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize AI service, using placeholder responder")
		} else {
			responder = aiService
			memory = aiService.Memory()
			log.Info().Str("provider", cfg.AI.Provider).Str("model", cfg.AI.Model).Msg("AI service initialized")
		}
	} else {
		log.Warn().Str("provider", cfg.AI.Provider).Msg("AI credentials not configured, using placeholder responder")
	}

	transcriber, synthesizer := speech.New(cfg.Speech)
	if !cfg.Speech.Enabled() {
		log.Warn().Msg("speech credentials not configured, using placeholder speech")
	}

	var rl *relay.Relay
	if cfg.Relay.Enabled() {
		rl = relay.New(cfg.Relay)
		log.Info().Str("model", cfg.Relay.Model).Msg("realtime relay enabled")
	}

	registry := session.NewRegistry(personaStore, cfg.Server.MaxSessions, cfg.Server.QueueDepth)
	p := pipeline.New(transcriber, responder, synthesizer, transcripts, cfg.Server.CollaboratorTimeout)

	router := handler.NewRouter(handler.Deps{
		Personas:     personaStore,
		Transcripts:  transcripts,
		Pipeline:     p,
		Memory:       memory,
		Transcriber:  transcriber,
		Synthesizer:  synthesizer,
		Registry:     registry,
		Relay:        rl,
		DefaultVoice: cfg.Speech.TTSVoice,
		IdleTimeout:  cfg.Server.IdleTimeout,
	})

	startServer(ctx, cfg.Server, router, registry)
}

// newPersonaStore seeds the store from the configured file, or the built-in
// personas when no file is set.
func newPersonaStore(cfg config.PersonaConfig) (*persona.MemoryStore, error) {
	if cfg.File == "" {
		return persona.NewMemoryStore(persona.Seed()), nil
	}

	items, err := persona.LoadFile(cfg.File)
	if err != nil {
		return nil, err
	}
	store := persona.NewMemoryStore(items)
	log.Info().Str("file", cfg.File).Int("count", len(items)).Msg("personas loaded")

	if cfg.Watch {
		if err := persona.Watch(cfg.File, store); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, registry *session.Registry) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv.RegisterOnShutdown(func() {
		n := registry.CloseAll()
		log.Info().Int("sessions", n).Msg("closed live sessions")
	})

	log.Info().Str("addr", addr).Msg("Aura gateway listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
