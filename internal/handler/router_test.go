package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aura-companion/gateway/internal/model/persona"
	"github.com/aura-companion/gateway/internal/service/ai"
	chatService "github.com/aura-companion/gateway/internal/service/chat"
	"github.com/aura-companion/gateway/internal/service/pipeline"
	"github.com/aura-companion/gateway/internal/service/speech"
	"github.com/aura-companion/gateway/internal/session"
)

func newTestRouter() http.Handler {
	personas := persona.NewMemoryStore(persona.Seed())
	transcripts := chatService.NewMemoryStore()
	stt, tts := speech.PlaceholderTranscriber{}, speech.PlaceholderSynthesizer{}
	p := pipeline.New(stt, ai.PlaceholderResponder{}, tts, transcripts, time.Second)

	return NewRouter(Deps{
		Personas:    personas,
		Transcripts: transcripts,
		Pipeline:    p,
		Transcriber: stt,
		Synthesizer: tts,
		Registry:    session.NewRegistry(personas, 4, 2),
		IdleTimeout: time.Minute,
	})
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Sessions != 0 {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestRouterMountsAPI(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/agents", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("agents: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"text":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Aura is listening") {
		t.Fatalf("unexpected chat body %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/speech/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("speech health: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/realtime", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("realtime: expected 503, got %d", rec.Code)
	}
}
