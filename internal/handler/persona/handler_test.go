package persona

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/aura-companion/gateway/internal/model/persona"
)

func setupRouter() (*chi.Mux, persona.Store) {
	store := persona.NewMemoryStore(persona.Seed())
	r := chi.NewRouter()
	New(store).RegisterRoutes(r)
	return r, store
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var payload bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&payload).Encode(body)
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestListAgents(t *testing.T) {
	r, _ := setupRouter()

	resp := do(r, http.MethodGet, "/agents/", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var items []persona.Persona
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if len(items) != len(persona.Seed()) {
		t.Fatalf("expected %d agents, got %d", len(persona.Seed()), len(items))
	}
}

func TestCreateUpdateDeleteAgent(t *testing.T) {
	r, store := setupRouter()

	resp := do(r, http.MethodPost, "/agents/", map[string]string{"name": "Hana", "description": "gardener"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	var created persona.Persona
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode err: %v", err)
	}

	resp = do(r, http.MethodPut, "/agents/"+created.ID, map[string]string{"voice_id": "nova"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got, _ := store.FindByID(created.ID); got.VoiceID != "nova" || got.Description != "gardener" {
		t.Fatalf("unexpected stored agent: %+v", got)
	}

	resp = do(r, http.MethodDelete, "/agents/"+created.ID, nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}

	resp = do(r, http.MethodGet, "/agents/"+created.ID, nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestCreateAgentValidation(t *testing.T) {
	r, _ := setupRouter()

	if resp := do(r, http.MethodPost, "/agents/", map[string]string{"name": ""}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/agents/", bytes.NewReader([]byte("{not json")))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}

	if resp := do(r, http.MethodPut, "/agents/ghost", map[string]string{"name": "x"}); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
