package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/aura-companion/gateway/internal/model/event"
	"github.com/aura-companion/gateway/internal/model/persona"
	"github.com/aura-companion/gateway/internal/session"
)

type fakeRunner struct{}

func (fakeRunner) Run(_ context.Context, unit event.Unit, p *persona.Persona) <-chan event.Event {
	ch := make(chan event.Event, 3)
	go func() {
		defer close(ch)
		prefix := "re: "
		if p != nil {
			prefix = p.Name + ": "
		}
		switch u := unit.(type) {
		case event.TextUnit:
			ch <- event.Response{Text: prefix + u.Content}
		case event.AudioUnit:
			ch <- event.Transcript{Text: "heard"}
			ch <- event.Response{Text: prefix + "heard"}
			ch <- event.Audio{Data: u.Data}
		}
	}()
	return ch
}

type frame struct {
	Type      string           `json:"type"`
	Content   string           `json:"content"`
	Message   string           `json:"message"`
	SessionID string           `json:"sessionId"`
	Persona   *persona.Persona `json:"persona"`
}

func newTestServer(t *testing.T, maxSessions int) (*httptest.Server, *session.Registry) {
	t.Helper()
	registry := session.NewRegistry(persona.NewMemoryStore(persona.Seed()), maxSessions, 4)
	h := New(registry, fakeRunner{}, nil, time.Minute)

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, registry
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+path, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Fatalf("expected text frame, got %d", kind)
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return f
}

func TestSessionConnectAndText(t *testing.T) {
	srv, registry := newTestServer(t, 4)
	conn := dial(t, srv, "/ws")

	connected := readFrame(t, conn)
	if connected.Type != "connected" || connected.SessionID == "" {
		t.Fatalf("unexpected connected frame: %+v", connected)
	}
	if connected.Persona != nil {
		t.Fatalf("expected no persona, got %+v", connected.Persona)
	}
	if registry.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", registry.Count())
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply := readFrame(t, conn)
	if reply.Type != "llm_response" || reply.Content != "re: hello" {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"text","content":"again"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if reply := readFrame(t, conn); reply.Content != "re: again" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestSessionAudioRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, 4)
	conn := dial(t, srv, "/ws?persona=storyteller")

	connected := readFrame(t, conn)
	if connected.Persona == nil || connected.Persona.ID != "storyteller" {
		t.Fatalf("expected storyteller persona, got %+v", connected.Persona)
	}

	audio := []byte("RIFF-audio")
	if err := conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		t.Fatalf("write: %v", err)
	}

	if f := readFrame(t, conn); f.Type != "transcript" || f.Content != "heard" {
		t.Fatalf("unexpected transcript: %+v", f)
	}
	if f := readFrame(t, conn); f.Type != "llm_response" || f.Content != "Minh: heard" {
		t.Fatalf("unexpected response: %+v", f)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read audio: %v", err)
	}
	if kind != websocket.BinaryMessage || string(data) != string(audio) {
		t.Fatalf("unexpected audio frame kind=%d data=%q", kind, data)
	}
}

func TestSessionPersonaSwitch(t *testing.T) {
	srv, _ := newTestServer(t, 4)
	conn := dial(t, srv, "/ws")
	readFrame(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"persona","personaId":"coach"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	switched := readFrame(t, conn)
	if switched.Type != "persona" || switched.Persona == nil || switched.Persona.ID != "coach" {
		t.Fatalf("unexpected persona frame: %+v", switched)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"persona","personaId":"ghost"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := readFrame(t, conn); f.Type != "error" || f.Message != msgPersonaNotFound {
		t.Fatalf("unexpected frame: %+v", f)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hi")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := readFrame(t, conn); f.Content != "Linh: hi" {
		t.Fatalf("expected previous persona to stay bound, got %+v", f)
	}
}

func TestSessionUnknownPersonaOnConnect(t *testing.T) {
	srv, _ := newTestServer(t, 4)
	conn := dial(t, srv, "/ws?persona=ghost")

	if f := readFrame(t, conn); f.Type != "error" || f.Message != msgPersonaNotFound {
		t.Fatalf("unexpected first frame: %+v", f)
	}
	if f := readFrame(t, conn); f.Type != "connected" || f.Persona != nil {
		t.Fatalf("unexpected connected frame: %+v", f)
	}
}

func TestSessionControlMessages(t *testing.T) {
	srv, _ := newTestServer(t, 4)
	conn := dial(t, srv, "/ws")
	readFrame(t, conn)

	cases := []struct {
		input string
		want  frame
	}{
		{`{"type":"ping"}`, frame{Type: "pong"}},
		{`{"type":"dance"}`, frame{Type: "error", Message: msgUnknownType}},
		{`{"type":"text","content":"  "}`, frame{Type: "error", Message: msgEmptyText}},
	}
	for _, tc := range cases {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tc.input)); err != nil {
			t.Fatalf("write: %v", err)
		}
		if got := readFrame(t, conn); got != tc.want {
			t.Fatalf("input %s: expected %+v, got %+v", tc.input, tc.want, got)
		}
	}
}

func TestSessionRejectedWhenFull(t *testing.T) {
	srv, _ := newTestServer(t, 1)
	conn := dial(t, srv, "/ws")
	readFrame(t, conn)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err == nil {
		t.Fatal("expected second connection to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %+v", resp)
	}
}

func TestSessionEvictedOnDisconnect(t *testing.T) {
	srv, registry := newTestServer(t, 4)
	conn := dial(t, srv, "/ws")
	readFrame(t, conn)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for registry.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session not evicted, count=%d", registry.Count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRealtimeUnavailableWithoutRelay(t *testing.T) {
	srv, _ := newTestServer(t, 4)

	resp, err := http.Get(srv.URL + "/ws/realtime")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestEncodeEvent(t *testing.T) {
	kind, data, err := encodeEvent(event.Error{Message: "boom"})
	if err != nil || kind != websocket.TextMessage {
		t.Fatalf("unexpected result kind=%d err=%v", kind, err)
	}
	if string(data) != `{"type":"error","message":"boom"}` {
		t.Fatalf("unexpected payload %s", data)
	}

	kind, data, err = encodeEvent(event.Transcript{})
	if err != nil || kind != websocket.TextMessage || string(data) != `{"type":"transcript","content":""}` {
		t.Fatalf("unexpected transcript encoding %s (%v)", data, err)
	}

	if _, _, err := encodeEvent(nil); err == nil {
		t.Fatal("expected error for nil event")
	}
}

func TestDecodeText(t *testing.T) {
	if msg := decodeText([]byte("plain words")); msg.Type != inboundText || msg.Content != "plain words" {
		t.Fatalf("unexpected %+v", msg)
	}
	if msg := decodeText([]byte(`{"content":"no type"}`)); msg.Type != inboundText || msg.Content != `{"content":"no type"}` {
		t.Fatalf("unexpected %+v", msg)
	}
	if msg := decodeText([]byte(`{"type":"persona","personaId":"aura"}`)); msg.Type != inboundPersona || msg.PersonaID != "aura" {
		t.Fatalf("unexpected %+v", msg)
	}
}
