package voice

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/aura-companion/gateway/internal/model/event"
	"github.com/aura-companion/gateway/internal/model/persona"
)

// 入站控制消息类型
const (
	inboundText    = "text"
	inboundPersona = "persona"
	inboundPing    = "ping"
)

type inboundMessage struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	PersonaID string `json:"personaId"`
}

type textFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type connectedFrame struct {
	Type      string           `json:"type"`
	SessionID string           `json:"sessionId"`
	Persona   *persona.Persona `json:"persona"`
}

type personaFrame struct {
	Type    string           `json:"type"`
	Persona *persona.Persona `json:"persona"`
}

type pongFrame struct {
	Type string `json:"type"`
}

// decodeText parses a text frame. Frames that are not a JSON object are
// treated as plain user text.
func decodeText(data []byte) inboundMessage {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var msg inboundMessage
		if err := json.Unmarshal([]byte(trimmed), &msg); err == nil && msg.Type != "" {
			return msg
		}
	}
	return inboundMessage{Type: inboundText, Content: string(data)}
}

// encodeEvent maps a pipeline event to a WebSocket frame.
func encodeEvent(e event.Event) (int, []byte, error) {
	var frame any
	switch ev := e.(type) {
	case event.Transcript:
		frame = textFrame{Type: string(event.KindTranscript), Content: ev.Text}
	case event.Response:
		frame = textFrame{Type: string(event.KindResponse), Content: ev.Text}
	case event.Audio:
		return websocket.BinaryMessage, ev.Data, nil
	case event.Error:
		frame = errorFrame{Type: string(event.KindError), Message: ev.Message}
	default:
		return 0, nil, fmt.Errorf("unsupported event %T", e)
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return 0, nil, err
	}
	return websocket.TextMessage, data, nil
}
