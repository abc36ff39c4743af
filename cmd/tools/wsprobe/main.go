package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/aura-companion/gateway/internal/service/speech"
	"github.com/aura-companion/gateway/pkg/logx"
)

type serverFrame struct {
	Type      string          `json:"type"`
	Content   string          `json:"content"`
	Message   string          `json:"message"`
	SessionID string          `json:"sessionId"`
	Persona   json.RawMessage `json:"persona"`
}

func main() {
	target := flag.String("url", "ws://localhost:8080/ws", "会话端点地址")
	personaID := flag.String("persona", "", "绑定的角色 ID，留空使用默认助手")
	text := flag.String("text", "", "发送的文本")
	wavPath := flag.String("wav", "", "发送的 WAV 音频文件路径")
	outputPath := flag.String("out", "", "回复音频输出路径 (默认 output/reply-<时间>.wav)")
	timeout := flag.Duration("timeout", 45*time.Second, "等待回复的超时时间")
	debug := flag.Bool("debug", false, "输出调试日志")
	flag.Parse()

	logx.Init(logx.Config{Debug: *debug, PrettyFormat: true})

	if (*text == "") == (*wavPath == "") {
		flag.Usage()
		log.Fatal().Msg("请通过 -text 或 -wav 二选一指定输入")
	}

	endpoint, err := url.Parse(*target)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid url")
	}
	if *personaID != "" {
		q := endpoint.Query()
		q.Set("persona", *personaID)
		endpoint.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.Dial(endpoint.String(), nil)
	if err != nil {
		log.Fatal().Err(err).Str("url", endpoint.String()).Msg("dial failed")
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(*timeout))
	if *wavPath != "" {
		data, err := os.ReadFile(*wavPath)
		if err != nil {
			log.Fatal().Err(err).Msg("read wav")
		}
		if info, _, err := speech.DecodeWAV(data); err == nil {
			log.Info().Int("sample_rate", info.SampleRate).Int("channels", info.Channels).Msg("sending audio")
		} else {
			log.Warn().Err(err).Msg("input is not a PCM WAV, sending as-is")
		}
		if err := waitAndSend(conn, websocket.BinaryMessage, data); err != nil {
			log.Fatal().Err(err).Msg("send audio")
		}
	} else {
		if err := waitAndSend(conn, websocket.TextMessage, []byte(*text)); err != nil {
			log.Fatal().Err(err).Msg("send text")
		}
	}

	if err := readReplies(conn, *wavPath != "", *outputPath); err != nil {
		log.Fatal().Err(err).Msg("probe failed")
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// waitAndSend reads the connected frame before sending the input.
func waitAndSend(conn *websocket.Conn, kind int, payload []byte) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var f serverFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("decode frame: %w", err)
		}
		switch f.Type {
		case "connected":
			log.Info().Str("session", f.SessionID).RawJSON("persona", nonNull(f.Persona)).Msg("connected")
			return conn.WriteMessage(kind, payload)
		case "error":
			log.Warn().Str("message", f.Message).Msg("server error")
		}
	}
}

// readReplies prints events until the invocation is complete: the reply text
// for text input, the reply audio for audio input.
func readReplies(conn *websocket.Conn, expectAudio bool, outputPath string) error {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if kind == websocket.BinaryMessage {
			path, err := saveAudio(outputPath, data)
			if err != nil {
				return err
			}
			log.Info().Int("bytes", len(data)).Str("file", path).Msg("audio")
			return nil
		}

		var f serverFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("decode frame: %w", err)
		}
		switch f.Type {
		case "transcript":
			log.Info().Str("text", f.Content).Msg("transcript")
		case "llm_response":
			log.Info().Str("text", f.Content).Msg("response")
			if !expectAudio {
				return nil
			}
		case "error":
			return fmt.Errorf("server error: %s", f.Message)
		default:
			log.Debug().Str("type", f.Type).Msg("frame")
		}
	}
}

func saveAudio(path string, data []byte) (string, error) {
	if path == "" {
		path = filepath.Join("output", fmt.Sprintf("reply-%d.wav", time.Now().Unix()))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	return path, nil
}

func nonNull(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}
