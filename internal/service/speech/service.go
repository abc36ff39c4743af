package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"github.com/aura-companion/gateway/internal/config"
	"github.com/aura-companion/gateway/pkg/logx"
)

var ErrEmptyAudio = errors.New("audio payload is empty")

// Transcriber turns one recorded utterance into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer turns reply text into a complete audio payload. An empty
// result means there is nothing to play.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Service 语音服务，基于 OpenAI Audio API 实现识别与合成。
type Service struct {
	client   openai.Client
	sttModel string
	ttsModel string
	voice    string
	language string
	log      zerolog.Logger
}

// NewService 创建语音服务实例。
func NewService(cfg config.SpeechConfig) *Service {
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
	}
	if trimmed := strings.TrimRight(cfg.BaseURL, "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}

	return &Service{
		client:   openai.NewClient(opts...),
		sttModel: cfg.STTModel,
		ttsModel: cfg.TTSModel,
		voice:    NormalizeVoice(cfg.TTSVoice, DefaultVoice),
		language: cfg.Language,
		log:      logx.Component("speech"),
	}
}

// New 根据配置返回识别与合成协作者；未配置密钥时退化为占位实现。
func New(cfg config.SpeechConfig) (Transcriber, Synthesizer) {
	if !cfg.Enabled() {
		l := logx.Component("speech")
		l.Warn().Msg("OPENAI_API_KEY not set, using placeholder speech collaborators")
		return PlaceholderTranscriber{}, PlaceholderSynthesizer{}
	}
	svc := NewService(cfg)
	return svc, svc
}

// Transcribe 语音转文字。音频先落盘为临时文件，以便上传时携带文件名。
func (s *Service) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}

	tmp, err := os.CreateTemp("", "utterance-*"+sniffExtension(audio))
	if err != nil {
		return "", fmt.Errorf("create temp audio: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := tmp.Write(audio); err != nil {
		return "", fmt.Errorf("write temp audio: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind temp audio: %w", err)
	}

	params := openai.AudioTranscriptionNewParams{
		File:        tmp,
		Model:       openai.AudioModel(s.sttModel),
		Temperature: openai.Float(0),
	}
	if s.language != "" {
		params.Language = openai.String(s.language)
	}

	transcription, err := s.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}

	text := strings.TrimSpace(transcription.Text)
	s.log.Debug().Int("bytes", len(audio)).Str("transcript", text).Msg("transcribed audio")
	return text, nil
}

// Synthesize 文字转语音，返回完整音频。
func (s *Service) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(s.ttsModel),
		Voice:          openai.AudioSpeechNewParamsVoice(NormalizeVoice(voice, s.voice)),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatWAV,
	})
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("read speech body: %w", err)
	}
	return buf.Bytes(), nil
}

func sniffExtension(audio []byte) string {
	switch {
	case bytes.HasPrefix(audio, []byte("RIFF")):
		return ".wav"
	case bytes.HasPrefix(audio, []byte("OggS")):
		return ".ogg"
	case bytes.HasPrefix(audio, []byte("ID3")), len(audio) > 1 && audio[0] == 0xFF && audio[1]&0xE0 == 0xE0:
		return ".mp3"
	default:
		return ".webm"
	}
}
