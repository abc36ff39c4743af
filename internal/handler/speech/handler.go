package speech

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aura-companion/gateway/internal/model/persona"
	"github.com/aura-companion/gateway/internal/model/speech"
	speechsvc "github.com/aura-companion/gateway/internal/service/speech"
	"github.com/aura-companion/gateway/pkg/logx"
	"github.com/aura-companion/gateway/pkg/utils"
)

const maxUploadSize = 32 << 20

// Handler 语音服务的HTTP处理器
type Handler struct {
	stt          speechsvc.Transcriber
	tts          speechsvc.Synthesizer
	personaStore persona.Store
	defaultVoice string
	log          zerolog.Logger
}

// New 创建语音处理器
func New(stt speechsvc.Transcriber, tts speechsvc.Synthesizer, personaStore persona.Store, defaultVoice string) *Handler {
	return &Handler{
		stt:          stt,
		tts:          tts,
		personaStore: personaStore,
		defaultVoice: defaultVoice,
		log:          logx.Component("speech"),
	}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(speechRouter chi.Router) {
		speechRouter.Post("/transcribe", h.handleTranscribe)
		speechRouter.Post("/synthesize", h.handleSynthesize)
		speechRouter.Get("/health", h.handleHealth)
	})
}

// handleTranscribe 处理语音转文本请求
func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read audio")
		return
	}

	text, err := h.stt.Transcribe(r.Context(), data)
	if err != nil {
		if errors.Is(err, speechsvc.ErrEmptyAudio) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("transcription failed")
		utils.RespondError(w, http.StatusBadGateway, "speech recognition failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, speech.TranscribeResponse{
		Text:      text,
		Format:    inferAudioFormat(header.Filename),
		Bytes:     len(data),
		CreatedAt: time.Now().UTC(),
	})
}

// handleSynthesize 处理文本转语音请求
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req speech.SynthesizeRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	voice, err := h.resolveVoice(req)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	audio, err := h.tts.Synthesize(r.Context(), req.Text, voice)
	if err != nil {
		h.log.Error().Err(err).Str("voice", voice).Msg("synthesis failed")
		utils.RespondError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.Header().Set("Content-Disposition", "attachment; filename=speech.wav")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio); err != nil {
		h.log.Warn().Err(err).Msg("failed to write audio response")
	}
}

// resolveVoice 显式声音优先，其次是角色声音，最后是默认声音。
func (h *Handler) resolveVoice(req speech.SynthesizeRequest) (string, error) {
	voice := strings.TrimSpace(req.Voice)
	agentID := strings.TrimSpace(req.AgentID)
	if voice == "" && agentID != "" && agentID != "default" {
		p, ok := h.personaStore.FindByID(agentID)
		if !ok {
			return "", fmt.Errorf("agent %q not found", agentID)
		}
		voice = p.VoiceID
	}
	return speechsvc.NormalizeVoice(voice, h.defaultVoice), nil
}

// handleHealth 健康检查端点
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, speech.Status{
		Status:      "healthy",
		Service:     "speech",
		Transcriber: backendName(h.stt),
		Synthesizer: backendName(h.tts),
	})
}

func backendName(v any) string {
	switch v.(type) {
	case speechsvc.PlaceholderTranscriber, speechsvc.PlaceholderSynthesizer:
		return "placeholder"
	case *speechsvc.Service:
		return "openai"
	default:
		return "custom"
	}
}

// inferAudioFormat 从文件名推断音频格式
func inferAudioFormat(filename string) string {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".mp3", ".wav", ".webm", ".m4a", ".ogg", ".flac":
		return strings.TrimPrefix(ext, ".")
	default:
		return "wav"
	}
}
