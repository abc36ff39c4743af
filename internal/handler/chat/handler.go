package chat

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/aura-companion/gateway/internal/model/chat"
	"github.com/aura-companion/gateway/internal/model/event"
	"github.com/aura-companion/gateway/internal/model/persona"
	"github.com/aura-companion/gateway/internal/service/ai"
	chatService "github.com/aura-companion/gateway/internal/service/chat"
	"github.com/aura-companion/gateway/internal/service/pipeline"
	"github.com/aura-companion/gateway/pkg/utils"
)

const maxUploadSize = 32 << 20

// Runner runs one pipeline invocation.
type Runner interface {
	Run(ctx context.Context, unit event.Unit, p *persona.Persona) <-chan event.Event
}

// Handler 聊天服务的HTTP处理器，以请求/响应方式包装对话流水线。
type Handler struct {
	pipeline     Runner
	transcripts  chatService.Store
	personaStore persona.Store
	memory       *ai.Memory
}

// New 创建聊天处理器。memory 为空时清空记录不影响对话记忆。
func New(runner Runner, transcripts chatService.Store, personaStore persona.Store, memory *ai.Memory) *Handler {
	return &Handler{
		pipeline:     runner,
		transcripts:  transcripts,
		personaStore: personaStore,
		memory:       memory,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/talk", h.handleTalk)
	r.Get("/history/{agentID}", h.handleHistory)
	r.Delete("/history/{agentID}", h.handleDeleteHistory)
}

type chatRequest struct {
	Text    string `json:"text"`
	AgentID string `json:"agent_id"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type talkResponse struct {
	UserText    string `json:"user_text"`
	AIResponse  string `json:"ai_response"`
	AudioBase64 string `json:"audio_base64"`
}

// handleChat 文本对话
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	p, ok := h.resolvePersona(payload.AgentID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "persona not found")
		return
	}

	res := pipeline.Collect(h.pipeline.Run(r.Context(), event.TextUnit{Content: payload.Text}, p))
	if res.Error != "" && res.Response == "" {
		utils.RespondError(w, http.StatusInternalServerError, res.Error)
		return
	}
	utils.RespondJSON(w, http.StatusOK, chatResponse{Response: res.Response})
}

// handleTalk 一次性语音对话：上传音频，返回识别文本、回复与合成音频。
func (h *Handler) handleTalk(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read audio")
		return
	}
	if len(audio) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "audio file is empty")
		return
	}

	p, ok := h.resolvePersona(r.FormValue("agent_id"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "persona not found")
		return
	}

	res := pipeline.Collect(h.pipeline.Run(r.Context(), event.AudioUnit{Data: audio}, p))
	if res.Error != "" {
		log.Warn().Str("component", "chat").Str("error", res.Error).Msg("talk invocation ended with error")
	}

	utils.RespondJSON(w, http.StatusOK, talkResponse{
		UserText:    res.Transcript,
		AIResponse:  res.Response,
		AudioBase64: base64.StdEncoding.EncodeToString(res.Audio),
	})
}

// handleHistory 读取会话记录
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	messages, err := h.transcripts.History(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

// handleDeleteHistory 管理操作：清空某个会话记录及其对话记忆
func (h *Handler) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	if err := h.transcripts.Delete(r.Context(), agentID); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to delete history")
		return
	}
	if h.memory != nil {
		h.memory.Forget(ai.Key(agentID))
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolvePersona returns nil for an empty id, meaning the default companion.
func (h *Handler) resolvePersona(agentID string) (*persona.Persona, bool) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" || agentID == chat.DefaultConversation {
		return nil, true
	}
	p, ok := h.personaStore.FindByID(agentID)
	if !ok {
		return nil, false
	}
	return &p, true
}
