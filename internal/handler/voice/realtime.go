package voice

import (
	"errors"
	"net/http"

	"github.com/aura-companion/gateway/internal/relay"
	"github.com/aura-companion/gateway/internal/session"
	"github.com/aura-companion/gateway/pkg/utils"
)

// handleRealtime 将客户端连接透明转发到上游实时语音接口。
func (h *Handler) handleRealtime(w http.ResponseWriter, r *http.Request) {
	if h.relay == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "realtime relay not configured")
		return
	}
	if h.registry.Full() {
		utils.RespondError(w, http.StatusServiceUnavailable, session.ErrResourceExhausted.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("endpoint", "realtime").Msg("upgrade failed")
		return
	}

	id, err := h.registry.Admit(conn)
	if err != nil {
		rejectFull(conn)
		return
	}
	defer h.registry.Evict(id)

	s, ok := h.registry.Lookup(id)
	if !ok {
		return
	}

	if err := h.relay.Serve(s.Context(), conn); err != nil {
		if errors.Is(err, relay.ErrUpstreamUnavailable) {
			h.log.Warn().Err(err).Str("endpoint", "realtime").Str("session", id).Msg("upstream unavailable")
			return
		}
		h.log.Debug().Err(err).Str("endpoint", "realtime").Str("session", id).Msg("relay ended")
	}
}
