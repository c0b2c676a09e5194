package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cropcare-connect/cropcare/internal/chat"
)

// HandleChat relays a message to the assistant. Upstream failures are
// answered with the localized fallback text so the widget always gets a reply.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Message  string `json:"message"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	message := strings.TrimSpace(request.Message)
	if message == "" {
		h.writeError(w, "message is required", http.StatusBadRequest)
		return
	}

	lang := h.deps.Language
	if request.Language != "" {
		parsed, err := chat.ParseLanguage(request.Language)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		lang = parsed
	}

	if h.deps.Chat == nil {
		h.writeJSON(w, chat.Response{Response: lang.Fallback()})
		return
	}

	reply, err := h.deps.Chat.Send(r.Context(), message, lang)
	if err != nil {
		slog.Warn("Chat relay failed", "language", lang, "err", err)
		reply = lang.Fallback()
	}
	h.writeJSON(w, chat.Response{Response: reply})
}
