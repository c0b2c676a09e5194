package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/cropcare-connect/cropcare/internal/chat"
	"github.com/cropcare-connect/cropcare/internal/images"
	"github.com/cropcare-connect/cropcare/internal/models"
	"github.com/cropcare-connect/cropcare/internal/scan"
	"github.com/cropcare-connect/cropcare/internal/storage"
	"github.com/cropcare-connect/cropcare/internal/weather"
)

// WeatherSource returns current conditions for a location.
type WeatherSource interface {
	Current(ctx context.Context, loc weather.Location) (*weather.Report, error)
}

// Deps are the collaborators shared by every hosted scan.
type Deps struct {
	Analyzer  scan.Analyzer
	Previewer scan.Previewer
	Fetcher   *images.Fetcher
	Chat      chat.Sender
	Weather   WeatherSource
	// Timeout bounds each analysis request; zero disables it.
	Timeout  time.Duration
	CropType string
	Language chat.Language
}

type Handler struct {
	sessionStore *storage.SessionStore
	deps         Deps
}

func New(deps Deps) *Handler {
	if deps.Fetcher == nil {
		deps.Fetcher = images.NewFetcher()
	}
	if deps.Language == "" {
		deps.Language = chat.English
	}
	return &Handler{
		sessionStore: storage.New(),
		deps:         deps,
	}
}

// Close tears down every hosted session.
func (h *Handler) Close() {
	for _, s := range h.sessionStore.List() {
		if removed, ok := h.sessionStore.Delete(s.ID); ok {
			removed.Session.Close()
		}
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Debug(message, "status", code)
	}
	http.Error(w, message, code)
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (*models.ScanSession, bool) {
	session, exists := h.sessionStore.Get(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}
