package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/cropcare-connect/cropcare/internal/models"
	"github.com/cropcare-connect/cropcare/internal/scan"
)

type cropTypeRequest struct {
	CropType *string `json:"crop_type"`
}

// HandleCreateScan mounts a new scan view. The body may carry a crop_type.
func (h *Handler) HandleCreateScan(w http.ResponseWriter, r *http.Request) {
	cropType := h.deps.CropType

	var request cropTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if request.CropType != nil {
		cropType = *request.CropType
	}

	id := uuid.NewString()
	opts := []scan.Option{
		scan.WithLogger(slog.With("session_id", id)),
		scan.WithTimeout(h.deps.Timeout),
		scan.WithCropType(cropType),
	}
	if h.deps.Previewer != nil {
		opts = append(opts, scan.WithPreviewer(h.deps.Previewer))
	}

	session := &models.ScanSession{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Session:   scan.NewSession(h.deps.Analyzer, opts...),
	}
	h.sessionStore.Set(id, session)
	slog.Info("Scan session created", "session_id", id, "crop_type", cropType)

	h.writeJSONStatus(w, http.StatusCreated, models.NewScanView(session))
}

func (h *Handler) HandleListScans(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessionStore.List()
	views := make([]models.ScanView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, models.NewScanView(s))
	}
	h.writeJSON(w, views)
}

func (h *Handler) HandleGetScan(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	h.writeJSON(w, models.NewScanView(session))
}

// HandleDeleteScan unmounts the view. A request still in flight is left to
// finish and its response is discarded.
func (h *Handler) HandleDeleteScan(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessionStore.Delete(mux.Vars(r)["id"])
	if !ok {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return
	}
	session.Session.Close()
	slog.Info("Scan session closed", "session_id", session.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleCropType(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	var request cropTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if request.CropType == nil {
		h.writeError(w, "crop_type is required", http.StatusBadRequest)
		return
	}

	session.Session.SetCropType(*request.CropType)
	h.writeJSON(w, models.NewScanView(session))
}

// HandleAnalyze starts analysis of the selected image. With wait=true the
// response is held until the request settles.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	if h.deps.Analyzer == nil {
		h.writeError(w, "Analysis service not configured", http.StatusServiceUnavailable)
		return
	}

	if !session.Session.Analyze(r.Context()) {
		h.writeError(w, "Analysis can only start from an image_selected scan, current status is "+session.Session.Status().String(), http.StatusConflict)
		return
	}

	if r.URL.Query().Get("wait") != "true" {
		h.writeJSONStatus(w, http.StatusAccepted, models.NewScanView(session))
		return
	}

	if _, err := session.Session.Wait(r.Context()); err != nil {
		slog.Debug("Client stopped waiting for analysis", "session_id", session.ID, "err", err)
		return
	}
	h.writeJSON(w, models.NewScanView(session))
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	if err := session.Session.Reset(); err != nil {
		if errors.Is(err, scan.ErrAnalyzing) {
			h.writeError(w, "Cannot reset while analysis is in progress", http.StatusConflict)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, models.NewScanView(session))
}
