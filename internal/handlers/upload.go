package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/cropcare-connect/cropcare/internal/models"
	"github.com/cropcare-connect/cropcare/internal/scan"
)

// HandleUpload selects a new image for the scan, either as a multipart file
// or as a JSON {"image_url": ...} body.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	var (
		img scan.Image
		err error
	)
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		img, err = h.handleURLUpload(r)
	} else {
		img, err = h.handleFileUpload(w, r)
	}
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !img.IsImage() {
		h.writeError(w, "File must be an image", http.StatusBadRequest)
		return
	}
	if !session.Session.ProvideImage(img) {
		h.writeError(w, "Cannot change the image while analysis is in progress", http.StatusConflict)
		return
	}

	slog.Info("Image selected", "session_id", session.ID, "name", img.Name, "media_type", img.MediaType, "bytes", img.Size())
	h.writeJSON(w, models.NewScanView(session))
}

func (h *Handler) handleURLUpload(r *http.Request) (scan.Image, error) {
	var request struct {
		ImageURL string `json:"image_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		return scan.Image{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if request.ImageURL == "" {
		return scan.Image{}, errors.New("image_url is required")
	}
	return h.imageFromURL(r.Context(), request.ImageURL)
}

func (h *Handler) handleFileUpload(w http.ResponseWriter, r *http.Request) (scan.Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		return scan.Image{}, fmt.Errorf("failed to read file: %w", err)
	}
	defer file.Close()

	return readUpload(file, header)
}
