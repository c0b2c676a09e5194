package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/cropcare-connect/cropcare/internal/images"
	"github.com/cropcare-connect/cropcare/internal/scan"
)

const maxUploadBytes = 10 * 1024 * 1024

func readUpload(file multipart.File, header *multipart.FileHeader) (scan.Image, error) {
	// Limit file size to 10MB
	fileData, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return scan.Image{}, fmt.Errorf("failed to read file contents: %w", err)
	}
	if len(fileData) > maxUploadBytes {
		return scan.Image{}, fmt.Errorf("file too large (max 10MB)")
	}

	return scan.Image{
		Name:      header.Filename,
		MediaType: images.DetectMediaType(header.Filename, header.Header.Get("Content-Type"), fileData),
		Data:      fileData,
	}, nil
}

func (h *Handler) imageFromURL(ctx context.Context, imageURL string) (scan.Image, error) {
	if !images.IsURL(imageURL) {
		return scan.Image{}, fmt.Errorf("image_url must be an http(s) URL")
	}
	img, err := h.deps.Fetcher.Download(ctx, imageURL)
	if err != nil {
		return scan.Image{}, fmt.Errorf("failed to process image URL: %w", err)
	}
	return img, nil
}

// servableTypes are the formats returned inline by HandleImage.
var servableTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// rasterType sniffs data and reports its media type when it is a raster
// format safe to render inline. The declared type is never trusted here.
func rasterType(data []byte) (string, bool) {
	mt, _, err := mime.ParseMediaType(http.DetectContentType(data))
	if err != nil || !servableTypes[mt] {
		return "", false
	}
	return mt, true
}

// HandleImage serves the raw bytes of the selected image.
func (h *Handler) HandleImage(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	snap := session.Session.Snapshot()
	if snap.Image == nil {
		h.writeError(w, "No image selected", http.StatusNotFound)
		return
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
	if mt, ok := rasterType(snap.Image.Data); ok {
		w.Header().Set("Content-Type", mt)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": snap.Image.Name}))
	}
	w.Header().Set("Content-Length", strconv.Itoa(snap.Image.Size()))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(snap.Image.Data); err != nil {
		slog.Error("Unable to write image", "session_id", session.ID, "err", err)
	}
}
