package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// Router wires every route behind the recovery middleware.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(Recover)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/scans", h.HandleCreateScan).Methods(http.MethodPost)
	api.HandleFunc("/scans", h.HandleListScans).Methods(http.MethodGet)
	api.HandleFunc("/scans/{id}", h.HandleGetScan).Methods(http.MethodGet)
	api.HandleFunc("/scans/{id}", h.HandleDeleteScan).Methods(http.MethodDelete)
	api.HandleFunc("/scans/{id}/image", h.HandleUpload).Methods(http.MethodPut)
	api.HandleFunc("/scans/{id}/image", h.HandleImage).Methods(http.MethodGet)
	api.HandleFunc("/scans/{id}/crop-type", h.HandleCropType).Methods(http.MethodPut)
	api.HandleFunc("/scans/{id}/analyze", h.HandleAnalyze).Methods(http.MethodPost)
	api.HandleFunc("/scans/{id}/reset", h.HandleReset).Methods(http.MethodPost)
	api.HandleFunc("/chat", h.HandleChat).Methods(http.MethodPost)
	api.HandleFunc("/weather", h.HandleWeather).Methods(http.MethodGet)

	r.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	}).Methods(http.MethodGet)

	return r
}
