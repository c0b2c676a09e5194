package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/cropcare-connect/cropcare/internal/weather"
)

// HandleWeather reports current conditions at lat/lon, or New Delhi when the
// coordinates are omitted.
func (h *Handler) HandleWeather(w http.ResponseWriter, r *http.Request) {
	if h.deps.Weather == nil {
		h.writeError(w, "Weather service not configured", http.StatusServiceUnavailable)
		return
	}

	loc, err := locationFromQuery(r)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.deps.Weather.Current(r.Context(), loc)
	if err != nil {
		h.writeError(w, "Weather fetch failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	h.writeJSON(w, report)
}

func locationFromQuery(r *http.Request) (weather.Location, error) {
	q := r.URL.Query()
	latStr, lonStr := q.Get("lat"), q.Get("lon")
	if latStr == "" && lonStr == "" {
		return weather.NewDelhi, nil
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return weather.Location{}, fmt.Errorf("invalid lat: %q", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return weather.Location{}, fmt.Errorf("invalid lon: %q", lonStr)
	}
	return weather.Location{Name: "Your Farm", Latitude: lat, Longitude: lon}, nil
}
