// Package weather fetches current conditions for a farm location.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
)

// DefaultForecastURL is the Open-Meteo forecast endpoint.
const DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"

// Location is a named coordinate pair.
type Location struct {
	Name      string  `json:"name" yaml:"name"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

var (
	// NewDelhi is used when the caller's position is unknown.
	NewDelhi = Location{Name: "New Delhi", Latitude: 28.6139, Longitude: 77.2090}
	// India is used when positioning is not available at all.
	India = Location{Name: "India", Latitude: 20.5937, Longitude: 78.9629}
)

// Condition is the short label for a WMO weather code.
type Condition string

const (
	Sunny        Condition = "Sunny"
	PartlyCloudy Condition = "Partly Cloudy"
	Overcast     Condition = "Overcast"
	Foggy        Condition = "Foggy"
	Rainy        Condition = "Rainy"
	Snowy        Condition = "Snowy"
	Thunderstorm Condition = "Thunderstorm"
	Clear        Condition = "Clear"
)

// Classify maps a WMO weather code to a condition label.
func Classify(code int) Condition {
	switch {
	case code == 0:
		return Sunny
	case code == 1 || code == 2:
		return PartlyCloudy
	case code == 3:
		return Overcast
	case code >= 45 && code <= 48:
		return Foggy
	case code >= 51 && code <= 67:
		return Rainy
	case code >= 71 && code <= 86:
		return Snowy
	case code >= 95:
		return Thunderstorm
	default:
		return Clear
	}
}

// Report is the current weather at a location.
type Report struct {
	Location    Location  `json:"location" yaml:"location"`
	Temperature int       `json:"temperature" yaml:"temperature"`
	Humidity    float64   `json:"humidity" yaml:"humidity"`
	WeatherCode int       `json:"weather_code" yaml:"weather_code"`
	Condition   Condition `json:"condition" yaml:"condition"`
}

type forecastResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		Humidity    float64 `json:"relative_humidity_2m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

// Client queries the forecast API.
type Client struct {
	forecastURL string
	httpClient  *http.Client
}

// NewClient returns a client for forecastURL, or DefaultForecastURL if empty.
func NewClient(forecastURL string, hc *http.Client) *Client {
	if forecastURL == "" {
		forecastURL = DefaultForecastURL
	}
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{forecastURL: forecastURL, httpClient: hc}
}

// Current returns the current conditions at loc.
func (c *Client) Current(ctx context.Context, loc Location) (*Report, error) {
	u, err := url.Parse(c.forecastURL)
	if err != nil {
		return nil, fmt.Errorf("invalid forecast URL: %w", err)
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	q.Set("current", "temperature_2m,relative_humidity_2m,weather_code")
	q.Set("timezone", "auto")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather fetch failed: status %d", resp.StatusCode)
	}

	var data forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode weather response: %w", err)
	}

	return &Report{
		Location:    loc,
		Temperature: round(data.Current.Temperature),
		Humidity:    data.Current.Humidity,
		WeatherCode: data.Current.WeatherCode,
		Condition:   Classify(data.Current.WeatherCode),
	}, nil
}

// round rounds half up, so -2.5 becomes -2.
func round(v float64) int {
	return int(math.Floor(v + 0.5))
}
