// Package config loads cropcare settings from defaults, an optional JSONC
// file and the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tailscale/hujson"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "cropcare.jsonc"

// Duration is a time.Duration written as "30s" in config files.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n float64
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("duration must be a string like \"30s\": %w", err)
		}
		*d = Duration(time.Duration(n * float64(time.Second)))
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

type PreviewConfig struct {
	MaxDim  int    `json:"maxDim"`
	Format  string `json:"format"`
	Quality int    `json:"quality"`
}

type BatchConfig struct {
	Concurrency int `json:"concurrency"`
}

type WatchConfig struct {
	Debounce Duration `json:"debounce"`
}

// Config holds every runtime setting.
type Config struct {
	APIBaseURL  string `json:"apiBaseUrl"`
	AnalyzePath string `json:"analyzePath"`
	ChatPath    string `json:"chatPath"`
	WeatherURL  string `json:"weatherUrl"`
	Language    string `json:"language"`
	CropType    string `json:"cropType,omitempty"`
	// Timeout bounds each analysis request. Zero disables it.
	Timeout Duration `json:"timeout"`
	Port    int      `json:"port"`

	Preview PreviewConfig `json:"preview"`
	Batch   BatchConfig   `json:"batch"`
	Watch   WatchConfig   `json:"watch"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		APIBaseURL:  "http://localhost:8000",
		AnalyzePath: "/api/analyze",
		ChatPath:    "/api/chat",
		WeatherURL:  "https://api.open-meteo.com/v1/forecast",
		Language:    "en",
		Port:        8888,
		Preview: PreviewConfig{
			MaxDim:  512,
			Format:  "jpeg",
			Quality: 85,
		},
		Batch: BatchConfig{Concurrency: 4},
		Watch: WatchConfig{Debounce: Duration(500 * time.Millisecond)},
	}
}

// LoadFromFile overlays the JSONC file at path onto the defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	stdData, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to standardize jsonc: %w", err)
	}

	if err := json.Unmarshal(stdData, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Load resolves the config path, reads it if present, applies the
// environment and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if p := GetConfigPath(path); p != "" {
		var err error
		if cfg, err = LoadFromFile(p); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetConfigPath returns explicit, or DefaultFile if it exists, or "".
func GetConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return DefaultFile
	}
	return ""
}

// ApplyEnv overrides fields from CROPCARE_* variables and PORT.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"CROPCARE_API_BASE_URL": &c.APIBaseURL,
		"CROPCARE_ANALYZE_PATH": &c.AnalyzePath,
		"CROPCARE_CHAT_PATH":    &c.ChatPath,
		"CROPCARE_WEATHER_URL":  &c.WeatherURL,
		"CROPCARE_LANGUAGE":     &c.Language,
		"CROPCARE_CROP_TYPE":    &c.CropType,
	}
	for key, field := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*field = v
		}
	}

	if v, ok := lookup("CROPCARE_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CROPCARE_TIMEOUT: %w", err)
		}
		c.Timeout = Duration(d)
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		c.Port = port
	}
	return nil
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.APIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("apiBaseUrl must be an http(s) URL, got %q", c.APIBaseURL))
	}
	if u, err := url.Parse(c.WeatherURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("weatherUrl must be an http(s) URL, got %q", c.WeatherURL))
	}
	for name, p := range map[string]string{"analyzePath": c.AnalyzePath, "chatPath": c.ChatPath} {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("%s must start with /, got %q", name, p))
		}
	}
	switch c.Language {
	case "en", "hi":
	default:
		errs = append(errs, fmt.Errorf("language must be en or hi, got %q", c.Language))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port out of range: %d", c.Port))
	}
	switch strings.ToLower(c.Preview.Format) {
	case "jpeg", "jpg", "png", "webp":
	default:
		errs = append(errs, fmt.Errorf("preview.format must be jpeg, png or webp, got %q", c.Preview.Format))
	}
	if c.Preview.MaxDim < 0 {
		errs = append(errs, errors.New("preview.maxDim must not be negative"))
	}
	if c.Preview.Quality < 1 || c.Preview.Quality > 100 {
		errs = append(errs, fmt.Errorf("preview.quality must be 1-100, got %d", c.Preview.Quality))
	}
	if c.Batch.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("batch.concurrency must be at least 1, got %d", c.Batch.Concurrency))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, errors.New("watch.debounce must not be negative"))
	}

	return errors.Join(errs...)
}
