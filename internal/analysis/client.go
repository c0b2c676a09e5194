// Package analysis is the HTTP client for the external leaf analysis service.
package analysis

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/cropcare-connect/cropcare/internal/scan"
)

const (
	// DefaultPath is the analysis endpoint relative to the API base URL.
	DefaultPath = "/api/analyze"
	// FileField is the multipart field carrying the image bytes.
	FileField = "file"

	maxResponseBytes = 1 << 20
)

// Client submits images to the analysis endpoint.
type Client struct {
	endpoint   *url.URL
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a client for baseURL joined with path. An empty path
// means DefaultPath.
func NewClient(baseURL, path string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported API base URL scheme: %q", base.Scheme)
	}
	if path == "" {
		path = DefaultPath
	}

	c := &Client{
		endpoint:   base.JoinPath(path),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the URL requests are sent to, without the crop type query.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// Analyze posts the image and returns the validated result. Non-success
// responses are returned as *StatusError.
func (c *Client) Analyze(ctx context.Context, img scan.Image, cropType string) (*scan.Result, error) {
	body, contentType, err := encodeImage(img)
	if err != nil {
		return nil, err
	}

	target := *c.endpoint
	if cropType = strings.TrimSpace(cropType); cropType != "" {
		q := target.Query()
		q.Set("crop_type", cropType)
		target.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send analysis request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{Code: resp.StatusCode, Detail: parseDetail(data)}
		slog.Debug("Analysis endpoint returned error", "status", resp.StatusCode, "detail", serr.Detail)
		return nil, serr
	}

	return DecodeResult(data)
}

func encodeImage(img scan.Image) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FileField, fileName(img)))
	header.Set("Content-Type", img.MediaType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create multipart field: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write image data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func fileName(img scan.Image) string {
	if img.Name != "" {
		return img.Name
	}
	if exts, err := mime.ExtensionsByType(img.MediaType); err == nil && len(exts) > 0 {
		return "image" + exts[0]
	}
	return "image"
}
