package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cropcare-connect/cropcare/internal/scan"
)

// MaxImageBytes caps how much of a file or response body is read.
const MaxImageBytes = 10 << 20

// Fetcher loads leaf photos from local paths or remote URLs
type Fetcher struct {
	HTTPClient *http.Client
}

// NewFetcher creates a new image fetcher
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IsURL reports whether src should be downloaded rather than read from disk.
func IsURL(src string) bool {
	u, err := url.Parse(src)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Load reads src, which may be a file path or an http(s) URL.
func (f *Fetcher) Load(ctx context.Context, src string) (scan.Image, error) {
	if IsURL(src) {
		return f.Download(ctx, src)
	}
	return ReadFile(src)
}

// ReadFile loads an image from disk. The media type comes from the extension,
// falling back to content sniffing.
func ReadFile(p string) (scan.Image, error) {
	file, err := os.Open(p)
	if err != nil {
		return scan.Image{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	data, err := readLimited(file)
	if err != nil {
		return scan.Image{}, fmt.Errorf("failed to read image %s: %w", p, err)
	}

	return scan.Image{
		Name:      filepath.Base(p),
		MediaType: DetectMediaType(p, "", data),
		Data:      data,
	}, nil
}

// Download fetches an image over HTTP.
func (f *Fetcher) Download(ctx context.Context, rawURL string) (scan.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return scan.Image{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return scan.Image{}, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return scan.Image{}, fmt.Errorf("image download returned status %d", resp.StatusCode)
	}

	data, err := readLimited(resp.Body)
	if err != nil {
		return scan.Image{}, fmt.Errorf("failed to read image data: %w", err)
	}

	name := "image"
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "/" && base != "." {
			name = base
		}
	}

	img := scan.Image{
		Name:      name,
		MediaType: DetectMediaType(name, resp.Header.Get("Content-Type"), data),
		Data:      data,
	}
	slog.Debug("Downloaded image", "url", rawURL, "media_type", img.MediaType, "bytes", len(data))
	return img, nil
}

// DetectMediaType picks a media type from a declared header, the file
// extension, then the leading bytes, in that order.
func DetectMediaType(name, declared string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt
	}
	if mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); mt != "" {
		if parsed, _, err := mime.ParseMediaType(mt); err == nil {
			return parsed
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", MaxImageBytes)
	}
	return data, nil
}
