package analysis

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cropcare-connect/cropcare/internal/scan"
)

const leafBlightJSON = `{
  "disease": "Leaf Blight",
  "confidence": 94,
  "severity": "medium",
  "description": "...",
  "suggestions": ["..."],
  "products": []
}`

func testImage() scan.Image {
	return scan.Image{Name: "leaf.jpg", MediaType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff, 0xe0, 1, 2, 3}}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		path     string
		expected string
		wantErr  bool
	}{
		{name: "default path", baseURL: "http://localhost:8000", expected: "http://localhost:8000/api/analyze"},
		{name: "trailing slash", baseURL: "http://localhost:8000/", expected: "http://localhost:8000/api/analyze"},
		{name: "custom path", baseURL: "https://api.example.com/v2", path: "/scan", expected: "https://api.example.com/v2/scan"},
		{name: "bad scheme", baseURL: "ftp://example.com", wantErr: true},
		{name: "no scheme", baseURL: "localhost:8000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.baseURL, tt.path)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tt.baseURL)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient failed: %v", err)
			}
			if c.Endpoint() != tt.expected {
				t.Errorf("Expected endpoint %s, got %s", tt.expected, c.Endpoint())
			}
		})
	}
}

func TestAnalyzeSendsMultipartImage(t *testing.T) {
	var gotCrop, gotName, gotType string
	var gotData []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/analyze" {
			t.Errorf("Expected /api/analyze, got %s", r.URL.Path)
		}
		gotCrop = r.URL.Query().Get("crop_type")

		file, header, err := r.FormFile(FileField)
		if err != nil {
			t.Errorf("Expected multipart field %q: %v", FileField, err)
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotName = header.Filename
		gotType = header.Header.Get("Content-Type")
		gotData, _ = io.ReadAll(file)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(leafBlightJSON))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "")
	if err != nil {
		t.Fatal(err)
	}

	result, err := c.Analyze(context.Background(), testImage(), "Tomato")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if gotCrop != "Tomato" {
		t.Errorf("Expected crop_type Tomato, got %q", gotCrop)
	}
	if gotName != "leaf.jpg" {
		t.Errorf("Expected filename leaf.jpg, got %q", gotName)
	}
	if gotType != "image/jpeg" {
		t.Errorf("Expected part content type image/jpeg, got %q", gotType)
	}
	if string(gotData) != string(testImage().Data) {
		t.Errorf("Image bytes were not forwarded intact")
	}
	if result.Disease != "Leaf Blight" || result.Confidence != 94 || result.Severity != scan.SeverityMedium {
		t.Errorf("Unexpected result: %+v", result)
	}
}

func TestAnalyzeOmitsEmptyCropType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			t.Errorf("Expected no query, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(leafBlightJSON))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "")
	if _, err := c.Analyze(context.Background(), testImage(), "  "); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
}

func TestAnalyzeErrorResponses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{name: "string detail", status: 500, body: `{"detail": "model unavailable"}`, expected: "model unavailable"},
		{name: "not trained", status: 503, body: `{"detail":"Model not trained yet. Run: python backend/train.py"}`, expected: "Model not trained yet. Run: python backend/train.py"},
		{name: "validation detail list", status: 422, body: `{"detail":[{"loc":["body","file"],"msg":"field required"}]}`, expected: "field required"},
		{name: "no detail", status: 502, body: `upstream down`, expected: "analysis failed: 502 Bad Gateway"},
		{name: "empty detail", status: 400, body: `{"detail": ""}`, expected: "analysis failed: 400 Bad Request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, _ := NewClient(srv.URL, "")
			_, err := c.Analyze(context.Background(), testImage(), "")

			var serr *StatusError
			if !errors.As(err, &serr) {
				t.Fatalf("Expected *StatusError, got %v", err)
			}
			if serr.Code != tt.status {
				t.Errorf("Expected code %d, got %d", tt.status, serr.Code)
			}
			if err.Error() != tt.expected {
				t.Errorf("Expected message %q, got %q", tt.expected, err.Error())
			}
		})
	}
}

func TestAnalyzeMalformedSuccess(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `<html>oops</html>`},
		{name: "missing disease", body: `{"confidence": 50, "severity": "low"}`},
		{name: "missing confidence", body: `{"disease": "Rust", "severity": "low"}`},
		{name: "confidence out of range", body: `{"disease": "Rust", "confidence": 140, "severity": "low"}`},
		{name: "unknown severity", body: `{"disease": "Rust", "confidence": 40, "severity": "extreme"}`},
		{name: "confidence as string", body: `{"disease": "Rust", "confidence": "40", "severity": "low"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, _ := NewClient(srv.URL, "")
			_, err := c.Analyze(context.Background(), testImage(), "")
			if !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("Expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}

func TestDecodeResultMapsProducts(t *testing.T) {
	body := `{
		"disease": "Apple Scab (Apple)",
		"confidence": 87,
		"severity": "high",
		"description": "Leaf scab is a fungal disease.",
		"suggestions": ["Remove infected leaves", "Apply fungicide"],
		"products": [
			{"name": "Bayer Nativo 75 WG", "type": "Fungicide", "price": "₹850",
			 "image": "https://images.example.com/nativo.jpg",
			 "purchase_url": "https://www.amazon.in/s?k=bayer+nativo"},
			{"name": "Organic Neem Oil", "type": "Preventive", "price": "₹350"}
		]
	}`

	result, err := DecodeResult([]byte(body))
	if err != nil {
		t.Fatalf("DecodeResult failed: %v", err)
	}
	if len(result.Suggestions) != 2 || result.Suggestions[1] != "Apply fungicide" {
		t.Errorf("Suggestions order not preserved: %v", result.Suggestions)
	}
	if len(result.Products) != 2 {
		t.Fatalf("Expected 2 products, got %d", len(result.Products))
	}
	first := result.Products[0]
	if first.Category != "Fungicide" || first.PurchaseURL == "" || first.Image == "" {
		t.Errorf("Unexpected first product: %+v", first)
	}
	second := result.Products[1]
	if second.Image != "" || second.PurchaseURL != "" {
		t.Errorf("Optional fields should be empty: %+v", second)
	}
}

func TestSessionWithHTTPAnalyzer(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		expStatus scan.Status
		expError  string
	}{
		{name: "success", status: 200, body: leafBlightJSON, expStatus: scan.StatusResultReady},
		{name: "server error with detail", status: 500, body: `{"detail": "model unavailable"}`, expStatus: scan.StatusFailed, expError: "model unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, _ := NewClient(srv.URL, "")
			s := scan.NewSession(c)
			if !s.ProvideImage(testImage()) {
				t.Fatal("Expected image to be accepted")
			}
			if !s.Analyze(context.Background()) {
				t.Fatal("Expected analyze to start")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			snap, err := s.Wait(ctx)
			if err != nil {
				t.Fatal(err)
			}

			if snap.Status != tt.expStatus {
				t.Errorf("Expected status %s, got %s", tt.expStatus, snap.Status)
			}
			if snap.Error != tt.expError {
				t.Errorf("Expected error %q, got %q", tt.expError, snap.Error)
			}
			if tt.expStatus == scan.StatusResultReady && snap.Result.Disease != "Leaf Blight" {
				t.Errorf("Unexpected result: %+v", snap.Result)
			}
		})
	}
}
