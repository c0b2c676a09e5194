// Package chat talks to the Leaf Bot assistant endpoint and keeps the
// per-widget conversation state.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultPath is the chat endpoint relative to the API base URL.
const DefaultPath = "/api/chat"

// Language selects the reply language requested from the assistant.
type Language string

const (
	English Language = "en"
	Hindi   Language = "hi"
)

// ParseLanguage accepts en or hi in any case.
func ParseLanguage(s string) (Language, error) {
	switch l := Language(strings.ToLower(strings.TrimSpace(s))); l {
	case English, Hindi:
		return l, nil
	default:
		return "", fmt.Errorf("unsupported language %q", s)
	}
}

// Fallback is the bot message shown when the assistant cannot be reached.
func (l Language) Fallback() string {
	if l == Hindi {
		return "क्षमा करें, मुझे सर्वर से कनेक्ट करने में समस्या हो रही है। कृपया बाद में पुनः प्रयास करें।"
	}
	return "Sorry, I'm having trouble connecting to the server. Please try again later."
}

// Request is the body sent to the chat endpoint.
type Request struct {
	Message  string   `json:"message"`
	Language Language `json:"language"`
}

// Response is the body returned by the chat endpoint.
type Response struct {
	Response string `json:"response"`
}

// Sender sends one message and returns the assistant's reply.
type Sender interface {
	Send(ctx context.Context, message string, lang Language) (string, error)
}

// Client is the HTTP Sender.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient returns a client for baseURL joined with path. An empty path
// means DefaultPath.
func NewClient(baseURL, path string, hc *http.Client) (*Client, error) {
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
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{endpoint: base.JoinPath(path).String(), httpClient: hc}, nil
}

// Send posts message and returns the reply text.
func (c *Client) Send(ctx context.Context, message string, lang Language) (string, error) {
	requestBody, err := json.Marshal(Request{Message: message, Language: lang})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response Response
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	return response.Response, nil
}
