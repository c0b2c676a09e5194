package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cropcare-connect/cropcare/internal/scan"
)

// StatusError is a non-success response from the analysis endpoint.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("analysis failed: %d %s", e.Code, http.StatusText(e.Code))
}

// ErrMalformedResponse wraps success bodies that do not match the schema.
var ErrMalformedResponse = errors.New("malformed analysis response")

type wireProduct struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Price       string `json:"price"`
	Image       string `json:"image,omitempty"`
	PurchaseURL string `json:"purchase_url,omitempty"`
}

type wireResult struct {
	Disease     *string       `json:"disease"`
	Confidence  *float64      `json:"confidence"`
	Severity    *string       `json:"severity"`
	Description string        `json:"description"`
	Suggestions []string      `json:"suggestions"`
	Products    []wireProduct `json:"products"`
}

// DecodeResult parses and validates a success body.
func DecodeResult(data []byte) (*scan.Result, error) {
	var w wireResult
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	switch {
	case w.Disease == nil:
		return nil, fmt.Errorf("%w: missing disease", ErrMalformedResponse)
	case w.Confidence == nil:
		return nil, fmt.Errorf("%w: missing confidence", ErrMalformedResponse)
	case w.Severity == nil:
		return nil, fmt.Errorf("%w: missing severity", ErrMalformedResponse)
	}

	result := &scan.Result{
		Disease:     *w.Disease,
		Confidence:  *w.Confidence,
		Severity:    scan.Severity(*w.Severity),
		Description: w.Description,
		Suggestions: w.Suggestions,
		Products:    make([]scan.Product, 0, len(w.Products)),
	}
	if result.Suggestions == nil {
		result.Suggestions = []string{}
	}
	for _, p := range w.Products {
		result.Products = append(result.Products, scan.Product{
			Name:        p.Name,
			Category:    p.Type,
			Price:       p.Price,
			Image:       p.Image,
			PurchaseURL: p.PurchaseURL,
		})
	}

	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return result, nil
}

// parseDetail pulls the error detail out of a failure body. It understands a
// plain string detail and a list of validation errors with a msg field.
func parseDetail(data []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}

	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err == nil {
		return strings.TrimSpace(detail)
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
