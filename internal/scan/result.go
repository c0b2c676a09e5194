package scan

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Severity is the three-level ordinal attached to an analysis result.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ParseSeverity accepts low, medium or high in any case.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return sev, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// Valid reports whether s is one of the three known levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Product is a treatment product recommended alongside a result.
type Product struct {
	Name        string `json:"name" yaml:"name"`
	Category    string `json:"category" yaml:"category"`
	Price       string `json:"price" yaml:"price"`
	Image       string `json:"image,omitempty" yaml:"image,omitempty"`
	PurchaseURL string `json:"purchase_url,omitempty" yaml:"purchase_url,omitempty"`
}

// Result is the outcome of a successful analysis.
type Result struct {
	Disease     string    `json:"disease" yaml:"disease"`
	Confidence  float64   `json:"confidence" yaml:"confidence"`
	Severity    Severity  `json:"severity" yaml:"severity"`
	Description string    `json:"description" yaml:"description"`
	Suggestions []string  `json:"suggestions" yaml:"suggestions"`
	Products    []Product `json:"products" yaml:"products"`
}

// ErrInvalidResult wraps every schema violation found by Validate.
var ErrInvalidResult = errors.New("invalid analysis result")

// Validate checks the documented result schema. Out-of-range confidence is
// rejected rather than clamped.
func (r *Result) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: empty result", ErrInvalidResult)
	}
	if strings.TrimSpace(r.Disease) == "" {
		return fmt.Errorf("%w: disease is required", ErrInvalidResult)
	}
	if r.Confidence < 0 || r.Confidence > 100 || math.IsNaN(r.Confidence) {
		return fmt.Errorf("%w: confidence %v outside [0, 100]", ErrInvalidResult, r.Confidence)
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidResult, r.Severity)
	}
	for i, p := range r.Products {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: product %d has no name", ErrInvalidResult, i)
		}
	}
	return nil
}

func (r *Result) clone() *Result {
	if r == nil {
		return nil
	}
	c := *r
	c.Suggestions = slices.Clone(r.Suggestions)
	c.Products = slices.Clone(r.Products)
	return &c
}
