// Package report writes batch scan results as YAML or Parquet.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cropcare-connect/cropcare/internal/scan"
)

// Entry is the outcome of scanning one file
type Entry struct {
	File       string  `yaml:"file" parquet:"file"`
	Status     string  `yaml:"status" parquet:"status"`
	CropType   string  `yaml:"crop_type,omitempty" parquet:"crop_type"`
	Disease    string  `yaml:"disease,omitempty" parquet:"disease"`
	Confidence float64 `yaml:"confidence,omitempty" parquet:"confidence"`
	Severity   string  `yaml:"severity,omitempty" parquet:"severity"`
	Error      string  `yaml:"error,omitempty" parquet:"error"`
	DurationMS int64   `yaml:"duration_ms" parquet:"duration_ms"`
}

// NewEntry builds an entry from the settled state of a session.
func NewEntry(file string, snap scan.Snapshot, elapsed time.Duration) Entry {
	e := Entry{
		File:       file,
		Status:     snap.Status.String(),
		CropType:   snap.CropType,
		Error:      snap.Error,
		DurationMS: elapsed.Milliseconds(),
	}
	if snap.Result != nil {
		e.Disease = snap.Result.Disease
		e.Confidence = snap.Result.Confidence
		e.Severity = string(snap.Result.Severity)
	}
	return e
}

// Failed reports whether the entry ended without a result.
func (e Entry) Failed() bool {
	return e.Status != scan.StatusResultReady.String()
}

// RunConfig records how a batch was run
type RunConfig struct {
	APIBaseURL  string `yaml:"api_base_url"`
	Directory   string `yaml:"directory"`
	CropType    string `yaml:"crop_type,omitempty"`
	Concurrency int    `yaml:"concurrency"`
	Timestamp   string `yaml:"timestamp"`
}

// Summary is the complete YAML report
type Summary struct {
	Config            RunConfig      `yaml:"config"`
	Total             int            `yaml:"total"`
	Succeeded         int            `yaml:"succeeded"`
	Failed            int            `yaml:"failed"`
	AverageConfidence float64        `yaml:"average_confidence"`
	Diseases          map[string]int `yaml:"diseases"`
	Severities        map[string]int `yaml:"severities"`
	Entries           []Entry        `yaml:"entries"`
}

// Summarize aggregates entries, sorted by file name.
func Summarize(cfg RunConfig, entries []Entry) *Summary {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].File < sorted[j].File })

	s := &Summary{
		Config:     cfg,
		Total:      len(sorted),
		Diseases:   map[string]int{},
		Severities: map[string]int{},
		Entries:    sorted,
	}
	if s.Config.Timestamp == "" {
		s.Config.Timestamp = time.Now().Format("2006-01-02_15-04-05")
	}

	totalConfidence := 0.0
	for _, e := range sorted {
		if e.Failed() {
			s.Failed++
			continue
		}
		s.Succeeded++
		totalConfidence += e.Confidence
		s.Diseases[e.Disease]++
		s.Severities[e.Severity]++
	}
	if s.Succeeded > 0 {
		s.AverageConfidence = totalConfidence / float64(s.Succeeded)
	}
	return s
}

// SaveYAML writes the summary to path, creating parent directories.
func SaveYAML(path string, s *Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}

// LoadYAML reads a summary written by SaveYAML.
func LoadYAML(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML file: %w", err)
	}
	var s Summary
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &s, nil
}
