// Package scan implements the crop scan session: image selection, a single
// in-flight analysis request, and the result or error that follows it.
package scan

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrAnalyzing is returned by Reset while a request is in flight.
var ErrAnalyzing = errors.New("scan: analysis in progress")

var errAnalyzerPanic = errors.New("analysis failed: internal error")

// Analyzer submits an image to the analysis collaborator.
type Analyzer interface {
	Analyze(ctx context.Context, img Image, cropType string) (*Result, error)
}

// AnalyzerFunc adapts a function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, img Image, cropType string) (*Result, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, img Image, cropType string) (*Result, error) {
	return f(ctx, img, cropType)
}

// Previewer turns an accepted image into something a view can display.
type Previewer interface {
	Preview(img Image) (string, error)
}

// PreviewFunc adapts a function to the Previewer interface.
type PreviewFunc func(img Image) (string, error)

func (f PreviewFunc) Preview(img Image) (string, error) {
	return f(img)
}

// DataURL encodes the raw payload the way a browser file reader would.
func DataURL(img Image) (string, error) {
	return "data:" + img.MediaType + ";base64," + base64.StdEncoding.EncodeToString(img.Data), nil
}

// Snapshot is an immutable copy of a session's state.
type Snapshot struct {
	Status   Status
	Image    *Image
	Preview  string
	CropType string
	Result   *Result
	Error    string
}

// Option configures a Session.
type Option func(*Session)

// WithPreviewer replaces the default data URL preview.
func WithPreviewer(p Previewer) Option {
	return func(s *Session) {
		if p != nil {
			s.previewer = p
		}
	}
}

// WithLogger sets the logger used for state transitions.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTimeout bounds each analysis request. Zero means no client-side timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.timeout = d
	}
}

// WithCropType sets the initial crop type hint.
func WithCropType(hint string) Option {
	return func(s *Session) {
		s.cropType = hint
	}
}

// Session is the state machine for one scan attempt at a time.
type Session struct {
	analyzer  Analyzer
	previewer Previewer
	logger    *slog.Logger
	timeout   time.Duration

	mu       sync.Mutex
	status   Status
	image    *Image
	preview  string
	cropType string
	result   *Result
	errMsg   string

	// generation changes on Close so a late response is dropped.
	generation uint64
	inflight   chan struct{}
	closed     bool
}

// NewSession returns a session in the idle state.
func NewSession(analyzer Analyzer, opts ...Option) *Session {
	s := &Session{
		analyzer:  analyzer,
		previewer: PreviewFunc(DataURL),
		logger:    slog.Default(),
		status:    StatusIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProvideImage stores a newly selected or dropped image. Payloads whose media
// type is not an image are ignored, as is any selection while a request is in
// flight. A held result or error is cleared together with the old image.
// The return value reports whether the image was accepted.
func (s *Session) ProvideImage(img Image) bool {
	if !img.IsImage() {
		s.logger.Debug("Ignoring non-image selection", "media_type", img.MediaType, "name", img.Name)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !CanTransition(s.status, StatusImageSelected) {
		s.logger.Debug("Ignoring image selection", "status", s.status)
		return false
	}

	stored := img.clone()
	preview, err := s.previewer.Preview(*stored)
	if err != nil {
		s.logger.Warn("Failed to build preview", "name", img.Name, "err", err)
		preview = ""
	}

	from := s.status
	s.image = stored
	s.preview = preview
	s.result = nil
	s.errMsg = ""
	s.status = StatusImageSelected
	s.logger.Debug("Image selected", "from", from, "name", img.Name, "media_type", img.MediaType, "bytes", img.Size())
	return true
}

// SetCropType changes the hint sent with the next analysis request.
func (s *Session) SetCropType(hint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cropType = hint
}

// Analyze issues the analysis request for the held image. It is only honored
// in the image-selected state and returns false otherwise. The request runs
// to completion even if ctx is cancelled; use Wait to observe the outcome.
func (s *Session) Analyze(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !CanTransition(s.status, StatusAnalyzing) {
		s.logger.Debug("Ignoring analyze request", "status", s.status)
		return false
	}

	img := *s.image.clone()
	cropType := s.cropType
	gen := s.generation
	done := make(chan struct{})

	s.status = StatusAnalyzing
	s.inflight = done
	s.logger.Info("Analysis started", "name", img.Name, "crop_type", cropType)

	go s.run(context.WithoutCancel(ctx), img, cropType, gen, done)
	return true
}

func (s *Session) run(ctx context.Context, img Image, cropType string, gen uint64, done chan struct{}) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.analyze(ctx, img, cropType)
	if err == nil {
		err = result.Validate()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(done)
	s.inflight = nil

	if gen != s.generation {
		s.logger.Debug("Discarding analysis response for closed session", "name", img.Name)
		return
	}

	if err != nil {
		s.status = StatusFailed
		s.errMsg = err.Error()
		if s.errMsg == "" {
			s.errMsg = "analysis failed"
		}
		s.logger.Warn("Analysis failed", "name", img.Name, "err", err, "duration", time.Since(start))
		return
	}

	s.status = StatusResultReady
	s.result = result.clone()
	s.logger.Info("Analysis finished", "name", img.Name, "disease", result.Disease,
		"confidence", result.Confidence, "severity", result.Severity, "duration", time.Since(start))
}

// analyze calls the analyzer, turning a panic into an error so a faulty
// collaborator fails the scan instead of the process.
func (s *Session) analyze(ctx context.Context, img Image, cropType string) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Analyzer panicked", "name", img.Name, "panic", r)
			result, err = nil, errAnalyzerPanic
		}
	}()
	return s.analyzer.Analyze(ctx, img, cropType)
}

// Reset clears image, result and error. It is a no-op when idle and returns
// ErrAnalyzing while a request is in flight.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.status == StatusIdle {
		return nil
	}
	if !CanTransition(s.status, StatusIdle) {
		return ErrAnalyzing
	}
	s.clear()
	s.logger.Debug("Session reset")
	return nil
}

// Wait blocks until no analysis request is in flight and returns the state
// at that point.
func (s *Session) Wait(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	done := s.inflight
	s.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		}
	}
	return s.Snapshot(), nil
}

// Close tears the session down. State returns to idle, later calls are
// ignored and an in-flight response is discarded when it arrives.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.generation++
	s.clear()
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Status:   s.status,
		Preview:  s.preview,
		CropType: s.cropType,
		Result:   s.result.clone(),
		Error:    s.errMsg,
	}
	if s.image != nil {
		snap.Image = s.image.clone()
	}
	return snap
}

// Status returns the current state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) clear() {
	s.status = StatusIdle
	s.image = nil
	s.preview = ""
	s.result = nil
	s.errMsg = ""
}
