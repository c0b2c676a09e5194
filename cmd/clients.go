package cmd

import (
	"context"
	"time"

	"github.com/cropcare-connect/cropcare/internal/analysis"
	"github.com/cropcare-connect/cropcare/internal/chat"
	"github.com/cropcare-connect/cropcare/internal/config"
	"github.com/cropcare-connect/cropcare/internal/preview"
	"github.com/cropcare-connect/cropcare/internal/scan"
)

func newAnalyzer(cfg *config.Config) (*analysis.Client, error) {
	return analysis.NewClient(cfg.APIBaseURL, cfg.AnalyzePath)
}

func newPreviewer(cfg *config.Config) *preview.Processor {
	return preview.NewProcessor(preview.Options{
		MaxDim:  cfg.Preview.MaxDim,
		Format:  cfg.Preview.Format,
		Quality: cfg.Preview.Quality,
	})
}

func newChatClient(cfg *config.Config) (*chat.Client, error) {
	return chat.NewClient(cfg.APIBaseURL, cfg.ChatPath, nil)
}

// noPreview skips preview rendering for commands that never display one.
var noPreview = scan.PreviewFunc(func(scan.Image) (string, error) { return "", nil })

// scanOnce drives one session from image selection to a settled state.
func scanOnce(ctx context.Context, analyzer scan.Analyzer, img scan.Image, cropType string, timeout time.Duration) (scan.Snapshot, time.Duration, error) {
	session := scan.NewSession(analyzer,
		scan.WithPreviewer(noPreview),
		scan.WithTimeout(timeout),
		scan.WithCropType(cropType),
	)
	defer session.Close()

	start := time.Now()
	if !session.ProvideImage(img) {
		return scan.Snapshot{}, 0, errNotImage(img)
	}
	session.Analyze(ctx)
	snap, err := session.Wait(ctx)
	return snap, time.Since(start), err
}
