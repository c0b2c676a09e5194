package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cropcare-connect/cropcare/internal/images"
	"github.com/cropcare-connect/cropcare/internal/report"
	"github.com/cropcare-connect/cropcare/internal/scan"
	"github.com/cropcare-connect/cropcare/internal/watch"
)

func newBatchCmd(opts *rootOptions) *cobra.Command {
	var dir string
	var cropType string
	var concurrency int
	var outputYAML string
	var outputParquet string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Scan every leaf photo in a folder",
		Long: `Scans each photo in a folder with its own session, running several
requests at once, and writes a summary report.`,
		Example: `  # Scan a folder with 8 requests in flight
  cropcare batch --dir ./field-3 --concurrency 8

  # Write both report formats
  cropcare batch --dir ./field-3 --output-yaml reports/field-3.yaml --output-parquet reports/field-3.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cropType == "" {
				cropType = cfg.CropType
			}
			if concurrency <= 0 {
				concurrency = cfg.Batch.Concurrency
			}

			files, err := listPhotos(dir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no photos found in %s", dir)
			}

			analyzer, err := newAnalyzer(cfg)
			if err != nil {
				return err
			}

			slog.Info("Starting batch scan", "dir", dir, "files", len(files), "concurrency", concurrency)

			var mu sync.Mutex
			entries := make([]report.Entry, 0, len(files))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(concurrency)
			for _, file := range files {
				g.Go(func() error {
					entry := scanFile(ctx, analyzer, file, cropType, time.Duration(cfg.Timeout))
					slog.Info("Scanned", "file", entry.File, "status", entry.Status, "disease", entry.Disease, "error", entry.Error)
					mu.Lock()
					entries = append(entries, entry)
					mu.Unlock()
					return ctx.Err()
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			summary := report.Summarize(report.RunConfig{
				APIBaseURL:  cfg.APIBaseURL,
				Directory:   dir,
				CropType:    cropType,
				Concurrency: concurrency,
			}, entries)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scanned %d photos: %d diagnosed, %d failed\n", summary.Total, summary.Succeeded, summary.Failed)
			if summary.Succeeded > 0 {
				fmt.Fprintf(out, "Average confidence: %.1f%%\n", summary.AverageConfidence)
			}

			if outputYAML != "" {
				if err := report.SaveYAML(outputYAML, summary); err != nil {
					return err
				}
				fmt.Fprintf(out, "YAML report saved to: %s\n", outputYAML)
			}
			if outputParquet != "" {
				if err := report.SaveParquet(outputParquet, summary.Entries); err != nil {
					return err
				}
				fmt.Fprintf(out, "Parquet report saved to: %s\n", outputParquet)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Folder containing leaf photos")
	cmd.Flags().StringVar(&cropType, "crop", "", "Crop type hint sent with every request")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "Requests in flight at once (default from config)")
	cmd.Flags().StringVar(&outputYAML, "output-yaml", "", "Write a YAML summary to this path")
	cmd.Flags().StringVar(&outputParquet, "output-parquet", "", "Write one Parquet row per photo to this path")

	return cmd
}

func listPhotos(dir string) ([]string, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	var files []string
	for _, e := range dirEntries {
		if !e.IsDir() && watch.IsPhoto(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// scanFile never returns an error; failures are recorded on the entry.
func scanFile(ctx context.Context, analyzer scan.Analyzer, path, cropType string, timeout time.Duration) report.Entry {
	name := filepath.Base(path)
	img, err := images.ReadFile(path)
	if err != nil {
		return report.Entry{File: name, Status: scan.StatusFailed.String(), CropType: cropType, Error: err.Error()}
	}

	snap, elapsed, err := scanOnce(ctx, analyzer, img, cropType, timeout)
	if err != nil {
		return report.Entry{File: name, Status: scan.StatusFailed.String(), CropType: cropType, Error: err.Error()}
	}
	return report.NewEntry(name, snap, elapsed)
}
