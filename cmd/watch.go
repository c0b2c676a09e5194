package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cropcare-connect/cropcare/internal/watch"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var dir string
	var cropType string
	var outputParquet string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Scan photos as they are added to a folder",
		Long: `Watches a folder and scans each new or updated leaf photo once it has
stopped changing. Press Ctrl+C to stop.`,
		Example: `  # Scan photos synced from a field camera
  cropcare watch --dir ./inbox --crop Potato`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cropType == "" {
				cropType = cfg.CropType
			}

			analyzer, err := newAnalyzer(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rec := newEntryLog(outputParquet)
			handler := func(ctx context.Context, path string) {
				entry := scanFile(ctx, analyzer, path, cropType, time.Duration(cfg.Timeout))
				if entry.Failed() {
					fmt.Fprintf(out, "%s: %s\n", entry.File, entry.Error)
				} else {
					fmt.Fprintf(out, "%s: %s (%.0f%%, %s severity)\n", entry.File, entry.Disease, entry.Confidence, entry.Severity)
				}
				if err := rec.add(entry); err != nil {
					slog.Error("Failed to update report", "path", outputParquet, "err", err)
				}
			}

			w, err := watch.NewWatcher(filepath.Clean(dir), time.Duration(cfg.Watch.Debounce), handler)
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			if err := w.Start(cmd.Context()); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			defer w.Stop()

			select {
			case <-cmd.Context().Done():
				slog.Info("Stopping watcher...")
			case <-w.Done():
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Folder to watch")
	cmd.Flags().StringVar(&cropType, "crop", "", "Crop type hint sent with every request")
	cmd.Flags().StringVar(&outputParquet, "output-parquet", "", "Rewrite this Parquet report after every scan")

	return cmd
}
