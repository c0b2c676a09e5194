package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cropcare-connect/cropcare/internal/config"
)

type rootOptions struct {
	configPath string
	apiURL     string
	verbose    bool

	cfg *config.Config
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "cropcare",
		Short: "Crop disease scanning client for the CropCare Connect analysis service",
		Long: `CropCare scans leaf photos for crop diseases using a remote analysis service.

It can host scan sessions over HTTP, scan single photos or whole folders,
watch a folder for new photos, and talk to the Leaf Bot assistant.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			logLevel := slog.LevelInfo
			if opts.verbose {
				logLevel = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
			slog.SetDefault(logger)

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if opts.apiURL != "" {
				cfg.APIBaseURL = opts.apiURL
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			opts.cfg = cfg
			slog.Debug("Configuration loaded", "api_base_url", cfg.APIBaseURL, "language", cfg.Language, "timeout", cfg.Timeout)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a JSONC config file (default ./"+config.DefaultFile+" if present)")
	cmd.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "Analysis API base URL (overrides config and CROPCARE_API_BASE_URL)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newScanCmd(opts))
	cmd.AddCommand(newBatchCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newChatCmd(opts))
	cmd.AddCommand(newWeatherCmd(opts))

	return cmd
}
