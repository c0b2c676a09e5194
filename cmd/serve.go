package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cropcare-connect/cropcare/internal/chat"
	"github.com/cropcare-connect/cropcare/internal/handlers"
	"github.com/cropcare-connect/cropcare/internal/images"
	"github.com/cropcare-connect/cropcare/internal/weather"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host scan sessions over HTTP",
		Long: `Starts the CropCare session host on the specified port.

Each scan view is a session: select an image, start the analysis, read the
result, reset. Chat and weather requests are relayed to their services.`,
		Example: `  # Start server on the configured port (8888 by default)
  cropcare serve

  # Start server on custom port against a remote analysis service
  cropcare serve --port 3000 --api-url https://leaf.example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if port == 0 {
				port = cfg.Port
			}

			analyzer, err := newAnalyzer(cfg)
			if err != nil {
				return err
			}
			chatClient, err := newChatClient(cfg)
			if err != nil {
				return err
			}
			language, err := chat.ParseLanguage(cfg.Language)
			if err != nil {
				return err
			}

			handler := handlers.New(handlers.Deps{
				Analyzer:  analyzer,
				Previewer: newPreviewer(cfg),
				Fetcher:   images.NewFetcher(),
				Chat:      chatClient,
				Weather:   weather.NewClient(cfg.WeatherURL, nil),
				Timeout:   time.Duration(cfg.Timeout),
				CropType:  cfg.CropType,
				Language:  language,
			})
			defer handler.Close()

			addr := ":" + strconv.Itoa(port)
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("CropCare session host available", "addr", addr, "url", "http://localhost"+addr, "analysis", analyzer.Endpoint())
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from config or PORT)")

	return cmd
}
