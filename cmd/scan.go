package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cropcare-connect/cropcare/internal/images"
	"github.com/cropcare-connect/cropcare/internal/scan"
)

func errNotImage(img scan.Image) error {
	return fmt.Errorf("%s is not an image (media type %q)", img.Name, img.MediaType)
}

type scanOutput struct {
	File     string       `json:"file" yaml:"file"`
	Status   scan.Status  `json:"status" yaml:"status"`
	CropType string       `json:"crop_type,omitempty" yaml:"crop_type,omitempty"`
	Result   *scan.Result `json:"result,omitempty" yaml:"result,omitempty"`
	Error    string       `json:"error,omitempty" yaml:"error,omitempty"`
	Duration string       `json:"duration" yaml:"duration"`
}

func newScanCmd(opts *rootOptions) *cobra.Command {
	var source string
	var cropType string
	var format string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan one leaf photo for disease",
		Long: `Uploads a single leaf photo to the analysis service and prints the
diagnosis, treatment suggestions and recommended products.`,
		Example: `  # Scan a local photo
  cropcare scan --image leaf.jpg

  # Scan a photo by URL with a crop hint, as YAML
  cropcare scan --image https://example.com/tomato.png --crop Tomato --format yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cropType == "" {
				cropType = cfg.CropType
			}

			analyzer, err := newAnalyzer(cfg)
			if err != nil {
				return err
			}

			img, err := images.NewFetcher().Load(cmd.Context(), source)
			if err != nil {
				return err
			}

			snap, elapsed, err := scanOnce(cmd.Context(), analyzer, img, cropType, time.Duration(cfg.Timeout))
			if err != nil {
				return err
			}

			out := scanOutput{
				File:     img.Name,
				Status:   snap.Status,
				CropType: snap.CropType,
				Result:   snap.Result,
				Error:    snap.Error,
				Duration: elapsed.Round(time.Millisecond).String(),
			}
			if err := writeScan(cmd.OutOrStdout(), format, out); err != nil {
				return err
			}
			if snap.Status == scan.StatusFailed {
				return fmt.Errorf("analysis failed: %s", snap.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "image", "i", "", "Path or http(s) URL of the leaf photo")
	cmd.Flags().StringVar(&cropType, "crop", "", "Crop type hint sent with the request")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json or yaml")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func writeScan(w io.Writer, format string, out scanOutput) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(out)
	case "text", "":
		writeScanText(w, out)
		return nil
	default:
		return fmt.Errorf("unknown format %q (use text, json or yaml)", format)
	}
}

func writeScanText(w io.Writer, out scanOutput) {
	fmt.Fprintf(w, "File:        %s\n", out.File)
	if out.CropType != "" {
		fmt.Fprintf(w, "Crop:        %s\n", out.CropType)
	}
	if out.Result == nil {
		fmt.Fprintf(w, "Status:      %s\n", out.Status)
		if out.Error != "" {
			fmt.Fprintf(w, "Error:       %s\n", out.Error)
		}
		return
	}

	r := out.Result
	fmt.Fprintf(w, "Disease:     %s\n", r.Disease)
	fmt.Fprintf(w, "Confidence:  %.0f%%\n", r.Confidence)
	fmt.Fprintf(w, "Severity:    %s\n", r.Severity)
	if r.Description != "" {
		fmt.Fprintf(w, "\n%s\n", r.Description)
	}
	if len(r.Suggestions) > 0 {
		fmt.Fprintln(w, "\nSuggestions:")
		for i, s := range r.Suggestions {
			fmt.Fprintf(w, "  %d. %s\n", i+1, s)
		}
	}
	if len(r.Products) > 0 {
		fmt.Fprintln(w, "\nRecommended products:")
		for _, p := range r.Products {
			fmt.Fprintf(w, "  - %s (%s) %s\n", p.Name, p.Category, p.Price)
			if p.PurchaseURL != "" {
				fmt.Fprintf(w, "    %s\n", p.PurchaseURL)
			}
		}
	}
	fmt.Fprintf(w, "\nAnalyzed in %s\n", out.Duration)
}
