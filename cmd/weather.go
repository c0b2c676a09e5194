package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cropcare-connect/cropcare/internal/weather"
)

func newWeatherCmd(opts *rootOptions) *cobra.Command {
	var lat, lon float64
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "weather",
		Short: "Show current weather at the farm",
		Example: `  # Current weather in New Delhi
  cropcare weather

  # Current weather at a farm
  cropcare weather --lat 30.9 --lon 75.85`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := weather.NewDelhi
			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
				if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
					return fmt.Errorf("--lat and --lon must be given together")
				}
				loc = weather.Location{Name: "Your Farm", Latitude: lat, Longitude: lon}
			}

			report, err := weather.NewClient(opts.cfg.WeatherURL, nil).Current(cmd.Context(), loc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			fmt.Fprintf(out, "%s: %d°C, %s, humidity %.0f%%\n", report.Location.Name, report.Temperature, report.Condition, report.Humidity)
			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}
