package main

import (
	"fmt"

	"github.com/itohio/fieldwatch/pkg/weather"
	"github.com/spf13/cobra"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Show the rain outlook and irrigation advice",
	Long: `Fetch the next day of forecast for weather.city and print whether rain is
expected. With --humidity the irrigation advice for that soil humidity is
printed as well.`,
	Args: cobra.NoArgs,
	RunE: runForecast,
}

var forecastHumidity float64

func init() {
	forecastCmd.Flags().Float64Var(&forecastHumidity, "humidity", -1, "Soil humidity in % to advise on")
	rootCmd.AddCommand(forecastCmd)
}

func runForecast(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Weather.APIKey == "" {
		return weather.ErrNoAPIKey
	}

	o, err := weather.NewClient(cfg.Weather).Outlook(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "city: %s\n", cfg.Weather.City)
	fmt.Fprintf(out, "periods: %d\n", o.Periods)
	fmt.Fprintf(out, "rain expected: %t\n", o.RainExpected)
	fmt.Fprintf(out, "rain probability: %.0f%%\n", o.Probability)

	if forecastHumidity >= 0 {
		advice := weather.Advise(forecastHumidity, o, cfg.Weather)
		fmt.Fprintln(out, advice.Notes())
	}
	return nil
}
