package main

import (
	"context"
	"fmt"
	"io"

	"github.com/itohio/fieldwatch/pkg/predict"
	"github.com/itohio/fieldwatch/pkg/store"
	"github.com/itohio/fieldwatch/pkg/telemetry"
	"github.com/spf13/cobra"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict whether the pump should run",
	Long: `Train a random forest on the stored irrigation readings, report its
accuracy on a held back share of them and predict the pump state for the given
humidity, pH, phosphorus and potassium.`,
	Args: cobra.NoArgs,
	RunE: runPredict,
}

var predictFlags struct {
	dsn          string
	humidity     float64
	ph           float64
	phosphorus   bool
	potassium    bool
	trees        int
	testFraction float64
	seed         uint64
}

func init() {
	def := predict.DefaultOptions()
	predictCmd.Flags().StringVar(&predictFlags.dsn, "dsn", "", "Postgres DSN override")
	predictCmd.Flags().Float64Var(&predictFlags.humidity, "humidity", 40, "Soil humidity in %")
	predictCmd.Flags().Float64Var(&predictFlags.ph, "ph", 6.5, "Soil pH")
	predictCmd.Flags().BoolVar(&predictFlags.phosphorus, "phosphorus", false, "Phosphorus present")
	predictCmd.Flags().BoolVar(&predictFlags.potassium, "potassium", false, "Potassium present")
	predictCmd.Flags().IntVar(&predictFlags.trees, "trees", def.Trees, "Number of trees")
	predictCmd.Flags().Float64Var(&predictFlags.testFraction, "test-fraction", 0.2, "Share of readings held back to measure accuracy")
	predictCmd.Flags().Uint64Var(&predictFlags.seed, "seed", def.Seed, "Random seed")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	dsn, err := resolveDSN(predictFlags.dsn)
	if err != nil {
		return err
	}
	st, err := openStore(cmd.Context(), dsn)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := predict.DefaultOptions()
	opts.Trees = predictFlags.trees
	opts.Seed = predictFlags.seed
	x := predict.NewVector(predictFlags.humidity, predictFlags.ph, predictFlags.phosphorus, predictFlags.potassium)
	return predictPump(cmd.Context(), st, cmd.OutOrStdout(), x, predictFlags.testFraction, opts)
}

func predictPump(ctx context.Context, st store.Store, out io.Writer, x predict.Vector, testFraction float64, opts predict.Options) error {
	records, err := st.List(ctx, store.Filter{Kind: telemetry.KindIrrigation})
	if err != nil {
		return err
	}
	reports := make([]telemetry.Report, len(records))
	for i, rec := range records {
		reports[i] = rec.Report
	}
	samples := predict.FromReports(reports)

	f, acc, err := predict.Fit(samples, testFraction, opts)
	if err != nil {
		return err
	}

	p := f.Probability(x)
	fmt.Fprintf(out, "samples: %d\n", len(samples))
	fmt.Fprintf(out, "accuracy: %.2f%%\n", acc*100)
	fmt.Fprintf(out, "pump probability: %.2f\n", p)
	if p >= 0.5 {
		fmt.Fprintln(out, "irrigation recommended")
	} else {
		fmt.Fprintln(out, "no irrigation needed")
	}
	return nil
}
