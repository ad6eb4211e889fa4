package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/itohio/fieldwatch/pkg/store"
	"github.com/itohio/fieldwatch/pkg/telemetry"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored readings as CSV",
	Long: `Write the stored readings matching the filters as CSV to a file or
standard output. Readings are read from store.dsn or --dsn.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var exportFlags struct {
	dsn    string
	output string
	kind   string
	since  string
	until  string
	active bool
	limit  int
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.dsn, "dsn", "", "Postgres DSN override")
	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "", "Output file (default: standard output)")
	exportCmd.Flags().StringVar(&exportFlags.kind, "kind", "", "Only readings of this board kind")
	exportCmd.Flags().StringVar(&exportFlags.since, "since", "", "Only readings at or after this RFC3339 time")
	exportCmd.Flags().StringVar(&exportFlags.until, "until", "", "Only readings before this RFC3339 time")
	exportCmd.Flags().BoolVar(&exportFlags.active, "active", false, "Only alarms and pump runs")
	exportCmd.Flags().IntVar(&exportFlags.limit, "limit", 0, "Keep the newest N readings")
	rootCmd.AddCommand(exportCmd)
}

var errNoDSN = errors.New("no database configured: set store.dsn or pass --dsn")

func runExport(cmd *cobra.Command, args []string) error {
	f, err := buildFilter(exportFlags.kind, exportFlags.since, exportFlags.until, exportFlags.active, exportFlags.limit)
	if err != nil {
		return err
	}

	dsn, err := resolveDSN(exportFlags.dsn)
	if err != nil {
		return err
	}
	st, err := openStore(cmd.Context(), dsn)
	if err != nil {
		return err
	}
	defer st.Close()

	var w io.Writer = cmd.OutOrStdout()
	if exportFlags.output != "" {
		file, err := os.Create(exportFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer file.Close()
		w = file
	}

	n, err := store.ExportCSV(cmd.Context(), st, w, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "exported %d readings\n", n)
	return nil
}

// resolveDSN prefers flag over the configured DSN. Export and import are
// meaningless against an empty memory store.
func resolveDSN(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.Store.DSN == "" {
		return "", errNoDSN
	}
	return cfg.Store.DSN, nil
}

func buildFilter(kind, since, until string, active bool, limit int) (store.Filter, error) {
	f := store.Filter{
		Kind:       telemetry.Kind(kind),
		ActiveOnly: active,
		Limit:      limit,
	}
	if kind != "" && !f.Kind.Valid() {
		return f, fmt.Errorf("unknown kind %q", kind)
	}
	if limit < 0 {
		return f, fmt.Errorf("limit must not be negative")
	}

	var err error
	if since != "" {
		if f.Since, err = time.Parse(time.RFC3339, since); err != nil {
			return f, fmt.Errorf("invalid since: %w", err)
		}
	}
	if until != "" {
		if f.Until, err = time.Parse(time.RFC3339, until); err != nil {
			return f, fmt.Errorf("invalid until: %w", err)
		}
	}
	if !f.Since.IsZero() && !f.Until.IsZero() && !f.Since.Before(f.Until) {
		return f, fmt.Errorf("since must be before until")
	}
	return f, nil
}
