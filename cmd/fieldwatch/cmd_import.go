package main

import (
	"fmt"
	"io"
	"os"

	"github.com/itohio/fieldwatch/pkg/store"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import record lines into the store",
	Long: `Store every record line of a capture file, or standard input when the
file is "-" or omitted. The legacy irrigation export "humidity,ph,P,K,pump"
is accepted too. Unreadable lines are reported and skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

var importDSN string

func init() {
	importCmd.Flags().StringVar(&importDSN, "dsn", "", "Postgres DSN override")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		file, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open import: %w", err)
		}
		defer file.Close()
		r = file
	}

	dsn, err := resolveDSN(importDSN)
	if err != nil {
		return err
	}
	st, err := openStore(cmd.Context(), dsn)
	if err != nil {
		return err
	}
	defer st.Close()

	return importInto(cmd, st, r)
}

func importInto(cmd *cobra.Command, st store.Store, r io.Reader) error {
	res, err := store.ImportLines(cmd.Context(), st, r, nil)
	for _, le := range res.Errors {
		fmt.Fprintln(cmd.ErrOrStderr(), le.Error())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d records, skipped %d lines\n", len(res.IDs), len(res.Errors))
	return err
}
