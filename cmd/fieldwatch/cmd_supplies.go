package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/itohio/fieldwatch/pkg/store"
	"github.com/spf13/cobra"
)

var suppliesCmd = &cobra.Command{
	Use:   "supplies",
	Short: "Manage the farm supply inventory",
	Long: `Add, list, update and remove seeds, fertilizers and other supplies, list
the ones close to expiry and export the inventory as CSV. Supplies are kept in
store.dsn or --dsn.`,
}

var suppliesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a supply",
	Args:  cobra.NoArgs,
	RunE:  runSuppliesAdd,
}

var suppliesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every supply and the totals per type",
	Args:  cobra.NoArgs,
	RunE:  runSuppliesList,
}

var suppliesSetCmd = &cobra.Command{
	Use:   "set-quantity NAME QUANTITY",
	Short: "Change the quantity in stock of a supply",
	Args:  cobra.ExactArgs(2),
	RunE:  runSuppliesSet,
}

var suppliesRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Remove a supply",
	Args:  cobra.ExactArgs(1),
	RunE:  runSuppliesRemove,
}

var suppliesExpiringCmd = &cobra.Command{
	Use:   "expiring",
	Short: "List supplies expiring soon",
	Long: `List the supplies expiring within --days from today, or between --from
and --to (YYYY-MM-DD, both included).`,
	Args: cobra.NoArgs,
	RunE: runSuppliesExpiring,
}

var suppliesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the inventory as CSV",
	Args:  cobra.NoArgs,
	RunE:  runSuppliesExport,
}

var suppliesFlags struct {
	dsn      string
	name     string
	kind     string
	quantity int
	expires  string
	days     int
	from     string
	to       string
	output   string
}

func init() {
	suppliesCmd.PersistentFlags().StringVar(&suppliesFlags.dsn, "dsn", "", "Postgres DSN override")

	suppliesAddCmd.Flags().StringVar(&suppliesFlags.name, "name", "", "Supply name (unique)")
	suppliesAddCmd.Flags().StringVar(&suppliesFlags.kind, "type", "", "Supply type, e.g. seed or fertilizer")
	suppliesAddCmd.Flags().IntVar(&suppliesFlags.quantity, "quantity", 0, "Quantity in stock")
	suppliesAddCmd.Flags().StringVar(&suppliesFlags.expires, "expires", "", "Expiry date (YYYY-MM-DD)")
	_ = suppliesAddCmd.MarkFlagRequired("name")
	_ = suppliesAddCmd.MarkFlagRequired("expires")

	suppliesExpiringCmd.Flags().IntVar(&suppliesFlags.days, "days", 30, "Days ahead of today")
	suppliesExpiringCmd.Flags().StringVar(&suppliesFlags.from, "from", "", "First expiry date (YYYY-MM-DD)")
	suppliesExpiringCmd.Flags().StringVar(&suppliesFlags.to, "to", "", "Last expiry date (YYYY-MM-DD)")
	suppliesExpiringCmd.MarkFlagsRequiredTogether("from", "to")

	suppliesExportCmd.Flags().StringVarP(&suppliesFlags.output, "output", "o", "", "Output file (default: standard output)")

	rootCmd.AddCommand(suppliesCmd)
	suppliesCmd.AddCommand(suppliesAddCmd)
	suppliesCmd.AddCommand(suppliesListCmd)
	suppliesCmd.AddCommand(suppliesSetCmd)
	suppliesCmd.AddCommand(suppliesRemoveCmd)
	suppliesCmd.AddCommand(suppliesExpiringCmd)
	suppliesCmd.AddCommand(suppliesExportCmd)
}

// withSupplies opens the configured store and runs fn against it.
func withSupplies(cmd *cobra.Command, fn func(store.Supplies) error) error {
	dsn, err := resolveDSN(suppliesFlags.dsn)
	if err != nil {
		return err
	}
	st, err := openStore(cmd.Context(), dsn)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func runSuppliesAdd(cmd *cobra.Command, args []string) error {
	expires, err := store.ParseDate(suppliesFlags.expires)
	if err != nil {
		return err
	}
	sp := store.Supply{
		Name:     suppliesFlags.name,
		Type:     suppliesFlags.kind,
		Quantity: suppliesFlags.quantity,
		Expires:  expires,
	}
	return withSupplies(cmd, func(s store.Supplies) error {
		return addSupply(cmd.Context(), s, &sp, cmd.OutOrStdout())
	})
}

func addSupply(ctx context.Context, s store.Supplies, sp *store.Supply, out io.Writer) error {
	if err := s.AddSupply(ctx, sp); err != nil {
		return fmt.Errorf("failed to add %q: %w", sp.Name, err)
	}
	fmt.Fprintf(out, "added %s (id %d)\n", sp.Name, sp.ID)
	return nil
}

func runSuppliesList(cmd *cobra.Command, args []string) error {
	return withSupplies(cmd, func(s store.Supplies) error {
		return listSupplies(cmd.Context(), s, cmd.OutOrStdout())
	})
}

func listSupplies(ctx context.Context, s store.Supplies, out io.Writer) error {
	supplies, err := s.ListSupplies(ctx)
	if err != nil {
		return err
	}
	if err := printSupplies(out, supplies); err != nil {
		return err
	}

	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tITEMS\tQUANTITY")
	for _, t := range store.Summarize(supplies) {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", t.Type, t.Items, t.Quantity)
	}
	return tw.Flush()
}

func printSupplies(out io.Writer, supplies []store.Supply) error {
	if len(supplies) == 0 {
		fmt.Fprintln(out, "no supplies")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tQUANTITY\tEXPIRES")
	for _, sp := range supplies {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", sp.ID, sp.Name, sp.Type, sp.Quantity, sp.Expires.Format(store.DateLayout))
	}
	return tw.Flush()
}

func runSuppliesSet(cmd *cobra.Command, args []string) error {
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid quantity %q", args[1])
	}
	return withSupplies(cmd, func(s store.Supplies) error {
		if err := s.SetQuantity(cmd.Context(), args[0], qty); err != nil {
			return fmt.Errorf("failed to update %q: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: quantity %d\n", args[0], qty)
		return nil
	})
}

func runSuppliesRemove(cmd *cobra.Command, args []string) error {
	return withSupplies(cmd, func(s store.Supplies) error {
		if err := s.RemoveSupply(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to remove %q: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
		return nil
	})
}

func runSuppliesExpiring(cmd *cobra.Command, args []string) error {
	return withSupplies(cmd, func(s store.Supplies) error {
		return expiringSupplies(cmd.Context(), s, cmd.OutOrStdout(), time.Now(),
			suppliesFlags.days, suppliesFlags.from, suppliesFlags.to)
	})
}

// expiringSupplies prints the supplies between from and to when both are set,
// otherwise those within days of now.
func expiringSupplies(ctx context.Context, s store.Supplies, out io.Writer, now time.Time, days int, from, to string) error {
	var (
		supplies []store.Supply
		err      error
	)
	if from != "" || to != "" {
		start, err := store.ParseDate(from)
		if err != nil {
			return err
		}
		end, err := store.ParseDate(to)
		if err != nil {
			return err
		}
		if end.Before(start) {
			return fmt.Errorf("--to must not be before --from")
		}
		supplies, err = s.Expiring(ctx, start, end)
		if err != nil {
			return err
		}
	} else if supplies, err = store.ExpiringWithin(ctx, s, now, days); err != nil {
		return err
	}
	return printSupplies(out, supplies)
}

func runSuppliesExport(cmd *cobra.Command, args []string) error {
	var w io.Writer = cmd.OutOrStdout()
	if suppliesFlags.output != "" {
		file, err := os.Create(suppliesFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer file.Close()
		w = file
	}

	return withSupplies(cmd, func(s store.Supplies) error {
		n, err := store.ExportSuppliesCSV(cmd.Context(), s, w)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "exported %d supplies\n", n)
		return nil
	})
}
