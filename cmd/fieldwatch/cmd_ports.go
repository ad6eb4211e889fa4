package main

import (
	"fmt"

	"github.com/itohio/fieldwatch/pkg/link"
	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := link.Ports()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(ports) == 0 {
			fmt.Fprintln(out, "no serial ports found")
			return nil
		}
		for _, p := range ports {
			if p.Description != "" && p.Description != p.Name {
				fmt.Fprintf(out, "%s\t%s\n", p.Name, p.Description)
			} else {
				fmt.Fprintln(out, p.Name)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
