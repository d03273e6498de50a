package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/x402guard/internal/domain/audit"
)

func newTiersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tiers",
		Short: "List audit tiers and prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIER\tPRICE\tDESCRIPTION\tFEATURES")
			for _, t := range audit.Tiers {
				name := string(t.ID)
				if t.Popular {
					name += " *"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, t.Price, t.Description, strings.Join(t.Features, ", "))
			}
			return w.Flush()
		},
	}
}
