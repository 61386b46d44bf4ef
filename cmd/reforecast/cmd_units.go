package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DridrM/renewable-energy-forecast/internal/resource"
)

func unitsCmd() *cobra.Command {
	var res string

	cmd := &cobra.Command{
		Use:   "units",
		Short: "List the production units of a resource",
		Long:  "Lists the distinct units of a resource, taken from its default call. The list is downloaded once and kept in the data directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()

			kind, err := resource.Parse(res)
			if err != nil {
				return err
			}

			p, err := newPipeline(logger)
			if err != nil {
				return err
			}

			units, err := p.Units(cmd.Context(), kind)
			if err != nil {
				return fmt.Errorf("listing units of %s: %w", kind.Name(), err)
			}

			cols := kind.UnitColumns()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, strings.ToUpper(strings.Join(cols, "\t")))
			for _, u := range units {
				values := make([]string, len(cols))
				for i, col := range cols {
					values[i] = u[col]
				}
				fmt.Fprintln(w, strings.Join(values, "\t"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&res, "resource", "r", "1", "Resource number (1, 2, 3) or name")
	cmd.AddCommand(unitsRemoveCmd())

	return cmd
}

func unitsRemoveCmd() *cobra.Command {
	var res string

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove the stored units list of a resource",
		Long:  "Removes the stored units list of a resource so the next units call downloads it again.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()

			kind, err := resource.Parse(res)
			if err != nil {
				return err
			}

			p, err := newPipeline(logger)
			if err != nil {
				return err
			}

			removed, err := p.RemoveUnits(kind)
			if err != nil {
				return fmt.Errorf("removing units of %s: %w", kind.Name(), err)
			}
			if !removed {
				fmt.Printf("no units list stored for %s\n", kind.Name())
				return nil
			}
			fmt.Printf("removed units list of %s\n", kind.Name())
			return nil
		},
	}

	cmd.Flags().StringVarP(&res, "resource", "r", "1", "Resource number (1, 2, 3) or name")

	return cmd
}
