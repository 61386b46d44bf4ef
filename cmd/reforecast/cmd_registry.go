package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func registryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the ledger of stored datasets",
	}

	cmd.AddCommand(registryListCmd())
	cmd.AddCommand(registryRemoveCmd())

	return cmd
}

func registryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the stored datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()

			p, err := newPipeline(logger)
			if err != nil {
				return err
			}

			entries, err := p.List()
			if err != nil {
				return fmt.Errorf("reading ledger: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tRESOURCE\tRANGE\tFILE")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.ID,
					e.CreatedAt.Format("2006-01-02 15:04:05"),
					e.Kind.Name(),
					e.Range,
					e.FileName,
				)
			}
			return w.Flush()
		},
	}
}

func registryRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a stored dataset and its ledger row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()

			p, err := newPipeline(logger)
			if err != nil {
				return err
			}

			entry, err := p.Remove(args[0])
			if err != nil {
				return fmt.Errorf("removing %s: %w", args[0], err)
			}

			fmt.Printf("removed %s\n", entry.FileName)
			return nil
		},
	}
}
