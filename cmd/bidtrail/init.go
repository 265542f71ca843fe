package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/bidtrail/internal/platform"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a ledger",
		Long: `Initialize the configured ledger. For a file ledger this creates the
directory and its manifest (./.bidtrail by default); other ledgers are only
checked for reachability.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine(cmd.Context(), true)
			if err != nil {
				return fmt.Errorf("failed to initialize ledger: %w", err)
			}
			defer engine.Close()

			target, _ := platform.ParseURI(engine.URI)
			if target.Scheme == platform.SchemeFS {
				fmt.Fprintln(cmd.OutOrStdout(), "Initialized ledger in", target.Location)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ledger %s is ready\n", target.Scheme)
			return nil
		},
	}
}
