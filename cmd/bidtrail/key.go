package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/bidtrail/pkg/core"
)

func newKeyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "key <id> [title]",
		Short: "Print the stream key of a procurement",
		Long: `Print the stream key derived from a procurement ID and title. The key is
the ID followed by a slug of the title, e.g. "PR-2024-017-road-repair-phase-2".`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := ""
			if len(args) == 2 {
				title = args[1]
			}
			if strings.TrimSpace(args[0]) == "" {
				return fmt.Errorf("%w: empty procurement id", core.ErrInvalidInput)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), core.DeriveKey(args[0], title))
			return err
		},
	}
}
