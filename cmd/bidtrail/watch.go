package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	bridge "github.com/aretw0/bidtrail/pkg/adapters/lifecycle"
)

func newWatchCmd(a *app) *cobra.Command {
	var ref procurementRef
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow appends to the ledger",
		Long: `Print a line for every stream that receives new records. With --id or
--key the procurement is projected again after each change. Only the file ledger
supports watching.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			key := ""
			if ref.id != "" || ref.key != "" {
				var err error
				if key, err = ref.resolve(); err != nil {
					return err
				}
			}

			engine, err := a.engine(ctx, false)
			if err != nil {
				return err
			}
			defer engine.Close()

			changes, err := engine.Workflow.Watch(ctx)
			if err != nil {
				return err
			}
			src := bridge.NewSource(changes)
			if err := src.Start(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", engine.Location())
			for ev := range src.Events() {
				change, ok := ev.(bridge.Change)
				if !ok {
					continue
				}
				fmt.Fprintln(out, change.String())
				if key == "" {
					continue
				}
				p, err := engine.Workflow.ViewKey(ctx, key)
				if err != nil {
					a.logger.Warn("projection failed", "key", key, "error", err)
					continue
				}
				fmt.Fprintf(out, "  %s: %s / %s (updated %s)\n", p.Key, p.Stage, p.Status, orDash(p.LastUpdated))
			}
			return nil
		},
	}
	ref.bind(cmd, true)
	return cmd
}
