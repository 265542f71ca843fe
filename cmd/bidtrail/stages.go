package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/bidtrail/pkg/stages"
)

type ruleView struct {
	Stage  string        `json:"stage"`
	When   string        `json:"when"`
	Action stages.Action `json:"action"`
}

type stagesView struct {
	Stages []string   `json:"stages"`
	Rules  []ruleView `json:"rules"`
}

func newStagesCmd(a *app) *cobra.Command {
	var export string
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "Show the stage list and the transition table",
		Long: `Show the canonical stage list and the transition table in effect. With
--export the table is written as YAML, ready to be edited and loaded back
through stages.file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table := stages.DefaultTable()
			if a.cfg.Stages.File != "" {
				t, err := stages.LoadTableFile(a.cfg.Stages.File)
				if err != nil {
					return err
				}
				table = t
			}

			if export != "" {
				return exportTable(cmd.OutOrStdout(), export, table)
			}

			view := stagesView{Stages: table.Stages().Names()}
			for _, r := range table.Rules() {
				view.Rules = append(view.Rules, ruleView{Stage: r.Stage, When: r.When.String(), Action: r.Action})
			}
			return a.printOutput(cmd.OutOrStdout(), view, func(w io.Writer) error {
				rows := make([][]string, 0, len(view.Rules))
				for _, r := range view.Rules {
					rows = append(rows, []string{r.Stage, r.When, r.Action.Name, string(r.Action.Kind), r.Action.TargetStage, r.Action.TargetStatus})
				}
				return printTable(w, []string{"stage", "when status", "action", "kind", "target stage", "target status"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&export, "export", "", `Write the table as YAML to a file ("-" for stdout)`)
	return cmd
}

func exportTable(stdout io.Writer, path string, table *stages.Table) error {
	if path == "-" {
		return stages.EncodeTable(stdout, table)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := stages.EncodeTable(f, table); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Exported transition table to", path)
	return nil
}
