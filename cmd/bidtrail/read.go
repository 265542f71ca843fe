package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aretw0/bidtrail/pkg/core"
	"github.com/aretw0/bidtrail/pkg/projection"
	"github.com/aretw0/bidtrail/pkg/stages"
)

// viewCmd builds a command projecting one procurement and rendering it.
func viewCmd(a *app, use, short string, render func(p projection.Procurement) (any, func(io.Writer) error)) *cobra.Command {
	var ref procurementRef
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := ref.resolve()
			if err != nil {
				return err
			}
			engine, err := a.engine(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer engine.Close()

			p, err := engine.Workflow.ViewKey(cmd.Context(), key)
			if err != nil {
				return err
			}
			data, table := render(p)
			return a.printOutput(cmd.OutOrStdout(), data, table)
		},
	}
	ref.bind(cmd, true)
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return viewCmd(a, "show", "Show the projected state of a procurement",
		func(p projection.Procurement) (any, func(io.Writer) error) {
			return p, func(w io.Writer) error {
				next := "-"
				if p.NextAction != nil {
					next = p.NextAction.Name
				}
				fmt.Fprintf(w, "Key:          %s\n", p.Key)
				fmt.Fprintf(w, "Procurement:  %s %s\n", p.ID, p.Title)
				fmt.Fprintf(w, "Stage:        %s\n", p.Stage)
				fmt.Fprintf(w, "Status:       %s\n", p.Status)
				fmt.Fprintf(w, "Last updated: %s\n", p.LastUpdated)
				fmt.Fprintf(w, "Next action:  %s\n\n", next)
				return phasesTable(w, p)
			}
		})
}

func phasesTable(w io.Writer, p projection.Procurement) error {
	rows := make([][]string, 0, len(p.Phases))
	for _, ph := range p.Phases {
		rows = append(rows, []string{
			strconv.Itoa(ph.Ordinal),
			ph.Stage,
			string(ph.State),
			strconv.Itoa(ph.DocumentCount),
			strconv.Itoa(ph.EventCount),
			orDash(ph.LastStatus),
		})
	}
	return printTable(w, []string{"#", "phase", "state", "documents", "events", "last status"}, rows)
}

func newTimelineCmd(a *app) *cobra.Command {
	return viewCmd(a, "timeline", "Show the audit timeline of a procurement",
		func(p projection.Procurement) (any, func(io.Writer) error) {
			return p.Timeline, func(w io.Writer) error {
				rows := make([][]string, 0, len(p.Timeline))
				for _, e := range p.Timeline {
					marker := ""
					if e.NewPhase {
						marker = "*"
					}
					rows = append(rows, []string{marker, orDash(e.Timestamp), string(e.Kind), orDash(e.Stage), e.Title, e.Details})
				}
				return printTable(w, []string{"", "timestamp", "kind", "stage", "title", "details"}, rows)
			}
		})
}

type nextView struct {
	Key      string `json:"key"`
	Stage    string `json:"stage"`
	Status   string `json:"status"`
	Action   *stages.Action `json:"action"`
	Complete bool   `json:"complete"`
}

func newNextCmd(a *app) *cobra.Command {
	return viewCmd(a, "next", "Show the next legal action of a procurement",
		func(p projection.Procurement) (any, func(io.Writer) error) {
			view := nextView{Key: p.Key, Stage: p.Stage, Status: p.Status, Complete: p.NextAction == nil}
			view.Action = p.NextAction
			return view, func(w io.Writer) error {
				if p.NextAction == nil {
					_, err := fmt.Fprintf(w, "%s is complete (%s / %s)\n", p.Key, p.Stage, p.Status)
					return err
				}
				act := p.NextAction
				fmt.Fprintf(w, "%s: %s\n", act.Name, act.Label)
				fmt.Fprintf(w, "  kind:   %s\n", act.Kind)
				fmt.Fprintf(w, "  target: %s / %s\n", act.TargetStage, act.TargetStatus)
				for _, alt := range act.Alternatives {
					fmt.Fprintf(w, "  or:     %s\n", alt)
				}
				return nil
			}
		})
}

func newListCmd(a *app) *cobra.Command {
	var match string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every procurement in the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer engine.Close()

			procs, err := engine.Workflow.List(cmd.Context(), match)
			if err != nil {
				return err
			}
			return a.printOutput(cmd.OutOrStdout(), procs, func(w io.Writer) error {
				rows := make([][]string, 0, len(procs))
				for _, p := range procs {
					rows = append(rows, []string{p.Key, p.Stage, p.Status, strconv.Itoa(p.Documents.Total()), orDash(p.LastUpdated)})
				}
				return printTable(w, []string{"key", "stage", "status", "documents", "last updated"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&match, "match", "", `Glob on the stream key, e.g. "PR-2024-*"`)
	return cmd
}

type recordView struct {
	ID          string        `json:"id"`
	Key         string        `json:"key"`
	Seq         int           `json:"seq"`
	Fingerprint string        `json:"fingerprint"`
	Payload     core.Payload  `json:"payload"`
	Stream      core.StreamID `json:"stream"`
}

func newRecordsCmd(a *app) *cobra.Command {
	var (
		ref   procurementRef
		limit int
	)
	cmd := &cobra.Command{
		Use:   "records <documents|status|events>",
		Short: "Dump the raw records of a stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if ref.id != "" || ref.key != "" {
				var err error
				if key, err = ref.resolve(); err != nil {
					return err
				}
			}
			engine, err := a.engine(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer engine.Close()

			records, err := engine.Gateway.Query(cmd.Context(), core.StreamID(args[0]), key, limit)
			if err != nil {
				return err
			}
			views := make([]recordView, 0, len(records))
			for _, r := range records {
				views = append(views, recordView{ID: r.ID, Key: r.Key, Seq: r.Seq, Fingerprint: core.Fingerprint(r.Payload), Payload: r.Payload, Stream: r.Stream})
			}
			return a.printOutput(cmd.OutOrStdout(), views, func(w io.Writer) error {
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{strconv.Itoa(v.Seq), v.ID, v.Key, orDash(v.Payload.String("timestamp")), short(v.Fingerprint)})
				}
				return printTable(w, []string{"seq", "id", "key", "timestamp", "fingerprint"}, rows)
			})
		},
	}
	ref.bind(cmd, true)
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of records (0 means the page size)")
	return cmd
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return orDash(fp)
}
