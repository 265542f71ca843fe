package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aretw0/bidtrail/pkg/core"
	"github.com/aretw0/bidtrail/pkg/workflow"
)

func newUploadCmd(a *app) *cobra.Command {
	var (
		ref    procurementRef
		docs   documentFlags
		stage  string
		status string
		actor  string
	)
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Publish documents for a procurement",
		Long: `Publish a batch of documents, the matching status snapshot and a
document_upload event. Stage and status default to the procurement's current ones.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			documents, err := docs.metadata()
			if err != nil {
				return err
			}
			engine, err := a.engine(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer engine.Close()

			err = engine.Workflow.Upload(cmd.Context(), workflow.UploadRequest{
				ProcurementID: ref.id,
				Title:         ref.title,
				Stage:         stage,
				Status:        status,
				Actor:         actor,
				Documents:     documents,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d document(s) to %s\n", len(documents), core.DeriveKey(ref.id, ref.title))
			return nil
		},
	}
	ref.bind(cmd, false)
	docs.bind(cmd)
	cmd.Flags().StringVar(&stage, "stage", "", "Stage the documents belong to")
	cmd.Flags().StringVar(&status, "status", "", "Status recorded with the upload")
	cmd.Flags().StringVar(&actor, "actor", "", "Acting user address")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newAdvanceCmd(a *app) *cobra.Command {
	var (
		ref     procurementRef
		docs    documentFlags
		status  string
		actor   string
		details string
	)
	cmd := &cobra.Command{
		Use:   "advance <action>",
		Short: "Perform the next workflow action",
		Long: `Perform a workflow action if the transition table allows it in the
procurement's current stage and status. "initiate" creates a procurement.
Upload actions need documents unless --status picks an alternative outcome.
Run "bidtrail next" to see the legal action.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			documents, err := docs.metadata()
			if err != nil {
				return err
			}
			engine, err := a.engine(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer engine.Close()

			outcome, err := engine.Workflow.Advance(cmd.Context(), workflow.AdvanceRequest{
				ProcurementID: ref.id,
				Title:         ref.title,
				Action:        args[0],
				Status:        status,
				Actor:         actor,
				Details:       details,
				Documents:     documents,
			})
			if err != nil {
				return err
			}
			return a.printOutput(cmd.OutOrStdout(), outcome, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s: %s -> %s / %s (%d document(s))\n",
					outcome.Key, outcome.Action.Name, outcome.Stage, outcome.Status, outcome.Documents)
				return err
			})
		},
	}
	ref.bind(cmd, false)
	docs.bind(cmd)
	cmd.Flags().StringVar(&status, "status", "", "Alternative outcome status of the action")
	cmd.Flags().StringVar(&actor, "actor", "", "Acting user address")
	cmd.Flags().StringVar(&details, "details", "", "Details recorded with the transition")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newEventCmd(a *app) *cobra.Command {
	var (
		ref procurementRef
		req workflow.EventRequest
	)
	cmd := &cobra.Command{
		Use:   "event <type>",
		Short: "Record an audit event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer engine.Close()

			req.ProcurementID = ref.id
			req.Title = ref.title
			req.EventType = args[0]
			if err := engine.Workflow.RecordEvent(cmd.Context(), req); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s on %s\n", req.EventType, core.DeriveKey(ref.id, ref.title))
			return nil
		},
	}
	ref.bind(cmd, false)
	cmd.Flags().StringVar(&req.Stage, "stage", "", "Stage (defaults to the current one)")
	cmd.Flags().StringVar(&req.Details, "details", "", "Event details")
	cmd.Flags().StringVar(&req.Actor, "actor", "", "Acting user address")
	cmd.Flags().StringVar(&req.Category, "category", "", "Event category (default workflow)")
	cmd.Flags().StringVar(&req.Severity, "severity", "", "Event severity (default info)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
