package workflow_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/bidtrail/pkg/adapters/memory"
	"github.com/aretw0/bidtrail/pkg/core"
	"github.com/aretw0/bidtrail/pkg/gateway"
	"github.com/aretw0/bidtrail/pkg/projection"
	"github.com/aretw0/bidtrail/pkg/stages"
	"github.com/aretw0/bidtrail/pkg/workflow"
)

const (
	procID    = "PR-2024-017"
	procTitle = "Road Repair"
)

// steppingClock advances one minute per call so every operation gets its own timestamp.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Minute)
		return t
	}
}

func newService(t *testing.T) (*workflow.Service, *memory.Ledger) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := memory.New()
	gw := gateway.New(ledger, gateway.WithLogger(logger), gateway.WithRetries(0))
	return workflow.New(gw, workflow.WithLogger(logger), workflow.WithClock(steppingClock())), ledger
}

func docs(docType string, hashes ...string) []core.Metadata {
	out := make([]core.Metadata, 0, len(hashes))
	for _, h := range hashes {
		out = append(out, core.Metadata{"document_type": docType, "hash": h, "file_key": "files/" + h, "file_size": 512})
	}
	return out
}

func advance(t *testing.T, svc *workflow.Service, action, status string, documents []core.Metadata) workflow.Outcome {
	t.Helper()
	out, err := svc.Advance(context.Background(), workflow.AdvanceRequest{
		ProcurementID: procID,
		Title:         procTitle,
		Action:        action,
		Status:        status,
		Actor:         "0xBAC",
		Documents:     documents,
	})
	require.NoError(t, err, action)
	return out
}

// toBidInvitation walks a fresh procurement up to a posted invitation to bid.
func toBidInvitation(t *testing.T, svc *workflow.Service) {
	t.Helper()
	require.NoError(t, svc.Initiate(context.Background(), workflow.InitiateRequest{
		ProcurementID: procID,
		Title:         procTitle,
		Actor:         "0xEndUser",
		Documents:     docs("Purchase Request", "pr-1"),
	}))
	advance(t, svc, "approve_pr", "", nil)
	advance(t, svc, "pre_procurement", stages.StatusConferenceSkipped, nil)
	advance(t, svc, "upload_bid_invitation", "", docs("Invitation to Bid", "itb-1"))
}

func TestService_ThreeBidsEndToEnd(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	toBidInvitation(t, svc)

	out := advance(t, svc, "open_bids", "", docs("Bid Document", "bid-a", "bid-b", "bid-c"))
	assert.Equal(t, stages.BidOpening, out.Stage)
	assert.Equal(t, stages.StatusBidsOpened, out.Status)
	assert.Equal(t, 3, out.Documents)

	p, err := svc.View(ctx, procID, procTitle)
	require.NoError(t, err)
	assert.Equal(t, stages.BidOpening, p.Stage)
	assert.Equal(t, stages.StatusBidsOpened, p.Status)
	assert.Equal(t, 3, p.Documents.Count(stages.BidOpening))
	assert.Equal(t, 1, p.Documents.Count(stages.PRInitiation))
	assert.Equal(t, 1, p.Documents.Count(stages.BidInvitation))

	states := map[string]projection.PhaseState{}
	for _, ph := range p.Phases {
		states[ph.Stage] = ph.State
	}
	assert.Equal(t, projection.PhaseCompleted, states[stages.PRInitiation])
	assert.Equal(t, projection.PhaseSkipped, states[stages.PreProcurement])
	assert.Equal(t, projection.PhaseCompleted, states[stages.BidInvitation])
	assert.Equal(t, projection.PhaseCurrent, states[stages.BidOpening])
	assert.Equal(t, projection.PhaseNotStarted, states[stages.BidEvaluation])

	next, ok, err := svc.Next(ctx, procID, procTitle)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "evaluate_bids", next.Name)

	require.NotEmpty(t, p.Timeline)
	assert.Equal(t, core.EventProcurementCreated, lastOfKind(p.Timeline, core.EventProcurementCreated).Title)
}

func lastOfKind(tl []projection.TimelineEntry, title string) projection.TimelineEntry {
	var found projection.TimelineEntry
	for _, e := range tl {
		if e.Title == title {
			found = e
		}
	}
	return found
}

func TestService_PartialFailureLeavesDocumentsVisible(t *testing.T) {
	ctx := context.Background()
	svc, ledger := newService(t)
	toBidInvitation(t, svc)

	ledger.InjectFault(memory.Fault{
		Op:     memory.OpPublish,
		Stream: core.StreamStatus,
		Err:    &core.ClientError{Code: -1, Message: "node unavailable"},
	})
	_, err := svc.Advance(ctx, workflow.AdvanceRequest{
		ProcurementID: procID,
		Title:         procTitle,
		Action:        "open_bids",
		Documents:     docs("Bid Document", "bid-a", "bid-b", "bid-c"),
	})
	require.Error(t, err)
	var pb *core.PartialBatchError
	require.ErrorAs(t, err, &pb)
	assert.Equal(t, "status", pb.Step)
	ledger.ClearFaults()

	p, err := svc.View(ctx, procID, procTitle)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Documents.Count(stages.BidOpening), "documents stay queryable")
	assert.Equal(t, stages.BidInvitation, p.Stage, "latest status is unchanged")
	assert.Equal(t, stages.StatusBidInvitationPosted, p.Status)

	// Retrying the whole operation is safe: the new batch supersedes the orphaned one.
	advance(t, svc, "open_bids", "", docs("Bid Document", "bid-a", "bid-b", "bid-c"))
	p, err = svc.View(ctx, procID, procTitle)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Documents.Count(stages.BidOpening))
	assert.Equal(t, stages.StatusBidsOpened, p.Status)
}

func TestService_RetryAfterEventFailureCompletesTransition(t *testing.T) {
	ctx := context.Background()
	svc, ledger := newService(t)
	toBidInvitation(t, svc)

	ledger.InjectFault(memory.Fault{
		Op:     memory.OpPublish,
		Stream: core.StreamEvents,
		Err:    &core.ClientError{Code: -1, Message: "node unavailable"},
		Times:  1,
	})
	req := workflow.AdvanceRequest{
		ProcurementID: procID,
		Title:         procTitle,
		Action:        "open_bids",
		Actor:         "0xBAC",
		Documents:     docs("Bid Document", "bid-a", "bid-b", "bid-c"),
	}
	_, err := svc.Advance(ctx, req)
	var pb *core.PartialBatchError
	require.ErrorAs(t, err, &pb)
	assert.Equal(t, "event", pb.Step)

	p, err := svc.View(ctx, procID, procTitle)
	require.NoError(t, err)
	assert.Equal(t, stages.StatusBidsOpened, p.Status, "the status snapshot landed")
	assert.Empty(t, p.Latest.PreviousStage)

	out, err := svc.Advance(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, stages.BidOpening, out.Stage)
	assert.Equal(t, stages.StatusBidsOpened, out.Status)
	assert.Equal(t, 3, out.Documents)

	p, err = svc.View(ctx, procID, procTitle)
	require.NoError(t, err)
	assert.Equal(t, stages.BidOpening, p.Stage)
	assert.Equal(t, stages.BidInvitation, p.Latest.PreviousStage)
	assert.Equal(t, stages.StatusBidInvitationPosted, p.Latest.PreviousStatus)
	assert.Equal(t, 3, p.Documents.Count(stages.BidOpening), "documents are not written twice")
	assert.Equal(t, core.EventStageTransition, lastOfKind(p.Timeline, core.EventStageTransition).Title)
	assert.Equal(t, core.EventDocumentUpload, lastOfKind(p.Timeline, core.EventDocumentUpload).Title)

	next, ok, err := svc.Next(ctx, procID, procTitle)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "evaluate_bids", next.Name)

	_, err = svc.Advance(ctx, req)
	assert.ErrorIs(t, err, workflow.ErrActionNotAllowed, "a completed action is not repeated")
}

func TestService_TransitionEventFailureAfterUpload(t *testing.T) {
	ctx := context.Background()
	svc, ledger := newService(t)
	toBidInvitation(t, svc)

	// The document_upload event goes through; the stage_transition event does not.
	ledger.InjectFault(memory.Fault{
		Op:     memory.OpPublish,
		Stream: core.StreamEvents,
		Err:    &core.ClientError{Code: -1, Message: "node unavailable"},
		Times:  1,
		Skip:   1,
	})
	req := workflow.AdvanceRequest{
		ProcurementID: procID,
		Title:         procTitle,
		Action:        "open_bids",
		Documents:     docs("Bid Document", "bid-a"),
	}
	_, err := svc.Advance(ctx, req)
	var pb *core.PartialBatchError
	require.ErrorAs(t, err, &pb)
	assert.Equal(t, "advance", pb.Op)
	assert.Equal(t, "transition_event", pb.Step)
	assert.Equal(t, []string{"documents", "status", "event", "transition_status"}, pb.Completed)

	_, err = svc.Advance(ctx, req)
	require.NoError(t, err)

	p, err := svc.View(ctx, procID, procTitle)
	require.NoError(t, err)
	assert.Equal(t, stages.BidInvitation, p.Latest.PreviousStage)
	assert.Equal(t, core.EventStageTransition, lastOfKind(p.Timeline, core.EventStageTransition).Title)
	assert.Equal(t, 1, p.Documents.Count(stages.BidOpening))
}

func TestService_InitialStatusFromTable(t *testing.T) {
	ctx := context.Background()
	table, err := stages.NewTable(stages.New("Draft", "Review"),
		stages.Rule{Stage: "Draft", When: stages.Exact("Opened"), Action: stages.Action{Name: "submit", TargetStage: "Review", TargetStatus: "Submitted"}},
	)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := gateway.New(memory.New(), gateway.WithLogger(logger), gateway.WithRetries(0))
	svc := workflow.New(gw, workflow.WithLogger(logger), workflow.WithClock(steppingClock()), workflow.WithTable(table))

	require.NoError(t, svc.Initiate(ctx, workflow.InitiateRequest{ProcurementID: procID, Title: procTitle}))
	p, err := svc.View(ctx, procID, procTitle)
	require.NoError(t, err)
	assert.Equal(t, "Draft", p.Stage)
	assert.Equal(t, "Opened", p.Status)

	next, ok, err := svc.Next(ctx, procID, procTitle)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "submit", next.Name)

	out := advance(t, svc, "submit", "", nil)
	assert.Equal(t, "Review", out.Stage)
	assert.Equal(t, "Submitted", out.Status)

	t.Run("Initiate Action Reports The Same Status", func(t *testing.T) {
		out, err := svc.Advance(ctx, workflow.AdvanceRequest{ProcurementID: "PR-2", Title: "Chairs", Action: workflow.ActionInitiate})
		require.NoError(t, err)
		assert.Equal(t, "Opened", out.Status)
	})
}

func TestService_Rejections(t *testing.T) {
	ctx := context.Background()
	svc, ledger := newService(t)

	_, err := svc.Advance(ctx, workflow.AdvanceRequest{ProcurementID: procID, Title: procTitle, Action: "approve_pr"})
	assert.ErrorIs(t, err, workflow.ErrActionNotAllowed, "only initiate is allowed before the first status")

	out, err := svc.Advance(ctx, workflow.AdvanceRequest{ProcurementID: procID, Title: procTitle, Action: workflow.ActionInitiate})
	require.NoError(t, err)
	assert.Equal(t, stages.StatusPRSubmitted, out.Status)

	assert.ErrorIs(t, svc.Initiate(ctx, workflow.InitiateRequest{ProcurementID: procID, Title: procTitle}),
		workflow.ErrActionNotAllowed)

	_, err = svc.Advance(ctx, workflow.AdvanceRequest{ProcurementID: procID, Title: procTitle, Action: "complete"})
	assert.ErrorIs(t, err, workflow.ErrActionNotAllowed)
	assert.Contains(t, err.Error(), `next action is "approve_pr"`)

	advance(t, svc, "approve_pr", "", nil)

	_, err = svc.Advance(ctx, workflow.AdvanceRequest{ProcurementID: procID, Title: procTitle, Action: "pre_procurement"})
	assert.ErrorIs(t, err, workflow.ErrInvalidRequest, "upload actions need documents")

	_, err = svc.Advance(ctx, workflow.AdvanceRequest{ProcurementID: procID, Title: procTitle, Action: "pre_procurement", Status: "Cancelled"})
	assert.ErrorIs(t, err, workflow.ErrInvalidRequest)

	_, err = svc.Advance(ctx, workflow.AdvanceRequest{Action: "approve_pr"})
	assert.ErrorIs(t, err, workflow.ErrInvalidRequest)

	assert.ErrorIs(t, svc.Upload(ctx, workflow.UploadRequest{ProcurementID: procID, Title: procTitle}), workflow.ErrInvalidRequest)
	assert.ErrorIs(t, svc.RecordEvent(ctx, workflow.EventRequest{ProcurementID: "PR-404", EventType: "note"}), workflow.ErrNotFound)

	_, err = svc.Watch(ctx)
	assert.ErrorIs(t, err, workflow.ErrUnsupported)
	assert.Zero(t, ledger.Len(core.StreamDocuments))
}

func TestService_CompletedHasNoNextAction(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	toBidInvitation(t, svc)
	advance(t, svc, "open_bids", "", docs("Bid Document", "a"))
	advance(t, svc, "evaluate_bids", "", docs("Evaluation Report", "e"))
	advance(t, svc, "post_qualification", "", docs("Post-Qualification Report", "q"))
	advance(t, svc, "upload_bac_resolution", "", docs("BAC Resolution", "r"))
	advance(t, svc, "issue_notice_of_award", "", docs("Notice of Award", "n"))

	next, ok, err := svc.Next(ctx, procID, procTitle)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "upload_performance_bond", next.Name)

	advance(t, svc, "upload_performance_bond", "", docs("Performance Bond", "b"))
	advance(t, svc, "upload_contract_po", "", docs("Contract", "c"))
	advance(t, svc, "issue_notice_to_proceed", "", docs("Notice to Proceed", "ntp"))
	advance(t, svc, "start_monitoring", "", nil)
	advance(t, svc, "complete", "", nil)

	_, ok, err = svc.Next(ctx, procID, procTitle)
	require.NoError(t, err)
	assert.False(t, ok)

	p, err := svc.View(ctx, procID, procTitle)
	require.NoError(t, err)
	assert.Equal(t, stages.StatusCompleted, p.Status)
	for _, ph := range p.Phases {
		if ph.Stage == stages.Monitoring {
			assert.Equal(t, projection.PhaseCurrent, ph.State)
		} else if ph.Stage != stages.PreProcurement {
			assert.Equal(t, projection.PhaseCompleted, ph.State, ph.Stage)
		}
	}
}

func TestService_UploadRecordEventAndList(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	toBidInvitation(t, svc)
	require.NoError(t, svc.Initiate(ctx, workflow.InitiateRequest{ProcurementID: "PR-9", Title: "Laptops"}))

	require.NoError(t, svc.Upload(ctx, workflow.UploadRequest{
		ProcurementID: procID,
		Title:         procTitle,
		Documents:     docs("Bid Bulletin", "bulletin-1"),
	}))
	require.NoError(t, svc.RecordEvent(ctx, workflow.EventRequest{
		ProcurementID: procID,
		Title:         procTitle,
		EventType:     "note",
		Details:       "Pre-bid conference rescheduled",
	}))

	p, err := svc.View(ctx, procID, procTitle)
	require.NoError(t, err)
	var types []string
	for _, d := range p.Documents.Documents(stages.BidInvitation) {
		types = append(types, d.DocumentType)
	}
	assert.Equal(t, []string{"Bid Bulletin", "Invitation to Bid"}, types, "uploads land in the current stage")
	assert.Equal(t, stages.StatusBidInvitationPosted, p.Status, "uploads do not move the procurement")
	note := lastOfKind(p.Timeline, "note")
	assert.Equal(t, stages.BidInvitation, note.Stage)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, core.DeriveKey(procID, procTitle), all[0].Key, "the upload made it the most recent")
	assert.Equal(t, "PR-9-laptops", all[1].Key)

	some, err := svc.List(ctx, "PR-2024-*")
	require.NoError(t, err)
	require.Len(t, some, 1)

	_, err = svc.List(ctx, "PR-[")
	assert.ErrorIs(t, err, workflow.ErrInvalidRequest)
}

func TestService_State(t *testing.T) {
	svc, _ := newService(t)
	state, ok := svc.State().(workflow.ServiceState)
	require.True(t, ok)
	assert.Len(t, state.Stages, 12)
	assert.Equal(t, 13, state.Rules)
	assert.Equal(t, "workflow", svc.ComponentType())
}
