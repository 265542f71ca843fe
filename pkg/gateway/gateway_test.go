package gateway_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/bidtrail/pkg/adapters/memory"
	"github.com/aretw0/bidtrail/pkg/codec"
	"github.com/aretw0/bidtrail/pkg/core"
	"github.com/aretw0/bidtrail/pkg/gateway"
)

var fixedNow = time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)

func newGateway(t *testing.T, opts ...gateway.Option) (*gateway.Gateway, *memory.Ledger) {
	t.Helper()
	ledger := memory.New()
	base := []gateway.Option{
		gateway.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		gateway.WithClock(func() time.Time { return fixedNow }),
		gateway.WithRetries(0),
	}
	return gateway.New(ledger, append(base, opts...)...), ledger
}

func bidUpload() gateway.DocumentUpload {
	return gateway.DocumentUpload{
		ProcurementID: "PR-2024-017",
		Title:         "Road Repair: Phase 2",
		Stage:         "Bid Opening",
		Status:        "BIDS_OPENED",
		Actor:         "0xBAC",
		Documents: []core.Metadata{
			{"document_type": "Bid Document", "hash": "h-a", "file_key": "bids/a.pdf", "file_size": 100, "bidder": "A"},
			{"document_type": "Bid Document", "hash": "h-b", "file_key": "bids/b.pdf", "file_size": 200, "bidder": "B"},
			{"document_type": "Bid Document", "hash": "h-c", "file_key": "bids/c.pdf", "file_size": 300, "bidder": "C"},
		},
	}
}

func TestGateway_AppendDocuments(t *testing.T) {
	ctx := context.Background()
	gw, ledger := newGateway(t)

	require.NoError(t, gw.AppendDocuments(ctx, bidUpload()))

	key := core.DeriveKey("PR-2024-017", "Road Repair: Phase 2")
	assert.Equal(t, 1, ledger.Calls(memory.OpPublishBatch, core.StreamDocuments), "documents go out as one batch")

	docs, err := gw.Query(ctx, core.StreamDocuments, key, 0)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	for i, rec := range docs {
		entry := core.DocumentFromPayload(rec.Payload)
		assert.Equal(t, i+1, entry.DocumentIndex)
		assert.Equal(t, "Bid Document", entry.DocumentType)
		assert.Equal(t, "Bid Opening", entry.Stage)
		assert.Equal(t, "2024-05-02T08:30:00.000Z", entry.Timestamp)
		assert.Equal(t, "0xBAC", entry.UserAddress)
		assert.Equal(t, int64((i+1)*100), entry.FileSize)
		assert.Equal(t, map[string]any{"bidder": string(rune('A' + i))}, entry.StageMetadata)
		assert.Equal(t, key, rec.Key)
	}

	status, err := gw.Query(ctx, core.StreamStatus, key, 0)
	require.NoError(t, err)
	require.Len(t, status, 1)
	st := core.StatusFromPayload(status[0].Payload)
	assert.Equal(t, "BIDS_OPENED", st.CurrentStatus)
	assert.Empty(t, st.PreviousStatus)
	assert.False(t, status[0].Payload.Has("previous_stage"))

	events, err := gw.Query(ctx, core.StreamEvents, key, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	ev := core.EventFromPayload(events[0].Payload)
	assert.Equal(t, core.EventDocumentUpload, ev.EventType)
	assert.Equal(t, 3, ev.DocumentCount)
	assert.Equal(t, gateway.CategoryDocument, ev.Category)
	assert.Equal(t, st.Timestamp, ev.Timestamp)
}

func TestGateway_AppendDocuments_Validation(t *testing.T) {
	gw, ledger := newGateway(t)
	up := bidUpload()
	up.Documents = nil

	err := gw.AppendDocuments(context.Background(), up)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Zero(t, ledger.Len(core.StreamDocuments))
}

func TestGateway_AppendDocuments_PartialFailure(t *testing.T) {
	ctx := context.Background()
	gw, ledger := newGateway(t)
	ledger.InjectFault(memory.Fault{
		Op:     memory.OpPublish,
		Stream: core.StreamStatus,
		Err:    &core.ClientError{Code: -1, Message: "node unavailable"},
	})

	err := gw.AppendDocuments(ctx, bidUpload())
	require.Error(t, err)

	var pb *core.PartialBatchError
	require.ErrorAs(t, err, &pb)
	assert.Equal(t, "status", pb.Step)
	assert.Equal(t, []string{"documents"}, pb.Completed)
	assert.ErrorIs(t, err, core.ErrTransport)

	assert.Equal(t, 3, ledger.Len(core.StreamDocuments), "documents are not rolled back")
	assert.Zero(t, ledger.Len(core.StreamStatus))
	assert.Zero(t, ledger.Len(core.StreamEvents), "the event step never ran")
}

func TestGateway_TransitionStage(t *testing.T) {
	ctx := context.Background()
	gw, _ := newGateway(t)
	tr := gateway.Transition{
		ProcurementID: "PR-9",
		Title:         "Laptops",
		FromStatus:    "Awarded",
		ToStatus:      "Performance Bond Posted",
		FromStage:     "Notice of Award",
		ToStage:       "Performance Bond",
		Actor:         "0x1",
		Details:       "Bond received",
	}
	require.NoError(t, gw.TransitionStage(ctx, tr))

	set, err := gw.QueryAll(ctx, core.DeriveKey("PR-9", "Laptops"), 0)
	require.NoError(t, err)
	require.Len(t, set.Status, 1)
	require.Len(t, set.Events, 1)
	assert.Empty(t, set.Documents)

	st := core.StatusFromPayload(set.Status[0].Payload)
	assert.Equal(t, "Performance Bond", st.Stage)
	assert.Equal(t, "Performance Bond Posted", st.CurrentStatus)
	assert.Equal(t, "Notice of Award", st.PreviousStage)
	assert.Equal(t, "Awarded", st.PreviousStatus)

	ev := core.EventFromPayload(set.Events[0].Payload)
	assert.Equal(t, core.EventStageTransition, ev.EventType)
	assert.Equal(t, "Bond received (from Notice of Award:Awarded to Performance Bond:Performance Bond Posted)", ev.Details)
}

func TestGateway_Query_TolerantDecode(t *testing.T) {
	ctx := context.Background()
	gw, ledger := newGateway(t)

	_, err := ledger.Publish(ctx, core.StreamStatus, "k", []byte("{not json"))
	require.NoError(t, err)
	_, err = ledger.Publish(ctx, core.StreamStatus, "k", []byte(`{"current_status":"Awarded"}`))
	require.NoError(t, err)

	recs, err := gw.Query(ctx, core.StreamStatus, "k", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Empty(t, recs[0].Payload)
	assert.NotNil(t, recs[0].Payload)
	assert.Equal(t, 0, recs[0].Seq)
	assert.Equal(t, "Awarded", recs[1].Payload.String("current_status"))
	assert.Equal(t, 1, recs[1].Seq)
}

func TestGateway_TransportErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("Rejected Calls Are Not Retried", func(t *testing.T) {
		gw, ledger := newGateway(t, gateway.WithRetries(3), gateway.WithRetryInterval(time.Millisecond))
		ledger.InjectFault(memory.Fault{Op: memory.OpList, Err: &core.ClientError{Code: -708, Message: "stream not found"}})

		_, err := gw.Query(ctx, core.StreamEvents, "", 0)
		var te *core.TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, -708, te.Code)
		assert.Equal(t, "list_all", te.Op)
		assert.Equal(t, 1, ledger.Calls(memory.OpList, core.StreamEvents))
	})

	t.Run("Transient Failures Are Retried", func(t *testing.T) {
		gw, ledger := newGateway(t, gateway.WithRetries(2), gateway.WithRetryInterval(time.Millisecond))
		ledger.InjectFault(memory.Fault{Op: memory.OpPublish, Err: io.ErrUnexpectedEOF, Times: 1})

		err := gw.AppendEvent(ctx, gateway.Event{ProcurementID: "PR-1", EventType: "note"})
		require.NoError(t, err)
		assert.Equal(t, 2, ledger.Calls(memory.OpPublish, core.StreamEvents))
		assert.Equal(t, 1, ledger.Len(core.StreamEvents))
	})

	t.Run("Exhausted Retries Surface The Cause", func(t *testing.T) {
		gw, ledger := newGateway(t, gateway.WithRetries(1), gateway.WithRetryInterval(time.Millisecond))
		ledger.InjectFault(memory.Fault{Op: memory.OpPublish, Err: io.ErrUnexpectedEOF})

		err := gw.AppendStatus(ctx, gateway.StatusChange{ProcurementID: "PR-1", Status: "x"})
		assert.ErrorIs(t, err, core.ErrTransport)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		assert.Equal(t, 2, ledger.Calls(memory.OpPublish, core.StreamStatus))
	})

	t.Run("Canceled Context Stops Immediately", func(t *testing.T) {
		gw, ledger := newGateway(t, gateway.WithRetries(5))
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		err := gw.AppendStatus(cctx, gateway.StatusChange{ProcurementID: "PR-1", Status: "x"})
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Zero(t, ledger.Len(core.StreamStatus))
	})
}

func TestGateway_ReadOnly(t *testing.T) {
	ctx := context.Background()
	gw, ledger := newGateway(t, gateway.WithReadOnly(true))

	assert.ErrorIs(t, gw.AppendDocuments(ctx, bidUpload()), core.ErrReadOnly)
	assert.ErrorIs(t, gw.AppendStatus(ctx, gateway.StatusChange{ProcurementID: "PR-1"}), core.ErrReadOnly)
	assert.Zero(t, ledger.Len(core.StreamDocuments))

	_, err := gw.Query(ctx, core.StreamStatus, "", 10)
	assert.NoError(t, err, "reads stay available")
}

func TestGateway_QueryValidation(t *testing.T) {
	gw, _ := newGateway(t)
	_, err := gw.Query(context.Background(), core.StreamID("ledger"), "", 0)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestGateway_CBORCodec(t *testing.T) {
	ctx := context.Background()
	gw, _ := newGateway(t, gateway.WithCodec(codec.NewCBOR()))

	require.NoError(t, gw.AppendStatus(ctx, gateway.StatusChange{ProcurementID: "PR-1", Title: "T", Status: "Awarded", Stage: "Notice of Award"}))
	recs, err := gw.Query(ctx, core.StreamStatus, core.DeriveKey("PR-1", "T"), 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Awarded", core.StatusFromPayload(recs[0].Payload).CurrentStatus)
}

func TestGateway_State(t *testing.T) {
	gw, _ := newGateway(t, gateway.WithPageSize(50))
	state, ok := gw.State().(gateway.GatewayState)
	require.True(t, ok)
	assert.Equal(t, "memory", state.LedgerType)
	assert.Equal(t, "json", state.Codec)
	assert.Equal(t, 50, state.PageSize)
	assert.Equal(t, "gateway", gw.ComponentType())
}
