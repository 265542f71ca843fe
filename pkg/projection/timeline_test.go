package projection_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/bidtrail/pkg/core"
	"github.com/aretw0/bidtrail/pkg/projection"
	"github.com/aretw0/bidtrail/pkg/stages"
)

func TestTimeline(t *testing.T) {
	transition := statusRecord(stages.BidOpening, stages.StatusBidsOpened, ts(5))
	transition.Payload["previous_status"] = stages.StatusBidInvitationPosted
	transition.Payload["previous_stage"] = stages.BidInvitation

	upload := eventRecord(stages.BidOpening, core.EventDocumentUpload, "3 documents", ts(5))
	redelivered := upload
	redelivered.ID = "zz-redelivered"

	history := projection.History([]core.Record{
		transition,
		statusRecord("bid  INVITATION", stages.StatusBidInvitationPosted, ts(3)),
		statusRecord(stages.PRInitiation, stages.StatusPRSubmitted, ts(1)),
		statusRecord(stages.Monitoring, "broken clock", "not-a-time"),
	})
	events := projection.Events([]core.Record{
		upload,
		redelivered,
		eventRecord(stages.BidInvitation, "note", "posted on PhilGEPS", ts(3)),
	})

	tl := projection.Timeline(history, events)
	require.Len(t, tl, 6)

	type row struct {
		kind     projection.EntryKind
		title    string
		newPhase bool
	}
	var got []row
	for _, e := range tl {
		got = append(got, row{e.Kind, e.Title, e.NewPhase})
	}
	assert.Equal(t, []row{
		{projection.EntryStatus, stages.StatusPRSubmitted, true},
		{projection.EntryStatus, stages.StatusBidInvitationPosted, true},
		{projection.EntryEvent, "note", false},
		{projection.EntryStatus, stages.StatusBidsOpened, true},
		{projection.EntryEvent, core.EventDocumentUpload, false},
		{projection.EntryStatus, "broken clock", true},
	}, got)

	assert.Equal(t, stages.BidInvitation, tl[3].PreviousStage)
	assert.Equal(t, "3 documents", tl[4].Details)
	assert.Equal(t, upload.ID, tl[4].RecordID, "duplicates resolve to the same copy")
}

func TestTimeline_Empty(t *testing.T) {
	assert.Empty(t, projection.Timeline(nil, nil))
}

func TestTimeline_NonJSONNumbersStayDistinct(t *testing.T) {
	first := eventRecord(stages.BidOpening, "score", "first bidder", ts(4))
	first.Payload["score"] = math.NaN()
	second := eventRecord(stages.BidOpening, "score", "second bidder", ts(5))
	second.Payload["score"] = math.Inf(1)

	events := projection.Events([]core.Record{first, second})
	tl := projection.Timeline(nil, events)
	require.Len(t, tl, 2)
	assert.NotEmpty(t, tl[0].Fingerprint)
	assert.NotEqual(t, tl[0].Fingerprint, tl[1].Fingerprint)

	t.Run("Empty Fingerprints Are Not Merged", func(t *testing.T) {
		views := []projection.EventView{
			{EventEntry: core.EventEntry{EventType: "score", Details: "a", Timestamp: ts(4)}, RecordID: "a"},
			{EventEntry: core.EventEntry{EventType: "score", Details: "b", Timestamp: ts(5)}, RecordID: "b"},
		}
		assert.Len(t, projection.Timeline(nil, views), 2)
	})
}
