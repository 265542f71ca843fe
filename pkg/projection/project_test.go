package projection_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/bidtrail/pkg/core"
	"github.com/aretw0/bidtrail/pkg/projection"
	"github.com/aretw0/bidtrail/pkg/stages"
)

func bidOpeningSet() core.RecordSet {
	opened := statusRecord(stages.BidOpening, stages.StatusBidsOpened, ts(30))
	opened.Payload["previous_status"] = stages.StatusBidInvitationPosted
	opened.Payload["previous_stage"] = stages.BidInvitation
	return core.RecordSet{
		Documents: withSeq([]core.Record{
			documentRecord(stages.BidOpening, "Bid Document", 1, "bid-a", ts(30)),
			documentRecord(stages.BidOpening, "Bid Document", 2, "bid-b", ts(30)),
			documentRecord(stages.BidOpening, "Bid Document", 3, "bid-c", ts(30)),
		}),
		Status: withSeq([]core.Record{
			statusRecord(stages.BidInvitation, stages.StatusBidInvitationPosted, ts(10)),
			statusRecord(stages.BidOpening, stages.StatusBidsOpened, ts(30)),
			opened,
		}),
		Events: withSeq([]core.Record{
			eventRecord(stages.BidOpening, core.EventDocumentUpload, "3 documents", ts(30)),
		}),
	}
}

func TestProject_ThreeBids(t *testing.T) {
	p, ok := projection.Project(nil, testKey, bidOpeningSet())
	require.True(t, ok)

	assert.Equal(t, testKey, p.Key)
	assert.Equal(t, testID, p.ID)
	assert.Equal(t, testTitle, p.Title)
	assert.Equal(t, stages.BidOpening, p.Stage)
	assert.Equal(t, stages.StatusBidsOpened, p.Status)
	assert.Equal(t, ts(30), p.LastUpdated)
	assert.Equal(t, 3, p.Documents.Count(stages.BidOpening))
	assert.Equal(t, 3, p.Phases[3].DocumentCount)
	assert.Equal(t, projection.PhaseCurrent, p.Phases[3].State)

	require.NotNil(t, p.NextAction)
	assert.Equal(t, "evaluate_bids", p.NextAction.Name)
}

func TestProject_Missing(t *testing.T) {
	set := bidOpeningSet()
	set.Status = nil
	_, ok := projection.Project(stages.DefaultTable(), testKey, set)
	assert.False(t, ok, "a procurement without status does not exist")

	_, ok = projection.Project(stages.DefaultTable(), "other-key", bidOpeningSet())
	assert.False(t, ok)
}

func TestProject_Completed(t *testing.T) {
	set := core.RecordSet{Status: []core.Record{statusRecord(stages.Monitoring, stages.StatusCompleted, ts(59))}}
	p, ok := projection.Project(nil, testKey, set)
	require.True(t, ok)
	assert.Nil(t, p.NextAction)
}

func TestProjectAll_AndFilter(t *testing.T) {
	set := bidOpeningSet()
	laptops := statusRecord(stages.PRInitiation, stages.StatusPRSubmitted, ts(45))
	laptops.Key = core.DeriveKey("PR-9", "Laptops")
	laptops.Payload["procurement_id"] = "PR-9"
	laptops.Payload["procurement_title"] = "Laptops"
	set.Status = append(set.Status, laptops)
	orphan := eventRecord(stages.PRInitiation, "note", "", ts(50))
	orphan.Key = "no-status"
	set.Events = append(set.Events, orphan)

	all := projection.ProjectAll(nil, set)
	require.Len(t, all, 2)
	assert.Equal(t, "PR-9-laptops", all[0].Key, "most recently updated first")
	assert.Equal(t, testKey, all[1].Key)

	filtered, err := projection.FilterKeys(all, "PR-2024-*")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, testKey, filtered[0].Key)

	unfiltered, err := projection.FilterKeys(all, "")
	require.NoError(t, err)
	assert.Len(t, unfiltered, 2)

	_, err = projection.FilterKeys(all, "PR-[")
	assert.Error(t, err)
}

// shuffled returns a permutation of recs renumbered as a new fetch would be.
func shuffled(recs []core.Record, seed int64) []core.Record {
	out := append([]core.Record(nil), recs...)
	rand.New(rand.NewSource(seed)).Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return withSeq(out)
}

// generated builds a record set from small integers. Documents and events
// share timestamps across codes and repeat codes yield duplicate payloads.
// Status timestamps are unique per code: equal-timestamp status races have
// no defined winner.
func generated(codes []int) core.RecordSet {
	var set core.RecordSet
	names := stages.Default().Names()
	for i, c := range codes {
		stage := names[c%len(names)]
		shared := ts(c % 7)
		if c%11 == 0 {
			shared = fmt.Sprintf("malformed-%d", c%2)
		}
		switch c % 3 {
		case 0:
			unique := ts(c)
			if c%11 == 0 {
				unique = fmt.Sprintf("malformed-%d", c)
			}
			r := statusRecord(stage, fmt.Sprintf("status-%d", c), unique)
			r.ID = fmt.Sprintf("%s#%d", r.ID, i)
			set.Status = append(set.Status, r)
		case 1:
			r := documentRecord(stage, fmt.Sprintf("type-%d", c%4), c%5, fmt.Sprintf("h%d", c), shared)
			r.ID = fmt.Sprintf("%s#%d", r.ID, i)
			set.Documents = append(set.Documents, r)
		default:
			r := eventRecord(stage, "note", fmt.Sprintf("event %d", c), shared)
			r.ID = fmt.Sprintf("%s#%d", r.ID, i)
			set.Events = append(set.Events, r)
		}
	}
	return set
}

func TestProjection_FetchOrderInvariance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	codes := gen.SliceOf(gen.IntRange(0, 59))

	properties.Property("latest status ignores fetch order", prop.ForAll(
		func(codes []int, seed int64) bool {
			set := generated(codes)
			a := projection.LatestStatus(withSeq(set.Status))
			b := projection.LatestStatus(shuffled(set.Status, seed))
			if len(a) != len(b) {
				return false
			}
			for k, v := range a {
				if b[k].StatusEntry != v.StatusEntry {
					return false
				}
			}
			return true
		},
		codes, gen.Int64(),
	))

	properties.Property("document catalog ignores fetch order", prop.ForAll(
		func(codes []int, seed int64) bool {
			set := generated(codes)
			a := projection.DocumentCatalog(stages.Default(), withSeq(set.Documents))
			b := projection.DocumentCatalog(stages.Default(), shuffled(set.Documents, seed))
			return assert.ObjectsAreEqual(a, b)
		},
		codes, gen.Int64(),
	))

	properties.Property("timeline ignores fetch order", prop.ForAll(
		func(codes []int, seed int64) bool {
			set := generated(codes)
			a := projection.Timeline(projection.History(withSeq(set.Status)), projection.Events(withSeq(set.Events)))
			b := projection.Timeline(projection.History(shuffled(set.Status, seed)), projection.Events(shuffled(set.Events, seed+1)))
			return assert.ObjectsAreEqual(a, b)
		},
		codes, gen.Int64(),
	))

	properties.Property("projection is idempotent", prop.ForAll(
		func(codes []int) bool {
			set := generated(codes)
			a := projection.ProjectAll(nil, set)
			b := projection.ProjectAll(nil, set)
			return assert.ObjectsAreEqual(a, b)
		},
		codes,
	))

	properties.TestingRun(t)
}
