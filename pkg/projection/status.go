package projection

import "github.com/aretw0/bidtrail/pkg/core"

// LatestStatus returns, per stream key, the status record with the greatest
// timestamp. Malformed timestamps lose against any valid one. Records with
// equal timestamps fall back to ledger order (the later record wins); two
// writers racing within the same millisecond therefore have no defined winner.
func LatestStatus(records []core.Record) map[string]StatusView {
	latest := make(map[string]StatusView)
	for _, r := range records {
		v := newStatusView(r)
		cur, ok := latest[v.Key]
		if !ok || newer(v, cur) {
			latest[v.Key] = v
		}
	}
	return latest
}

// LatestStatusFor returns the latest status of one key. ok is false when the
// key has no status record, i.e. the procurement does not exist.
func LatestStatusFor(records []core.Record, key string) (StatusView, bool) {
	v, ok := LatestStatus(records)[key]
	return v, ok
}

func newer(a, b StatusView) bool {
	if c := core.CompareTimestamps(a.Timestamp, b.Timestamp); c != 0 {
		return c > 0
	}
	return a.seq > b.seq
}
