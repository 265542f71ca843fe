package projection

import (
	"sort"
	"strings"

	"github.com/aretw0/bidtrail/pkg/core"
	"github.com/aretw0/bidtrail/pkg/stages"
)

// Catalog is the set of current documents of a procurement, by phase.
type Catalog struct {
	Phases []PhaseDocuments `json:"phases"`
}

// PhaseDocuments lists the current documents of one phase.
type PhaseDocuments struct {
	Phase     string         `json:"phase"`
	Documents []DocumentView `json:"documents"`
}

// Documents returns the documents of a phase, matched case-insensitively.
func (c Catalog) Documents(phase string) []DocumentView {
	want := normalize(phase)
	for _, p := range c.Phases {
		if normalize(p.Phase) == want {
			return p.Documents
		}
	}
	return nil
}

// Count returns the number of documents in a phase.
func (c Catalog) Count(phase string) int {
	return len(c.Documents(phase))
}

// Total returns the number of documents across every phase.
func (c Catalog) Total() int {
	n := 0
	for _, p := range c.Phases {
		n += len(p.Documents)
	}
	return n
}

// DocumentCatalog assigns every document record a phase and keeps, per phase
// and document type, only the latest upload batch: the records carrying the
// group's greatest timestamp. Exact duplicates within that batch collapse.
func DocumentCatalog(stageList stages.Stages, records []core.Record) Catalog {
	type groupKey struct{ phase, docType string }
	groups := make(map[groupKey][]DocumentView)
	phases := make(map[string]string)

	for _, r := range records {
		v := newDocumentView(stageList, r)
		gk := groupKey{phase: normalize(v.Phase), docType: normalize(v.DocumentType)}
		groups[gk] = append(groups[gk], v)
		if prev, ok := phases[gk.phase]; !ok || v.Phase < prev {
			phases[gk.phase] = v.Phase
		}
	}

	byPhase := make(map[string][]DocumentView)
	for gk, docs := range groups {
		byPhase[gk.phase] = append(byPhase[gk.phase], latestBatch(docs)...)
	}

	out := Catalog{Phases: make([]PhaseDocuments, 0, len(byPhase))}
	for norm, docs := range byPhase {
		sort.Slice(docs, func(i, j int) bool {
			a, b := docs[i], docs[j]
			if c := strings.Compare(normalize(a.DocumentType), normalize(b.DocumentType)); c != 0 {
				return c < 0
			}
			if a.DocumentIndex != b.DocumentIndex {
				return a.DocumentIndex < b.DocumentIndex
			}
			return a.Fingerprint < b.Fingerprint
		})
		out.Phases = append(out.Phases, PhaseDocuments{Phase: phases[norm], Documents: docs})
	}
	sort.Slice(out.Phases, func(i, j int) bool {
		return phaseLess(stageList, out.Phases[i].Phase, out.Phases[j].Phase)
	})
	return out
}

// latestBatch keeps the documents carrying the greatest timestamp of the
// group, one per (index, hash, file key).
func latestBatch(docs []DocumentView) []DocumentView {
	newest := docs[0].Timestamp
	for _, d := range docs[1:] {
		if core.CompareTimestamps(d.Timestamp, newest) > 0 {
			newest = d.Timestamp
		}
	}

	type identity struct {
		index         int
		hash, fileKey string
	}
	kept := make(map[identity]DocumentView)
	for _, d := range docs {
		if core.CompareTimestamps(d.Timestamp, newest) != 0 {
			continue
		}
		id := identity{index: d.DocumentIndex, hash: d.Hash, fileKey: d.FileKey}
		if cur, ok := kept[id]; !ok || d.Fingerprint < cur.Fingerprint ||
			(d.Fingerprint == cur.Fingerprint && d.RecordID < cur.RecordID) {
			kept[id] = d
		}
	}
	out := make([]DocumentView, 0, len(kept))
	for _, d := range kept {
		out = append(out, d)
	}
	return out
}

// phaseLess orders canonical stages by ordinal, then any other explicit
// phase alphabetically, then OtherDocuments.
func phaseLess(stageList stages.Stages, a, b string) bool {
	rank := func(p string) int {
		if i := stageList.Index(p); i >= 0 {
			return i
		}
		if p == OtherDocuments {
			return stageList.Len() + 1
		}
		return stageList.Len()
	}
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra < rb
	}
	return normalize(a) < normalize(b)
}

func newDocumentView(stageList stages.Stages, r core.Record) DocumentView {
	entry := core.DocumentFromPayload(r.Payload)
	v := DocumentView{
		DocumentEntry: entry,
		Key:           KeyOf(r),
		RecordID:      r.ID,
		Fingerprint:   core.Fingerprint(r.Payload),
	}

	explicit := strings.TrimSpace(entry.Stage)
	if explicit == "" {
		explicit = strings.TrimSpace(r.Payload.String(core.FieldPhaseIdentifier))
	}
	if explicit == "" {
		explicit = strings.TrimSpace(core.Payload(entry.StageMetadata).String(core.FieldPhaseIdentifier))
	}

	switch {
	case explicit != "":
		v.Phase = explicit
		if canonical, ok := stageList.Canonical(explicit); ok {
			v.Phase = canonical
		}
	default:
		v.Classified = true
		v.Phase = OtherDocuments
		if phase, ok := Classify(entry.DocumentType, entry.FileKey); ok {
			v.Phase = phase
		}
	}
	return v
}
