// Package stages is the stage transition authority: the canonical, ordered
// list of procurement stages and the table deciding which action is legal
// for a given (stage, status).
package stages

import "strings"

// Canonical stage names, in workflow order.
const (
	PRInitiation      = "PR Initiation"
	PreProcurement    = "Pre-Procurement"
	BidInvitation     = "Bid Invitation"
	BidOpening        = "Bid Opening"
	BidEvaluation     = "Bid Evaluation"
	PostQualification = "Post-Qualification"
	BACResolution     = "BAC Resolution"
	NoticeOfAward     = "Notice of Award"
	PerformanceBond   = "Performance Bond"
	ContractAndPO     = "Contract and PO"
	NoticeToProceed   = "Notice to Proceed"
	Monitoring        = "Monitoring"
)

// Stages is an immutable, ordered list of stage names.
// The zero value is an empty list.
type Stages struct {
	names []string
	index map[string]int
}

// New builds a stage list. Duplicate names (after normalization) keep their first position.
func New(names ...string) Stages {
	s := Stages{index: make(map[string]int, len(names))}
	for _, name := range names {
		n := Normalize(name)
		if n == "" {
			continue
		}
		if _, dup := s.index[n]; dup {
			continue
		}
		s.index[n] = len(s.names)
		s.names = append(s.names, strings.TrimSpace(name))
	}
	return s
}

// Default returns the twelve canonical procurement stages.
func Default() Stages {
	return New(
		PRInitiation,
		PreProcurement,
		BidInvitation,
		BidOpening,
		BidEvaluation,
		PostQualification,
		BACResolution,
		NoticeOfAward,
		PerformanceBond,
		ContractAndPO,
		NoticeToProceed,
		Monitoring,
	)
}

// Len returns the number of stages.
func (s Stages) Len() int { return len(s.names) }

// Names returns a copy of the ordered stage names.
func (s Stages) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// At returns the stage at ordinal position i.
func (s Stages) At(i int) string {
	if i < 0 || i >= len(s.names) {
		return ""
	}
	return s.names[i]
}

// Index returns the ordinal position of name, or -1 when it is not a known stage.
// Lookup is case-insensitive and ignores whitespace differences.
func (s Stages) Index(name string) int {
	if i, ok := s.index[Normalize(name)]; ok {
		return i
	}
	return -1
}

// Contains reports whether name is a known stage.
func (s Stages) Contains(name string) bool {
	return s.Index(name) >= 0
}

// Canonical returns the canonical spelling of name.
func (s Stages) Canonical(name string) (string, bool) {
	i := s.Index(name)
	if i < 0 {
		return "", false
	}
	return s.names[i], true
}

// Normalize lower-cases a stage name and collapses its whitespace.
func Normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
